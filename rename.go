/*
Copyright © 2025 the fwg authors.
This file is part of fwg.

fwg is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

fwg is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with fwg.  If not, see <http://www.gnu.org/licenses/>.
*/

package fwg

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	placeholderRE   = regexp.MustCompile(`\{([^{}]*)\}`)
	generatedNameRE = regexp.MustCompile(`(ssp\d{3}|rcp\d{2})_(\d{4})\.(epw|stat)$`)
)

// ParseGeneratedName extracts the scenario and year from the name of a
// file written by the tool, e.g. "MAD_Ensemble_ssp245_2050.epw". ext is
// "epw" or "stat".
func ParseGeneratedName(name string) (scenario string, year int, ext string, ok bool) {
	m := generatedNameRE.FindStringSubmatch(strings.ToLower(filepath.Base(name)))
	if m == nil {
		return "", 0, "", false
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, "", false
	}
	return m[1], year, m[3], true
}

// GeneratedKey is the key of a scenario and year in a rename plan,
// e.g. "ssp245_2050".
func GeneratedKey(scenario string, year int) string {
	return fmt.Sprintf("%s_%d", scenario, year)
}

// RenamePlan holds where each file generated from each input EPW file
// will be moved.
type RenamePlan struct {
	OutputDir string
	Pattern   string

	// Destinations maps each source EPW file and generated key to the
	// destination path, without extension.
	Destinations map[string]map[string]string

	// Excluded maps source files left out of the plan to the reason.
	Excluded map[string]string

	files []string
}

// PlanInput holds what BuildRenamePlan needs besides the mapping.
type PlanInput struct {
	OutputDir string

	// Pattern is the output filename pattern, e.g.
	// "{city}_{uhi}_{ssp}_{year}". Besides the categories, it may use
	// {scenario} (the raw scenario), {ssp} or {rcp} and {ssp_full_name}
	// or {rcp_full_name} (the scenario after ScenarioMapping), {year},
	// and "{fwg_<param>}" for any morphing parameter.
	Pattern string

	// ScenarioMapping renames scenarios, e.g. "ssp245" to "SSP2-4.5".
	ScenarioMapping map[string]string

	Params Params
}

// BuildRenamePlan computes the destination of every file the tool can
// generate from each mapped EPW file. Files missing categories that the
// pattern needs are excluded.
func BuildRenamePlan(tool *Tool, m *Mapping, in PlanInput) (*RenamePlan, error) {
	if m == nil || len(m.Files) == 0 {
		return nil, ErrNotMapped
	}
	if strings.TrimSpace(in.Pattern) == "" {
		return nil, fmt.Errorf("fwg: the output filename pattern is empty")
	}
	if strings.TrimSpace(in.OutputDir) == "" {
		return nil, fmt.Errorf("fwg: the final output directory is empty")
	}
	auto := map[string]bool{"scenario": true, "year": true}
	auto[tool.ScenarioPlaceholder] = true
	auto[tool.ScenarioPlaceholder+"_full_name"] = true
	params := in.Params.Placeholders(tool)
	var required []string
	for _, ph := range placeholders(in.Pattern) {
		if _, ok := params[ph]; !auto[ph] && !ok {
			required = append(required, ph)
		}
	}

	p := &RenamePlan{
		OutputDir:    in.OutputDir,
		Pattern:      in.Pattern,
		Destinations: make(map[string]map[string]string),
		Excluded:     make(map[string]string),
	}
	for _, f := range m.Files {
		p.files = append(p.files, f)
		cats, _ := m.Categories(f)
		var missing []string
		for _, r := range required {
			if _, ok := cats[r]; !ok {
				missing = append(missing, r)
			}
		}
		if len(missing) > 0 {
			p.Excluded[f] = fmt.Sprintf("missing required categories for the output pattern: %v", missing)
			continue
		}
		p.Destinations[f] = make(map[string]string)
		for _, year := range tool.Years {
			for _, scenario := range tool.Scenarios {
				full := scenario
				if v, ok := in.ScenarioMapping[scenario]; ok {
					full = v
				}
				values := make(map[string]string, len(cats)+len(params)+4)
				for k, v := range params {
					values[k] = v
				}
				for k, v := range cats {
					values[k] = v
				}
				values["scenario"] = scenario
				values["year"] = strconv.Itoa(year)
				values[tool.ScenarioPlaceholder] = full
				values[tool.ScenarioPlaceholder+"_full_name"] = full
				name := placeholderRE.ReplaceAllStringFunc(in.Pattern, func(s string) string {
					return values[s[1:len(s)-1]]
				})
				p.Destinations[f][GeneratedKey(scenario, year)] = filepath.Join(in.OutputDir, name)
			}
		}
	}
	return p, nil
}

// placeholders returns the distinct placeholder names in pattern.
func placeholders(pattern string) []string {
	seen := make(map[string]bool)
	var o []string
	for _, m := range placeholderRE.FindAllStringSubmatch(pattern, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			o = append(o, m[1])
		}
	}
	return o
}

// Destination returns where a generated file should be moved, including
// its extension. ok is false when the file is not part of the plan.
func (p *RenamePlan) Destination(source, generated string) (dst string, ok bool) {
	scenario, year, ext, ok := ParseGeneratedName(generated)
	if !ok {
		return "", false
	}
	d, ok := p.Destinations[source][GeneratedKey(scenario, year)]
	if !ok {
		return "", false
	}
	return d + "." + ext, true
}

// Includes reports whether source has a plan.
func (p *RenamePlan) Includes(source string) bool {
	_, ok := p.Destinations[source]
	return ok
}

// Preview writes a human readable version of the plan to w.
func (p *RenamePlan) Preview(w io.Writer, m *Mapping) error {
	bar := strings.Repeat("=", 60)
	abs := func(s string) string {
		if a, err := filepath.Abs(s); err == nil {
			return a
		}
		return s
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n          MORPHING AND RENAMING PREVIEW\n%s\n", bar, bar)
	fmt.Fprintf(&b, "\nFinal Output Directory: %s\n", abs(p.OutputDir))
	for _, f := range p.files {
		flag := ""
		if m != nil && m.IsIncomplete(f) {
			flag = " [INCOMPLETE MAPPING]"
		}
		fmt.Fprintf(&b, "\n  For input file: %s%s\n", filepath.Base(f), flag)
		if reason, ok := p.Excluded[f]; ok {
			fmt.Fprintf(&b, "    -> ERROR: This file is %s. Renaming will fail.\n", reason)
			continue
		}
		keys := sortedKeys(p.Destinations[f])
		sort.SliceStable(keys, func(i, j int) bool { return keyYear(keys[i]) < keyYear(keys[j]) })
		for _, k := range keys {
			fmt.Fprintf(&b, "    -> Generated '%s.epw' will be moved to: %s.epw\n", k, abs(p.Destinations[f][k]))
		}
	}
	fmt.Fprintf(&b, "%s\nPreview complete.\n", bar)
	_, err := io.WriteString(w, b.String())
	return err
}

func keyYear(k string) string {
	if i := strings.LastIndexByte(k, '_'); i >= 0 {
		return k[i+1:]
	}
	return k
}
