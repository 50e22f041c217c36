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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// ErrNoMappingMethod is returned when neither a filename pattern nor a
// keyword mapping is given.
var ErrNoMappingMethod = errors.New("fwg: you must provide at least one mapping method: an input filename pattern or a keyword mapping")

// Categories holds the category values of one EPW file, e.g.
// {"city": "Seville", "uhi": "Urban"}.
type Categories map[string]string

// Keys returns the sorted category names.
func (c Categories) Keys() []string {
	k := make([]string, 0, len(c))
	for n := range c {
		k = append(k, n)
	}
	sort.Strings(k)
	return k
}

// KeywordMapping maps each category to its final values, and each final
// value to the keywords that identify it in a file name. Matching is case
// insensitive.
type KeywordMapping map[string]map[string][]string

// ParseKeywordMapping converts v into a KeywordMapping. v may be a
// KeywordMapping, a nested map whose keyword entries are a single string or
// a list of strings, or a JSON or YAML document holding such a map.
func ParseKeywordMapping(v interface{}) (KeywordMapping, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case KeywordMapping:
		return t, nil
	case map[string]map[string][]string:
		return KeywordMapping(t), nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		var raw map[string]map[string]interface{}
		if err := yaml.Unmarshal([]byte(t), &raw); err != nil {
			return nil, fmt.Errorf("fwg: parsing keyword mapping: %w", err)
		}
		return keywordMappingFromRaw(raw)
	}
	outer, err := cast.ToStringMapE(v)
	if err != nil {
		return nil, fmt.Errorf("fwg: keyword mapping: %w", err)
	}
	raw := make(map[string]map[string]interface{}, len(outer))
	for cat, rules := range outer {
		r, err := cast.ToStringMapE(rules)
		if err != nil {
			return nil, fmt.Errorf("fwg: keyword mapping for category %q: %w", cat, err)
		}
		raw[cat] = r
	}
	return keywordMappingFromRaw(raw)
}

func keywordMappingFromRaw(raw map[string]map[string]interface{}) (KeywordMapping, error) {
	m := make(KeywordMapping, len(raw))
	for cat, rules := range raw {
		m[cat] = make(map[string][]string, len(rules))
		for final, kw := range rules {
			var list []string
			switch k := kw.(type) {
			case string:
				list = []string{k}
			default:
				var err error
				if list, err = cast.ToStringSliceE(k); err != nil {
					return nil, fmt.Errorf("fwg: keywords for %s=%s: %w", cat, final, err)
				}
			}
			m[cat][final] = list
		}
	}
	return m, nil
}

// LoadKeywordMapping reads a keyword mapping from a YAML or JSON file.
func LoadKeywordMapping(path string) (KeywordMapping, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fwg: reading keyword mapping: %w", err)
	}
	return ParseKeywordMapping(string(b))
}

// String renders m as JSON, which is how mappings are written to
// spreadsheet cells.
func (m KeywordMapping) String() string {
	if m == nil {
		return ""
	}
	b, _ := json.Marshal(map[string]map[string][]string(m))
	return string(b)
}

// normalize returns the final value whose keywords contain raw, or raw
// itself when none does.
func (m KeywordMapping) normalize(category, raw string) string {
	rules, ok := m[category]
	if !ok {
		return raw
	}
	for _, final := range sortedKeys(rules) {
		for _, k := range rules[final] {
			if strings.EqualFold(k, raw) {
				return final
			}
		}
	}
	return raw
}

// search looks for the keywords of every category in name.
func (m KeywordMapping) search(name string) Categories {
	name = strings.ToLower(name)
	c := make(Categories)
	for _, cat := range sortedKeys(m) {
		for _, final := range sortedKeys(m[cat]) {
			if containsAny(name, m[cat][final]) {
				c[cat] = final
				break
			}
		}
	}
	return c
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	k := make([]string, 0, len(m))
	for n := range m {
		k = append(k, n)
	}
	sort.Strings(k)
	return k
}

// Mapping is the result of mapping categories from file names.
type Mapping struct {
	// Files lists the mapped files in input order.
	Files []string

	// Complete holds files with every category found. Incomplete holds
	// files with only some categories, which only happens when searching
	// by keywords alone.
	Complete, Incomplete map[string]Categories
}

// Categories returns the categories of a mapped file.
func (m *Mapping) Categories(path string) (Categories, bool) {
	if c, ok := m.Complete[path]; ok {
		return c, true
	}
	c, ok := m.Incomplete[path]
	return c, ok
}

// IsIncomplete reports whether path was mapped with missing categories.
func (m *Mapping) IsIncomplete(path string) bool {
	_, ok := m.Incomplete[path]
	return ok
}

// Keys returns every category name found in any file.
func (m *Mapping) Keys() []string {
	all := make(map[string]bool)
	for _, f := range m.Files {
		c, _ := m.Categories(f)
		for k := range c {
			all[k] = true
		}
	}
	return sortedKeys(all)
}

// MapCategories identifies the categories of each EPW file from its name.
//
// If pattern is given, it is matched against the file name without its
// extension and each named group becomes a category. A group's value is
// replaced by the final value whose keyword matches it, when mapping has
// one. If only mapping is given, the whole file name is searched for the
// keywords of every category.
//
// Files that do not exist, are not EPW files, or yield no categories are
// skipped with a warning.
func MapCategories(files []string, pattern string, mapping KeywordMapping, log logrus.FieldLogger) (*Mapping, error) {
	if pattern == "" && len(mapping) == 0 {
		return nil, ErrNoMappingMethod
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		if re, err = regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("fwg: invalid input filename pattern: %w", err)
		}
	}
	m := &Mapping{
		Complete:   make(map[string]Categories),
		Incomplete: make(map[string]Categories),
	}
	for _, f := range files {
		flog := log.WithField("epw", f)
		if _, err := os.Stat(f); err != nil {
			flog.Warn("EPW file not found, skipping")
			continue
		}
		if _, err := ReadLocation(f); err != nil {
			flog.Warnf("skipping: %v", err)
			continue
		}
		var c Categories
		if re != nil {
			name := baseName(f)
			c = matchPattern(re, name, mapping)
			if c == nil {
				flog.Warnf("pattern did not match %q, skipping", name)
				continue
			}
		} else {
			c = mapping.search(filepath.Base(f))
		}
		if len(c) == 0 {
			flog.Warn("could not map any categories, skipping")
			continue
		}
		m.Files = append(m.Files, f)
		if re == nil && len(c) < len(mapping) {
			var missing []string
			for _, k := range sortedKeys(mapping) {
				if _, ok := c[k]; !ok {
					missing = append(missing, k)
				}
			}
			flog.WithField("missing", missing).Warn("file is missing categories")
			m.Incomplete[f] = c
			continue
		}
		flog.WithField("categories", c).Info("mapped categories")
		m.Complete[f] = c
	}
	return m, nil
}

// matchPattern returns the named groups of re in name, or nil when re does
// not match. Optional groups that did not participate are left out.
func matchPattern(re *regexp.Regexp, name string, mapping KeywordMapping) Categories {
	idx := re.FindStringSubmatchIndex(name)
	if idx == nil {
		return nil
	}
	c := make(Categories)
	for i, g := range re.SubexpNames() {
		if i == 0 || g == "" || idx[2*i] < 0 {
			continue
		}
		c[g] = mapping.normalize(g, name[idx[2*i]:idx[2*i+1]])
	}
	return c
}
