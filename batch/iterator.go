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

// Package batch runs the morphing workflow many times from a table of runs,
// one row per run.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar"
	"github.com/dsanchez-garcia/fwg"
	"github.com/dsanchez-garcia/fwg/internal/hash"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// Column names of the run table. Morphing parameters use "fwg_<name>".
const (
	ColEPWPaths        = "epw_paths"
	ColInputPattern    = "input_filename_pattern"
	ColKeywordMapping  = "keyword_mapping"
	ColOutputDir       = "final_output_dir"
	ColOutputPattern   = "output_filename_pattern"
	ColScenarioMapping = "scenario_mapping"
	ColJarPath         = "fwg_jar_path"
	ColRunIncomplete   = "run_incomplete_files"
	ColDeleteTemp      = "delete_temp_files"
	ColTempBaseDir     = "temp_base_dir"
	ColShowToolOutput  = "fwg_show_tool_output"

	// CatPrefix starts the plan columns holding the categories found in
	// each run's files.
	CatPrefix = "cat_"
)

var (
	// ErrNoWorkflows is returned by Run when no workflow was prepared.
	ErrNoWorkflows = errors.New("batch: no workflows have been prepared; run Generate first")

	// ErrOverwrite is returned by Generate when runs would write the same
	// output file and overwriting is not allowed.
	ErrOverwrite = errors.New("batch: several runs write the same output files")
)

// Row holds the cells of one run by column name. Missing and empty cells
// take the default value.
type Row map[string]interface{}

// Columns returns the columns of the run table for tool, in template order.
func Columns(tool *fwg.Tool) []string {
	c := []string{
		ColEPWPaths,
		ColInputPattern,
		ColKeywordMapping,
		ColOutputDir,
		ColOutputPattern,
		ColScenarioMapping,
		ColJarPath,
		ColRunIncomplete,
		ColDeleteTemp,
		ColTempBaseDir,
		ColShowToolOutput,
		tool.ModelParam(),
	}
	for _, n := range fwg.ParamNames {
		c = append(c, "fwg_"+n)
	}
	return c
}

// hardcodedDefaults returns the defaults of the workflow configuration.
func hardcodedDefaults(tool *fwg.Tool) Row {
	d := fwg.DefaultMorphingConfig(tool)
	r := Row{
		ColRunIncomplete:  d.RunIncompleteFiles,
		ColDeleteTemp:     d.DeleteTempFiles,
		ColTempBaseDir:    d.TempBaseDir,
		ColShowToolOutput: d.ShowToolOutput,
	}
	for k, v := range d.Params.Placeholders(tool) {
		if k != tool.ModelParam() {
			r[k] = v
		}
	}
	return r
}

// isEmpty reports whether a cell holds no value.
func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(t)
		return s == "" || strings.EqualFold(s, "nan")
	case float64:
		return math.IsNaN(t)
	}
	return false
}

// Iterator plans and runs a batch of morphing workflows.
type Iterator struct {
	Tool *fwg.Tool

	// Defaults holds the values used for cells a run leaves empty. It is
	// set by SetDefaults.
	Defaults Row

	// Java and JavaOptions configure the JVM for every run.
	Java        string
	JavaOptions []string

	// Runner runs the tool; local processes when nil.
	Runner fwg.Runner

	Log logrus.FieldLogger

	// Out receives the rename previews of every run.
	Out io.Writer

	Clock clockwork.Clock

	// Plan is the detailed run table built by Generate.
	Plan *Plan

	// Prepared holds the workflows Generate configured, in run order.
	Prepared []*Prepared
}

// Prepared is a workflow ready to run.
type Prepared struct {
	// Run is the 1-based row number of the run.
	Run      int
	Row      Row
	Workflow *fwg.Workflow
}

// New returns an iterator for tool.
func New(tool *fwg.Tool) *Iterator {
	return &Iterator{
		Tool:  tool,
		Log:   logrus.StandardLogger(),
		Out:   os.Stdout,
		Clock: clockwork.NewRealClock(),
	}
}

func (it *Iterator) log() logrus.FieldLogger {
	if it.Log == nil {
		return logrus.StandardLogger()
	}
	return it.Log.WithField("tool", it.Tool.Name)
}

func (it *Iterator) clock() clockwork.Clock {
	if it.Clock == nil {
		return clockwork.NewRealClock()
	}
	return it.Clock
}

// SetDefaults replaces the defaults applied to every run. The model
// parameter of the other tool is ignored with a warning; any other unknown
// column is an error.
func (it *Iterator) SetDefaults(r Row) error {
	known := make(map[string]bool)
	for _, c := range Columns(it.Tool) {
		known[c] = true
	}
	d := make(Row)
	var errs *multierror.Error
	for _, k := range sortedKeys(r) {
		key := strings.ToLower(strings.TrimSpace(k))
		switch {
		case key == it.Tool.OtherModelParam():
			it.log().Warnf("%s is not used by the %s tool and will be ignored", key, it.Tool)
		case !known[key]:
			errs = multierror.Append(errs, fmt.Errorf("batch: unknown default %q", k))
		case isEmpty(r[k]):
		default:
			d[key] = r[k]
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}
	it.Defaults = d
	it.log().WithField("defaults", sortedKeys(d)).Info("custom default values have been set")
	return nil
}

// GenerateOptions holds the settings Generate applies to runs that leave
// them empty.
type GenerateOptions struct {
	InputFilenamePattern string
	KeywordMapping       fwg.KeywordMapping

	// RaiseOnOverwrite makes runs writing the same output file an error
	// instead of a warning.
	RaiseOnOverwrite bool
}

// Generate builds the detailed plan of runs and prepares one workflow per
// run. Cells are filled from the workflow defaults, then the iterator
// defaults, then the row itself. A run that cannot be prepared is logged
// and left out of Prepared.
func (it *Iterator) Generate(runs []Row, o GenerateOptions) error {
	log := it.log()
	log.Info("generating detailed execution plan and preparing workflows")
	rows := make([]Row, len(runs))
	for i, r := range runs {
		rows[i] = it.resolve(r, o)
	}

	silent := logrus.New()
	silent.SetOutput(io.Discard)
	cats := make([]map[string]map[string]bool, len(rows))
	keys := make(map[string]bool)
	for i, r := range rows {
		cats[i] = make(map[string]map[string]bool)
		in, err := mappingInput(r)
		if err != nil {
			continue
		}
		m, err := fwg.MapCategories(in.files, in.pattern, in.mapping, silent)
		if err != nil {
			continue
		}
		for _, f := range m.Files {
			c, _ := m.Categories(f)
			for k, v := range c {
				if v == "" {
					continue
				}
				if cats[i][k] == nil {
					cats[i][k] = make(map[string]bool)
				}
				cats[i][k][v] = true
				keys[k] = true
			}
		}
	}
	it.Plan = newPlan(it.Tool, rows, cats, sortedKeys(keys))

	log.WithField("runs", len(rows)).Info("preparing workflow instances")
	it.Prepared = nil
	for i, r := range rows {
		p, err := it.prepare(i+1, r)
		if err != nil {
			log.WithError(err).Errorf("failed to prepare workflow for run %d", i+1)
			continue
		}
		it.Prepared = append(it.Prepared, p)
	}
	if err := it.checkOverwrites(o.RaiseOnOverwrite); err != nil {
		it.Prepared = nil
		return err
	}
	log.WithField("prepared", len(it.Prepared)).Info("execution plan generated")
	return nil
}

// resolve applies the defaults to r.
func (it *Iterator) resolve(r Row, o GenerateOptions) Row {
	out := hardcodedDefaults(it.Tool)
	if o.InputFilenamePattern != "" {
		out[ColInputPattern] = o.InputFilenamePattern
	}
	if len(o.KeywordMapping) > 0 {
		out[ColKeywordMapping] = o.KeywordMapping
	}
	for k, v := range it.Defaults {
		out[k] = v
	}
	for k, v := range r {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" || isEmpty(v) || strings.HasPrefix(key, CatPrefix) {
			continue
		}
		if key == it.Tool.OtherModelParam() {
			it.log().Warnf("%s is not used by the %s tool and will be ignored", key, it.Tool)
			continue
		}
		out[key] = v
	}
	return out
}

type mapping struct {
	files   []string
	pattern string
	mapping fwg.KeywordMapping
}

func mappingInput(r Row) (*mapping, error) {
	files, err := EPWFiles(r[ColEPWPaths])
	if err != nil {
		return nil, err
	}
	km, err := fwg.ParseKeywordMapping(r[ColKeywordMapping])
	if err != nil {
		return nil, err
	}
	pattern, err := cast.ToStringE(r[ColInputPattern])
	if err != nil {
		return nil, fmt.Errorf("batch: %s: %w", ColInputPattern, err)
	}
	return &mapping{files: files, pattern: pattern, mapping: km}, nil
}

// EPWFiles converts an epw_paths cell to a list of files. Entries holding
// glob patterns such as "data/**/*.epw" are expanded.
func EPWFiles(v interface{}) ([]string, error) {
	if isEmpty(v) {
		return nil, fmt.Errorf("batch: %s is empty", ColEPWPaths)
	}
	list, err := fwg.ParseList(v)
	if err != nil {
		return nil, fmt.Errorf("batch: %s: %w", ColEPWPaths, err)
	}
	var o []string
	for _, p := range list {
		if !strings.ContainsAny(p, "*?[{") {
			o = append(o, p)
			continue
		}
		matches, err := doublestar.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("batch: expanding %q: %w", p, err)
		}
		sort.Strings(matches)
		o = append(o, matches...)
	}
	return o, nil
}

// prepare configures the workflow of run number n.
func (it *Iterator) prepare(n int, r Row) (*Prepared, error) {
	known := make(map[string]bool)
	for _, c := range Columns(it.Tool) {
		known[c] = true
	}
	for _, k := range sortedKeys(r) {
		if !known[k] {
			return nil, fmt.Errorf("batch: unknown column %q", k)
		}
	}
	in, err := mappingInput(r)
	if err != nil {
		return nil, err
	}
	cfg, err := it.config(n, r)
	if err != nil {
		return nil, err
	}
	scenarios, err := ParseScenarioMapping(r[ColScenarioMapping])
	if err != nil {
		return nil, err
	}
	w := fwg.NewWorkflow(it.Tool)
	w.Runner = it.Runner
	w.Log = it.log().WithField("run", n)
	if it.Out != nil {
		w.Out = it.Out
	}
	w.Clock = it.clock()
	if err := w.MapCategories(in.files, in.pattern, in.mapping); err != nil {
		return nil, err
	}
	err = w.ConfigureAndPreview(fwg.PreviewOptions{
		OutputDir:       cast.ToString(r[ColOutputDir]),
		Pattern:         cast.ToString(r[ColOutputPattern]),
		ScenarioMapping: scenarios,
		Config:          cfg,
	})
	if err != nil {
		return nil, err
	}
	return &Prepared{Run: n, Row: r, Workflow: w}, nil
}

// config builds the morphing configuration of run n. Each run gets its
// own temporary directory under temp_base_dir so runs sharing input file
// names do not collide.
func (it *Iterator) config(n int, r Row) (fwg.MorphingConfig, error) {
	c := fwg.DefaultMorphingConfig(it.Tool)
	c.Java = it.Java
	c.JavaOptions = it.JavaOptions
	c.JarPath = strings.TrimSpace(cast.ToString(r[ColJarPath]))
	var errs *multierror.Error
	for _, b := range []struct {
		col string
		dst *bool
	}{
		{ColRunIncomplete, &c.RunIncompleteFiles},
		{ColDeleteTemp, &c.DeleteTempFiles},
		{ColShowToolOutput, &c.ShowToolOutput},
	} {
		v, ok := r[b.col]
		if !ok {
			continue
		}
		x, err := fwg.ToBool(v)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("batch: %s: %w", b.col, err))
			continue
		}
		*b.dst = x
	}
	if base := strings.TrimSpace(cast.ToString(r[ColTempBaseDir])); base != "" {
		c.TempBaseDir = filepath.Join(base, fmt.Sprintf("run_%d_%s", n, hash.Short(r, 8)))
	} else {
		c.TempBaseDir = ""
	}
	params := make(map[string]interface{})
	for k, v := range r {
		if strings.HasPrefix(k, "fwg_") && k != ColJarPath && k != ColShowToolOutput {
			params[k] = v
		}
	}
	if err := c.Params.SetAll(it.Tool, params); err != nil {
		errs = multierror.Append(errs, err)
	}
	return c, errs.ErrorOrNil()
}

// ParseScenarioMapping converts a scenario_mapping cell, a JSON object or a
// map, to a map from scenario to its name in output files.
func ParseScenarioMapping(v interface{}) (map[string]string, error) {
	if isEmpty(v) {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		var m map[string]string
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("batch: %s: %w", ColScenarioMapping, err)
		}
		return m, nil
	}
	m, err := cast.ToStringMapStringE(v)
	if err != nil {
		return nil, fmt.Errorf("batch: %s: %w", ColScenarioMapping, err)
	}
	return m, nil
}

// checkOverwrites finds output files planned by more than one run, or
// twice by the same run.
func (it *Iterator) checkOverwrites(raise bool) error {
	owner := make(map[string]int)
	var errs *multierror.Error
	for _, p := range it.Prepared {
		plan, err := p.Workflow.Plan()
		if err != nil {
			continue
		}
		for _, f := range p.Workflow.FilesToMorph() {
			dst := plan.Destinations[f]
			for _, k := range sortedKeys(dst) {
				d := dst[k]
				if a, err := filepath.Abs(d); err == nil {
					d = a
				}
				if prev, ok := owner[d]; ok {
					errs = multierror.Append(errs, fmt.Errorf("%s is written by run %d and run %d", d, prev, p.Run))
					continue
				}
				owner[d] = p.Run
			}
		}
	}
	if errs == nil {
		return nil
	}
	if raise {
		return fmt.Errorf("%w: %v", ErrOverwrite, errs)
	}
	for _, err := range errs.Errors {
		it.log().Warnf("output file will be overwritten: %v", err)
	}
	return nil
}

// Result is the outcome of one run.
type Result struct {
	Run     int
	Outputs []string
	Err     error

	// Skipped is set when the run was not executed because its
	// configuration is invalid.
	Skipped bool
	Elapsed time.Duration
}

// Summary is the outcome of a batch.
type Summary struct {
	Results []Result
	Elapsed time.Duration
}

// Outputs returns the files created by every run.
func (s *Summary) Outputs() []string {
	var o []string
	for _, r := range s.Results {
		o = append(o, r.Outputs...)
	}
	return o
}

// Err returns the errors of every run together, or nil.
func (s *Summary) Err() error {
	var errs *multierror.Error
	for _, r := range s.Results {
		if r.Err != nil {
			errs = multierror.Append(errs, fmt.Errorf("run %d: %w", r.Run, r.Err))
		}
	}
	return errs.ErrorOrNil()
}

// Run executes the prepared workflows in order. If showToolOutput is not
// nil it overrides fwg_show_tool_output for every run. Runs with an
// invalid configuration are skipped, and a failing run does not stop the
// batch; both are reported in the summary. Run only returns early when ctx
// is done.
func (it *Iterator) Run(ctx context.Context, showToolOutput *bool) (*Summary, error) {
	if len(it.Prepared) == 0 {
		return nil, ErrNoWorkflows
	}
	log := it.log()
	log.Infof("starting execution of %d prepared runs", len(it.Prepared))
	start := it.clock().Now()
	s := new(Summary)
	for i, p := range it.Prepared {
		rlog := log.WithField("run", p.Run)
		rlog.Infof("running run %d/%d", i+1, len(it.Prepared))
		if showToolOutput != nil {
			p.Workflow.Config.ShowToolOutput = *showToolOutput
		}
		if !p.Workflow.IsConfigValid {
			rlog.WithError(p.Workflow.ConfigError).Error("run skipped due to invalid configuration detected during preparation")
			s.Results = append(s.Results, Result{Run: p.Run, Err: p.Workflow.ConfigError, Skipped: true})
			continue
		}
		rstart := it.clock().Now()
		outs, err := p.Workflow.ExecuteMorphing(ctx)
		res := Result{Run: p.Run, Outputs: outs, Err: err, Elapsed: it.clock().Since(rstart)}
		s.Results = append(s.Results, res)
		if err != nil {
			rlog.WithError(err).Error("run failed, moving to the next run")
		}
		if ctx.Err() != nil {
			s.Elapsed = it.clock().Since(start)
			return s, ctx.Err()
		}
	}
	s.Elapsed = it.clock().Since(start)
	log.WithFields(logrus.Fields{
		"runs":    len(s.Results),
		"outputs": len(s.Outputs()),
		"elapsed": s.Elapsed.Round(time.Millisecond),
	}).Info("batch run complete")
	return s, nil
}

func sortedKeys[V any](m map[string]V) []string {
	k := make([]string, 0, len(m))
	for n := range m {
		k = append(k, n)
	}
	sort.Strings(k)
	return k
}
