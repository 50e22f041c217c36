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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotMapped is returned when a step needs mapped files but none
	// were mapped.
	ErrNotMapped = errors.New("fwg: no files were successfully mapped; run MapCategories first")

	// ErrNoPlan is returned when executing before the rename plan is set.
	ErrNoPlan = errors.New("fwg: no rename plan; run PreviewRenamePlan before executing")

	// ErrInvalidConfig is returned when executing with a configuration
	// that failed validation.
	ErrInvalidConfig = errors.New("fwg: invalid morphing configuration")
)

// MorphingConfig holds how the tool is run.
type MorphingConfig struct {
	// JarPath is the FutureWeatherGenerator jar.
	JarPath string

	// Java is the java executable; "java" when empty.
	Java string

	// JavaOptions are extra JVM options, e.g. "-Xmx8g".
	JavaOptions []string

	// RunIncompleteFiles also morphs files whose categories were only
	// partly mapped.
	RunIncompleteFiles bool

	// DeleteTempFiles removes each file's temporary directory once its
	// outputs have been copied.
	DeleteTempFiles bool

	// TempBaseDir holds one temporary directory per EPW file.
	TempBaseDir string

	// ShowToolOutput copies the tool's output to the terminal.
	ShowToolOutput bool

	// MorphTimeout bounds each run. Zero means the package MorphTimeout.
	MorphTimeout time.Duration

	Params Params
}

// DefaultMorphingConfig returns the default configuration for tool.
func DefaultMorphingConfig(tool *Tool) MorphingConfig {
	return MorphingConfig{
		DeleteTempFiles: true,
		TempBaseDir:     tool.DefaultTempDir,
		Params:          DefaultParams(),
	}
}

// Validate checks that the jar exists, that a temporary directory is set,
// and that the parameters are in range. All problems are returned together.
func (c MorphingConfig) Validate(tool *Tool) error {
	var errs *multierror.Error
	if c.JarPath == "" {
		errs = multierror.Append(errs, fmt.Errorf("the FutureWeatherGenerator jar path is not set"))
	} else if fi, err := os.Stat(c.JarPath); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("the FutureWeatherGenerator jar is not available: %w", err))
	} else if !fi.Mode().IsRegular() {
		errs = multierror.Append(errs, fmt.Errorf("the FutureWeatherGenerator jar path %s is not a file", c.JarPath))
	}
	if strings.TrimSpace(c.TempBaseDir) == "" {
		errs = multierror.Append(errs, fmt.Errorf("the temporary base directory is not set"))
	}
	if err := c.Params.Validate(tool); err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			errs = multierror.Append(errs, merr.Errors...)
		} else {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func (c MorphingConfig) engine(tool *Tool, r Runner, log logrus.FieldLogger) *Engine {
	return &Engine{
		Tool:           tool,
		JVM:            JVM{Java: c.Java, Options: c.JavaOptions, JarPath: c.JarPath},
		Runner:         r,
		MorphTimeout:   c.MorphTimeout,
		ShowToolOutput: c.ShowToolOutput,
		Log:            log,
	}
}

// Workflow morphs a set of EPW files and renames the results in four
// steps: MapCategories, PreviewRenamePlan, SetMorphingConfig and
// ExecuteMorphing. ConfigureAndPreview combines the middle two.
type Workflow struct {
	Tool *Tool

	// Runner runs the tool; local processes when nil.
	Runner Runner

	Log logrus.FieldLogger

	// Out receives the rename preview. It defaults to standard output.
	Out io.Writer

	Clock clockwork.Clock

	// Mapping is set by MapCategories.
	Mapping *Mapping

	// Config is set by SetMorphingConfig. IsConfigValid reports whether
	// it passed validation, and ConfigError holds the problems if not.
	Config        MorphingConfig
	IsConfigValid bool
	ConfigError   error

	planInput *PlanInput
	configSet bool
}

// NewWorkflow returns a workflow for tool.
func NewWorkflow(tool *Tool) *Workflow {
	return &Workflow{
		Tool:   tool,
		Log:    logrus.StandardLogger(),
		Out:    os.Stdout,
		Clock:  clockwork.NewRealClock(),
		Config: DefaultMorphingConfig(tool),
	}
}

func (w *Workflow) log() logrus.FieldLogger {
	if w.Log == nil {
		return logrus.StandardLogger()
	}
	return w.Log.WithField("tool", w.Tool.Name)
}

func (w *Workflow) clock() clockwork.Clock {
	if w.Clock == nil {
		return clockwork.NewRealClock()
	}
	return w.Clock
}

// MapCategories is step 1: it identifies the categories of each EPW file
// from its name. See MapCategories.
func (w *Workflow) MapCategories(epwFiles []string, pattern string, mapping KeywordMapping) error {
	w.log().Info("step 1: mapping categories from filenames")
	m, err := MapCategories(epwFiles, pattern, mapping, w.log())
	if err != nil {
		return err
	}
	w.Mapping = m
	w.log().WithFields(logrus.Fields{
		"complete":   len(m.Complete),
		"incomplete": len(m.Incomplete),
	}).Info("category mapping complete")
	return nil
}

// PreviewRenamePlan is step 2: it sets where the generated files will go
// and writes the plan to Out. Placeholders of morphing parameters take the
// values of the current configuration.
func (w *Workflow) PreviewRenamePlan(outputDir, pattern string, scenarioMapping map[string]string) error {
	if w.Mapping == nil || len(w.Mapping.Files) == 0 {
		return ErrNotMapped
	}
	w.log().Info("step 2: generating rename and move plan")
	in := &PlanInput{OutputDir: outputDir, Pattern: pattern, ScenarioMapping: scenarioMapping}
	w.planInput = in
	p, err := w.Plan()
	if err != nil {
		w.planInput = nil
		return err
	}
	out := w.Out
	if out == nil {
		out = os.Stdout
	}
	return p.Preview(out, w.Mapping)
}

// Plan returns the rename plan for the current configuration.
func (w *Workflow) Plan() (*RenamePlan, error) {
	if w.planInput == nil {
		return nil, ErrNoPlan
	}
	in := *w.planInput
	in.Params = w.Config.Params
	return BuildRenamePlan(w.Tool, w.Mapping, in)
}

// SetMorphingConfig is step 3: it stores and validates c. The returned
// error lists every validation problem. The workflow can only be executed
// after a successful call.
func (w *Workflow) SetMorphingConfig(c MorphingConfig) error {
	w.log().Info("step 3: setting morphing configuration")
	w.Config = c
	w.configSet = true
	w.ConfigError = c.Validate(w.Tool)
	w.IsConfigValid = w.ConfigError == nil
	if w.ConfigError != nil {
		w.log().WithError(w.ConfigError).Error("morphing configuration is not valid")
		return fmt.Errorf("%w: %v", ErrInvalidConfig, w.ConfigError)
	}
	files := w.FilesToMorph()
	w.log().WithField("files", len(files)).Info("morphing configuration is valid")
	return nil
}

// PreviewOptions configures ConfigureAndPreview.
type PreviewOptions struct {
	OutputDir       string
	Pattern         string
	ScenarioMapping map[string]string
	Config          MorphingConfig
}

// ConfigureAndPreview sets the configuration and previews the rename plan.
// An invalid configuration is recorded in IsConfigValid and ConfigError
// rather than returned, so the plan can still be reviewed.
func (w *Workflow) ConfigureAndPreview(o PreviewOptions) error {
	if w.Mapping == nil || len(w.Mapping.Files) == 0 {
		return ErrNotMapped
	}
	// An invalid configuration is kept in ConfigError.
	_ = w.SetMorphingConfig(o.Config)
	return w.PreviewRenamePlan(o.OutputDir, o.Pattern, o.ScenarioMapping)
}

// FilesToMorph returns the mapped files that will be morphed: the complete
// ones, and the incomplete ones when RunIncompleteFiles is set.
func (w *Workflow) FilesToMorph() []string {
	if w.Mapping == nil {
		return nil
	}
	var o []string
	for _, f := range w.Mapping.Files {
		if w.Mapping.IsIncomplete(f) && !w.Config.RunIncompleteFiles {
			continue
		}
		o = append(o, f)
	}
	return o
}

// ExecuteMorphing is step 4: it runs the tool for every file to morph and
// copies the generated files to their planned destinations. Files that
// fail are skipped and their errors are returned together with the paths
// of the files that were created.
func (w *Workflow) ExecuteMorphing(ctx context.Context) ([]string, error) {
	if w.Mapping == nil || len(w.Mapping.Files) == 0 {
		return nil, ErrNotMapped
	}
	plan, err := w.Plan()
	if err != nil {
		return nil, err
	}
	if !w.configSet {
		return nil, fmt.Errorf("%w: run SetMorphingConfig before executing", ErrInvalidConfig)
	}
	if !w.IsConfigValid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, w.ConfigError)
	}
	log := w.log()
	log.Info("step 4: executing morphing workflow")
	if w.Config.RunIncompleteFiles {
		log.Info("processing both complete and incomplete files")
	} else if len(w.Mapping.Incomplete) > 0 {
		log.Info("processing only completely mapped files; incomplete files will be skipped")
	}
	if err := os.MkdirAll(plan.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("fwg: creating output directory: %w", err)
	}
	if err := os.MkdirAll(w.Config.TempBaseDir, 0755); err != nil {
		return nil, fmt.Errorf("fwg: creating temporary directory: %w", err)
	}

	e := w.Config.engine(w.Tool, w.Runner, log)
	start := w.clock().Now()
	var created []string
	var records []ManifestRecord
	var errs *multierror.Error
	for _, f := range w.FilesToMorph() {
		flog := log.WithField("epw", filepath.Base(f))
		if !plan.Includes(f) {
			flog.Warn("skipping file, it had errors during the preview stage")
			continue
		}
		tmp := tempDir(w.Config.TempBaseDir, f)
		if err := morphInto(ctx, e, w.Config.Params, f, tmp); err != nil {
			flog.WithError(err).Error("morphing failed")
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", f, err))
			continue
		}
		outs, err := w.moveGenerated(plan, f, tmp)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", f, err))
		}
		created = append(created, outs...)
		cats, _ := w.Mapping.Categories(f)
		records = append(records, ManifestRecord{Source: f, Categories: cats, Outputs: outs})
		if w.Config.DeleteTempFiles {
			if err := removeAll(tmp, flog); err != nil {
				flog.Error(err)
			}
		}
	}
	if len(records) > 0 {
		if err := UpdateManifest(plan.OutputDir, w.Tool, w.clock().Now(), records); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	log.WithFields(logrus.Fields{
		"files":   len(created),
		"elapsed": w.clock().Since(start).Round(time.Millisecond),
	}).Info("morphing workflow finished")
	return created, errs.ErrorOrNil()
}

// moveGenerated copies the files the tool wrote into tmp to their
// destinations in plan.
func (w *Workflow) moveGenerated(plan *RenamePlan, source, tmp string) ([]string, error) {
	entries, err := os.ReadDir(tmp)
	if err != nil {
		return nil, fmt.Errorf("fwg: reading generated files: %w", err)
	}
	log := w.log().WithField("epw", filepath.Base(source))
	var o []string
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		dst, ok := plan.Destination(source, ent.Name())
		if !ok {
			continue
		}
		src := filepath.Join(tmp, ent.Name())
		log.WithFields(logrus.Fields{"from": src, "to": dst, "size": fileSize(src)}).Info("copying generated file")
		if err := copyFile(src, dst); err != nil {
			return o, fmt.Errorf("fwg: copying %s: %w", ent.Name(), err)
		}
		if a, err := filepath.Abs(dst); err == nil {
			dst = a
		}
		o = append(o, dst)
	}
	return o, nil
}

// LCZError is returned when an EPW file is skipped because the requested
// LCZs are not available at its location.
type LCZError struct {
	EPW   string
	Check *LCZCheck
}

func (e *LCZError) Error() string {
	msg := fmt.Sprintf("fwg: LCZ validation failed for %s", filepath.Base(e.EPW))
	if len(e.Check.Invalid) > 0 {
		msg += ": " + strings.Join(e.Check.Invalid, " ")
	}
	return msg
}

// morphInto runs the Morph entry point for epw into a fresh directory
// tmp. When the urban heat island effect is requested, the LCZ pair is
// checked first.
func morphInto(ctx context.Context, e *Engine, p Params, epw, tmp string) error {
	log := e.log().WithField("epw", filepath.Base(epw))
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return fmt.Errorf("fwg: creating temporary directory: %w", err)
	}
	if p.AddUHI {
		check, err := e.CheckLCZAvailability(ctx, epw, p.EPWOriginalLCZ, p.TargetUHILCZ)
		if err != nil {
			return err
		}
		if !check.OK {
			for _, m := range check.Invalid {
				log.Error(m)
			}
			for _, l := range check.Available {
				log.Errorf("available: %s", l.Description)
			}
			return &LCZError{EPW: epw, Check: check}
		}
	}
	cmd, err := MorphCommand(e.Tool, e.JVM, epw, tmp, p)
	if err != nil {
		return err
	}
	log.WithField("command", cmd.String()).Info("executing command")
	if _, _, err := run(ctx, e.morphRunner(), cmd, e.ShowToolOutput); err != nil {
		var te *ToolError
		if errors.As(err, &te) {
			log.WithField("stderr", te.Stderr).Error("the Morph tool returned an error")
		}
		return err
	}
	return nil
}
