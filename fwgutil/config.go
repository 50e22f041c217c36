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

package fwgutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dsanchez-garcia/fwg"
	"github.com/dsanchez-garcia/fwg/batch"
	"github.com/google/shlex"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

// Runner runs the tool for every command. Commands run as local
// processes when it is nil.
var Runner fwg.Runner

func ctx(cmd *cobra.Command) context.Context {
	if cmd == nil || cmd.Context() == nil {
		return context.Background()
	}
	return cmd.Context()
}

func setLogLevel() error {
	lvl, err := logrus.ParseLevel(Cfg.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("fwg: invalid log_level: %v", err)
	}
	logrus.SetLevel(lvl)
	return nil
}

// toolFromCfg returns the tool selected by the "tool" option.
func toolFromCfg() (*fwg.Tool, error) {
	return fwg.ToolByName(strings.TrimSpace(Cfg.GetString("tool")))
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// epwFiles returns the EPW files of the "epw" option, with glob patterns
// expanded.
func epwFiles() ([]string, error) {
	list, err := fwg.ParseList(Cfg.Get("epw"))
	if err != nil {
		return nil, fmt.Errorf("fwg: invalid epw option: %v", err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("fwg: no EPW files were specified; use the --epw option")
	}
	return batch.EPWFiles(expandStringSlice(list))
}

// javaOptions splits the "java_options" option as a shell would.
func javaOptions() ([]string, error) {
	o, err := shlex.Split(Cfg.GetString("java_options"))
	if err != nil {
		return nil, fmt.Errorf("fwg: invalid java_options: %v", err)
	}
	return o, nil
}

// params returns the morphing parameters set in the configuration.
func params(tool *fwg.Tool) (fwg.Params, error) {
	p := fwg.DefaultParams()
	m := map[string]interface{}{tool.ModelArg: Cfg.Get("models")}
	for _, n := range fwg.ParamNames {
		m[n] = Cfg.Get(n)
	}
	if err := p.SetAll(tool, m); err != nil {
		return p, err
	}
	return p, nil
}

// morphingConfig returns the morphing configuration set by the options.
// It is not validated.
func morphingConfig(tool *fwg.Tool) (fwg.MorphingConfig, error) {
	c := fwg.DefaultMorphingConfig(tool)
	c.JarPath = os.ExpandEnv(Cfg.GetString("jar_path"))
	c.Java = Cfg.GetString("java")
	c.RunIncompleteFiles = Cfg.GetBool("run_incomplete_files")
	c.DeleteTempFiles = Cfg.GetBool("delete_temp_files")
	c.ShowToolOutput = Cfg.GetBool("show_tool_output")
	if d := Cfg.GetString("temp_base_dir"); d != "" {
		c.TempBaseDir = os.ExpandEnv(d)
	}
	var err error
	if c.JavaOptions, err = javaOptions(); err != nil {
		return c, err
	}
	if c.Params, err = params(tool); err != nil {
		return c, err
	}
	return c, nil
}

// engine returns an engine for the UHI and LCZ commands.
func engine(tool *fwg.Tool) (*fwg.Engine, error) {
	jar := os.ExpandEnv(Cfg.GetString("jar_path"))
	if jar == "" {
		return nil, fmt.Errorf("fwg: the jar_path option is not set")
	}
	if _, err := os.Stat(jar); err != nil {
		return nil, fmt.Errorf("fwg: the FutureWeatherGenerator jar is not available: %v", err)
	}
	opts, err := javaOptions()
	if err != nil {
		return nil, err
	}
	e := fwg.NewEngine(tool, jar)
	e.JVM.Java = Cfg.GetString("java")
	e.JVM.Options = opts
	e.Runner = Runner
	e.ShowToolOutput = Cfg.GetBool("show_tool_output")
	return e, nil
}

// keywordMapping returns the keyword mapping of the "keyword_mapping"
// option, which may name a YAML or JSON file or hold the mapping itself.
func keywordMapping() (fwg.KeywordMapping, error) {
	v := Cfg.Get("keyword_mapping")
	s, ok := v.(string)
	if !ok {
		return fwg.ParseKeywordMapping(v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if fi, err := os.Stat(os.ExpandEnv(s)); err == nil && !fi.IsDir() {
		return fwg.LoadKeywordMapping(os.ExpandEnv(s))
	}
	return fwg.ParseKeywordMapping(s)
}

// getStringMapString returns a map[string]string from the configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func getStringMapString(varName string) (map[string]string, error) {
	switch t := Cfg.Get(varName).(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return t, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(t)
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		o := make(map[string]string)
		if err := json.Unmarshal([]byte(t), &o); err != nil {
			return nil, fmt.Errorf("fwg: invalid %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("fwg: invalid type for %s: %#v", varName, t)
	}
}

// Morph morphs the EPW files with the tool's own output names and returns
// the paths of the created files.
func Morph(ctx context.Context) ([]string, error) {
	tool, err := toolFromCfg()
	if err != nil {
		return nil, err
	}
	files, err := epwFiles()
	if err != nil {
		return nil, err
	}
	cfg, err := morphingConfig(tool)
	if err != nil {
		return nil, err
	}
	return fwg.Morph(ctx, tool, fwg.MorphOptions{
		EPWPaths:  files,
		OutputDir: os.ExpandEnv(Cfg.GetString("output_dir")),
		Config:    cfg,
		Runner:    Runner,
		Log:       logrus.StandardLogger(),
	})
}

// Workflow runs the complete morphing workflow, writing the rename
// preview to out. With the dry_run option it stops after the preview.
func Workflow(ctx context.Context, out io.Writer) ([]string, error) {
	tool, err := toolFromCfg()
	if err != nil {
		return nil, err
	}
	files, err := epwFiles()
	if err != nil {
		return nil, err
	}
	km, err := keywordMapping()
	if err != nil {
		return nil, err
	}
	scenarios, err := getStringMapString("scenario_mapping")
	if err != nil {
		return nil, err
	}
	cfg, err := morphingConfig(tool)
	if err != nil {
		return nil, err
	}

	w := fwg.NewWorkflow(tool)
	w.Runner = Runner
	w.Out = out
	if err := w.MapCategories(files, Cfg.GetString("input_filename_pattern"), km); err != nil {
		return nil, err
	}
	err = w.ConfigureAndPreview(fwg.PreviewOptions{
		OutputDir:       os.ExpandEnv(Cfg.GetString("output_dir")),
		Pattern:         Cfg.GetString("output_filename_pattern"),
		ScenarioMapping: scenarios,
		Config:          cfg,
	})
	if err != nil {
		return nil, err
	}
	if !w.IsConfigValid {
		return nil, fmt.Errorf("%w: %v", fwg.ErrInvalidConfig, w.ConfigError)
	}
	if Cfg.GetBool("dry_run") {
		logrus.Info("dry run: no files were morphed")
		return nil, nil
	}
	return w.ExecuteMorphing(ctx)
}

// UHI applies only the urban heat island effect to every EPW file.
func UHI(ctx context.Context) error {
	tool, err := toolFromCfg()
	if err != nil {
		return err
	}
	files, err := epwFiles()
	if err != nil {
		return err
	}
	e, err := engine(tool)
	if err != nil {
		return err
	}
	out := os.ExpandEnv(Cfg.GetString("output_dir"))
	if out == "" {
		out = tool.DefaultOutputDir
	}
	var errs *multierror.Error
	for _, f := range files {
		err := e.UHIMorph(ctx, f, out, Cfg.GetInt("epw_original_lcz"), Cfg.GetInt("target_uhi_lcz"), Cfg.GetBool("limit_variables"))
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", f, err))
		}
	}
	return errs.ErrorOrNil()
}

// CheckLCZs checks the configured LCZ pair for every EPW file and writes
// the outcome to w. Files where the pair is not available are returned as
// errors.
func CheckLCZs(ctx context.Context, w io.Writer) error {
	tool, err := toolFromCfg()
	if err != nil {
		return err
	}
	files, err := epwFiles()
	if err != nil {
		return err
	}
	e, err := engine(tool)
	if err != nil {
		return err
	}
	orig, target := Cfg.GetInt("epw_original_lcz"), Cfg.GetInt("target_uhi_lcz")
	var errs *multierror.Error
	for _, f := range files {
		check, err := e.CheckLCZAvailability(ctx, f, orig, target)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", f, err))
			continue
		}
		if check.OK {
			fmt.Fprintf(w, "%s: LCZ %d -> %d is available\n", f, orig, target)
			continue
		}
		fmt.Fprintf(w, "%s:\n", f)
		for _, m := range check.Invalid {
			fmt.Fprintf(w, "  %s\n", m)
		}
		fmt.Fprintln(w, "  Available LCZs:")
		for _, l := range check.Available {
			fmt.Fprintf(w, "    %s\n", l.Description)
		}
		errs = multierror.Append(errs, &fwg.LCZError{EPW: f, Check: check})
	}
	return errs.ErrorOrNil()
}

// ListLCZs writes the LCZs available at the location of every EPW file
// to w.
func ListLCZs(ctx context.Context, w io.Writer) error {
	tool, err := toolFromCfg()
	if err != nil {
		return err
	}
	files, err := epwFiles()
	if err != nil {
		return err
	}
	e, err := engine(tool)
	if err != nil {
		return err
	}
	avail, err := e.AvailableLCZs(ctx, files...)
	for _, f := range files {
		lczs, ok := avail[f]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s:\n", f)
		for _, l := range lczs {
			fmt.Fprintf(w, "  %s\n", l.Description)
		}
	}
	return err
}

// BatchTemplate writes an empty run table for the selected tool.
func BatchTemplate(path string) error {
	tool, err := toolFromCfg()
	if err != nil {
		return err
	}
	if err := batch.WriteTemplate(path, tool); err != nil {
		return err
	}
	logrus.WithField("file", path).Info("run table template written")
	return nil
}

// BatchGenerate loads the run table at path and prepares its workflows,
// writing the rename previews to out.
func BatchGenerate(path string, out io.Writer) (*batch.Iterator, error) {
	tool, err := toolFromCfg()
	if err != nil {
		return nil, err
	}
	runs, err := batch.LoadRuns(path)
	if err != nil {
		return nil, err
	}
	defaults, err := getStringMapString("batch_defaults")
	if err != nil {
		return nil, err
	}
	km, err := keywordMapping()
	if err != nil {
		return nil, err
	}
	opts, err := javaOptions()
	if err != nil {
		return nil, err
	}
	it := batch.New(tool)
	it.Runner = Runner
	it.Out = out
	it.Java = Cfg.GetString("java")
	it.JavaOptions = opts
	d := make(batch.Row, len(defaults))
	for k, v := range defaults {
		d[k] = v
	}
	if jar := Cfg.GetString("jar_path"); jar != "" {
		if _, ok := d[batch.ColJarPath]; !ok {
			d[batch.ColJarPath] = os.ExpandEnv(jar)
		}
	}
	if err := it.SetDefaults(d); err != nil {
		return nil, err
	}
	err = it.Generate(runs, batch.GenerateOptions{
		InputFilenamePattern: Cfg.GetString("input_filename_pattern"),
		KeywordMapping:       km,
		RaiseOnOverwrite:     Cfg.GetBool("raise_on_overwrite"),
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

// BatchRun prepares and runs every workflow of the run table at path. If
// show is not nil it overrides fwg_show_tool_output for every run.
func BatchRun(ctx context.Context, path string, show *bool, out io.Writer) (*batch.Summary, error) {
	it, err := BatchGenerate(path, out)
	if err != nil {
		return nil, err
	}
	if p := Cfg.GetString("plan_file"); p != "" {
		if err := it.Plan.Write(os.ExpandEnv(p)); err != nil {
			return nil, err
		}
	}
	return it.Run(ctx, show)
}
