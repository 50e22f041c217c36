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

// Package fwgutil holds the command-line interface to the fwg morphing
// workflows.
package fwgutil

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dsanchez-garcia/fwg"
	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	morphFlags := []*pflag.FlagSet{morphCmd.Flags(), workflowCmd.Flags()}
	epwFlags := []*pflag.FlagSet{morphCmd.Flags(), workflowCmd.Flags(), uhiCmd.Flags(), lczCmd.PersistentFlags()}
	lczFlags := []*pflag.FlagSet{morphCmd.Flags(), workflowCmd.Flags(), uhiCmd.Flags(), lczCheckCmd.Flags()}
	mappingFlags := []*pflag.FlagSet{workflowCmd.Flags(), batchPlanCmd.Flags(), batchRunCmd.Flags()}

	// Options are the configuration options available to fwg.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "tool",
			usage: `
              tool selects the FutureWeatherGenerator variant: "global" for
              the worldwide tool driven by CMIP6 GCMs, or "europe" for the
              European tool driven by CORDEX GCM/RCM pairs.`,
			shorthand:  "t",
			defaultVal: fwg.Global.Name,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "jar_path",
			usage: `
              jar_path is the path to the FutureWeatherGenerator .jar file.
              It can include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "java",
			usage: `
              java is the Java executable used to run the tool.`,
			defaultVal: "java",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "java_options",
			usage: `
              java_options are extra options for the Java virtual machine,
              written as on a command line, e.g. "-Xmx8g -Dfile.encoding=UTF-8".`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "show_tool_output",
			usage: `
              show_tool_output prints the output of the tool as it runs.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "log_level",
			usage: `
              log_level sets the logging level: debug, info, warn or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "epw",
			usage: `
              epw lists the EPW files to process. Entries can be glob patterns
              such as "data/**/*.epw" and can include environment variables.`,
			shorthand:  "e",
			defaultVal: []string{},
			flagsets:   epwFlags,
		},
		{
			name: "output_dir",
			usage: `
              output_dir is the directory receiving the generated files. The
              morph command uses the tool's default directory when it is empty.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{morphCmd.Flags(), workflowCmd.Flags(), uhiCmd.Flags()},
		},
		{
			name: "temp_base_dir",
			usage: `
              temp_base_dir holds one temporary directory per EPW file while
              it is morphed. The tool's default directory is used when it is empty.`,
			defaultVal: "",
			flagsets:   morphFlags,
		},
		{
			name: "delete_temp_files",
			usage: `
              delete_temp_files removes the temporary files once the generated
              files have been moved.`,
			defaultVal: true,
			flagsets:   morphFlags,
		},
		{
			name: "models",
			usage: `
              models lists the GCMs (global tool) or GCM/RCM pairs (europe tool)
              to use. All of the tool's models are used when it is empty.`,
			shorthand:  "m",
			defaultVal: []string{},
			flagsets:   morphFlags,
		},
		{
			name: "create_ensemble",
			usage: `
              create_ensemble creates an ensemble of the selected models.`,
			defaultVal: true,
			flagsets:   morphFlags,
		},
		{
			name: "winter_sd_shift",
			usage: `
              winter_sd_shift shifts the winter mean by this many standard
              deviations, between -2 and 2.`,
			defaultVal: 0.0,
			flagsets:   morphFlags,
		},
		{
			name: "summer_sd_shift",
			usage: `
              summer_sd_shift shifts the summer mean by this many standard
              deviations, between -2 and 2.`,
			defaultVal: 0.0,
			flagsets:   morphFlags,
		},
		{
			name: "month_transition_hours",
			usage: `
              month_transition_hours is the number of hours used to smooth the
              transition between months, between 0 and 336.`,
			defaultVal: 72,
			flagsets:   morphFlags,
		},
		{
			name: "use_multithreading",
			usage: `
              use_multithreading lets the tool use several threads.`,
			defaultVal: true,
			flagsets:   morphFlags,
		},
		{
			name: "interpolation_method_id",
			usage: `
              interpolation_method_id selects the grid interpolation method:
              0 inverse distance weighting, 1 average of the 4 nearest points,
              2 nearest point.`,
			defaultVal: 0,
			flagsets:   morphFlags,
		},
		{
			name: "limit_variables",
			usage: `
              limit_variables bounds the variables to their physical limits.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{morphCmd.Flags(), workflowCmd.Flags(), uhiCmd.Flags()},
		},
		{
			name: "solar_hour_adjustment",
			usage: `
              solar_hour_adjustment is 0 (none), 1 (by month) or 2 (by day).`,
			defaultVal: 1,
			flagsets:   morphFlags,
		},
		{
			name: "diffuse_irradiation_model",
			usage: `
              diffuse_irradiation_model is 0 (Ridley et al.), 1 (Engerer) or
              2 (Paulescu et al.).`,
			defaultVal: 1,
			flagsets:   morphFlags,
		},
		{
			name: "add_uhi",
			usage: `
              add_uhi applies the urban heat island effect from epw_original_lcz
              to target_uhi_lcz.`,
			defaultVal: true,
			flagsets:   morphFlags,
		},
		{
			name: "epw_original_lcz",
			usage: `
              epw_original_lcz is the local climate zone of the EPW file's
              weather station, between 1 and 17.`,
			defaultVal: 14,
			flagsets:   lczFlags,
		},
		{
			name: "target_uhi_lcz",
			usage: `
              target_uhi_lcz is the local climate zone to convert to, between
              1 and 17.`,
			defaultVal: 1,
			flagsets:   lczFlags,
		},
		{
			name: "input_filename_pattern",
			usage: `
              input_filename_pattern is a regular expression with named groups,
              e.g. "(?P<city>.*?)_(?P<uhi>.*)", matched against EPW file names
              without their extension. Each group becomes a category.`,
			defaultVal: "",
			flagsets:   mappingFlags,
		},
		{
			name: "keyword_mapping",
			usage: `
              keyword_mapping maps categories to final values and the keywords
              that identify them, e.g. {"city": {"Seville": ["sevilla", "SVQ"]}}.
              It can be the path to a YAML or JSON file or the document itself.`,
			defaultVal: "",
			flagsets:   mappingFlags,
		},
		{
			name: "output_filename_pattern",
			usage: `
              output_filename_pattern names the generated files, e.g.
              "{city}_{uhi}_{ssp}_{year}". Besides the categories it can use
              {scenario}, {ssp} or {rcp}, {year} and {fwg_<parameter>}.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{workflowCmd.Flags()},
		},
		{
			name: "scenario_mapping",
			usage: `
              scenario_mapping renames scenarios in output file names, e.g.
              {"ssp245": "SSP2-4.5"}.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{workflowCmd.Flags()},
		},
		{
			name: "run_incomplete_files",
			usage: `
              run_incomplete_files also morphs files whose categories were
              only partly mapped.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{workflowCmd.Flags()},
		},
		{
			name: "dry_run",
			usage: `
              dry_run stops after the rename plan has been previewed and the
              configuration validated.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{workflowCmd.Flags()},
		},
		{
			name: "batch_defaults",
			usage: `
              batch_defaults holds values used for every run that leaves them
              empty, e.g. {"fwg_jar_path": "fwg.jar", "temp_base_dir": "tmp"}.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{batchPlanCmd.Flags(), batchRunCmd.Flags()},
		},
		{
			name: "raise_on_overwrite",
			usage: `
              raise_on_overwrite stops a batch when several runs would write
              the same output file.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{batchPlanCmd.Flags(), batchRunCmd.Flags()},
		},
		{
			name: "plan_file",
			usage: `
              plan_file, if set, is where batch run saves the detailed plan
              of runs, as .xlsx or .csv.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{batchRunCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("FWG")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				json.NewEncoder(b).Encode(v)
				set.StringP(option.name, option.shorthand, b.String(), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(morphCmd)
	Root.AddCommand(workflowCmd)
	Root.AddCommand(uhiCmd)
	Root.AddCommand(lczCmd)
	lczCmd.AddCommand(lczCheckCmd)
	lczCmd.AddCommand(lczListCmd)
	Root.AddCommand(batchCmd)
	batchCmd.AddCommand(batchTemplateCmd)
	batchCmd.AddCommand(batchPlanCmd)
	batchCmd.AddCommand(batchRunCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the logging level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("fwg: problem reading configuration file: %v", err)
		}
	}
	return setLogLevel()
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "fwg",
	Short: "Morph EPW weather files to future climates.",
	Long: `fwg runs the FutureWeatherGenerator tools to morph EnergyPlus (EPW)
weather files to future climate scenarios, and renames the generated files
from categories found in the input file names.
Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'FWG_VAR' where 'VAR' is the
name of the variable to be set.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of fwg.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fwg v%s\n", fwg.Version)
	},
	DisableAutoGenTag: true,
}

var morphCmd = &cobra.Command{
	Use:   "morph",
	Short: "Morph EPW files without renaming the results.",
	Long: `morph runs the tool once for each EPW file and moves the generated
.epw and .stat files, under the names the tool gives them, to output_dir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		created, err := Morph(ctx(cmd))
		for _, f := range created {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return err
	},
	DisableAutoGenTag: true,
}

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Morph EPW files and rename the results.",
	Long: `workflow maps categories from the EPW file names, previews where each
generated file will go, validates the configuration, and then morphs the
files and moves the results to output_dir under output_filename_pattern.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		created, err := Workflow(ctx(cmd), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if !Cfg.GetBool("dry_run") {
			fmt.Fprintf(cmd.OutOrStdout(), "created %d files\n", len(created))
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var uhiCmd = &cobra.Command{
	Use:   "uhi",
	Short: "Apply only the urban heat island effect.",
	Long: `uhi converts each EPW file from epw_original_lcz to target_uhi_lcz
without morphing it to a future climate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return UHI(ctx(cmd))
	},
	DisableAutoGenTag: true,
}

var lczCmd = &cobra.Command{
	Use:   "lcz",
	Short: "Inspect the local climate zones available for EPW files.",
	Long: `lcz reports which local climate zones (LCZs) the tool can use at the
location of each EPW file.`,
	DisableAutoGenTag: true,
}

var lczCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check an LCZ pair.",
	Long: `check reports whether epw_original_lcz and target_uhi_lcz are both
available at the location of each EPW file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return CheckLCZs(ctx(cmd), cmd.OutOrStdout())
	},
	DisableAutoGenTag: true,
}

var lczListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available LCZs.",
	Long:  `list prints the LCZs available at the location of each EPW file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ListLCZs(ctx(cmd), cmd.OutOrStdout())
	},
	DisableAutoGenTag: true,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run many morphing workflows from a table.",
	Long: `batch runs one morphing workflow per row of a run table, written as
an .xlsx or .csv file. Use the template subcommand to create an empty table.`,
	DisableAutoGenTag: true,
}

var batchTemplateCmd = &cobra.Command{
	Use:   "template FILE",
	Short: "Write an empty run table.",
	Long:  `template writes a run table with the columns of the selected tool.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return BatchTemplate(args[0])
	},
	DisableAutoGenTag: true,
}

var batchPlanCmd = &cobra.Command{
	Use:   "plan RUNS PLAN",
	Short: "Write the detailed plan of a run table.",
	Long: `plan applies the defaults to each run in RUNS, finds the categories of
its EPW files, previews its rename plan, and writes the detailed plan to PLAN.
Nothing is morphed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		it, err := BatchGenerate(args[0], cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return it.Plan.Write(args[1])
	},
	DisableAutoGenTag: true,
}

var batchRunCmd = &cobra.Command{
	Use:   "run RUNS",
	Short: "Run every workflow of a run table.",
	Long: `run prepares and runs the workflow of each run in RUNS. Runs that fail
are reported and the batch continues with the next one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var show *bool
		if cmd.Flags().Changed("show_tool_output") {
			v := Cfg.GetBool("show_tool_output")
			show = &v
		}
		s, err := BatchRun(ctx(cmd), args[0], show, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d runs, %d files created\n", len(s.Results), len(s.Outputs()))
		return s.Err()
	},
	DisableAutoGenTag: true,
}
