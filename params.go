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
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cast"
)

// LCZ bounds accepted by the tool.
const (
	MinLCZ = 1
	MaxLCZ = 17
)

// Params holds the morphing parameters passed to the tool.
type Params struct {
	// Models are the GCMs (global tool) or GCM/RCM pairs (Europe tool)
	// to use. An empty list selects all of the tool's models.
	Models []string

	// CreateEnsemble creates an ensemble of the selected models.
	CreateEnsemble bool

	// WinterSDShift and SummerSDShift shift the mean by this many
	// standard deviations, in [-2, 2].
	WinterSDShift float64
	SummerSDShift float64

	// MonthTransitionHours smooths the transition between months,
	// in [0, 336].
	MonthTransitionHours int

	UseMultithreading bool

	// InterpolationMethodID selects the grid interpolation method:
	// 0 inverse distance weighting, 1 average of the 4 nearest points,
	// 2 nearest point.
	InterpolationMethodID int

	// LimitVariables bounds the variables to their physical limits.
	LimitVariables bool

	// SolarHourAdjustment is 0 (none), 1 (by month) or 2 (by day).
	SolarHourAdjustment int

	// DiffuseIrradiationModel is 0 (Ridley et al.), 1 (Engerer) or
	// 2 (Paulescu et al.).
	DiffuseIrradiationModel int

	// AddUHI applies the urban heat island effect from EPWOriginalLCZ
	// to TargetUHILCZ.
	AddUHI         bool
	EPWOriginalLCZ int
	TargetUHILCZ   int
}

// DefaultParams returns the tool's documented defaults.
func DefaultParams() Params {
	return Params{
		CreateEnsemble:          true,
		MonthTransitionHours:    72,
		UseMultithreading:       true,
		InterpolationMethodID:   0,
		LimitVariables:          true,
		SolarHourAdjustment:     1,
		DiffuseIrradiationModel: 1,
		AddUHI:                  true,
		EPWOriginalLCZ:          14,
		TargetUHILCZ:            1,
	}
}

// ParamNames lists the names of the scalar parameters, in the order the
// tool receives them. Batch columns and config keys carry an "fwg_" prefix.
var ParamNames = []string{
	"create_ensemble",
	"winter_sd_shift",
	"summer_sd_shift",
	"month_transition_hours",
	"use_multithreading",
	"interpolation_method_id",
	"limit_variables",
	"solar_hour_adjustment",
	"diffuse_irradiation_model",
	"add_uhi",
	"epw_original_lcz",
	"target_uhi_lcz",
}

// ModelList returns the models to run, which is the tool's full list when
// none are selected.
func (p Params) ModelList(tool *Tool) []string {
	if len(p.Models) == 0 {
		return tool.Models
	}
	return p.Models
}

// UHIOptions renders the UHI argument, e.g. "1:14:1".
func (p Params) UHIOptions() string {
	return fmt.Sprintf("%s:%d:%d", boolDigit(p.AddUHI), p.EPWOriginalLCZ, p.TargetUHILCZ)
}

// Set sets the parameter with the given name, with or without the "fwg_"
// prefix, converting v to the parameter's type. The model parameter name
// depends on the tool.
func (p *Params) Set(tool *Tool, name string, v interface{}) error {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "fwg_")
	var err error
	switch name {
	case tool.ModelArg:
		p.Models, err = ParseList(v)
	case "create_ensemble":
		p.CreateEnsemble, err = ToBool(v)
	case "winter_sd_shift":
		p.WinterSDShift, err = cast.ToFloat64E(v)
	case "summer_sd_shift":
		p.SummerSDShift, err = cast.ToFloat64E(v)
	case "month_transition_hours":
		p.MonthTransitionHours, err = toInt(v)
	case "use_multithreading":
		p.UseMultithreading, err = ToBool(v)
	case "interpolation_method_id":
		p.InterpolationMethodID, err = toInt(v)
	case "limit_variables":
		p.LimitVariables, err = ToBool(v)
	case "solar_hour_adjustment":
		p.SolarHourAdjustment, err = toInt(v)
	case "diffuse_irradiation_model":
		p.DiffuseIrradiationModel, err = toInt(v)
	case "add_uhi":
		p.AddUHI, err = ToBool(v)
	case "epw_original_lcz":
		p.EPWOriginalLCZ, err = toInt(v)
	case "target_uhi_lcz":
		p.TargetUHILCZ, err = toInt(v)
	default:
		return fmt.Errorf("fwg: unknown parameter %q for the %s tool", name, tool)
	}
	if err != nil {
		return fmt.Errorf("fwg: parameter %q: %w", name, err)
	}
	return nil
}

// SetAll sets every parameter in m. Keys are processed in ParamNames order
// so errors are reported deterministically.
func (p *Params) SetAll(tool *Tool, m map[string]interface{}) error {
	var errs *multierror.Error
	names := append([]string{tool.ModelArg}, ParamNames...)
	seen := make(map[string]bool)
	for _, n := range names {
		for k, v := range m {
			if strings.TrimPrefix(strings.ToLower(k), "fwg_") == n {
				seen[k] = true
				if err := p.Set(tool, k, v); err != nil {
					errs = multierror.Append(errs, err)
				}
			}
		}
	}
	for k := range m {
		if !seen[k] {
			errs = multierror.Append(errs, fmt.Errorf("fwg: unknown parameter %q for the %s tool", k, tool))
		}
	}
	return errs.ErrorOrNil()
}

// Validate checks every parameter against the ranges the tool accepts and
// returns all violations together.
func (p Params) Validate(tool *Tool) error {
	var errs *multierror.Error
	for _, m := range p.Models {
		if !tool.IsModel(m) {
			errs = multierror.Append(errs, fmt.Errorf("invalid %s %q for the %s tool", tool.ModelArg, m, tool))
		}
	}
	if !inShiftRange(p.WinterSDShift) {
		errs = multierror.Append(errs, fmt.Errorf("winter_sd_shift must be between -2.0 and 2.0, got %g", p.WinterSDShift))
	}
	if !inShiftRange(p.SummerSDShift) {
		errs = multierror.Append(errs, fmt.Errorf("summer_sd_shift must be between -2.0 and 2.0, got %g", p.SummerSDShift))
	}
	if p.MonthTransitionHours < 0 || p.MonthTransitionHours > 336 {
		errs = multierror.Append(errs, fmt.Errorf("month_transition_hours must be between 0 and 336, got %d", p.MonthTransitionHours))
	}
	for _, c := range []struct {
		name string
		v    int
	}{
		{"interpolation_method_id", p.InterpolationMethodID},
		{"solar_hour_adjustment", p.SolarHourAdjustment},
		{"diffuse_irradiation_model", p.DiffuseIrradiationModel},
	} {
		if c.v < 0 || c.v > 2 {
			errs = multierror.Append(errs, fmt.Errorf("%s must be 0, 1 or 2, got %d", c.name, c.v))
		}
	}
	if p.AddUHI {
		if err := checkLCZ("epw_original_lcz", p.EPWOriginalLCZ); err != nil {
			errs = multierror.Append(errs, err)
		}
		if err := checkLCZ("target_uhi_lcz", p.TargetUHILCZ); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Placeholders returns the values available to output filename patterns
// as "{fwg_<name>}". Lists are joined with "-".
func (p Params) Placeholders(tool *Tool) map[string]string {
	models := "all"
	if len(p.Models) > 0 {
		models = strings.Join(p.Models, "-")
	}
	return map[string]string{
		tool.ModelParam():               models,
		"fwg_create_ensemble":           strconv.FormatBool(p.CreateEnsemble),
		"fwg_winter_sd_shift":           formatFloat(p.WinterSDShift),
		"fwg_summer_sd_shift":           formatFloat(p.SummerSDShift),
		"fwg_month_transition_hours":    strconv.Itoa(p.MonthTransitionHours),
		"fwg_use_multithreading":        strconv.FormatBool(p.UseMultithreading),
		"fwg_interpolation_method_id":   strconv.Itoa(p.InterpolationMethodID),
		"fwg_limit_variables":           strconv.FormatBool(p.LimitVariables),
		"fwg_solar_hour_adjustment":     strconv.Itoa(p.SolarHourAdjustment),
		"fwg_diffuse_irradiation_model": strconv.Itoa(p.DiffuseIrradiationModel),
		"fwg_add_uhi":                   strconv.FormatBool(p.AddUHI),
		"fwg_epw_original_lcz":          strconv.Itoa(p.EPWOriginalLCZ),
		"fwg_target_uhi_lcz":            strconv.Itoa(p.TargetUHILCZ),
	}
}

func checkLCZ(name string, v int) error {
	if v < MinLCZ || v > MaxLCZ {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, MinLCZ, MaxLCZ, v)
	}
	return nil
}

// ParseList converts v to a list of strings. Strings may be written as
// "a,b", "[a, b]" or "['a', 'b']", which is how lists appear in
// spreadsheet cells.
func ParseList(v interface{}) ([]string, error) {
	var fields []string
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		s = strings.TrimPrefix(s, "[")
		s = strings.TrimSuffix(s, "]")
		fields = strings.Split(s, ",")
	} else {
		var err error
		if fields, err = cast.ToStringSliceE(v); err != nil {
			return nil, err
		}
	}
	var o []string
	for _, f := range fields {
		f = strings.Trim(strings.TrimSpace(f), `'"`)
		if f != "" {
			o = append(o, f)
		}
	}
	return o, nil
}

// toInt converts v to an int, accepting whole floats such as the 72.0
// spreadsheets produce.
func toInt(v interface{}) (int, error) {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%v is not a whole number", v)
	}
	return int(f), nil
}

// ToBool converts v to a bool, accepting the spellings spreadsheet cells
// use, such as "TRUE", "1.0" or "no".
func ToBool(v interface{}) (bool, error) {
	return cast.ToBoolE(normBool(v))
}

// normBool lets cells written as "True"/"FALSE" or "1.0" parse as booleans.
func normBool(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		switch s {
		case "1.0", "yes":
			return "true"
		case "0.0", "no":
			return "false"
		}
		return s
	case float64:
		return t != 0
	}
	return v
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// formatFloat always keeps a decimal point, e.g. "0.0" or "-1.5".
// inShiftRange reports whether v is a finite shift in [-2, 2]. NaN is out of
// range.
func inShiftRange(v float64) bool { return v >= -2 && v <= 2 }

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
