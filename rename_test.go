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

package fwg_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dsanchez-garcia/fwg"
	"github.com/dsanchez-garcia/fwg/internal/fwgtest"
)

func TestParseGeneratedName(t *testing.T) {
	tests := []struct {
		name, scenario, ext string
		year                int
		ok                  bool
	}{
		{name: "ESP_Sevilla_Ensemble_ssp245_2050.epw", scenario: "ssp245", year: 2050, ext: "epw", ok: true},
		{name: "ssp585_2080.stat", scenario: "ssp585", year: 2080, ext: "stat", ok: true},
		{name: "X_Ensemble_rcp85_2080.EPW", scenario: "rcp85", year: 2080, ext: "epw", ok: true},
		{name: "X_Ensemble_ssp245_2050.csv"},
		{name: "X_Ensemble.log"},
	}
	for _, test := range tests {
		s, y, e, ok := fwg.ParseGeneratedName(test.name)
		if s != test.scenario || y != test.year || e != test.ext || ok != test.ok {
			t.Errorf("%s: got (%s, %d, %s, %v)", test.name, s, y, e, ok)
		}
	}
}

func TestBuildRenamePlan(t *testing.T) {
	dir := t.TempDir()
	svq := fwgtest.WriteEPW(t, dir, "ESP_Sevilla_urbano.epw")
	mad := fwgtest.WriteEPW(t, dir, "ESP_Madrid.epw")
	m, err := fwg.MapCategories([]string{svq, mad}, "", cityMapping, quietLog())
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "final")
	params := fwg.DefaultParams()
	params.Models = []string{"CanESM5", "MIROC6"}
	plan, err := fwg.BuildRenamePlan(fwg.Global, m, fwg.PlanInput{
		OutputDir:       out,
		Pattern:         "{city}_{uhi}_{ssp}_{year}_gcm-{fwg_gcms}",
		ScenarioMapping: map[string]string{"ssp245": "SSP2-4.5"},
		Params:          params,
	})
	if err != nil {
		t.Fatal(err)
	}

	if !plan.Includes(svq) {
		t.Fatal("complete file missing from plan")
	}
	if plan.Includes(mad) {
		t.Error("file without the uhi category should be excluded")
	}
	if !strings.Contains(plan.Excluded[mad], "uhi") {
		t.Errorf("exclusion reason %q should name the missing category", plan.Excluded[mad])
	}
	if n := len(plan.Destinations[svq]); n != len(fwg.Global.Scenarios)*len(fwg.Global.Years) {
		t.Errorf("got %d destinations", n)
	}

	cases := map[string]string{
		"ESP_Sevilla_urbano_Ensemble_ssp245_2050.epw":  "Seville_Urban_SSP2-4.5_2050_gcm-CanESM5-MIROC6.epw",
		"ESP_Sevilla_urbano_Ensemble_ssp245_2050.stat": "Seville_Urban_SSP2-4.5_2050_gcm-CanESM5-MIROC6.stat",
		"ESP_Sevilla_urbano_Ensemble_ssp585_2080.epw":  "Seville_Urban_ssp585_2080_gcm-CanESM5-MIROC6.epw",
	}
	for gen, want := range cases {
		got, ok := plan.Destination(svq, gen)
		if !ok {
			t.Errorf("%s: not in plan", gen)
			continue
		}
		if got != filepath.Join(out, want) {
			t.Errorf("%s: got %s, want %s", gen, got, filepath.Join(out, want))
		}
	}
	if _, ok := plan.Destination(svq, "ESP_Sevilla_urbano_Ensemble.log"); ok {
		t.Error("log file should not be in the plan")
	}

	var b bytes.Buffer
	if err := plan.Preview(&b, m); err != nil {
		t.Fatal(err)
	}
	preview := b.String()
	for _, want := range []string{
		"MORPHING AND RENAMING PREVIEW",
		"For input file: ESP_Sevilla_urbano.epw\n",
		"For input file: ESP_Madrid.epw [INCOMPLETE MAPPING]",
		"-> ERROR: This file is missing required categories for the output pattern: [uhi]",
		"Generated 'ssp126_2050.epw' will be moved to: ",
		"Seville_Urban_SSP2-4.5_2050_gcm-CanESM5-MIROC6.epw",
	} {
		if !strings.Contains(preview, want) {
			t.Errorf("preview is missing %q:\n%s", want, preview)
		}
	}
}

func TestBuildRenamePlanEurope(t *testing.T) {
	dir := t.TempDir()
	f := fwgtest.WriteEPW(t, dir, "Madrid_Rural.epw")
	m, err := fwg.MapCategories([]string{f}, `(?P<city>[A-Za-z]+)_(?P<uhi>\w+)`, nil, quietLog())
	if err != nil {
		t.Fatal(err)
	}
	plan, err := fwg.BuildRenamePlan(fwg.Europe, m, fwg.PlanInput{
		OutputDir: dir,
		Pattern:   "{city}/{rcp_full_name}_{year}_{scenario}",
		ScenarioMapping: map[string]string{
			"rcp45": "RCP4.5",
		},
		Params: fwg.DefaultParams(),
	})
	if err != nil {
		t.Fatal(err)
	}
	got, ok := plan.Destination(f, "Madrid_Rural_Ensemble_rcp45_2080.stat")
	if want := filepath.Join(dir, "Madrid", "RCP4.5_2080_rcp45.stat"); !ok || got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if _, ok := plan.Destination(f, "Madrid_Rural_Ensemble_ssp245_2050.epw"); ok {
		t.Error("global scenarios are not part of a Europe plan")
	}
}

func TestBuildRenamePlanErrors(t *testing.T) {
	if _, err := fwg.BuildRenamePlan(fwg.Global, &fwg.Mapping{}, fwg.PlanInput{OutputDir: "x", Pattern: "{year}"}); err != fwg.ErrNotMapped {
		t.Errorf("got %v, want ErrNotMapped", err)
	}
	m := &fwg.Mapping{Files: []string{"a.epw"}, Complete: map[string]fwg.Categories{"a.epw": {"city": "A"}}}
	if _, err := fwg.BuildRenamePlan(fwg.Global, m, fwg.PlanInput{OutputDir: "x"}); err == nil {
		t.Error("empty pattern should be an error")
	}
}
