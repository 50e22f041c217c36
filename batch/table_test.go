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

package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dsanchez-garcia/fwg"
	"github.com/google/go-cmp/cmp"
)

func TestTemplate(t *testing.T) {
	for _, name := range []string{"runs.csv", "runs.xlsx"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := WriteTemplate(path, fwg.Europe); err != nil {
				t.Fatal(err)
			}
			recs, err := readTable(path)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff([][]string{Columns(fwg.Europe)}, recs); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
			runs, err := LoadRuns(path)
			if err != nil {
				t.Fatal(err)
			}
			if len(runs) != 0 {
				t.Errorf("template should have no runs: %v", runs)
			}
		})
	}
}

func TestPlanRoundTrip(t *testing.T) {
	p := newPlan(fwg.Global, []Row{
		{
			ColEPWPaths:       []string{"a.epw", "b.epw"},
			ColKeywordMapping: cityMapping,
			ColDeleteTemp:     false,
			"fwg_gcms":        "CanESM5",
		},
		{ColEPWPaths: "c.epw", "fwg_winter_sd_shift": 1.5},
	}, []map[string]map[string]bool{
		{"city": {"Seville": true, "Madrid": true}},
		{},
	}, []string{"city"})

	want := []string{
		ColEPWPaths, ColInputPattern, ColKeywordMapping, "cat_city",
		ColDeleteTemp, "fwg_gcms", "fwg_winter_sd_shift",
	}
	if diff := cmp.Diff(want, p.Columns); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}

	for _, name := range []string{"plan.csv", "plan.xlsx"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out", name)
			if err := p.Write(path); err != nil {
				t.Fatal(err)
			}
			runs, err := LoadRuns(path)
			if err != nil {
				t.Fatal(err)
			}
			if len(runs) != 2 {
				t.Fatalf("got %d runs, want 2", len(runs))
			}
			want := Row{
				ColEPWPaths:       "[a.epw, b.epw]",
				ColKeywordMapping: cityMapping.String(),
				ColDeleteTemp:     "false",
				"fwg_gcms":        "CanESM5",
			}
			if diff := cmp.Diff(want, runs[0]); diff != "" {
				t.Errorf("run 1 (-want +got):\n%s", diff)
			}
			if runs[1]["fwg_winter_sd_shift"] != "1.5" {
				t.Errorf("run 2: %v", runs[1])
			}
			km, err := fwg.ParseKeywordMapping(runs[0][ColKeywordMapping])
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(cityMapping, km); diff != "" {
				t.Errorf("keyword mapping (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadRunsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.csv")
	body := "EPW_Paths, final_output_dir,,cat_city\n" +
		"a.epw,out,ignored,Seville\n" +
		",,,\n" +
		"b.epw,NaN,,\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	runs, err := LoadRuns(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []Row{
		{ColEPWPaths: "a.epw", ColOutputDir: "out"},
		{ColEPWPaths: "b.epw"},
	}
	if diff := cmp.Diff(want, runs); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
