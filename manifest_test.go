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
	"testing"
	"time"

	"github.com/dsanchez-garcia/fwg"
	"github.com/google/go-cmp/cmp"
)

func TestManifest(t *testing.T) {
	dir := t.TempDir()
	m, err := fwg.ReadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Records) != 0 {
		t.Fatalf("missing manifest should be empty: %+v", m)
	}

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	first := []fwg.ManifestRecord{
		{Source: "b.epw", Categories: map[string]string{"city": "Madrid"}, Outputs: []string{"Madrid_ssp126_2050.epw"}},
		{Source: "a.epw", Categories: map[string]string{"city": "Seville"}, Outputs: []string{"Seville_ssp126_2050.epw"}},
	}
	if err := fwg.UpdateManifest(dir, fwg.Global, now, first); err != nil {
		t.Fatal(err)
	}
	second := []fwg.ManifestRecord{
		{Source: "b.epw", Categories: map[string]string{"city": "Madrid"}, Outputs: []string{"Madrid_ssp585_2080.epw"}},
	}
	if err := fwg.UpdateManifest(dir, fwg.Global, now.Add(time.Hour), second); err != nil {
		t.Fatal(err)
	}

	m, err = fwg.ReadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if m.Tool != "global" || !m.Updated.Equal(now.Add(time.Hour)) {
		t.Errorf("header: %s %v", m.Tool, m.Updated)
	}
	want := []fwg.ManifestRecord{first[1], second[0]}
	if diff := cmp.Diff(want, m.Records); diff != "" {
		t.Errorf("records (-want +got):\n%s", diff)
	}
}

func TestToolByName(t *testing.T) {
	for _, test := range []struct {
		name string
		want *fwg.Tool
	}{
		{"global", fwg.Global},
		{" Europe ", fwg.Europe},
		{"GLOBAL", fwg.Global},
	} {
		got, err := fwg.ToolByName(test.name)
		if err != nil {
			t.Fatal(err)
		}
		if got != test.want {
			t.Errorf("%q: got %s, want %s", test.name, got, test.want)
		}
	}
	if _, err := fwg.ToolByName("asia"); err == nil {
		t.Error("unknown tool should fail")
	}
	if fwg.Europe.OtherModelParam() != "fwg_gcms" || fwg.Global.ModelParam() != "fwg_gcms" {
		t.Errorf("model params: %s %s", fwg.Europe.OtherModelParam(), fwg.Global.ModelParam())
	}
}
