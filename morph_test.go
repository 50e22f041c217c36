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
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dsanchez-garcia/fwg"
	"github.com/dsanchez-garcia/fwg/internal/fwgtest"
)

func TestMorph(t *testing.T) {
	dir := t.TempDir()
	a := fwgtest.WriteEPW(t, dir, "ESP_Sevilla.epw")
	b := fwgtest.WriteEPW(t, dir, "ESP_Madrid.epw")
	out := filepath.Join(dir, "out")
	tmp := filepath.Join(dir, "tmp")
	r := &fwgtest.Runner{}
	cfg := fwg.DefaultMorphingConfig(fwg.Europe)
	cfg.JarPath = fwgtest.WriteJar(t, dir)
	cfg.TempBaseDir = tmp

	created, err := fwg.Morph(context.Background(), fwg.Europe, fwg.MorphOptions{
		EPWPaths:  []string{a, b, filepath.Join(dir, "missing.epw")},
		OutputDir: out,
		Config:    cfg,
		Runner:    r,
		Log:       quietLog(),
	})
	if err != nil {
		t.Fatal(err)
	}
	// 3 scenarios, 2 years, .epw and .stat, for 2 files.
	if len(created) != 24 {
		t.Errorf("created %d files, want 24", len(created))
	}
	for _, p := range created {
		if !filepath.IsAbs(p) {
			t.Errorf("%s is not absolute", p)
		}
		if _, err := os.Stat(p); err != nil {
			t.Error(err)
		}
		if strings.HasSuffix(p, ".log") {
			t.Errorf("log files should not be moved: %s", p)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "ESP_Madrid_Ensemble_rcp45_2050.epw")); err != nil {
		t.Error(err)
	}
	if dirs, _ := filepath.Glob(filepath.Join(tmp, "ESP_*")); len(dirs) != 0 {
		t.Errorf("temporary directories were not deleted: %v", dirs)
	}
	for _, c := range r.Commands {
		if !strings.HasPrefix(c.Args[2], "futureweathergenerator_europe.") {
			t.Errorf("wrong class %s", c.Args[2])
		}
	}
}

func TestMorphSkipsUnavailableLCZ(t *testing.T) {
	dir := t.TempDir()
	a := fwgtest.WriteEPW(t, dir, "ESP_Sevilla.epw")
	r := &fwgtest.Runner{LCZs: []int{3}}
	cfg := fwg.DefaultMorphingConfig(fwg.Global)
	cfg.JarPath = fwgtest.WriteJar(t, dir)
	cfg.TempBaseDir = filepath.Join(dir, "tmp")

	created, err := fwg.Morph(context.Background(), fwg.Global, fwg.MorphOptions{
		EPWPaths:  []string{a},
		OutputDir: filepath.Join(dir, "out"),
		Config:    cfg,
		Runner:    r,
		Log:       quietLog(),
	})
	var lerr *fwg.LCZError
	if !errors.As(err, &lerr) {
		t.Fatalf("got %v, want *LCZError", err)
	}
	if len(created) != 0 || r.Calls(".Morph") != 0 {
		t.Errorf("file should be skipped: created %v", created)
	}
}

func TestMorphInvalid(t *testing.T) {
	dir := t.TempDir()
	cfg := fwg.DefaultMorphingConfig(fwg.Global)
	cfg.JarPath = fwgtest.WriteJar(t, dir)
	cfg.Params.InterpolationMethodID = 7
	r := &fwgtest.Runner{}
	_, err := fwg.Morph(context.Background(), fwg.Global, fwg.MorphOptions{
		EPWPaths:  []string{fwgtest.WriteEPW(t, dir, "a.epw")},
		OutputDir: filepath.Join(dir, "out"),
		Config:    cfg,
		Runner:    r,
		Log:       quietLog(),
	})
	if !errors.Is(err, fwg.ErrInvalidConfig) {
		t.Errorf("got %v, want ErrInvalidConfig", err)
	}
	if len(r.Commands) != 0 {
		t.Error("the tool should not run")
	}
}
