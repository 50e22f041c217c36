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
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dsanchez-garcia/fwg"
	"github.com/dsanchez-garcia/fwg/internal/fwgtest"
	"github.com/jonboulle/clockwork"
)

type workflowFixture struct {
	dir, out, tmp, jar string
	svq, mad           string
	runner             *fwgtest.Runner
	w                  *fwg.Workflow
	preview            *bytes.Buffer
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	dir := t.TempDir()
	f := &workflowFixture{
		dir:     dir,
		out:     filepath.Join(dir, "final"),
		tmp:     filepath.Join(dir, "tmp"),
		jar:     fwgtest.WriteJar(t, dir),
		svq:     fwgtest.WriteEPW(t, filepath.Join(dir, "epws"), "ESP_Sevilla_urbano.epw"),
		mad:     fwgtest.WriteEPW(t, filepath.Join(dir, "epws"), "ESP_Madrid.epw"),
		runner:  &fwgtest.Runner{},
		preview: new(bytes.Buffer),
	}
	f.w = fwg.NewWorkflow(fwg.Global)
	f.w.Runner = f.runner
	f.w.Log = quietLog()
	f.w.Out = f.preview
	f.w.Clock = clockwork.NewFakeClock()
	return f
}

func (f *workflowFixture) config() fwg.MorphingConfig {
	c := fwg.DefaultMorphingConfig(fwg.Global)
	c.JarPath = f.jar
	c.TempBaseDir = f.tmp
	c.Params.Models = []string{"CanESM5"}
	return c
}

func TestWorkflow(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	if err := f.w.MapCategories([]string{f.svq, f.mad}, "", cityMapping); err != nil {
		t.Fatal(err)
	}
	if err := f.w.PreviewRenamePlan(f.out, "{city}_{uhi}_{ssp}_{year}", map[string]string{"ssp126": "SSP1-2.6"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.preview.String(), "Seville_Urban_SSP1-2.6_2050.epw") {
		t.Errorf("preview:\n%s", f.preview)
	}
	cfg := f.config()
	cfg.RunIncompleteFiles = true
	if err := f.w.SetMorphingConfig(cfg); err != nil {
		t.Fatal(err)
	}
	if !f.w.IsConfigValid {
		t.Fatal("config should be valid")
	}

	created, err := f.w.ExecuteMorphing(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 16 {
		t.Errorf("created %d files, want 16", len(created))
	}
	for _, name := range []string{
		"Seville_Urban_SSP1-2.6_2050.epw",
		"Seville_Urban_SSP1-2.6_2050.stat",
		"Seville_Urban_ssp585_2080.epw",
	} {
		if _, err := os.Stat(filepath.Join(f.out, name)); err != nil {
			t.Error(err)
		}
	}
	if dirs, _ := filepath.Glob(filepath.Join(f.tmp, "ESP_Sevilla_urbano*")); len(dirs) != 0 {
		t.Errorf("temporary directory was not deleted: %v", dirs)
	}
	// Madrid lacks the uhi category and is left out of the plan.
	if n := f.runner.Calls(".Morph"); n != 1 {
		t.Errorf("got %d Morph runs, want 1", n)
	}
	if n := f.runner.Calls(".UHI_Morph"); n != 1 {
		t.Errorf("got %d LCZ checks, want 1", n)
	}

	m, err := fwg.ReadManifest(f.out)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Records) != 1 || m.Records[0].Source != f.svq || len(m.Records[0].Outputs) != 16 {
		t.Errorf("manifest: %+v", m)
	}
	if m.Records[0].Categories["city"] != "Seville" || m.Tool != "global" {
		t.Errorf("manifest: %+v", m)
	}
}

func TestWorkflowKeepTempFiles(t *testing.T) {
	f := newWorkflowFixture(t)
	if err := f.w.MapCategories([]string{f.svq}, "", cityMapping); err != nil {
		t.Fatal(err)
	}
	cfg := f.config()
	cfg.DeleteTempFiles = false
	cfg.Params.AddUHI = false
	if err := f.w.ConfigureAndPreview(fwg.PreviewOptions{
		OutputDir: f.out,
		Pattern:   "{city}_{fwg_gcms}_{scenario}_{year}",
		Config:    cfg,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.w.ExecuteMorphing(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(f.out, "Seville_CanESM5_ssp245_2080.stat")); err != nil {
		t.Error(err)
	}
	if logs, _ := filepath.Glob(filepath.Join(f.tmp, "ESP_Sevilla_urbano_*", "ESP_Sevilla_urbano_Ensemble.log")); len(logs) != 1 {
		t.Errorf("temporary files should be kept: %v", logs)
	}
	if n := f.runner.Calls(".UHI_Morph"); n != 0 {
		t.Errorf("no LCZ check is needed without UHI, got %d", n)
	}
}

func TestWorkflowSameBaseName(t *testing.T) {
	f := newWorkflowFixture(t)
	other := fwgtest.WriteEPW(t, filepath.Join(f.dir, "other"), "ESP_Sevilla_urbano.epw")
	if err := f.w.MapCategories([]string{f.svq, other}, "", cityMapping); err != nil {
		t.Fatal(err)
	}
	cfg := f.config()
	cfg.DeleteTempFiles = false
	cfg.Params.AddUHI = false
	if err := f.w.ConfigureAndPreview(fwg.PreviewOptions{
		OutputDir: f.out,
		Pattern:   "{city}_{scenario}_{year}",
		Config:    cfg,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.w.ExecuteMorphing(context.Background()); err != nil {
		t.Fatal(err)
	}
	dirs, err := filepath.Glob(filepath.Join(f.tmp, "ESP_Sevilla_urbano_*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 2 {
		t.Errorf("each file should have its own temporary directory: %v", dirs)
	}
	if n := f.runner.Calls(".Morph"); n != 2 {
		t.Errorf("got %d Morph runs, want 2", n)
	}
}

func TestWorkflowSkipsIncomplete(t *testing.T) {
	f := newWorkflowFixture(t)
	if err := f.w.MapCategories([]string{f.svq, f.mad}, "", cityMapping); err != nil {
		t.Fatal(err)
	}
	if err := f.w.PreviewRenamePlan(f.out, "{city}_{ssp}_{year}", nil); err != nil {
		t.Fatal(err)
	}
	if err := f.w.SetMorphingConfig(f.config()); err != nil {
		t.Fatal(err)
	}
	if got := f.w.FilesToMorph(); len(got) != 1 || got[0] != f.svq {
		t.Errorf("files to morph: %v", got)
	}
	if _, err := f.w.ExecuteMorphing(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := f.runner.Calls(".Morph"); n != 1 {
		t.Errorf("got %d Morph runs, want 1", n)
	}
}

func TestWorkflowOrder(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	if _, err := f.w.ExecuteMorphing(ctx); !errors.Is(err, fwg.ErrNotMapped) {
		t.Errorf("got %v, want ErrNotMapped", err)
	}
	if err := f.w.PreviewRenamePlan(f.out, "{city}", nil); !errors.Is(err, fwg.ErrNotMapped) {
		t.Errorf("got %v, want ErrNotMapped", err)
	}
	if err := f.w.MapCategories([]string{f.svq}, "", cityMapping); err != nil {
		t.Fatal(err)
	}
	if _, err := f.w.ExecuteMorphing(ctx); !errors.Is(err, fwg.ErrNoPlan) {
		t.Errorf("got %v, want ErrNoPlan", err)
	}
	if err := f.w.PreviewRenamePlan(f.out, "{city}_{ssp}_{year}", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.w.ExecuteMorphing(ctx); !errors.Is(err, fwg.ErrInvalidConfig) {
		t.Errorf("got %v, want ErrInvalidConfig", err)
	}
}

func TestWorkflowInvalidConfig(t *testing.T) {
	f := newWorkflowFixture(t)
	if err := f.w.MapCategories([]string{f.svq}, "", cityMapping); err != nil {
		t.Fatal(err)
	}
	if err := f.w.PreviewRenamePlan(f.out, "{city}_{ssp}_{year}", nil); err != nil {
		t.Fatal(err)
	}
	cfg := f.config()
	cfg.JarPath = filepath.Join(f.dir, "missing.jar")
	cfg.Params.Models = []string{"ICHEC_EC_EARTH_SMHI_RCA4"}
	cfg.Params.MonthTransitionHours = 400
	err := f.w.SetMorphingConfig(cfg)
	if !errors.Is(err, fwg.ErrInvalidConfig) {
		t.Fatalf("got %v, want ErrInvalidConfig", err)
	}
	for _, want := range []string{"jar", "ICHEC_EC_EARTH_SMHI_RCA4", "month_transition_hours"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q: %v", want, err)
		}
	}
	if f.w.IsConfigValid {
		t.Error("config should be invalid")
	}
	if _, err := f.w.ExecuteMorphing(context.Background()); !errors.Is(err, fwg.ErrInvalidConfig) {
		t.Errorf("got %v, want ErrInvalidConfig", err)
	}
	if len(f.runner.Commands) != 0 {
		t.Errorf("the tool should not run: %v", f.runner.Commands)
	}
}

func TestWorkflowFailures(t *testing.T) {
	t.Run("lcz not available", func(t *testing.T) {
		f := newWorkflowFixture(t)
		f.runner.LCZs = []int{2, 6}
		if err := f.w.MapCategories([]string{f.svq}, "", cityMapping); err != nil {
			t.Fatal(err)
		}
		if err := f.w.ConfigureAndPreview(fwg.PreviewOptions{OutputDir: f.out, Pattern: "{city}_{ssp}_{year}", Config: f.config()}); err != nil {
			t.Fatal(err)
		}
		created, err := f.w.ExecuteMorphing(context.Background())
		var lerr *fwg.LCZError
		if !errors.As(err, &lerr) {
			t.Fatalf("got %v, want *LCZError", err)
		}
		if len(lerr.Check.Available) != 2 || len(created) != 0 {
			t.Errorf("check %+v, created %v", lerr.Check, created)
		}
		if n := f.runner.Calls(".Morph"); n != 0 {
			t.Errorf("got %d Morph runs, want 0", n)
		}
	})
	t.Run("tool error", func(t *testing.T) {
		f := newWorkflowFixture(t)
		f.runner.FailMorph = true
		if err := f.w.MapCategories([]string{f.svq}, "", cityMapping); err != nil {
			t.Fatal(err)
		}
		if err := f.w.ConfigureAndPreview(fwg.PreviewOptions{OutputDir: f.out, Pattern: "{city}_{ssp}_{year}", Config: f.config()}); err != nil {
			t.Fatal(err)
		}
		_, err := f.w.ExecuteMorphing(context.Background())
		var te *fwg.ToolError
		if !errors.As(err, &te) {
			t.Fatalf("got %v, want *ToolError", err)
		}
		if !strings.Contains(te.Stderr, "morphing failed") {
			t.Errorf("stderr was not captured: %q", te.Stderr)
		}
	})
}

func TestConfigureAndPreviewInvalid(t *testing.T) {
	f := newWorkflowFixture(t)
	if err := f.w.MapCategories([]string{f.svq}, "", cityMapping); err != nil {
		t.Fatal(err)
	}
	cfg := f.config()
	cfg.Params.WinterSDShift = 5
	err := f.w.ConfigureAndPreview(fwg.PreviewOptions{
		OutputDir: f.out,
		Pattern:   "{city}_{ssp}_{year}",
		Config:    cfg,
	})
	if err != nil {
		t.Fatalf("an invalid configuration should not stop the preview: %v", err)
	}
	if f.w.IsConfigValid || f.w.ConfigError == nil {
		t.Errorf("config should be recorded as invalid: %v", f.w.ConfigError)
	}
	if !strings.Contains(f.preview.String(), "Seville_ssp126_2050.epw") {
		t.Errorf("preview:\n%s", f.preview)
	}
}
