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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// MorphOptions configures Morph.
type MorphOptions struct {
	EPWPaths []string

	// OutputDir receives the generated files under the names the tool
	// gives them. It defaults to the tool's DefaultOutputDir.
	OutputDir string

	// Config sets how the tool is run. An empty TempBaseDir selects the
	// tool's DefaultTempDir. RunIncompleteFiles is ignored.
	Config MorphingConfig

	// Runner runs the tool; local processes when nil.
	Runner Runner

	Log logrus.FieldLogger
}

// Morph morphs each EPW file in one call, without renaming. The
// configuration is validated before anything runs. When the urban heat
// island effect is requested, files whose LCZs are not available are
// skipped. It returns the absolute paths of the .epw and .stat files
// created, along with the errors of any files that failed.
func Morph(ctx context.Context, tool *Tool, o MorphOptions) ([]string, error) {
	log := o.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("tool", tool.Name)
	log.Info("starting direct morphing process")

	cfg := o.Config
	if cfg.TempBaseDir == "" {
		cfg.TempBaseDir = tool.DefaultTempDir
	}
	cfg.RunIncompleteFiles = true
	outDir := o.OutputDir
	if outDir == "" {
		outDir = tool.DefaultOutputDir
	}

	// Each file is its own category so nothing is incomplete.
	byName := make(map[string][]string)
	for _, p := range o.EPWPaths {
		b := baseName(p)
		byName[b] = []string{b}
	}
	m, err := MapCategories(o.EPWPaths, "", KeywordMapping{"basename": byName}, log)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(tool); err != nil {
		log.WithError(err).Error("parameter validation failed")
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("fwg: creating output directory: %w", err)
	}

	e := cfg.engine(tool, o.Runner, log)
	var created []string
	var errs *multierror.Error
	for _, f := range m.Files {
		flog := log.WithField("epw", filepath.Base(f))
		tmp := tempDir(cfg.TempBaseDir, f)
		if err := morphInto(ctx, e, cfg.Params, f, tmp); err != nil {
			flog.WithError(err).Error("file will be skipped")
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", f, err))
			continue
		}
		outs, err := moveOutputs(tmp, outDir)
		created = append(created, outs...)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", f, err))
		}
		if cfg.DeleteTempFiles {
			if err := removeAll(tmp, flog); err != nil {
				flog.Error(err)
			}
		}
	}
	abs, _ := filepath.Abs(outDir)
	log.WithFields(logrus.Fields{"files": len(created), "dir": abs}).Info("direct morphing complete")
	return created, errs.ErrorOrNil()
}

// moveOutputs moves every .epw and .stat file from tmp into dir.
func moveOutputs(tmp, dir string) ([]string, error) {
	entries, err := os.ReadDir(tmp)
	if err != nil {
		return nil, fmt.Errorf("fwg: reading generated files: %w", err)
	}
	var o []string
	for _, ent := range entries {
		ext := strings.ToLower(filepath.Ext(ent.Name()))
		if ent.IsDir() || (ext != ".epw" && ext != ".stat") {
			continue
		}
		dst := filepath.Join(dir, ent.Name())
		if err := moveFile(filepath.Join(tmp, ent.Name()), dst); err != nil {
			return o, fmt.Errorf("fwg: moving %s: %w", ent.Name(), err)
		}
		if a, err := filepath.Abs(dst); err == nil {
			dst = a
		}
		o = append(o, dst)
	}
	return o, nil
}
