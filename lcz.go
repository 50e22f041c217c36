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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// lczListHeader is printed by UHI_Morph before the LCZs available at the
// location of an EPW file.
const lczListHeader = "The LCZs available are:"

var lczLine = regexp.MustCompile(`LCZ (\d+)`)

// LCZ is a local climate zone reported by the tool.
type LCZ struct {
	Number      int
	Description string
}

// LCZCheck is the outcome of an LCZ availability check.
type LCZCheck struct {
	// OK is true when the tool accepted the pair.
	OK bool

	// Invalid explains which of the requested LCZs are not available.
	Invalid []string

	// Available lists the LCZs the tool reported for the location.
	Available []LCZ
}

// UHIMorph applies only the urban heat island effect to the EPW file at
// epwPath, converting it from originalLCZ to targetLCZ and writing the
// result into outputDir.
func (e *Engine) UHIMorph(ctx context.Context, epwPath, outputDir string, originalLCZ, targetLCZ int, limitVariables bool) error {
	log := e.log().WithField("epw", filepath.Base(epwPath))
	var errs *multierror.Error
	if err := checkLCZ("original LCZ", originalLCZ); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := checkLCZ("target LCZ", targetLCZ); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("fwg: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("fwg: creating UHI output directory: %w", err)
	}
	cmd, err := UHICommand(e.Tool, e.JVM, epwPath, outputDir, limitVariables, originalLCZ, targetLCZ)
	if err != nil {
		return err
	}
	log.WithField("command", cmd.String()).Info("applying UHI effect")
	if _, _, err := run(ctx, e.uhiRunner(), cmd, e.ShowToolOutput); err != nil {
		var te *ToolError
		if errors.As(err, &te) {
			log.WithFields(logrus.Fields{"stdout": te.Stdout, "stderr": te.Stderr}).Error("the UHI_Morph tool returned an error")
		}
		return err
	}
	log.Info("UHI effect applied successfully")
	return nil
}

// CheckLCZAvailability checks whether originalLCZ and targetLCZ are both
// available at the location of the EPW file, by running UHI_Morph into a
// temporary directory. When the tool rejects the pair, the LCZs it lists
// as available are returned with an explanation of what is missing.
// Failures that are not about LCZ availability are returned as errors.
func (e *Engine) CheckLCZAvailability(ctx context.Context, epwPath string, originalLCZ, targetLCZ int) (*LCZCheck, error) {
	log := e.log().WithFields(logrus.Fields{
		"epw":      filepath.Base(epwPath),
		"original": originalLCZ,
		"target":   targetLCZ,
	})
	log.Info("checking LCZ availability")

	dir, err := os.MkdirTemp("", "fwg-lcz-")
	if err != nil {
		return nil, fmt.Errorf("fwg: LCZ check: %w", err)
	}
	defer os.RemoveAll(dir)

	quiet := *e
	quiet.ShowToolOutput = false
	silent := logrus.New()
	silent.SetOutput(io.Discard)
	quiet.Log = silent
	err = quiet.UHIMorph(ctx, epwPath, dir, originalLCZ, targetLCZ, true)
	if err == nil {
		log.Info("LCZ pair is available")
		return &LCZCheck{OK: true}, nil
	}
	var te *ToolError
	if !errors.As(err, &te) {
		return nil, err
	}
	available := parseAvailableLCZs(te.Output())
	if len(available) == 0 {
		log.WithField("stderr", te.Stderr).Error("unexpected error during LCZ check; could not parse the available LCZs")
		return nil, fmt.Errorf("fwg: unexpected error during LCZ check: %w", err)
	}
	return diagnoseLCZs(originalLCZ, targetLCZ, available), nil
}

// AvailableLCZs returns the LCZs available at the location of each EPW
// file, keyed by path. The tool only lists them when it rejects a pair, so
// each file is probed with LCZ 0, which never exists. Files that could not
// be probed are left out and their errors are returned together.
func (e *Engine) AvailableLCZs(ctx context.Context, epwPaths ...string) (map[string][]LCZ, error) {
	o := make(map[string][]LCZ)
	var errs *multierror.Error
	for _, p := range epwPaths {
		lczs, err := e.probeLCZs(ctx, p)
		if err != nil {
			e.log().WithField("epw", p).Error(err)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		o[p] = lczs
	}
	return o, errs.ErrorOrNil()
}

func (e *Engine) probeLCZs(ctx context.Context, epwPath string) ([]LCZ, error) {
	if _, err := os.Stat(epwPath); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp("", "fwg-lcz-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	cmd, err := UHICommand(e.Tool, e.JVM, epwPath, dir, true, 0, 0)
	if err != nil {
		return nil, err
	}
	_, _, err = run(ctx, e.uhiRunner(), cmd, false)
	if err == nil {
		return nil, fmt.Errorf("fwg: the tool accepted LCZ 0 and did not list the available LCZs")
	}
	var te *ToolError
	if !errors.As(err, &te) {
		return nil, err
	}
	lczs := parseAvailableLCZs(te.Output())
	if len(lczs) == 0 {
		return nil, fmt.Errorf("fwg: could not parse the available LCZs: %w", err)
	}
	return lczs, nil
}

// parseAvailableLCZs reads the LCZ lines following the list header.
func parseAvailableLCZs(output string) []LCZ {
	var o []LCZ
	seen := make(map[int]bool)
	started := false
	s := bufio.NewScanner(strings.NewReader(output))
	for s.Scan() {
		line := s.Text()
		if strings.Contains(line, lczListHeader) {
			started = true
			continue
		}
		if !started {
			continue
		}
		m := lczLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		o = append(o, LCZ{Number: n, Description: strings.TrimSpace(line)})
	}
	return o
}

func diagnoseLCZs(original, target int, available []LCZ) *LCZCheck {
	has := make(map[int]bool, len(available))
	for _, l := range available {
		has[l.Number] = true
	}
	c := &LCZCheck{Available: available}
	switch {
	case original == target:
		if !has[original] {
			c.Invalid = []string{fmt.Sprintf("The specified LCZ '%d' is not available.", original)}
		}
	default:
		if !has[original] {
			c.Invalid = append(c.Invalid, fmt.Sprintf("The original LCZ '%d' is not available.", original))
		}
		if !has[target] {
			c.Invalid = append(c.Invalid, fmt.Sprintf("The target LCZ '%d' is not available.", target))
		}
	}
	return c
}
