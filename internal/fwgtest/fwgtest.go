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

// Package fwgtest provides a stand-in for the FutureWeatherGenerator tool
// so that workflows can be tested without Java.
package fwgtest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/dsanchez-garcia/fwg"
)

// Location is the header written by WriteEPW.
const Location = "LOCATION,Sevilla,AN,ESP,SWEC,083910,37.42,-5.90,1.0,31.0"

// WriteEPW writes a minimal EPW file named name into dir and returns its
// path.
func WriteEPW(t testing.TB, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	body := Location + "\nDESIGN CONDITIONS,0\nTYPICAL/EXTREME PERIODS,0\n"
	if err := os.WriteFile(p, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

// WriteJar writes an empty file standing in for the tool's jar.
func WriteJar(t testing.TB, dir string) string {
	t.Helper()
	p := filepath.Join(dir, "FutureWeatherGenerator_v3.0.0.jar")
	if err := os.WriteFile(p, []byte("PK"), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

// Runner imitates the tool. Morph runs write one ensemble .epw and .stat
// file per scenario and year into the output directory. UHI_Morph runs
// succeed when both LCZs are in LCZs, and otherwise fail listing them.
type Runner struct {
	// LCZs are the zones available at every location. All zones are
	// available when nil.
	LCZs []int

	// FailMorph makes every Morph run exit with an error.
	FailMorph bool

	// OnRun, if not nil, is called before each command is handled.
	OnRun func(fwg.Command)

	mu       sync.Mutex
	Commands []fwg.Command
}

// Run implements fwg.Runner.
func (r *Runner) Run(ctx context.Context, cmd fwg.Command, stdout, stderr io.Writer) error {
	r.mu.Lock()
	r.Commands = append(r.Commands, cmd)
	r.mu.Unlock()
	if r.OnRun != nil {
		r.OnRun(cmd)
	}
	class, args, err := split(cmd)
	if err != nil {
		return err
	}
	switch {
	case strings.HasSuffix(class, ".Morph"):
		return r.morph(cmd, class, args, stderr)
	case strings.HasSuffix(class, ".UHI_Morph"):
		return r.uhi(cmd, args, stdout)
	}
	return fmt.Errorf("fwgtest: unknown class %q", class)
}

// Calls returns the number of commands run for class suffix, e.g.
// ".Morph".
func (r *Runner) Calls(suffix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.Commands {
		if cls, _, err := split(c); err == nil && strings.HasSuffix(cls, suffix) {
			n++
		}
	}
	return n
}

func split(cmd fwg.Command) (class string, args []string, err error) {
	for i, a := range cmd.Args {
		if a == "-cp" && i+2 < len(cmd.Args) {
			return cmd.Args[i+2], cmd.Args[i+3:], nil
		}
	}
	return "", nil, fmt.Errorf("fwgtest: no class path in %v", cmd.Args)
}

func (r *Runner) morph(cmd fwg.Command, class string, args []string, stderr io.Writer) error {
	if len(args) != 12 {
		return fmt.Errorf("fwgtest: Morph needs 12 arguments, got %d", len(args))
	}
	if r.FailMorph {
		fmt.Fprintln(stderr, "java.lang.RuntimeException: morphing failed")
		return &fwg.ToolError{Cmd: cmd, ExitCode: 1}
	}
	tool := fwg.Global
	if strings.HasPrefix(class, fwg.Europe.ClassPrefix+".") {
		tool = fwg.Europe
	}
	epw, out := args[0], args[5]
	base := strings.TrimSuffix(filepath.Base(epw), filepath.Ext(epw))
	for _, y := range tool.Years {
		for _, s := range tool.Scenarios {
			for _, ext := range []string{".epw", ".stat"} {
				name := fmt.Sprintf("%s_Ensemble_%s_%d%s", base, s, y, ext)
				if err := os.WriteFile(filepath.Join(out, name), []byte(name), 0644); err != nil {
					return err
				}
			}
		}
	}
	return os.WriteFile(filepath.Join(out, base+"_Ensemble.log"), []byte("done"), 0644)
}

func (r *Runner) uhi(cmd fwg.Command, args []string, stdout io.Writer) error {
	if len(args) != 4 {
		return fmt.Errorf("fwgtest: UHI_Morph needs 4 arguments, got %d", len(args))
	}
	pair := strings.SplitN(args[3], ":", 2)
	if len(pair) != 2 {
		return fmt.Errorf("fwgtest: invalid LCZ pair %q", args[3])
	}
	orig, err1 := strconv.Atoi(pair[0])
	target, err2 := strconv.Atoi(pair[1])
	if err1 != nil || err2 != nil {
		return fmt.Errorf("fwgtest: invalid LCZ pair %q", args[3])
	}
	if r.available(orig) && r.available(target) {
		name := strings.TrimSuffix(filepath.Base(args[0]), ".epw") + "_UHI.epw"
		return os.WriteFile(filepath.Join(args[1], name), []byte("uhi"), 0644)
	}
	fmt.Fprintln(stdout, "Reading EPW file...")
	fmt.Fprintln(stdout, "ERROR: The LCZ selected is not available at this location.")
	fmt.Fprintln(stdout, "The LCZs available are:")
	for _, n := range r.LCZs {
		fmt.Fprintf(stdout, "    LCZ %d - %s\n", n, lczNames[n])
	}
	return &fwg.ToolError{Cmd: cmd, ExitCode: 1}
}

func (r *Runner) available(n int) bool {
	if n < fwg.MinLCZ || n > fwg.MaxLCZ {
		return false
	}
	if r.LCZs == nil {
		return true
	}
	for _, v := range r.LCZs {
		if v == n {
			return true
		}
	}
	return false
}

var lczNames = map[int]string{
	1: "Compact highrise", 2: "Compact midrise", 3: "Compact lowrise",
	4: "Open highrise", 5: "Open midrise", 6: "Open lowrise",
	7: "Lightweight lowrise", 8: "Large lowrise", 9: "Sparsely built",
	10: "Heavy industry", 11: "Dense trees", 12: "Scattered trees",
	13: "Bush, scrub", 14: "Low plants", 15: "Bare rock or paved",
	16: "Bare soil or sand", 17: "Water",
}
