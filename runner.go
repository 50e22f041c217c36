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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Default timeouts for a single tool run.
const (
	MorphTimeout = 600 * time.Second
	UHITimeout   = 300 * time.Second
)

// ErrJavaNotFound is returned when the java executable cannot be found.
var ErrJavaNotFound = errors.New("fwg: 'java' command not found; please ensure Java is installed and in the system's PATH")

// Runner runs a command to completion, writing its output to stdout and
// stderr.
type Runner interface {
	Run(ctx context.Context, cmd Command, stdout, stderr io.Writer) error
}

// ExecRunner runs commands as local processes.
type ExecRunner struct {
	// Timeout bounds each run. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, cmd Command, stdout, stderr io.Writer) error {
	if _, err := exec.LookPath(cmd.Name); err != nil {
		return ErrJavaNotFound
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Stdout = stdout
	c.Stderr = stderr
	err := c.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("fwg: %s: %w", cmd.Name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ToolError{Cmd: cmd, ExitCode: exitErr.ExitCode()}
	}
	return err
}

// ToolError is returned when the tool exits with a non-zero status.
type ToolError struct {
	Cmd      Command
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("fwg: %s exited with status %d", e.Cmd.Name, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + lastLine(e.Stderr)
	}
	return msg
}

// Output returns the combined captured output.
func (e *ToolError) Output() string { return e.Stdout + e.Stderr }

// run executes cmd, capturing its output and also copying it to the
// terminal when show is set. The captured output is attached to any
// *ToolError.
func run(ctx context.Context, r Runner, cmd Command, show bool) (stdout, stderr string, err error) {
	var o, e bytes.Buffer
	var ow, ew io.Writer = &o, &e
	if show {
		ow = io.MultiWriter(os.Stdout, &o)
		ew = io.MultiWriter(os.Stderr, &e)
	}
	err = r.Run(ctx, cmd, ow, ew)
	var te *ToolError
	if errors.As(err, &te) {
		te.Stdout, te.Stderr = o.String(), e.String()
	}
	return o.String(), e.String(), err
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
