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
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// script writes an executable shell script standing in for java.
func script(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "java")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecRunner(t *testing.T) {
	ctx := context.Background()

	t.Run("missing java", func(t *testing.T) {
		cmd := Command{Name: filepath.Join(t.TempDir(), "no-java")}
		if err := (ExecRunner{}).Run(ctx, cmd, nil, nil); !errors.Is(err, ErrJavaNotFound) {
			t.Errorf("got %v, want ErrJavaNotFound", err)
		}
	})

	t.Run("success", func(t *testing.T) {
		cmd := Command{Name: script(t, `echo "args: $*"`), Args: []string{"-cp", "fwg.jar"}}
		stdout, _, err := run(ctx, ExecRunner{}, cmd, false)
		if err != nil {
			t.Fatal(err)
		}
		if want := "args: -cp fwg.jar\n"; stdout != want {
			t.Errorf("stdout = %q, want %q", stdout, want)
		}
	})

	t.Run("exit status", func(t *testing.T) {
		cmd := Command{Name: script(t, "echo working\necho first >&2\necho 'bad LCZ' >&2\nexit 3")}
		_, _, err := run(ctx, ExecRunner{}, cmd, false)
		var te *ToolError
		if !errors.As(err, &te) {
			t.Fatalf("got %v, want *ToolError", err)
		}
		if te.ExitCode != 3 {
			t.Errorf("exit code = %d, want 3", te.ExitCode)
		}
		if te.Stdout != "working\n" || te.Stderr != "first\nbad LCZ\n" {
			t.Errorf("captured output: %q %q", te.Stdout, te.Stderr)
		}
		if !strings.HasSuffix(te.Error(), "exited with status 3: bad LCZ") {
			t.Errorf("error = %q", te.Error())
		}
	})

	t.Run("timeout", func(t *testing.T) {
		cmd := Command{Name: script(t, "exec sleep 5")}
		start := time.Now()
		err := (ExecRunner{Timeout: 200 * time.Millisecond}).Run(ctx, cmd, nil, nil)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("got %v, want context.DeadlineExceeded", err)
		}
		if d := time.Since(start); d > 4*time.Second {
			t.Errorf("run took %v; the timeout was not applied", d)
		}
	})
}
