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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Command is a program invocation.
type Command struct {
	Name string
	Args []string
}

// Argv returns the program followed by its arguments.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String returns a copy-pasteable rendering of the command. Arguments
// containing spaces are quoted.
func (c Command) String() string {
	argv := c.Argv()
	s := make([]string, len(argv))
	for i, a := range argv {
		if strings.ContainsAny(a, " \t") {
			a = strconv.Quote(a)
		}
		s[i] = a
	}
	return strings.Join(s, " ")
}

// JVM holds how to start the Java virtual machine.
type JVM struct {
	// Java is the java executable. It defaults to "java".
	Java string

	// Options are extra JVM options placed before the class path,
	// e.g. "-Xmx8g".
	Options []string

	// JarPath is the FutureWeatherGenerator jar.
	JarPath string
}

func (j JVM) command(class string, args ...string) Command {
	java := j.Java
	if java == "" {
		java = "java"
	}
	a := make([]string, 0, len(j.Options)+3+len(args))
	a = append(a, j.Options...)
	a = append(a, "-cp", j.JarPath, class)
	a = append(a, args...)
	return Command{Name: java, Args: a}
}

// MorphCommand builds the command that morphs epwPath into outputDir
// using the tool's Morph entry point.
func MorphCommand(tool *Tool, jvm JVM, epwPath, outputDir string, p Params) (Command, error) {
	epw, err := filepath.Abs(epwPath)
	if err != nil {
		return Command{}, fmt.Errorf("fwg: EPW path: %w", err)
	}
	out, err := dirArg(outputDir)
	if err != nil {
		return Command{}, err
	}
	return jvm.command(tool.MorphClass(),
		epw,
		strings.Join(p.ModelList(tool), ","),
		boolDigit(p.CreateEnsemble),
		formatFloat(p.WinterSDShift)+":"+formatFloat(p.SummerSDShift),
		strconv.Itoa(p.MonthTransitionHours),
		out,
		strconv.FormatBool(p.UseMultithreading),
		strconv.Itoa(p.InterpolationMethodID),
		strconv.FormatBool(p.LimitVariables),
		strconv.Itoa(p.SolarHourAdjustment),
		strconv.Itoa(p.DiffuseIrradiationModel),
		p.UHIOptions(),
	), nil
}

// UHICommand builds the command that applies only the urban heat island
// effect to epwPath, writing into outputDir.
func UHICommand(tool *Tool, jvm JVM, epwPath, outputDir string, limitVariables bool, originalLCZ, targetLCZ int) (Command, error) {
	epw, err := filepath.Abs(epwPath)
	if err != nil {
		return Command{}, fmt.Errorf("fwg: EPW path: %w", err)
	}
	out, err := dirArg(outputDir)
	if err != nil {
		return Command{}, err
	}
	return jvm.command(tool.UHIClass(),
		epw,
		out,
		strconv.FormatBool(limitVariables),
		fmt.Sprintf("%d:%d", originalLCZ, targetLCZ),
	), nil
}

// dirArg makes dir absolute with a trailing separator, which the tool
// needs to treat the argument as a directory.
func dirArg(dir string) (string, error) {
	d, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("fwg: output directory: %w", err)
	}
	return d + string(os.PathSeparator), nil
}
