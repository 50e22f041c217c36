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
	"time"

	"github.com/sirupsen/logrus"
)

// Engine holds what is needed to run one of the tools.
type Engine struct {
	Tool *Tool
	JVM  JVM

	// Runner runs the tool. If nil, commands run as local processes
	// with the engine's timeouts.
	Runner Runner

	// MorphTimeout and UHITimeout bound single runs. Zero values select
	// the package defaults.
	MorphTimeout, UHITimeout time.Duration

	// ShowToolOutput copies the tool's output to the terminal.
	ShowToolOutput bool

	Log logrus.FieldLogger
}

// NewEngine returns an engine running tool from the jar at jarPath.
func NewEngine(tool *Tool, jarPath string) *Engine {
	return &Engine{
		Tool: tool,
		JVM:  JVM{JarPath: jarPath},
		Log:  logrus.StandardLogger(),
	}
}

func (e *Engine) runner(timeout, def time.Duration) Runner {
	if e.Runner != nil {
		return e.Runner
	}
	if timeout == 0 {
		timeout = def
	}
	return ExecRunner{Timeout: timeout}
}

func (e *Engine) morphRunner() Runner { return e.runner(e.MorphTimeout, MorphTimeout) }
func (e *Engine) uhiRunner() Runner   { return e.runner(e.UHITimeout, UHITimeout) }

func (e *Engine) log() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}
