// Copyright 2024 The mbss Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tools invokes the external fetch and transform collaborators.
//
// Both collaborators are ordinary subprocesses configured as command
// templates; success is a zero exit status and the populated destination
// directory, everything else is a typed failure. Fake in-memory
// implementations live alongside for tests.
package tools

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Runner executes an external tool command.
type Runner struct {
	// Dir is the working directory of the command. Empty means the
	// current directory.
	Dir string

	// Verbose mirrors the tool's output to this process's stdout and
	// stderr in addition to capturing it.
	Verbose bool
}

// RunResult carries the captured output of a completed command.
type RunResult struct {
	Stdout string
	Stderr string
}

// Run executes the command and waits for it to complete. A non-zero exit
// status is returned as an *ExecError carrying the captured output.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (RunResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	cmd.Env = os.Environ()

	cmdStdout := &bytes.Buffer{}
	cmdStderr := &bytes.Buffer{}
	if r.Verbose {
		cmd.Stdout = io.MultiWriter(cmdStdout, os.Stdout)
		cmd.Stderr = io.MultiWriter(cmdStderr, os.Stderr)
	} else {
		cmd.Stdout = cmdStdout
		cmd.Stderr = cmdStderr
	}

	err := cmd.Run()
	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return RunResult{}, &ExecError{
			Name:     name,
			Args:     args,
			Err:      err,
			ExitCode: exitCode,
			StdOut:   cmdStdout.String(),
			StdErr:   cmdStderr.String(),
		}
	}
	return RunResult{
		Stdout: cmdStdout.String(),
		Stderr: cmdStderr.String(),
	}, nil
}

// ExecError describes a tool invocation that failed or exited non-zero.
type ExecError struct {
	Name     string
	Args     []string
	Err      error
	ExitCode int
	StdOut   string
	StdErr   string
}

func (e *ExecError) Error() string {
	b := new(strings.Builder)
	b.WriteString(e.Name)
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.StdErr != "" {
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(e.StdErr))
	}
	return b.String()
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
