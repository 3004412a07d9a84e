// SPDX-License-Identifier: EPL-2.0

// Package command runs external tools and records what they did.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Log captures one external command invocation result.
type Log struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

func (l Log) String() string {
	return strings.TrimSpace(l.Command + " " + strings.Join(l.Args, " "))
}

// Error is a stage-aware error with the command context attached.
type Error struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Log     Log    `json:"log"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Log.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	msg := fmt.Sprintf("%s: %s (cmd=%s exit=%d)", e.Stage, e.Message, e.Log.Command, e.Log.ExitCode)
	if stderr := lastLine(e.Log.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// Result is the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution so tests can fake it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = ExitCode(err)
		return result, err
	}
	return result, nil
}

// ExitCode extracts the process exit status from err, or -1 when the
// process never ran.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Run executes name through r and converts a failure into an *Error for
// stage. The log is returned in both cases.
func Run(ctx context.Context, r Runner, stage, name string, args ...string) (Log, error) {
	res, err := r.Run(ctx, name, args...)
	log := Log{
		Command:  name,
		Args:     append([]string(nil), args...),
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
	if err != nil {
		return log, &Error{
			Stage:   stage,
			Message: "command failed",
			Log:     log,
			Err:     err,
		}
	}
	return log, nil
}
