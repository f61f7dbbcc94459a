package main

import (
	"errors"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/alexisbeaulieu97/scenery/internal/model"
	"github.com/alexisbeaulieu97/scenery/internal/runner"
	sceneryerrors "github.com/alexisbeaulieu97/scenery/pkg/errors"
)

const (
	exitOK          = 0
	exitFailed      = 1
	exitConfig      = 2
	exitInterrupted = 130
)

// exitError carries the exit code a command wants. A nil err exits quietly.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return "exit status " + strconv.Itoa(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// exitCodeFor classifies an error returned by a run.
func exitCodeFor(err error) int {
	var interrupted *runner.InterruptedError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, pflag.ErrHelp):
		return exitOK
	case errors.As(err, &interrupted):
		return exitInterrupted
	case sceneryerrors.IsConfigError(err):
		return exitConfig
	default:
		return exitFailed
	}
}

// runExit turns the outcome of a run into an exitError, or nil when every
// scenario passed.
func runExit(report *model.Report, err error) error {
	if err != nil {
		code := exitCodeFor(err)
		if code == exitOK {
			return nil
		}
		var interrupted *runner.InterruptedError
		if errors.As(err, &interrupted) {
			// the reporter already printed the interrupt
			return &exitError{code: code}
		}
		return &exitError{code: code, err: err}
	}
	if report != nil && report.Failed() > 0 {
		return &exitError{code: exitFailed}
	}
	return nil
}
