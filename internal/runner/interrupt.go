package runner

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInterrupted signals an explicit user interruption (SIGINT, fail-fast).
	ErrInterrupted = errors.New("interrupted")
	// ErrTerminated signals a process termination request (SIGTERM).
	ErrTerminated = errors.New("terminated")
)

// DefaultInterrupts is the interrupt set used when none is configured.
func DefaultInterrupts() []error {
	return []error{ErrInterrupted, ErrTerminated, context.Canceled}
}

// InterruptedError is returned by Run when an interrupt-class error stopped
// the run. The partial report is returned alongside it.
type InterruptedError struct {
	Cause error
}

func (e *InterruptedError) Error() string {
	if e == nil || e.Cause == nil {
		return "run was interrupted"
	}
	return fmt.Sprintf("run was interrupted: %v", e.Cause)
}

// Unwrap exposes the interrupt cause.
func (e *InterruptedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// isInterrupt reports whether err stops the whole run. context.Canceled only
// counts when ctx itself is done, so a step that cancels a context of its own
// merely fails.
func (r *Runner) isInterrupt(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	for _, target := range r.interrupts {
		if !errors.Is(err, target) {
			continue
		}
		if target == context.Canceled && ctx.Err() == nil {
			continue
		}
		return true
	}
	return false
}
