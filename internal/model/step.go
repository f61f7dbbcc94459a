package model

import (
	"context"
	"fmt"
	"runtime/debug"
)

// StepFunc is the body of a scenario step. It receives the scenario's runtime
// scope and reports failure through the returned error.
type StepFunc func(ctx context.Context, scope *Scope) error

// VirtualStep is a named, callable unit of a scenario.
type VirtualStep struct {
	name       string
	fn         StepFunc
	suspending bool
}

// NewStep builds a step that runs inline on the caller's goroutine.
func NewStep(name string, fn StepFunc) *VirtualStep {
	return &VirtualStep{name: name, fn: fn}
}

// NewSuspendingStep builds a step the runner awaits as a suspension point:
// it runs on its own goroutine and is abandoned when the context is cancelled.
func NewSuspendingStep(name string, fn StepFunc) *VirtualStep {
	return &VirtualStep{name: name, fn: fn, suspending: true}
}

// Name returns the declared step name.
func (s *VirtualStep) Name() string {
	return s.name
}

// IsSuspending reports whether invoking the step suspends the caller.
func (s *VirtualStep) IsSuspending() bool {
	return s.suspending
}

// Call invokes the step body. Panics are converted into *PanicError.
func (s *VirtualStep) Call(ctx context.Context, scope *Scope) (err error) {
	if s.fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return s.fn(ctx, scope)
}

func (s *VirtualStep) String() string {
	return fmt.Sprintf("VirtualStep(%s)", s.name)
}

// PanicError carries a panic recovered from a step body.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
