package model

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ExcInfo captures a failure raised while running a step: the error itself,
// the concrete type of its root cause and a stack trace.
type ExcInfo struct {
	Err   error
	Type  string
	Stack []byte
}

// NewExcInfo captures err. The stack of a recovered panic is preferred over
// the current goroutine's stack.
func NewExcInfo(err error) *ExcInfo {
	if err == nil {
		return nil
	}

	stack := debug.Stack()
	var panicErr *PanicError
	if errors.As(err, &panicErr) && len(panicErr.Stack) > 0 {
		stack = panicErr.Stack
	}

	root := err
	for {
		next := errors.Unwrap(root)
		if next == nil {
			break
		}
		root = next
	}

	return &ExcInfo{
		Err:   err,
		Type:  fmt.Sprintf("%T", root),
		Stack: stack,
	}
}

// Message returns the error text.
func (e *ExcInfo) Message() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExcInfo) String() string {
	if e == nil {
		return "ExcInfo(<nil>)"
	}
	return fmt.Sprintf("ExcInfo(%s, %q)", e.Type, e.Message())
}
