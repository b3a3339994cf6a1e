// Package xerrors adds call-site information to errors without changing
// their messages. Wrap and Wrapf record the caller's PC; New, Newf,
// WithStack and EnsureTrace capture a full stack. The logger reads both.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

const maxStackDepth = 64

type stacked struct {
	err error
	pcs []uintptr
}

func (s *stacked) Error() string       { return s.err.Error() }
func (s *stacked) Unwrap() error       { return s.err }
func (s *stacked) StackPCs() []uintptr { return s.pcs }

type wrapped struct {
	err error
	msg string
	pc  uintptr
}

func (w *wrapped) Error() string { return w.msg + ": " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }
func (w *wrapped) PC() uintptr   { return w.pc }

// stackAt captures the stack of the caller skip frames above its own caller.
func stackAt(err error, skip int) error {
	if err == nil {
		return nil
	}
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+2, pcs)
	return &stacked{err: err, pcs: pcs[:n]}
}

func callerPC() uintptr {
	var pcs [1]uintptr
	// skip runtime.Callers, callerPC and the exported wrapper
	if runtime.Callers(3, pcs[:]) == 0 {
		return 0
	}
	return pcs[0]
}

func New(msg string) error { return stackAt(errors.New(msg), 1) }

func Newf(format string, args ...any) error { return stackAt(fmt.Errorf(format, args...), 1) }

func WithStack(err error) error { return stackAt(err, 1) }

// EnsureTrace attaches a stack unless some error in the chain already
// carries one.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	var hs interface{ StackPCs() []uintptr }
	if errors.As(err, &hs) && len(hs.StackPCs()) > 0 {
		return err
	}
	return stackAt(err, 1)
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, msg: msg, pc: callerPC()}
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, msg: fmt.Sprintf(format, args...), pc: callerPC()}
}
