package vm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/kristofer/luna/pkg/value"
)

// StackFrame is one synthesized frame of a RuntimeError's trace (spec §7:
// a human-readable message plus "optionally ... a stack trace synthesized
// from the call-stack records").
type StackFrame struct {
	Callee string
	IP     int
}

// RuntimeError is luna's single runtime error kind (spec §7). Every
// handler-raised failure unwinds the enclosing Run in one step — there is
// no local recovery inside the dispatch loop, matching spec §9's "errors
// are fatal to the current Run call, not to the process".
type RuntimeError struct {
	Message string
	Trace   []StackFrame
	cause   error
}

func (e *RuntimeError) Error() string {
	if len(e.Trace) == 0 {
		return e.Message
	}
	var b strings.Builder
	b.WriteString(e.Message)
	b.WriteString("\nstack traceback:")
	for _, f := range e.Trace {
		fmt.Fprintf(&b, "\n\tat %s (ip %d)", f.Callee, f.IP)
	}
	return b.String()
}

// Unwrap exposes the wrapped cause so errors.Is/errors.As can reach, e.g.,
// value.ErrNilKey under a table-assignment failure.
func (e *RuntimeError) Unwrap() error { return e.cause }

func newRuntimeError(cause error, trace []StackFrame) *RuntimeError {
	return &RuntimeError{Message: cause.Error(), Trace: trace, cause: errors.Cause(cause)}
}

// errorf builds a RuntimeError from a formatted message, attaching the
// current synthesized trace. Every instruction handler that can fail routes
// its error through here (or through wrapf, for a caused failure) so the
// trace is never forgotten.
func (vm *VM) errorf(format string, args ...any) error {
	return newRuntimeError(errors.Errorf(format, args...), vm.trace())
}

// wrapf attaches a message to cause and the current trace, preserving cause
// for Unwrap. Used where the failure originates below the VM (e.g.
// value.Table.Assign's ErrNilKey).
func (vm *VM) wrapf(cause error, format string, args ...any) error {
	return newRuntimeError(errors.Wrapf(cause, format, args...), vm.trace())
}

// trace synthesizes a stack trace from the live call stack, innermost frame
// first, using the instruction pointer each frame was at when it called (or
// currently is at, for the innermost).
func (vm *VM) trace() []StackFrame {
	frames := make([]StackFrame, 0, len(vm.calls.records)+1)
	ip := vm.insCurrent
	for i := len(vm.calls.records) - 1; i >= 0; i-- {
		r := vm.calls.records[i]
		frames = append(frames, StackFrame{Callee: calleeName(r.callee), IP: ip})
		ip = r.callerOffset
	}
	return frames
}

// calleeName renders a call record's callee for a trace line: the global
// chunk's sentinel record carries Nil, named script functions carry their
// declared name, anonymous ones and natives fall back to a generic label.
func calleeName(v value.Value) string {
	switch v.Kind() {
	case value.KindNil:
		return "<main chunk>"
	case value.KindClosure:
		if name := v.AsClosure().Function.Name; name != "" {
			return name
		}
		return "<anonymous function>"
	case value.KindNative:
		return v.AsNative().Name()
	default:
		return "<unknown>"
	}
}
