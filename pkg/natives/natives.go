// Package natives implements luna's small built-in function library:
// print, type, tostring, tonumber and len. Each satisfies
// value.NativeFunction and is bound into a VM's global table by Register
// before Run (spec §6, "To native functions").
package natives

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kristofer/luna/pkg/value"
)

// Register binds every native function this package provides into
// globals, keyed by name and interned through pool.
//
// typeFn and toStringFn are given pool because they mint string Values at
// call time and every program-visible string should still come from one
// pool's interning cache (value.DataPool.GetString), keeping repeated
// lookups of the same content cheap even though Table no longer depends on
// that sharing for correctness (see value.Table's tableKey).
func Register(globals *value.Table, pool *value.DataPool) {
	bind := func(name string, fn value.NativeFunction) {
		globals.Assign(pool.GetString(name), value.NativeValue(fn))
	}
	bind("print", printFn{})
	bind("type", typeFn{pool: pool})
	bind("tostring", toStringFn{pool: pool})
	bind("tonumber", toNumberFn{})
	bind("len", lenFn{})
}

type printFn struct{}

func (printFn) Name() string { return "print" }

func (printFn) Call(s value.NativeStack) error {
	n := s.ArgCount()
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = s.Arg(i).String()
	}
	fmt.Println(strings.Join(parts, "\t"))
	s.PushResults()
	return nil
}

type typeFn struct{ pool *value.DataPool }

func (typeFn) Name() string { return "type" }

func (f typeFn) Call(s value.NativeStack) error {
	if s.ArgCount() == 0 {
		s.PushResults(value.Nil)
		return nil
	}
	s.PushResults(f.pool.GetString(s.Arg(0).Name()))
	return nil
}

type toStringFn struct{ pool *value.DataPool }

func (toStringFn) Name() string { return "tostring" }

func (f toStringFn) Call(s value.NativeStack) error {
	if s.ArgCount() == 0 {
		s.PushResults(f.pool.GetString("nil"))
		return nil
	}
	s.PushResults(f.pool.GetString(s.Arg(0).String()))
	return nil
}

type toNumberFn struct{}

func (toNumberFn) Name() string { return "tonumber" }

// Call returns Nil when the argument cannot be parsed as a number, matching
// the family of languages luna draws from rather than raising an error for
// what is a routine, expected failure mode.
func (toNumberFn) Call(s value.NativeStack) error {
	if s.ArgCount() == 0 {
		s.PushResults(value.Nil)
		return nil
	}
	arg := s.Arg(0)
	switch arg.Kind() {
	case value.KindNumber:
		s.PushResults(arg)
	case value.KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(arg.AsString()), 64)
		if err != nil {
			s.PushResults(value.Nil)
			return nil
		}
		s.PushResults(value.Number(n))
	default:
		s.PushResults(value.Nil)
	}
	return nil
}

type lenFn struct{}

func (lenFn) Name() string { return "len" }

func (lenFn) Call(s value.NativeStack) error {
	if s.ArgCount() == 0 {
		return fmt.Errorf("len: expected 1 argument, got 0")
	}
	arg := s.Arg(0)
	switch arg.Kind() {
	case value.KindTable:
		s.PushResults(value.Number(float64(arg.AsTable().Len())))
	case value.KindString:
		s.PushResults(value.Number(float64(len(arg.AsString()))))
	default:
		return fmt.Errorf("len: attempt to get length of a %s value", arg.Name())
	}
	return nil
}
