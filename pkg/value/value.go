// Package value implements luna's value model: the tagged Value type, the
// Table type backing scopes and the language's single compound type, and
// Closures over compiled functions (spec §3, DATA MODEL).
//
// Values, Tables and Closures are all heap objects owned by a DataPool
// (pool.go): tables and closures are reference-typed and freely aliased,
// matching spec §9's "Ownership" design note. There is no garbage collector
// here beyond Go's own — the DataPool is a reachable-from-roots allocator in
// the sense spec §1 assumes, not a novel GC.
package value

import (
	"fmt"

	"github.com/kristofer/luna/pkg/bytecode"
)

// Kind tags the variant a Value holds.
type Kind byte

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindTable
	KindClosure
	KindNative
)

// Value is luna's tagged union of runtime values. It is small enough to pass
// by value; heap-backed variants (String, Table, Closure, Native) hold a
// pointer so aliasing and identity behave as spec §3 requires (tables and
// closures compare by identity; strings and numbers compare by value).
type Value struct {
	kind   Kind
	num    float64
	b      bool
	str    *string
	table  *Table
	clo    *Closure
	native NativeFunction
}

// NativeFunction is the contract a Go-implemented library function
// satisfies (spec §6, "To native functions"). Call receives the VM so it can
// read the top argument counter/values and push return values followed by a
// return counter, exactly as a script function's calling convention would.
// VM is declared as an interface here (rather than importing pkg/vm, which
// would create an import cycle) listing only the operations a native needs.
type NativeFunction interface {
	Call(stack NativeStack) error
	Name() string
}

// NativeStack is the minimal operand-stack surface a NativeFunction needs:
// enough to read its packed argument counter and push results, without
// exposing raw slot mechanics. pkg/vm.VM satisfies this interface.
type NativeStack interface {
	// ArgCount reports how many arguments the top argument counter
	// describes.
	ArgCount() int
	// Arg returns the i'th argument (0-based, left to right).
	Arg(i int) Value
	// PushResults pushes results followed by a counter describing them,
	// implementing a native function's return.
	PushResults(results ...Value)
}

// Nil is the singular Nil value.
var Nil = Value{kind: KindNil}

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// str constructs a String value from an already-interned *string. Callers
// outside this package should go through DataPool.GetString so strings are
// interned consistently; see pool.go.
func str(s *string) Value { return Value{kind: KindString, str: s} }

// TableValue wraps a *Table as a Value.
func TableValue(t *Table) Value { return Value{kind: KindTable, table: t} }

// ClosureValue wraps a *Closure as a Value.
func ClosureValue(c *Closure) Value { return Value{kind: KindClosure, clo: c} }

// NativeValue wraps a NativeFunction as a Value.
func NativeValue(n NativeFunction) Value { return Value{kind: KindNative, native: n} }

// Kind reports the variant this Value holds.
func (v Value) Kind() Kind { return v.kind }

// Type returns the VM's internal type tag.
func (v Value) Type() Kind { return v.kind }

// Name returns a human-readable type name, used in error messages (spec §7:
// "attempt to index value from <type>", "attempt to call <type>").
func (v Value) Name() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTable:
		return "table"
	case KindClosure:
		return "function"
	case KindNative:
		return "function"
	default:
		return "unknown"
	}
}

// IsNil reports whether v is the Nil value.
func (v Value) IsNil() bool { return v.kind == KindNil }

// Truthy implements luna's truthiness rule: only nil and false are falsy.
func (v Value) Truthy() bool {
	return !(v.kind == KindNil || (v.kind == KindBool && !v.b))
}

// AsBool returns the boolean payload; only meaningful when Kind() == KindBool.
func (v Value) AsBool() bool { return v.b }

// AsNumber returns the numeric payload; only meaningful when Kind() == KindNumber.
func (v Value) AsNumber() float64 { return v.num }

// AsString returns the string payload; only meaningful when Kind() == KindString.
func (v Value) AsString() string {
	if v.str == nil {
		return ""
	}
	return *v.str
}

// AsTable returns the table payload; only meaningful when Kind() == KindTable.
func (v Value) AsTable() *Table { return v.table }

// AsClosure returns the closure payload; only meaningful when Kind() == KindClosure.
func (v Value) AsClosure() *Closure { return v.clo }

// AsNative returns the native-function payload; only meaningful when Kind() == KindNative.
func (v Value) AsNative() NativeFunction { return v.native }

// Equal implements spec §3's equality rule: identity for tables and
// closures, by-value for primitives and strings.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.num == other.num
	case KindString:
		return v.AsString() == other.AsString()
	case KindTable:
		return v.table == other.table
	case KindClosure:
		return v.clo == other.clo
	case KindNative:
		return v.native == other.native
	default:
		return false
	}
}

// String renders a Value for display (the "print"/"tostring" natives, and
// debug tracing).
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.num)
	case KindString:
		return v.AsString()
	case KindTable:
		return fmt.Sprintf("table: %p", v.table)
	case KindClosure:
		return fmt.Sprintf("function: %p", v.clo)
	case KindNative:
		return fmt.Sprintf("function: builtin %s", v.native.Name())
	default:
		return "<unknown>"
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

// tableKey is the natively-comparable projection of a Value used as a
// Table map key. It holds string content directly rather than the *string
// Value.str points at: the pool's interning cache is bounded (pool.go), so
// two Values for equal string content can carry different, non-equal
// pointers once the first has been evicted and re-interned. Keying the map
// by dereferenced content instead of by Value itself keeps table lookups
// correct regardless of interning-cache churn, matching Equal's by-value
// rule for strings.
type tableKey struct {
	kind   Kind
	b      bool
	num    float64
	str    string
	table  *Table
	clo    *Closure
	native NativeFunction
}

// mapKey converts v to its tableKey. Only the field matching v.kind is
// meaningful, mirroring Value itself.
func (v Value) mapKey() tableKey {
	k := tableKey{kind: v.kind, b: v.b, num: v.num, table: v.table, clo: v.clo, native: v.native}
	if v.str != nil {
		k.str = *v.str
	}
	return k
}

// Closure owns a reference to its immutable Function plus the upvalue table
// captured at creation time (spec §3, Closure). Upvalues is nil when the
// function declares no upvalues.
type Closure struct {
	Function *bytecode.Function
	Upvalues *Table
}
