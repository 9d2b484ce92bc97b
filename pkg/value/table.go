package value

import "github.com/pkg/errors"

// ErrNilKey is the cause wrapped by a RuntimeError when Assign is attempted
// with a Nil key (spec §3: "Keys of type Nil are forbidden").
var ErrNilKey = errors.New("table index is nil")

// Table is luna's single compound type: a hybrid map from Value keys to
// Value values (spec §3, Table). Insertion order is not tracked — the spec
// says it "is not externally observable" — so a plain Go map suffices; a
// real luna table optimizes a dense integer-keyed prefix as an array, but
// that's an implementation detail this VM core does not need to expose.
//
// entries is keyed by tableKey rather than Value directly: Value's raw
// struct equality compares strings by the *string pointer Value.str holds,
// which only matches Equal's by-value rule while both Values' strings
// happen to share one interned pointer. tableKey dereferences string
// content instead, so lookups stay correct even after the pool's bounded
// interning cache evicts and re-mints a pointer for the same content.
type Table struct {
	entries map[tableKey]Value
}

// NewTable allocates a fresh, empty Table. Prefer DataPool.GetTable, which
// exists to give the VM a single allocation point to instrument or pool
// (spec §4.4).
func NewTable() *Table {
	return &Table{entries: make(map[tableKey]Value)}
}

// Assign sets table[k] = v. It rejects a Nil key, matching spec §3: nil keys
// raise a runtime error at assignment, originating here and surfaced by the
// VM's Assign instruction handler (spec §7, "KeyError at assignment").
func (t *Table) Assign(k, v Value) error {
	if k.IsNil() {
		return errors.WithStack(ErrNilKey)
	}
	t.entries[k.mapKey()] = v
	return nil
}

// GetValue returns table[k], or Nil if absent.
func (t *Table) GetValue(k Value) Value {
	if v, ok := t.entries[k.mapKey()]; ok {
		return v
	}
	return Nil
}

// GetTableValue is GetValue under the name spec §3 also gives it ("same as
// GetValue in practice") — kept as a distinct method so instruction handlers
// can spell out the contract they're relying on.
func (t *Table) GetTableValue(k Value) Value { return t.GetValue(k) }

// HaveKey reports whether k is present in the table.
func (t *Table) HaveKey(k Value) bool {
	_, ok := t.entries[k.mapKey()]
	return ok
}

// Len reports the number of entries, used by the natives.len builtin.
func (t *Table) Len() int { return len(t.entries) }
