package value

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kristofer/luna/pkg/bytecode"
)

// internCacheSize bounds how many distinct strings the pool keeps readily
// interned. Programs that mint many one-off strings (formatted output,
// generated keys) still work past this size — GetString falls back to a
// fresh allocation on a miss — but long-lived identifier-like strings
// (variable names, table keys, selectors) stay deduplicated because they're
// looked up far more often than they're evicted.
const internCacheSize = 4096

// DataPool is the allocator and interner for Values, Tables and Closures
// (spec §4.4, §6 "To the data pool"). All heap-backed values are minted
// here so the VM has one seam to reason about allocation and identity.
//
// String interning is backed by a bounded LRU cache rather than an
// unbounded map: two GetString calls with equal content return the same
// *string, making Value.Equal's by-value string comparison a cheap pointer
// check in the common case, as long as the string is still resident in the
// cache. A cache miss just re-mints a fresh *string for the same content
// instead — correctness never depends on this cache hitting. Table.entries
// (table.go) keys off dereferenced string content precisely so a bound here
// is safe: eviction can cost an extra allocation, never a wrong lookup.
type DataPool struct {
	strings *lru.Cache[string, *string]
}

// NewDataPool constructs a DataPool ready for use.
func NewDataPool() *DataPool {
	cache, err := lru.New[string, *string](internCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// internCacheSize never is.
		panic(err)
	}
	return &DataPool{strings: cache}
}

// GetNil returns the Nil value.
func (p *DataPool) GetNil() Value { return Nil }

// GetBool returns a boolean Value.
func (p *DataPool) GetBool(b bool) Value { return Bool(b) }

// GetNumber returns a numeric Value.
func (p *DataPool) GetNumber(n float64) Value { return Number(n) }

// GetString returns an interned String value for s.
func (p *DataPool) GetString(s string) Value {
	if cached, ok := p.strings.Get(s); ok {
		return str(cached)
	}
	interned := new(string)
	*interned = s
	p.strings.Add(s, interned)
	return str(interned)
}

// GetTable allocates and returns a fresh, empty table (spec §4.4: "fresh
// empty").
func (p *DataPool) GetTable() *Table {
	return NewTable()
}

// GetClosure allocates a new closure over fn. An upvalue table is allocated
// iff fn declares at least one upvalue (spec §3, Closure); the VM's
// GenerateClosure handler is responsible for populating it.
func (p *DataPool) GetClosure(fn *bytecode.Function) *Closure {
	c := &Closure{Function: fn}
	if len(fn.Upvalues) > 0 {
		c.Upvalues = p.GetTable()
	}
	return c
}
