package vm

import "github.com/kristofer/luna/pkg/value"

// scopeStack is the ordered sequence of active lexical scope tables (spec
// §4.2), most-recently-pushed at the end of the slice. It is shared across
// every frame; a frame's own tables are always a contiguous run at the top,
// whose length is that frame's call record's calleeTables.
//
// A table literal under construction is pushed here too (so GetLocalTable
// and the closing DelLocalTable can reach it by position), but marked
// transient so visible's name-resolution scan skips it: a field's value
// expression must never resolve a bare name against the literal's own
// partially-built contents.
type scopeStack struct {
	tables    []*value.Table
	transient []bool
}

func (s *scopeStack) push(t *value.Table) { s.pushWith(t, false) }

func (s *scopeStack) pushTransient(t *value.Table) { s.pushWith(t, true) }

func (s *scopeStack) pushWith(t *value.Table, transient bool) {
	s.tables = append(s.tables, t)
	s.transient = append(s.transient, transient)
}

func (s *scopeStack) pop() *value.Table {
	t := s.tables[len(s.tables)-1]
	s.tables = s.tables[:len(s.tables)-1]
	s.transient = s.transient[:len(s.transient)-1]
	return t
}

func (s *scopeStack) back() *value.Table { return s.tables[len(s.tables)-1] }

func (s *scopeStack) depth() int { return len(s.tables) }

// visible returns the tables belonging to the current frame that are not
// currently mid-construction: the last n entries (n is that frame's
// callee_tables count), minus any contiguous transient run at the top. An
// outer frame's scopes are not part of this slice either — they are not
// visible to the callee (spec §4.2, §4.6 GetTable).
func (s *scopeStack) visible(n int) []*value.Table {
	hidden := 0
	for i := len(s.tables) - 1; hidden < n && i >= 0 && s.transient[i]; i-- {
		hidden++
	}
	top := len(s.tables) - hidden
	return s.tables[top-(n-hidden) : top]
}
