package vm

import (
	"github.com/kristofer/luna/pkg/bytecode"
	"github.com/kristofer/luna/pkg/value"
)

// callRecord is one activation record (spec §3 "Activation record", §4.3):
// the caller's instruction-pointer snapshot to restore on Ret, the callee
// value this frame is running (nil for the global-chunk sentinel), and how
// many scope tables this frame has opened.
type callRecord struct {
	callerBase   bytecode.Bootstrap
	callerCount  int
	callerOffset int
	callee       value.Value
	calleeTables int
}

// callStack is the VM's stack of activation records (spec §4.3).
type callStack struct {
	records []callRecord
}

func (c *callStack) push(r callRecord) { c.records = append(c.records, r) }

func (c *callStack) pop() callRecord {
	r := c.records[len(c.records)-1]
	c.records = c.records[:len(c.records)-1]
	return r
}

// top returns a pointer into the live slice so callers (AddLocalTable,
// DelLocalTable) can mutate calleeTables in place.
func (c *callStack) top() *callRecord { return &c.records[len(c.records)-1] }

func (c *callStack) depth() int { return len(c.records) }
