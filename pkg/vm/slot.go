package vm

import "github.com/kristofer/luna/pkg/value"

// slotKind discriminates the two shapes an operand-stack slot can hold
// (spec §4.1, §4.5): a plain value, or a counter annotating the run of
// value slots beneath it.
type slotKind byte

const (
	slotValue slotKind = iota
	slotCounter
)

// counter is the {current, total} pair spec §4.5 defines for a multi-value
// run: total is how many value slots the run holds, current is how many of
// them have been consumed so far (by Assign, GenerateArgTable, ...).
type counter struct {
	current int
	total   int
}

// slot is one entry on the operand stack.
type slot struct {
	kind    slotKind
	value   value.Value
	counter counter
}

func valueSlot(v value.Value) slot { return slot{kind: slotValue, value: v} }

func counterSlot(current, total int) slot {
	return slot{kind: slotCounter, counter: counter{current: current, total: total}}
}
