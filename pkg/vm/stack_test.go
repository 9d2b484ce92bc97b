package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/luna/pkg/value"
)

func TestOperandStackPushPop(t *testing.T) {
	s := newOperandStack(4)
	s.Push(value.Number(1))
	s.Push(value.Number(2))
	require.Equal(t, 2, s.Size())
	require.Equal(t, value.Number(2), s.Top())
	require.Equal(t, value.Number(2), s.Pop())
	require.Equal(t, value.Number(1), s.Pop())
	require.Equal(t, 0, s.Size())
}

func TestOperandStackCounterRoundTrip(t *testing.T) {
	s := newOperandStack(4)
	s.Push(value.Number(10))
	s.Push(value.Number(20))
	s.PushCounter(2)
	require.Equal(t, 3, s.Size())

	top := s.at(-1)
	require.Equal(t, slotCounter, top.kind)
	require.Equal(t, 0, top.counter.current)
	require.Equal(t, 2, top.counter.total)
	require.Equal(t, value.Number(20), s.at(-2).value)
	require.Equal(t, value.Number(10), s.at(-3).value)
}

// TestResetCounterIdempotence covers invariant #6: ResetCounter applied
// twice in a row is the same as applying it once.
func TestResetCounterIdempotence(t *testing.T) {
	vm := New(value.NewDataPool(), 16)
	vm.stack.Push(value.Number(1))
	vm.stack.Push(value.Number(2))
	vm.stack.Push(value.Number(3))
	vm.stack.PushCounter(3)

	require.NoError(t, vm.opResetCounter())
	first := vm.stack.at(-1)
	firstVal := vm.stack.at(-2).value
	require.Equal(t, 2, vm.stack.Size())
	require.Equal(t, 1, first.counter.total)
	require.Equal(t, value.Number(1), firstVal)

	require.NoError(t, vm.opResetCounter())
	second := vm.stack.at(-1)
	secondVal := vm.stack.at(-2).value
	require.Equal(t, first.counter, second.counter)
	require.Equal(t, firstVal, secondVal)
}

// TestResetCounterPadsEmptyRun covers the zero-value branch of ResetCounter:
// an empty run is padded with a single Nil.
func TestResetCounterPadsEmptyRun(t *testing.T) {
	vm := New(value.NewDataPool(), 16)
	vm.stack.PushCounter(0)
	require.NoError(t, vm.opResetCounter())
	require.Equal(t, 2, vm.stack.Size())
	require.True(t, vm.stack.at(-2).value.IsNil())
	require.Equal(t, 1, vm.stack.at(-1).counter.total)
}

// TestMergeCounterChaining covers invariant #7: folding the two newest runs
// first and then the older run beneath them (right to left, the mirror of
// compileExprListRun's left-to-right folding) yields one counter{0, total}
// over every value concatenated in original order.
func TestMergeCounterChaining(t *testing.T) {
	vm := New(value.NewDataPool(), 32)
	vm.stack.Push(value.Number(1))
	vm.stack.PushCounter(1)
	vm.stack.Push(value.Number(2))
	vm.stack.Push(value.Number(3))
	vm.stack.PushCounter(2)
	vm.stack.Push(value.Number(4))
	vm.stack.PushCounter(1)

	require.NoError(t, vm.opMergeCounter()) // fold (2,3) and (4) -> total 3
	require.NoError(t, vm.opMergeCounter()) // fold (1) and the above -> total 4

	top := vm.stack.at(-1)
	require.Equal(t, slotCounter, top.kind)
	require.Equal(t, 0, top.counter.current)
	require.Equal(t, 4, top.counter.total)
	require.Equal(t, value.Number(1), vm.stack.at(-5).value)
	require.Equal(t, value.Number(2), vm.stack.at(-4).value)
	require.Equal(t, value.Number(3), vm.stack.at(-3).value)
	require.Equal(t, value.Number(4), vm.stack.at(-2).value)
}

func TestScopeStackPushPopVisible(t *testing.T) {
	var s scopeStack
	a := value.NewTable()
	b := value.NewTable()
	c := value.NewTable()
	s.push(a)
	s.push(b)
	s.push(c)
	require.Equal(t, 3, s.depth())
	require.Equal(t, []*value.Table{b, c}, s.visible(2))
	require.Same(t, c, s.back())
	require.Same(t, c, s.pop())
	require.Equal(t, 2, s.depth())
}
