package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kristofer/luna/pkg/bytecode"
	"github.com/kristofer/luna/pkg/value"
)

// TestCallDispatchesToNativeFunction exercises opCall's native-callee branch
// in isolation, by hand-assembling a five-instruction bootstrap that pushes
// a mocked native function, one argument, and calls it. It pins down the
// calling convention a real native (pkg/natives) relies on: the native sees
// the argument run via ArgCount/Arg and returns by calling PushResults.
func TestCallDispatchesToNativeFunction(t *testing.T) {
	ctrl := gomock.NewController(t)
	native := NewMockNativeFunction(ctrl)
	native.EXPECT().Call(gomock.Any()).DoAndReturn(func(s value.NativeStack) error {
		require.Equal(t, 1, s.ArgCount())
		require.Equal(t, value.Number(7), s.Arg(0))
		s.PushResults(value.Number(14))
		return nil
	})

	pool := value.NewDataPool()
	machine := New(pool, 16)

	boot := bytecode.Bootstrap{
		{Op: bytecode.OpPush, Param: bytecode.Param{Kind: bytecode.ParamValue, Value: value.NativeValue(native)}},
		{Op: bytecode.OpPush, Param: bytecode.Param{Kind: bytecode.ParamCounter, Total: 1}},
		{Op: bytecode.OpPush, Param: bytecode.Param{Kind: bytecode.ParamValue, Value: value.Number(7)}},
		{Op: bytecode.OpPush, Param: bytecode.Param{Kind: bytecode.ParamCounter, Total: 1}},
		{Op: bytecode.OpCall},
	}

	err := machine.Run(boot)
	require.NoError(t, err)

	require.Equal(t, 2, machine.stack.Size())
	require.Equal(t, value.Number(14), machine.stack.at(-2).value)
	require.Equal(t, 1, machine.stack.at(-1).counter.total)
}

// TestCallRejectsNonCallableValue exercises opCall's default branch.
func TestCallRejectsNonCallableValue(t *testing.T) {
	pool := value.NewDataPool()
	machine := New(pool, 16)

	boot := bytecode.Bootstrap{
		{Op: bytecode.OpPush, Param: bytecode.Param{Kind: bytecode.ParamValue, Value: value.Number(5)}},
		{Op: bytecode.OpPush, Param: bytecode.Param{Kind: bytecode.ParamCounter, Total: 1}},
		{Op: bytecode.OpPush, Param: bytecode.Param{Kind: bytecode.ParamCounter, Total: 0}},
		{Op: bytecode.OpCall},
	}

	err := machine.Run(boot)
	require.ErrorContains(t, err, "attempt to call number")
}
