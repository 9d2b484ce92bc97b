package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders a Bootstrap as a human-readable instruction listing,
// one line per instruction, prefixed with its index. It is used by `luna
// compile` and `luna disassemble`; the debugger (pkg/vm/debugger.go) renders
// single instructions with Instruction.String.
func Disassemble(b Bootstrap) string {
	var out strings.Builder
	for i, inst := range b {
		fmt.Fprintf(&out, "%4d: %s\n", i, inst.String())
	}
	return out.String()
}

// String renders a single instruction's mnemonic and operand.
func (inst Instruction) String() string {
	switch inst.Param.Kind {
	case ParamNone:
		return inst.Op.String()
	case ParamName:
		return fmt.Sprintf("%-18s %v", inst.Op, inst.Param.Name)
	case ParamValue:
		if fn, ok := inst.Param.Value.(*Function); ok {
			return fmt.Sprintf("%-18s <function %s/%d>", inst.Op, fn.Name, fn.ParamCount)
		}
		return fmt.Sprintf("%-18s %v", inst.Op, inst.Param.Value)
	case ParamCounter:
		return fmt.Sprintf("%-18s {total=%d}", inst.Op, inst.Param.Total)
	case ParamCounterIndex:
		return fmt.Sprintf("%-18s [ci=%d]", inst.Op, inst.Param.CounterIndex)
	default:
		return inst.Op.String()
	}
}
