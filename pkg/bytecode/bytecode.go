// Package bytecode defines the instruction set that the luna virtual
// machine executes.
//
// luna compiles source to a flat instruction stream plus a set of immutable
// compiled Functions. There is no separate constant pool: every instruction
// carries at most one parameter, discriminated by ParamKind, and parameters
// that need a Value (a name, a literal) hold that Value directly rather than
// indexing into a side table.
//
// Instruction Format:
//
//	Instruction{Op: OpPush, Param: Param{Kind: ParamValue, Value: ...}}
//	Instruction{Op: OpGetTable, Param: Param{Kind: ParamName, Name: ...}}
//	Instruction{Op: OpPush, Param: Param{Kind: ParamCounter, Total: 2}}
//
// A Bootstrap is the unit of execution: an ordered, owned instruction
// sequence submitted to vm.VM.Run. A compiled Function's Instructions field
// is itself a Bootstrap.
package bytecode

// Opcode identifies a VM instruction. See spec §4.6 for the full contract of
// each opcode; this file only names them.
type Opcode byte

const (
	// OpPush pushes a value, a name, or a counter, depending on Param.Kind.
	OpPush Opcode = iota

	// OpCleanStack pops the top counter and the `total` value slots beneath
	// it, discarding an expression result.
	OpCleanStack

	// OpGetLocalTable pushes the innermost scope table, then a
	// counter{0,1}.
	OpGetLocalTable

	// OpGetTable resolves Param.Name by scanning scope tables, falling back
	// to the current closure's upvalue table, and pushes the owning table
	// plus a counter{0,1}.
	OpGetTable

	// OpGetTableValue replaces the table captured at Param.CounterIndex
	// counters back with the value looked up by the key on top of the
	// stack.
	OpGetTableValue

	// OpAssign consumes a key+table pair and one value from the RHS
	// counter beneath them, writing table[key] = value.
	OpAssign

	// OpGenerateClosure creates a closure from Param.Value (a
	// *bytecode.Function), capturing upvalues by value.
	OpGenerateClosure

	// OpCall invokes the callee described by the counter/value run on top
	// of the stack.
	OpCall

	// OpRet pops the active call record and resumes the caller.
	OpRet

	// OpGenerateArgTable packs the top argument counter into a fresh table
	// bound to the local name "arg".
	OpGenerateArgTable

	// OpMergeCounter merges the two adjacent counter runs on top of the
	// stack into one.
	OpMergeCounter

	// OpResetCounter coerces the top counter's total to exactly 1.
	OpResetCounter

	// OpDuplicateCounter duplicates the run beneath the top counter.
	OpDuplicateCounter

	// OpAddLocalTable pushes a fresh scope table and increments the
	// current call record's callee-table count. When Param.Transient is
	// set the table is kept off GetTable's name-resolution scan until a
	// matching OpDelLocalTable retires it (used for a table literal under
	// construction).
	OpAddLocalTable

	// OpDelLocalTable pops one scope table and decrements the callee-table
	// count.
	OpDelLocalTable

	// OpAddGlobalTable pushes the global table and opens the synthetic
	// bottom call record.
	OpAddGlobalTable

	// OpDelGlobalTable is the inverse of OpAddGlobalTable.
	OpDelGlobalTable
)

// String returns a human-readable mnemonic for an opcode, used by the
// disassembler and debug tracing.
func (op Opcode) String() string {
	switch op {
	case OpPush:
		return "PUSH"
	case OpCleanStack:
		return "CLEAN_STACK"
	case OpGetLocalTable:
		return "GET_LOCAL_TABLE"
	case OpGetTable:
		return "GET_TABLE"
	case OpGetTableValue:
		return "GET_TABLE_VALUE"
	case OpAssign:
		return "ASSIGN"
	case OpGenerateClosure:
		return "GENERATE_CLOSURE"
	case OpCall:
		return "CALL"
	case OpRet:
		return "RET"
	case OpGenerateArgTable:
		return "GENERATE_ARG_TABLE"
	case OpMergeCounter:
		return "MERGE_COUNTER"
	case OpResetCounter:
		return "RESET_COUNTER"
	case OpDuplicateCounter:
		return "DUPLICATE_COUNTER"
	case OpAddLocalTable:
		return "ADD_LOCAL_TABLE"
	case OpDelLocalTable:
		return "DEL_LOCAL_TABLE"
	case OpAddGlobalTable:
		return "ADD_GLOBAL_TABLE"
	case OpDelGlobalTable:
		return "DEL_GLOBAL_TABLE"
	default:
		return "UNKNOWN"
	}
}

// ParamKind discriminates the payload an Instruction's Param carries.
type ParamKind byte

const (
	// ParamNone means the instruction takes no parameter.
	ParamNone ParamKind = iota

	// ParamName carries a name Value used as a table key (for GetTable,
	// Push of a bare name).
	ParamName

	// ParamValue carries a literal Value, or a *Function for
	// GenerateClosure.
	ParamValue

	// ParamCounter carries a counter total (for Push of a counter).
	ParamCounter

	// ParamCounterIndex carries a CounterIndex: how many counters to skip
	// past to reach the (table, counter) pair GetTableValue operates on.
	ParamCounterIndex
)

// Param is an Instruction's single optional operand, discriminated by Kind.
// Name and Value hold interface{} because they are resolved against
// pkg/value.Value only once the vm package (which also depends on
// pkg/bytecode) is in scope; the compiler always populates the field that
// matches Kind and the VM only ever reads that field.
type Param struct {
	Kind         ParamKind
	Name         any  // value.Value, when Kind == ParamName
	Value        any  // value.Value or *Function, when Kind == ParamValue
	Total        int  // counter total, when Kind == ParamCounter
	CounterIndex int  // when Kind == ParamCounterIndex
	Transient    bool // for OpAddLocalTable: see its doc comment
}

// Instruction is a single bytecode instruction: an opcode plus its operand.
type Instruction struct {
	Op    Opcode
	Param Param
}

// Bootstrap is an ordered, immutable instruction sequence: the unit of
// execution submitted to vm.VM.Run, and the Instructions of a compiled
// Function.
type Bootstrap []Instruction

// Function is an immutable compiled unit produced by the compiler: a
// function's instructions plus the metadata the VM needs to build a closure
// over it.
//
// Upvalues is the ordered set of names this function closes over; it is nil
// (not just empty) when the function declares no upvalues, so
// GenerateClosure can skip allocating an upvalue table entirely (spec §3,
// Closure).
type Function struct {
	Name         string
	Instructions Bootstrap
	ParamCount   int
	Variadic     bool
	Upvalues     []string
}
