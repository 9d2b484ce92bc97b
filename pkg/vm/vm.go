// Package vm implements the luna dispatch engine: the operand stack, the
// scope-table stack, the call stack, and the instruction handlers that
// interpret a bytecode.Bootstrap (spec §1-§4). There is exactly one
// dispatch loop — a function Call switches the instruction pointer to the
// callee's instructions in place, rather than recursing into a nested VM,
// so caller/callee share one flat operand stack throughout a Run.
package vm

import (
	"go.uber.org/zap"

	"github.com/kristofer/luna/pkg/bytecode"
	"github.com/kristofer/luna/pkg/value"
)

// retBootstrap is the synthetic one-instruction bootstrap a native call
// switches the instruction pointer to after it returns: its sole purpose is
// to let the existing Call/Ret machinery bring control back to the caller
// without a special case in the dispatch loop (spec §4.6, OpCall: "native
// calls execute synchronously, then the VM synthesizes a one-instruction
// Ret bootstrap").
var retBootstrap = bytecode.Bootstrap{{Op: bytecode.OpRet}}

// VM holds all three of luna's runtime stacks plus the allocator they share.
// A VM is reusable across multiple Run calls: the global table and its
// contents persist between them (spec §2, "Global variables persist across
// multiple Run() calls").
type VM struct {
	stack  *OperandStack
	scopes scopeStack
	calls  callStack
	pool   *value.DataPool

	globals *value.Table

	insBase    bytecode.Bootstrap
	insCount   int
	insCurrent int

	logger   *zap.Logger
	debugger *Debugger
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithLogger attaches a zap.Logger for per-instruction debug tracing and
// error-level reporting. A nil logger (the default) disables tracing
// entirely; VM never assumes a non-nil logger.
func WithLogger(logger *zap.Logger) Option {
	return func(vm *VM) { vm.logger = logger }
}

// WithDebugger attaches an interactive Debugger (pkg/vm/debugger.go).
func WithDebugger(d *Debugger) Option {
	return func(vm *VM) { vm.debugger = d }
}

// New builds a VM backed by pool, with an initial operand-stack capacity
// hint (0 picks a small default). The global table is allocated once here
// and lives for the VM's lifetime.
func New(pool *value.DataPool, stackCapacity int, opts ...Option) *VM {
	if stackCapacity <= 0 {
		stackCapacity = 256
	}
	vm := &VM{
		stack:   newOperandStack(stackCapacity),
		pool:    pool,
		globals: pool.GetTable(),
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.debugger != nil {
		vm.debugger.vm = vm
	}
	return vm
}

// Globals returns the VM's global table, so callers (cmd/luna, pkg/natives)
// can install bindings before Run.
func (vm *VM) Globals() *value.Table { return vm.globals }

// --- value.NativeStack, implemented by delegating to the live operand stack.

// ArgCount reports how many arguments the top counter describes.
func (vm *VM) ArgCount() int {
	top := vm.stack.Size() - 1
	return vm.stack.at(top).counter.total
}

// Arg returns the i'th argument (0-based, left to right) out of the top
// counter's run.
func (vm *VM) Arg(i int) value.Value {
	top := vm.stack.Size() - 1
	total := vm.stack.at(top).counter.total
	return vm.stack.at(top - total + i).value
}

// PushResults pushes results followed by a counter describing them,
// implementing a native function's return (spec §6).
func (vm *VM) PushResults(results ...value.Value) {
	for _, r := range results {
		vm.stack.Push(r)
	}
	vm.stack.PushCounter(len(results))
}

// Run installs boot as the current frame and dispatches instructions until
// the instruction pointer walks off the end (spec §2). It returns a
// *RuntimeError on the first handler failure.
func (vm *VM) Run(boot bytecode.Bootstrap) error {
	vm.insBase = boot
	vm.insCount = len(boot)
	vm.insCurrent = 0

	for vm.insCurrent < vm.insCount {
		inst := vm.insBase[vm.insCurrent]

		if vm.debugger != nil && vm.debugger.enabled {
			if vm.debugger.ShouldPause(vm.insCurrent) {
				if !vm.debugger.InteractivePrompt() {
					return vm.errorf("debugging session terminated")
				}
			}
		}
		if vm.logger != nil {
			vm.logger.Debug("dispatch",
				zap.Int("ip", vm.insCurrent),
				zap.Stringer("op", inst.Op),
				zap.Int("stackDepth", vm.stack.Size()),
				zap.Int("scopeDepth", vm.scopes.depth()),
				zap.Int("callDepth", vm.calls.depth()),
			)
		}

		if err := vm.dispatch(inst); err != nil {
			if vm.logger != nil {
				vm.logger.Error("runtime error", zap.Error(err), zap.Int("ip", vm.insCurrent))
			}
			return err
		}
		vm.insCurrent++
	}
	return nil
}

func (vm *VM) dispatch(inst bytecode.Instruction) error {
	switch inst.Op {
	case bytecode.OpPush:
		return vm.opPush(inst.Param)
	case bytecode.OpCleanStack:
		return vm.opCleanStack()
	case bytecode.OpGetLocalTable:
		vm.opGetLocalTable()
		return nil
	case bytecode.OpGetTable:
		return vm.opGetTable(inst.Param)
	case bytecode.OpGetTableValue:
		return vm.opGetTableValue(inst.Param.CounterIndex)
	case bytecode.OpAssign:
		return vm.opAssign()
	case bytecode.OpGenerateClosure:
		return vm.opGenerateClosure(inst.Param)
	case bytecode.OpCall:
		return vm.opCall()
	case bytecode.OpRet:
		vm.opRet()
		return nil
	case bytecode.OpGenerateArgTable:
		return vm.opGenerateArgTable()
	case bytecode.OpMergeCounter:
		return vm.opMergeCounter()
	case bytecode.OpResetCounter:
		return vm.opResetCounter()
	case bytecode.OpDuplicateCounter:
		return vm.opDuplicateCounter()
	case bytecode.OpAddLocalTable:
		vm.opAddLocalTable(inst.Param)
		return nil
	case bytecode.OpDelLocalTable:
		vm.opDelLocalTable()
		return nil
	case bytecode.OpAddGlobalTable:
		vm.opAddGlobalTable()
		return nil
	case bytecode.OpDelGlobalTable:
		vm.opDelGlobalTable()
		return nil
	default:
		return vm.errorf("unknown opcode %v", inst.Op)
	}
}

func (vm *VM) opPush(p bytecode.Param) error {
	switch p.Kind {
	case bytecode.ParamName:
		vm.stack.Push(p.Name.(value.Value))
	case bytecode.ParamValue:
		vm.stack.Push(p.Value.(value.Value))
	case bytecode.ParamCounter:
		vm.stack.PushCounter(p.Total)
	default:
		return vm.errorf("Push: invalid parameter kind %v", p.Kind)
	}
	return nil
}

func (vm *VM) opCleanStack() error {
	top := vm.stack.Size() - 1
	c := vm.stack.at(top)
	if c.kind != slotCounter {
		return vm.errorf("CleanStack: expected a counter on top of the stack")
	}
	vm.stack.dropTop(1 + c.counter.total)
	return nil
}

func (vm *VM) opGetLocalTable() {
	vm.stack.Push(value.TableValue(vm.scopes.back()))
	vm.stack.PushCounter(1)
}

// opGetTable resolves Param.Name (spec §4.6 GetTable): scan the current
// frame's visible scope tables innermost-out, falling back to the current
// closure's upvalue table. Resolves the first Open Question in spec §9: a
// frame with no enclosing closure and no owning scope raises a RuntimeError
// rather than dereferencing a nil upvalue table.
func (vm *VM) opGetTable(p bytecode.Param) error {
	name := p.Name.(value.Value)
	rec := vm.calls.top()
	tables := vm.scopes.visible(rec.calleeTables)
	for i := len(tables) - 1; i >= 0; i-- {
		if tables[i].HaveKey(name) {
			vm.stack.Push(value.TableValue(tables[i]))
			vm.stack.PushCounter(1)
			return nil
		}
	}
	if clo := closureOf(rec.callee); clo != nil && clo.Upvalues != nil {
		vm.stack.Push(value.TableValue(clo.Upvalues))
		vm.stack.PushCounter(1)
		return nil
	}
	return vm.errorf("attempt to read undeclared name %q", name.AsString())
}

// opGetTableValue implements spec §4.6 GetTableValue. The key is normally a
// bare value slot (pushed by a literal Push of a name), but this
// implementation also accepts a key produced like any other expression
// result — a (value, counter) pair — so a computed bracket index a[expr]
// can reuse the same opcode; see DESIGN.md for why this generalization was
// necessary (the given instruction set has no primitive to strip a counter
// from an expression result without also discarding its value).
func (vm *VM) opGetTableValue(ci int) error {
	top := vm.stack.Size() - 1
	topSlot := vm.stack.at(top)

	var key value.Value
	var consumed int
	var structureTop int
	if topSlot.kind == slotCounter {
		key = vm.stack.at(top - 1).value
		consumed = 2
		structureTop = top - 2
	} else {
		key = topSlot.value
		consumed = 1
		structureTop = top - 1
	}

	idx := structureTop
	for i := 0; i < ci; i++ {
		c := vm.stack.at(idx).counter
		idx -= 1 + c.total
	}
	counterIdx := idx
	tableIdx := counterIdx - 1

	tableVal := vm.stack.at(tableIdx).value
	if tableVal.Kind() != value.KindTable {
		return vm.errorf("attempt to index value from %s", tableVal.Name())
	}
	result := tableVal.AsTable().GetValue(key)
	vm.stack.set(tableIdx, valueSlot(result))
	vm.stack.dropTop(consumed)
	return nil
}

// opAssign implements spec §4.6 Assign. Top to bottom: key counter{0,1},
// key value, table counter{0,1}, table value, RHS counter. Only the key and
// table pairs are popped; the RHS counter is left in place (with current
// advanced by one) so a multiple-assignment statement's later targets can
// consume it in turn.
func (vm *VM) opAssign() error {
	vm.stack.dropTop(1) // key counter
	key := vm.stack.Pop()
	vm.stack.dropTop(1) // table counter
	tableVal := vm.stack.Pop()
	if tableVal.Kind() != value.KindTable {
		return vm.errorf("attempt to index value from %s", tableVal.Name())
	}

	rhsIdx := vm.stack.Size() - 1
	rc := vm.stack.at(rhsIdx).counter

	var v value.Value
	if rc.current < rc.total {
		v = vm.stack.at(rhsIdx - rc.total + rc.current).value
	} else {
		v = value.Nil
	}
	rc.current++
	vm.stack.set(rhsIdx, slot{kind: slotCounter, counter: rc})

	if err := tableVal.AsTable().Assign(key, v); err != nil {
		return vm.wrapf(err, "assignment failed")
	}
	return nil
}

// opGenerateClosure implements spec §4.6 GenerateClosure: allocate a
// closure over the function, capture every declared upvalue BY VALUE from
// its owning table at this moment, then push (closure, counter{0,1}).
func (vm *VM) opGenerateClosure(p bytecode.Param) error {
	fn := p.Value.(*bytecode.Function)
	clo := vm.pool.GetClosure(fn)
	for _, name := range fn.Upvalues {
		nameVal := vm.pool.GetString(name)
		owner := vm.upvalueOwnerTable(nameVal)
		clo.Upvalues.Assign(nameVal, owner.GetValue(nameVal))
	}
	vm.stack.Push(value.ClosureValue(clo))
	vm.stack.PushCounter(1)
	return nil
}

// upvalueOwnerTable implements spec §4.7, GetUpvalueKeyOwnerTable: scan the
// current frame's visible scopes innermost-out; else fall back to the
// current frame's enclosing closure's upvalue table; else (global frame)
// bind the name fresh as Nil in the outermost visible scope and return
// that. This also resolves spec §9's second Open Question, which only
// flags an implementation hazard (conflating the loop's termination
// condition with its iteration step) — the plain countdown loop here keeps
// the two separate.
func (vm *VM) upvalueOwnerTable(name value.Value) *value.Table {
	rec := vm.calls.top()
	tables := vm.scopes.visible(rec.calleeTables)
	for i := len(tables) - 1; i >= 0; i-- {
		if tables[i].HaveKey(name) {
			return tables[i]
		}
	}
	if clo := closureOf(rec.callee); clo != nil && clo.Upvalues != nil {
		return clo.Upvalues
	}
	outer := tables[0]
	outer.Assign(name, value.Nil)
	return outer
}

func closureOf(v value.Value) *value.Closure {
	if v.Kind() == value.KindClosure {
		return v.AsClosure()
	}
	return nil
}

// opCall implements spec §4.6 Call. Stack top to bottom: arg counter{0,A},
// A arg values, callee counter{0,1}, callee value. Call removes exactly the
// callee value and its counter, leaving the argument run as the new top of
// stack for the callee to consume, then pushes a call record and switches
// the instruction pointer to the callee. A native callee runs at once; the
// VM then removes the argument run beneath the results it pushed.
func (vm *VM) opCall() error {
	top := vm.stack.Size() - 1
	argCounter := vm.stack.at(top)
	if argCounter.kind != slotCounter {
		return vm.errorf("Call: expected argument counter on top of the stack")
	}
	argTotal := argCounter.counter.total
	calleeCounterIdx := top - argTotal - 1
	calleeValueIdx := calleeCounterIdx - 1

	calleeVal := vm.stack.at(calleeValueIdx).value
	vm.stack.removeRange(calleeValueIdx, 2)

	vm.calls.push(callRecord{
		callerBase:   vm.insBase,
		callerCount:  vm.insCount,
		callerOffset: vm.insCurrent,
		callee:       calleeVal,
		calleeTables: 0,
	})

	switch calleeVal.Kind() {
	case value.KindClosure:
		fn := calleeVal.AsClosure().Function
		vm.insBase = fn.Instructions
		vm.insCount = len(vm.insBase)
		vm.insCurrent = -1
	case value.KindNative:
		if err := calleeVal.AsNative().Call(vm); err != nil {
			vm.calls.pop()
			return vm.wrapf(err, "native call failed")
		}
		// The native has read its arguments and pushed its results above
		// them; drop the argument run so only the results remain.
		vm.stack.removeRange(calleeValueIdx, argTotal+1)
		vm.insBase = retBootstrap
		vm.insCount = len(retBootstrap)
		vm.insCurrent = -1
	default:
		vm.calls.pop()
		return vm.errorf("attempt to call %s", calleeVal.Name())
	}
	return nil
}

// opRet implements spec §4.6 Ret: pop the active call record, trim the
// scope stack by the number of tables that frame opened, and restore the
// caller's instruction pointer. The dispatch loop's trailing ++insCurrent
// then lands one past the original Call.
func (vm *VM) opRet() {
	r := vm.calls.pop()
	for i := 0; i < r.calleeTables; i++ {
		vm.scopes.pop()
	}
	vm.insBase = r.callerBase
	vm.insCount = r.callerCount
	vm.insCurrent = r.callerOffset
}

// opGenerateArgTable implements spec §4.6 GenerateArgTable: pack the
// already-current-frame's argument counter into a fresh table bound to
// "arg" in the innermost scope, and mark the counter fully consumed.
func (vm *VM) opGenerateArgTable() error {
	top := vm.stack.Size() - 1
	c := vm.stack.at(top)
	if c.kind != slotCounter {
		return vm.errorf("GenerateArgTable: expected argument counter on top of the stack")
	}
	total := c.counter.total
	arg := vm.pool.GetTable()
	for i := c.counter.current; i < total; i++ {
		v := vm.stack.at(top - total + i).value
		arg.Assign(vm.pool.GetNumber(float64(i+1)), v)
	}
	vm.stack.set(top, slot{kind: slotCounter, counter: counter{current: total, total: total}})
	vm.scopes.back().Assign(vm.pool.GetString("arg"), value.TableValue(arg))
	return nil
}

// opMergeCounter implements spec §4.6 MergeCounter: fold the top counter's
// run into the one beneath it, producing one counter{0, total1+total2} over
// the concatenation of both value runs.
func (vm *VM) opMergeCounter() error {
	top := vm.stack.Size() - 1
	c2 := vm.stack.at(top)
	if c2.kind != slotCounter {
		return vm.errorf("MergeCounter: expected a counter on top of the stack")
	}
	total2 := c2.counter.total
	counter1Idx := top - total2 - 1
	c1 := vm.stack.at(counter1Idx)
	if c1.kind != slotCounter {
		return vm.errorf("MergeCounter: expected a counter beneath the top run")
	}
	total1 := c1.counter.total

	vm.stack.removeRange(counter1Idx, 1)
	newTop := vm.stack.Size() - 1
	vm.stack.set(newTop, slot{kind: slotCounter, counter: counter{current: 0, total: total1 + total2}})
	return nil
}

// opResetCounter implements spec §4.6 ResetCounter: coerce the top
// counter's total to exactly 1 — padding with Nil if it held zero values,
// discarding the surplus (keeping the first) if it held more than one.
func (vm *VM) opResetCounter() error {
	top := vm.stack.Size() - 1
	c := vm.stack.at(top)
	if c.kind != slotCounter {
		return vm.errorf("ResetCounter: expected a counter on top of the stack")
	}
	total := c.counter.total
	switch {
	case total == 1:
		vm.stack.set(top, slot{kind: slotCounter, counter: counter{current: 0, total: 1}})
	case total == 0:
		vm.stack.set(top, valueSlot(value.Nil))
		vm.stack.append(slot{kind: slotCounter, counter: counter{current: 0, total: 1}})
	default:
		keepIdx := top - total
		vm.stack.removeRange(keepIdx+1, total)
		vm.stack.append(slot{kind: slotCounter, counter: counter{current: 0, total: 1}})
	}
	return nil
}

// opDuplicateCounter implements spec §4.6 DuplicateCounter: copy the entire
// run beneath the top counter (its values, then a fresh counter of the same
// total) on top of itself.
func (vm *VM) opDuplicateCounter() error {
	top := vm.stack.Size() - 1
	c := vm.stack.at(top)
	if c.kind != slotCounter {
		return vm.errorf("DuplicateCounter: expected a counter on top of the stack")
	}
	total := c.counter.total
	start := top - total
	for i := 0; i < total; i++ {
		vm.stack.append(valueSlot(vm.stack.at(start + i).value))
	}
	vm.stack.append(slot{kind: slotCounter, counter: counter{current: 0, total: total}})
	return nil
}

func (vm *VM) opAddLocalTable(p bytecode.Param) {
	if p.Transient {
		vm.scopes.pushTransient(vm.pool.GetTable())
	} else {
		vm.scopes.push(vm.pool.GetTable())
	}
	vm.calls.top().calleeTables++
}

func (vm *VM) opDelLocalTable() {
	vm.scopes.pop()
	vm.calls.top().calleeTables--
}

// opAddGlobalTable implements spec §4.6 AddGlobalTable: push the VM's
// persistent global table and open the bottom sentinel call record
// (callee = Nil, calleeTables = 1) that DelGlobalTable later removes.
func (vm *VM) opAddGlobalTable() {
	vm.scopes.push(vm.globals)
	vm.calls.push(callRecord{callee: value.Nil, calleeTables: 1})
}

func (vm *VM) opDelGlobalTable() {
	vm.scopes.pop()
	vm.calls.pop()
}
