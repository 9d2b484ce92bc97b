// Package compiler lowers an ast.Program into a bytecode.Bootstrap.
//
// The instruction set it targets has no opcode for constructing a general
// table value and none for binding a function parameter by position — both
// are synthesized from the scope-table primitives (GetLocalTable,
// AddLocalTable, Assign, GenerateArgTable) rather than needing new opcodes,
// by treating a table literal as a transient local scope and a named
// parameter as sugar over the "arg" table GenerateArgTable already builds.
// See DESIGN.md for the reasoning.
package compiler

import (
	"fmt"

	"github.com/kristofer/luna/pkg/ast"
	"github.com/kristofer/luna/pkg/bytecode"
	"github.com/kristofer/luna/pkg/value"
)

// Compiler turns parsed programs and function literals into bytecode.
type Compiler struct {
	pool *value.DataPool
}

// New creates a Compiler that mints Values through pool. Using the same
// pool the VM runs against keeps every string in one interning cache; table
// lookups compare string content, so they do not depend on it (see
// pkg/natives.Register's doc comment).
func New(pool *value.DataPool) *Compiler {
	return &Compiler{pool: pool}
}

// CompileProgram compiles a top-level chunk, bracketed with
// AddGlobalTable/DelGlobalTable so its statements see the persistent global
// table as their sole, outermost scope (spec §4.6, AddGlobalTable).
func (c *Compiler) CompileProgram(prog *ast.Program) (bytecode.Bootstrap, error) {
	e := &emitter{}
	e.emit(bytecode.OpAddGlobalTable)
	sc := newFuncScope(nil, nil)
	if err := c.compileStatements(e, sc, prog.Statements); err != nil {
		return nil, err
	}
	e.emit(bytecode.OpDelGlobalTable)
	return e.code, nil
}

// emitter accumulates instructions.
type emitter struct {
	code bytecode.Bootstrap
}

func (e *emitter) emit(op bytecode.Opcode) {
	e.code = append(e.code, bytecode.Instruction{Op: op})
}

func (e *emitter) emitName(op bytecode.Opcode, name value.Value) {
	e.code = append(e.code, bytecode.Instruction{Op: op, Param: bytecode.Param{Kind: bytecode.ParamName, Name: name}})
}

func (e *emitter) emitValue(op bytecode.Opcode, v value.Value) {
	e.code = append(e.code, bytecode.Instruction{Op: op, Param: bytecode.Param{Kind: bytecode.ParamValue, Value: v}})
}

func (e *emitter) emitFunction(op bytecode.Opcode, fn *bytecode.Function) {
	e.code = append(e.code, bytecode.Instruction{Op: op, Param: bytecode.Param{Kind: bytecode.ParamValue, Value: fn}})
}

func (e *emitter) emitCounter(op bytecode.Opcode, total int) {
	e.code = append(e.code, bytecode.Instruction{Op: op, Param: bytecode.Param{Kind: bytecode.ParamCounter, Total: total}})
}

func (e *emitter) emitCounterIndex(op bytecode.Opcode, ci int) {
	e.code = append(e.code, bytecode.Instruction{Op: op, Param: bytecode.Param{Kind: bytecode.ParamCounterIndex, CounterIndex: ci}})
}

func (e *emitter) emitTransientAddLocalTable() {
	e.code = append(e.code, bytecode.Instruction{Op: bytecode.OpAddLocalTable, Param: bytecode.Param{Transient: true}})
}

// funcScope tracks one function's bound names (params plus every bare
// identifier it assigns) so free-variable analysis can tell a local
// reference from one that must become an upvalue.
type funcScope struct {
	parent *funcScope
	bound  map[string]bool
}

func newFuncScope(parent *funcScope, params []string) *funcScope {
	bound := make(map[string]bool, len(params))
	for _, p := range params {
		bound[p] = true
	}
	return &funcScope{parent: parent, bound: bound}
}

func (c *Compiler) compileStatements(e *emitter, sc *funcScope, stmts []ast.Statement) error {
	collectBoundNames(stmts, sc.bound)
	for _, stmt := range stmts {
		if err := c.compileStatement(e, sc, stmt); err != nil {
			return err
		}
	}
	return nil
}

// collectBoundNames records every bare-identifier assignment target
// directly in stmts (not inside nested function literals) as bound in this
// function, matching how compileAssign always targets the innermost scope
// table regardless of same-named outer bindings.
func collectBoundNames(stmts []ast.Statement, bound map[string]bool) {
	for _, stmt := range stmts {
		if a, ok := stmt.(*ast.AssignStmt); ok {
			for _, t := range a.Targets {
				if id, ok := t.(*ast.Identifier); ok {
					bound[id.Name] = true
				}
			}
		}
	}
}

func (c *Compiler) compileStatement(e *emitter, sc *funcScope, stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.AssignStmt:
		return c.compileAssign(e, sc, s)
	case *ast.ExprStmt:
		if err := c.compileExpr(e, sc, s.Expr); err != nil {
			return err
		}
		e.emit(bytecode.OpCleanStack)
		return nil
	case *ast.ReturnStmt:
		return c.compileReturn(e, sc, s)
	default:
		return fmt.Errorf("compiler: unsupported statement %T", stmt)
	}
}

func (c *Compiler) compileReturn(e *emitter, sc *funcScope, s *ast.ReturnStmt) error {
	if err := c.compileExprListRun(e, sc, s.Values); err != nil {
		return err
	}
	e.emit(bytecode.OpRet)
	return nil
}

// compileExprListRun compiles a comma-separated expression list into one
// counter-topped run on the stack: every expression but the last is
// ResetCounter'd to a single value; the last keeps its natural arity so a
// trailing multi-valued call can spread (spec §4.6 MergeCounter: "used to
// concatenate expression lists").
func (c *Compiler) compileExprListRun(e *emitter, sc *funcScope, exprs []ast.Expression) error {
	if len(exprs) == 0 {
		e.emitCounter(bytecode.OpPush, 0)
		return nil
	}
	for i, expr := range exprs {
		if err := c.compileExpr(e, sc, expr); err != nil {
			return err
		}
		if i < len(exprs)-1 {
			e.emit(bytecode.OpResetCounter)
			if i > 0 {
				e.emit(bytecode.OpMergeCounter)
			}
		} else if i > 0 {
			e.emit(bytecode.OpMergeCounter)
		}
	}
	return nil
}

// compileAssign implements a single or multiple assignment statement (spec
// §8, S1/S2): evaluate the RHS once into a shared counter run, then for
// each target in order push its (table, counter) pair and its (key,
// counter) pair and Assign, which advances the shared counter itself.
func (c *Compiler) compileAssign(e *emitter, sc *funcScope, s *ast.AssignStmt) error {
	if err := c.compileExprListRun(e, sc, s.Values); err != nil {
		return err
	}
	for _, target := range s.Targets {
		if err := c.compileAssignTarget(e, sc, target); err != nil {
			return err
		}
	}
	e.emit(bytecode.OpCleanStack)
	return nil
}

// compileAssignTarget pushes a target's (table, counter) pair followed by
// its (key, counter) pair and emits Assign, consuming one value from the
// RHS run already on the stack beneath them.
func (c *Compiler) compileAssignTarget(e *emitter, sc *funcScope, target ast.Expression) error {
	switch t := target.(type) {
	case *ast.Identifier:
		e.emit(bytecode.OpGetLocalTable)
		e.emitName(bytecode.OpPush, c.pool.GetString(t.Name))
		e.emitCounter(bytecode.OpPush, 1)
		e.emit(bytecode.OpAssign)
		return nil
	case *ast.DotExpr:
		if err := c.compileTableChainUpTo(e, sc, t.Target); err != nil {
			return err
		}
		e.emit(bytecode.OpResetCounter)
		e.emitName(bytecode.OpPush, c.pool.GetString(t.Name))
		e.emitCounter(bytecode.OpPush, 1)
		e.emit(bytecode.OpAssign)
		return nil
	case *ast.IndexExpr:
		if err := c.compileTableChainUpTo(e, sc, t.Target); err != nil {
			return err
		}
		e.emit(bytecode.OpResetCounter)
		if err := c.compileExpr(e, sc, t.Key); err != nil {
			return err
		}
		e.emit(bytecode.OpResetCounter)
		e.emit(bytecode.OpAssign)
		return nil
	default:
		return fmt.Errorf("compiler: invalid assignment target %T", target)
	}
}

// compileTableChainUpTo compiles expr so that a (table, counter{0,1}) pair
// for its VALUE is left on the stack, ready for a final key to be pushed
// and Assign/GetTableValue applied. For an Identifier this is GetTable plus a
// GetTableValue of the name; a DotExpr/IndexExpr adds one GetTableValue per
// step.
func (c *Compiler) compileTableChainUpTo(e *emitter, sc *funcScope, expr ast.Expression) error {
	return c.compileExpr(e, sc, expr)
}

func (c *Compiler) compileExpr(e *emitter, sc *funcScope, expr ast.Expression) error {
	switch ex := expr.(type) {
	case *ast.NilLit:
		e.emitValue(bytecode.OpPush, value.Nil)
		e.emitCounter(bytecode.OpPush, 1)
	case *ast.BoolLit:
		e.emitValue(bytecode.OpPush, value.Bool(ex.Value))
		e.emitCounter(bytecode.OpPush, 1)
	case *ast.NumberLit:
		e.emitValue(bytecode.OpPush, c.pool.GetNumber(ex.Value))
		e.emitCounter(bytecode.OpPush, 1)
	case *ast.StringLit:
		e.emitValue(bytecode.OpPush, c.pool.GetString(ex.Value))
		e.emitCounter(bytecode.OpPush, 1)
	case *ast.Identifier:
		e.emitName(bytecode.OpGetTable, c.pool.GetString(ex.Name))
		e.emitName(bytecode.OpPush, c.pool.GetString(ex.Name))
		e.emitCounterIndex(bytecode.OpGetTableValue, 0)
	case *ast.DotExpr:
		if err := c.compileExpr(e, sc, ex.Target); err != nil {
			return err
		}
		e.emit(bytecode.OpResetCounter)
		e.emitName(bytecode.OpPush, c.pool.GetString(ex.Name))
		e.emitCounterIndex(bytecode.OpGetTableValue, 0)
	case *ast.IndexExpr:
		if err := c.compileExpr(e, sc, ex.Target); err != nil {
			return err
		}
		e.emit(bytecode.OpResetCounter)
		if err := c.compileExpr(e, sc, ex.Key); err != nil {
			return err
		}
		e.emit(bytecode.OpResetCounter)
		e.emitCounterIndex(bytecode.OpGetTableValue, 0)
	case *ast.CallExpr:
		return c.compileCall(e, sc, ex)
	case *ast.TableLit:
		return c.compileTableLit(e, sc, ex)
	case *ast.FunctionLit:
		return c.compileFunctionLit(e, sc, ex)
	default:
		return fmt.Errorf("compiler: unsupported expression %T", expr)
	}
	return nil
}

// compileTableLit compiles a table constructor by reusing the scope-table
// machinery: AddLocalTable opens a fresh table as a transient scope,
// GetLocalTable/Assign populate it, and a final GetLocalTable before
// DelLocalTable leaves it as the expression's (table, counter{0,1}) result
// (DelLocalTable only retires the scope-stack entry; the operand-stack copy
// of the reference survives).
//
// The AddLocalTable is emitted with Transient set so the table stays
// invisible to GetTable's name scan for the whole construction: without it,
// a later field's value expression referencing a name equal to an earlier
// field's key would resolve against the literal's own in-progress contents
// instead of the enclosing scope (e.g. `y = 100; t = {y = 1, z = y}` would
// set t.z to 1, not 100).
func (c *Compiler) compileTableLit(e *emitter, sc *funcScope, lit *ast.TableLit) error {
	e.emitTransientAddLocalTable()
	arrayIndex := 1
	for _, field := range lit.Fields {
		// Assign's RHS run goes on the stack first, beneath the table+key
		// pairs it expects on top (spec §4.6 Assign: "beneath that: the RHS
		// multi-value counter").
		if err := c.compileExpr(e, sc, field.Value); err != nil {
			return err
		}
		e.emit(bytecode.OpResetCounter)

		e.emit(bytecode.OpGetLocalTable)
		if field.Key != nil {
			if err := c.compileExpr(e, sc, field.Key); err != nil {
				return err
			}
			e.emit(bytecode.OpResetCounter)
		} else {
			e.emitValue(bytecode.OpPush, c.pool.GetNumber(float64(arrayIndex)))
			e.emitCounter(bytecode.OpPush, 1)
			arrayIndex++
		}
		e.emit(bytecode.OpAssign)
		e.emit(bytecode.OpCleanStack)
	}
	e.emit(bytecode.OpGetLocalTable)
	e.emit(bytecode.OpDelLocalTable)
	return nil
}

// compileCall compiles `callee(args...)`: the callee's (value, counter{0,1})
// pair, then the concatenated argument run, then Call. Call's stack
// arithmetic assumes exactly one callee value (spec §4.6 Call: "beneath the
// A values: callee counter {0,1}"), so a callee expression that can itself
// be multi-valued (e.g. a nested call) is coerced with ResetCounter first.
func (c *Compiler) compileCall(e *emitter, sc *funcScope, call *ast.CallExpr) error {
	if err := c.compileExpr(e, sc, call.Callee); err != nil {
		return err
	}
	e.emit(bytecode.OpResetCounter)
	return c.appendArgsAndCall(e, sc, call.Args)
}

func (c *Compiler) appendArgsAndCall(e *emitter, sc *funcScope, args []ast.Expression) error {
	if err := c.compileExprListRun(e, sc, args); err != nil {
		return err
	}
	e.emit(bytecode.OpCall)
	return nil
}

// compileFunctionLit compiles a nested function body into its own
// bytecode.Function and emits GenerateClosure over it. The body is
// bracketed with AddLocalTable/GenerateArgTable so every call, regardless
// of whether the function declares named parameters, gets a frame-local
// scope and an implicit "arg" table (spec §8, S5); named parameters are
// sugar that reads its own value back out of "arg" by position.
func (c *Compiler) compileFunctionLit(e *emitter, sc *funcScope, lit *ast.FunctionLit) error {
	fn, err := c.compileFunction(sc, lit)
	if err != nil {
		return err
	}
	e.emitFunction(bytecode.OpGenerateClosure, fn)
	return nil
}

func (c *Compiler) compileFunction(parent *funcScope, lit *ast.FunctionLit) (*bytecode.Function, error) {
	inner := newFuncScope(parent, lit.Params)
	body := &emitter{}

	body.emit(bytecode.OpAddLocalTable)
	body.emit(bytecode.OpGenerateArgTable)
	// GenerateArgTable only marks the argument run "fully consumed"; it
	// doesn't remove it from the stack (the values are already copied into
	// "arg"). CleanStack drops that run so Ret's eventual return counter
	// sits directly where the caller's Call expects a result, not on top of
	// leftover argument slots.
	body.emit(bytecode.OpCleanStack)
	for i, param := range lit.Params {
		body.emit(bytecode.OpGetLocalTable)
		body.emitName(bytecode.OpPush, c.pool.GetString("arg"))
		body.emitCounterIndex(bytecode.OpGetTableValue, 0)
		body.emitValue(bytecode.OpPush, c.pool.GetNumber(float64(i+1)))
		body.emitCounterIndex(bytecode.OpGetTableValue, 0)

		body.emit(bytecode.OpGetLocalTable)
		body.emitName(bytecode.OpPush, c.pool.GetString(param))
		body.emitCounter(bytecode.OpPush, 1)

		body.emit(bytecode.OpAssign)
		body.emit(bytecode.OpCleanStack)
	}

	if err := c.compileStatements(body, inner, lit.Body); err != nil {
		return nil, err
	}
	if len(body.code) == 0 || body.code[len(body.code)-1].Op != bytecode.OpRet {
		body.emitCounter(bytecode.OpPush, 0)
		body.emit(bytecode.OpRet)
	}

	return &bytecode.Function{
		Name:         lit.Name,
		Instructions: body.code,
		ParamCount:   len(lit.Params),
		Variadic:     lit.Variadic,
		Upvalues:     freeVariables(lit, inner),
	}, nil
}

// freeVariables computes lit's Function.Upvalues: every name its body reads
// that isn't bound by its own params/locals (spec §3, Closure: "captures
// its free variables by value"). It also collects the free variables of
// any nested function literal that this function itself doesn't bind,
// letting multi-level closures chain correctly through
// VM.upvalueOwnerTable's fallback to the enclosing closure's upvalue table.
func freeVariables(lit *ast.FunctionLit, sc *funcScope) []string {
	seen := map[string]bool{}
	var order []string
	add := func(name string) {
		if sc.bound[name] || seen[name] {
			return
		}
		seen[name] = true
		order = append(order, name)
	}
	collectFreeVars(lit.Body, sc.bound, add)
	return order
}

func collectFreeVars(stmts []ast.Statement, bound map[string]bool, add func(string)) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.AssignStmt:
			for _, t := range s.Targets {
				collectFreeVarsExprTargetBase(t, bound, add)
			}
			for _, v := range s.Values {
				collectFreeVarsExpr(v, bound, add)
			}
		case *ast.ExprStmt:
			collectFreeVarsExpr(s.Expr, bound, add)
		case *ast.ReturnStmt:
			for _, v := range s.Values {
				collectFreeVarsExpr(v, bound, add)
			}
		}
	}
}

// collectFreeVarsExprTargetBase handles assignment targets: a bare
// Identifier target is a local declaration, not a read, but DotExpr/
// IndexExpr targets still read their base expression.
func collectFreeVarsExprTargetBase(target ast.Expression, bound map[string]bool, add func(string)) {
	switch t := target.(type) {
	case *ast.Identifier:
		// declares, does not read
	case *ast.DotExpr:
		collectFreeVarsExpr(t.Target, bound, add)
	case *ast.IndexExpr:
		collectFreeVarsExpr(t.Target, bound, add)
		collectFreeVarsExpr(t.Key, bound, add)
	}
}

func collectFreeVarsExpr(expr ast.Expression, bound map[string]bool, add func(string)) {
	switch ex := expr.(type) {
	case *ast.Identifier:
		if !bound[ex.Name] {
			add(ex.Name)
		}
	case *ast.DotExpr:
		collectFreeVarsExpr(ex.Target, bound, add)
	case *ast.IndexExpr:
		collectFreeVarsExpr(ex.Target, bound, add)
		collectFreeVarsExpr(ex.Key, bound, add)
	case *ast.CallExpr:
		collectFreeVarsExpr(ex.Callee, bound, add)
		for _, a := range ex.Args {
			collectFreeVarsExpr(a, bound, add)
		}
	case *ast.TableLit:
		for _, f := range ex.Fields {
			if f.Key != nil {
				collectFreeVarsExpr(f.Key, bound, add)
			}
			collectFreeVarsExpr(f.Value, bound, add)
		}
	case *ast.FunctionLit:
		innerBound := map[string]bool{}
		for k := range bound {
			innerBound[k] = true
		}
		for _, p := range ex.Params {
			innerBound[p] = true
		}
		collectBoundNames(ex.Body, innerBound)
		collectFreeVars(ex.Body, innerBound, func(name string) {
			if !bound[name] {
				add(name)
			}
		})
	}
}
