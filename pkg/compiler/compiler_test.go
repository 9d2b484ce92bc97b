package compiler

import (
	"testing"

	"github.com/kristofer/luna/pkg/ast"
	"github.com/kristofer/luna/pkg/bytecode"
	"github.com/kristofer/luna/pkg/parser"
	"github.com/kristofer/luna/pkg/value"
)

func compile(t *testing.T, source string) bytecode.Bootstrap {
	t.Helper()
	p := parser.New(source)
	program, err := p.Parse()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	boot, err := New(value.NewDataPool()).CompileProgram(program)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	return boot
}

// TestCompileProgramBracketsWithGlobalTable checks every compiled chunk
// opens and closes the persistent global scope exactly once.
func TestCompileProgramBracketsWithGlobalTable(t *testing.T) {
	boot := compile(t, "x = 1")
	if boot[0].Op != bytecode.OpAddGlobalTable {
		t.Fatalf("expected first instruction to be AddGlobalTable, got %v", boot[0].Op)
	}
	if boot[len(boot)-1].Op != bytecode.OpDelGlobalTable {
		t.Fatalf("expected last instruction to be DelGlobalTable, got %v", boot[len(boot)-1].Op)
	}
}

// TestCompileSimpleAssignmentShape verifies the exact instruction sequence
// for `x = 1`: a single-value RHS run, then the identifier target's
// (table, counter)/(key, counter) pair, then Assign.
func TestCompileSimpleAssignmentShape(t *testing.T) {
	boot := compile(t, "x = 1")

	ops := make([]bytecode.Opcode, len(boot))
	for i, ins := range boot {
		ops[i] = ins.Op
	}
	want := []bytecode.Opcode{
		bytecode.OpAddGlobalTable,
		bytecode.OpPush,            // 1 (value)
		bytecode.OpPush,            // counter{0,1}
		bytecode.OpGetLocalTable,   // target table
		bytecode.OpPush,            // key "x"
		bytecode.OpPush,            // counter{0,1}
		bytecode.OpAssign,
		bytecode.OpCleanStack,
		bytecode.OpDelGlobalTable,
	}
	if len(ops) != len(want) {
		t.Fatalf("expected %d instructions, got %d: %v", len(want), len(ops), ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("instruction %d: expected %v, got %v", i, want[i], ops[i])
		}
	}
}

// TestCompileTableLiteralReusesScopeOpcodes checks a table constructor
// compiles via AddLocalTable/GetLocalTable/Assign/DelLocalTable rather than
// a dedicated table-construction opcode, since the instruction set has none.
func TestCompileTableLiteralReusesScopeOpcodes(t *testing.T) {
	boot := compile(t, "t = {1}")

	var sawAdd, sawDel, sawAssign bool
	for _, ins := range boot {
		switch ins.Op {
		case bytecode.OpAddLocalTable:
			sawAdd = true
		case bytecode.OpDelLocalTable:
			sawDel = true
		case bytecode.OpAssign:
			sawAssign = true
		}
	}
	if !sawAdd || !sawDel {
		t.Fatalf("expected table literal to open and close a transient local table (add=%v del=%v)", sawAdd, sawDel)
	}
	if !sawAssign {
		t.Fatal("expected table literal to populate its field via Assign")
	}
}

// TestCompileFunctionLiteralEmitsArgTableCleanup checks the
// GenerateArgTable+CleanStack pairing every compiled function body must
// carry, since GenerateArgTable never frees its own input run.
func TestCompileFunctionLiteralEmitsArgTableCleanup(t *testing.T) {
	p := parser.New(`f = function(a)
  return a
end`)
	program, err := p.Parse()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	com := New(value.NewDataPool())
	boot, err := com.CompileProgram(program)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	var fn *bytecode.Function
	for _, ins := range boot {
		if ins.Op == bytecode.OpGenerateClosure {
			fn = ins.Param.Value.(*bytecode.Function)
		}
	}
	if fn == nil {
		t.Fatal("expected a GenerateClosure instruction")
	}
	if fn.Instructions[0].Op != bytecode.OpAddLocalTable {
		t.Fatalf("expected function body to open a local table first, got %v", fn.Instructions[0].Op)
	}
	if fn.Instructions[1].Op != bytecode.OpGenerateArgTable {
		t.Fatalf("expected GenerateArgTable second, got %v", fn.Instructions[1].Op)
	}
	if fn.Instructions[2].Op != bytecode.OpCleanStack {
		t.Fatalf("expected CleanStack immediately after GenerateArgTable, got %v", fn.Instructions[2].Op)
	}
}

// TestCompileFunctionLiteralCollectsUpvalues checks a closure's free
// variable (one it neither declares as a param nor assigns) ends up in its
// compiled Function.Upvalues.
func TestCompileFunctionLiteralCollectsUpvalues(t *testing.T) {
	p := parser.New(`n = 1
f = function()
  result = n
end`)
	program, err := p.Parse()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	com := New(value.NewDataPool())
	boot, err := com.CompileProgram(program)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	var fn *bytecode.Function
	for _, ins := range boot {
		if ins.Op == bytecode.OpGenerateClosure {
			fn = ins.Param.Value.(*bytecode.Function)
		}
	}
	if fn == nil {
		t.Fatal("expected a GenerateClosure instruction")
	}
	if len(fn.Upvalues) != 1 || fn.Upvalues[0] != "n" {
		t.Fatalf("expected Upvalues [n], got %v", fn.Upvalues)
	}
}

// TestCompileEndsFunctionWithImplicitReturn checks a function body with no
// explicit return statement still ends in Ret with an empty value run, so
// Call's caller always finds a counter to consume.
func TestCompileEndsFunctionWithImplicitReturn(t *testing.T) {
	p := parser.New(`f = function()
  x = 1
end`)
	program, err := p.Parse()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	com := New(value.NewDataPool())
	boot, err := com.CompileProgram(program)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	var fn *bytecode.Function
	for _, ins := range boot {
		if ins.Op == bytecode.OpGenerateClosure {
			fn = ins.Param.Value.(*bytecode.Function)
		}
	}
	if fn == nil {
		t.Fatal("expected a GenerateClosure instruction")
	}
	last := fn.Instructions[len(fn.Instructions)-1]
	if last.Op != bytecode.OpRet {
		t.Fatalf("expected the function body to end in Ret, got %v", last.Op)
	}
	secondLast := fn.Instructions[len(fn.Instructions)-2]
	if secondLast.Op != bytecode.OpPush || secondLast.Param.Kind != bytecode.ParamCounter || secondLast.Param.Total != 0 {
		t.Fatalf("expected an empty-run counter push before the implicit Ret, got %#v", secondLast)
	}
}

// TestCompileRejectsInvalidAssignmentTarget exercises compileAssignTarget's
// default error path: a CallExpr is a syntactically valid expression but
// never a valid assignment target. The AssignStmt is built by hand so the
// test does not depend on the parser.
func TestCompileRejectsInvalidAssignmentTarget(t *testing.T) {
	program := &ast.Program{
		Statements: []ast.Statement{
			&ast.AssignStmt{
				Targets: []ast.Expression{&ast.CallExpr{Callee: &ast.Identifier{Name: "f"}}},
				Values:  []ast.Expression{&ast.NumberLit{Value: 1}},
			},
		},
	}
	com := New(value.NewDataPool())
	_, err := com.CompileProgram(program)
	if err == nil {
		t.Fatal("expected an error compiling an assignment to a non-lvalue expression")
	}
}
