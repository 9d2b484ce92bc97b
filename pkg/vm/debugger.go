package vm

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// Debugger provides interactive, breakpoint-driven stepping over a VM's
// dispatch loop, adapted to luna's three-stack runtime (operand stack,
// scope stack, call stack) in place of the teacher's single flat stack and
// locals/globals maps.
type Debugger struct {
	vm          *VM
	breakpoints map[int]bool
	stepMode    bool
	enabled     bool
}

// NewDebugger creates a Debugger. Pass WithDebugger(d) to New to attach it;
// New wires the VM into d.vm at that point.
func NewDebugger() *Debugger {
	return &Debugger{breakpoints: make(map[int]bool)}
}

// Enable activates the debugger.
func (d *Debugger) Enable() { d.enabled = true }

// Disable deactivates the debugger.
func (d *Debugger) Disable() { d.enabled = false }

// SetStepMode toggles pause-after-every-instruction mode.
func (d *Debugger) SetStepMode(enabled bool) { d.stepMode = enabled }

// AddBreakpoint pauses execution before the instruction at ip runs.
func (d *Debugger) AddBreakpoint(ip int) { d.breakpoints[ip] = true }

// RemoveBreakpoint removes a previously added breakpoint.
func (d *Debugger) RemoveBreakpoint(ip int) { delete(d.breakpoints, ip) }

// ShouldPause reports whether the dispatch loop should pause before
// executing the instruction at ip.
func (d *Debugger) ShouldPause(ip int) bool {
	if d.stepMode {
		return true
	}
	return d.breakpoints[ip]
}

// ShowCurrentInstruction prints the instruction about to execute.
func (d *Debugger) ShowCurrentInstruction() {
	if d.vm.insCurrent >= d.vm.insCount {
		fmt.Println("no current instruction")
		return
	}
	inst := d.vm.insBase[d.vm.insCurrent]
	fmt.Printf("  %4d: %s\n", d.vm.insCurrent, inst.String())
}

// ShowStack dumps the operand stack, top first: counter slots as
// {current total}, value slots via go-spew.
func (d *Debugger) ShowStack() {
	fmt.Println("operand stack (top to bottom):")
	s := d.vm.stack
	if s.Size() == 0 {
		fmt.Println("  (empty)")
		return
	}
	for i := s.Size() - 1; i >= 0; i-- {
		sl := s.at(i)
		if sl.kind == slotCounter {
			fmt.Printf("  [%d] counter{current=%d total=%d}\n", i, sl.counter.current, sl.counter.total)
		} else {
			fmt.Printf("  [%d] %s\n", i, spew.Sdump(sl.value))
		}
	}
}

// ShowScopes dumps the scope-table stack.
func (d *Debugger) ShowScopes() {
	fmt.Println("scope stack (innermost first):")
	if d.vm.scopes.depth() == 0 {
		fmt.Println("  (empty)")
		return
	}
	for i := d.vm.scopes.depth() - 1; i >= 0; i-- {
		fmt.Printf("  [%d] %s\n", i, spew.Sdump(d.vm.scopes.tables[i]))
	}
}

// ShowGlobals dumps the global table.
func (d *Debugger) ShowGlobals() {
	fmt.Println("globals:")
	fmt.Println(spew.Sdump(d.vm.globals))
}

// ShowCallStack dumps activation records, innermost first.
func (d *Debugger) ShowCallStack() {
	fmt.Println("call stack (innermost first):")
	if d.vm.calls.depth() == 0 {
		fmt.Println("  (empty)")
		return
	}
	for i := d.vm.calls.depth() - 1; i >= 0; i-- {
		r := d.vm.calls.records[i]
		fmt.Printf("  %s  tables=%d  return-ip=%d\n", calleeName(r.callee), r.calleeTables, r.callerOffset)
	}
}

// InteractivePrompt blocks on stdin commands until the user asks execution
// to continue (or quit). Returns false if execution should abort.
func (d *Debugger) InteractivePrompt() (continueExecution bool) {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("\n=== paused ===")
	d.ShowCurrentInstruction()

	for {
		fmt.Print("debug> ")
		if !scanner.Scan() {
			return false
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		switch parts[0] {
		case "help", "h", "?":
			d.printHelp()
		case "continue", "c":
			d.SetStepMode(false)
			return true
		case "step", "s", "next", "n":
			d.SetStepMode(true)
			return true
		case "stack", "st":
			d.ShowStack()
		case "scopes", "sc":
			d.ShowScopes()
		case "globals", "g":
			d.ShowGlobals()
		case "callstack", "cs":
			d.ShowCallStack()
		case "instruction", "i":
			d.ShowCurrentInstruction()
		case "breakpoint", "b":
			if len(parts) < 2 {
				fmt.Println("usage: breakpoint <instruction>")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("invalid instruction number")
				continue
			}
			d.AddBreakpoint(ip)
			fmt.Printf("breakpoint set at %d\n", ip)
		case "delete", "d":
			if len(parts) < 2 {
				fmt.Println("usage: delete <instruction>")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("invalid instruction number")
				continue
			}
			d.RemoveBreakpoint(ip)
			fmt.Printf("breakpoint removed at %d\n", ip)
		case "list", "ls":
			d.listInstructions()
		case "quit", "q":
			return false
		default:
			fmt.Printf("unknown command: %s (try 'help')\n", parts[0])
		}
	}
}

func (d *Debugger) printHelp() {
	fmt.Println("commands:")
	fmt.Println("  help, h, ?           show this help")
	fmt.Println("  continue, c          resume execution")
	fmt.Println("  step, s, next, n     execute one instruction and pause again")
	fmt.Println("  stack, st            show the operand stack")
	fmt.Println("  scopes, sc           show the scope-table stack")
	fmt.Println("  globals, g           show the global table")
	fmt.Println("  callstack, cs        show the call stack")
	fmt.Println("  instruction, i       show the current instruction")
	fmt.Println("  breakpoint <n>, b    add a breakpoint at instruction n")
	fmt.Println("  delete <n>, d        remove a breakpoint")
	fmt.Println("  list, ls             list every instruction in the current frame")
	fmt.Println("  quit, q              abort execution")
}

func (d *Debugger) listInstructions() {
	for i, inst := range d.vm.insBase {
		marker := "  "
		if i == d.vm.insCurrent {
			marker = "->"
		} else if d.breakpoints[i] {
			marker = "* "
		}
		fmt.Printf("%s %4d: %s\n", marker, i, inst.String())
	}
}
