// Command luna is the CLI front end for the luna scripting VM: run and
// compile source files, disassemble compiled bytecode, or drop into an
// interactive REPL (adapted from the teacher's cmd/smog/main.go, recast as
// a github.com/urfave/cli/v2 application).
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kristofer/luna/pkg/bytecode"
	"github.com/kristofer/luna/pkg/compiler"
	"github.com/kristofer/luna/pkg/natives"
	"github.com/kristofer/luna/pkg/parser"
	"github.com/kristofer/luna/pkg/value"
	"github.com/kristofer/luna/pkg/vm"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "luna",
		Usage:   "a small table-centric scripting language",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "enable zap debug tracing of the dispatch loop"},
			&cli.BoolFlag{Name: "trace", Usage: "step through execution with the interactive debugger"},
			&cli.IntFlag{Name: "stack-size", Usage: "initial operand-stack capacity", Value: 256},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return runREPL(c)
			}
			return runFile(c, c.Args().First())
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run a luna source file",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return cli.Exit("run: no file specified", 1)
					}
					return runFile(c, c.Args().First())
				},
			},
			{
				Name:  "repl",
				Usage: "start an interactive REPL",
				Action: func(c *cli.Context) error {
					return runREPL(c)
				},
			},
			{
				Name:      "compile",
				Usage:     "compile a source file and print its disassembled bytecode",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return cli.Exit("compile: no file specified", 1)
					}
					return compileFile(c.Args().First())
				},
			},
			{
				Name:      "disassemble",
				Aliases:   []string{"disasm"},
				Usage:     "parse, compile and disassemble a source file",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return cli.Exit("disassemble: no file specified", 1)
					}
					return compileFile(c.Args().First())
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func compileSource(source string) (*value.DataPool, bytecode.Bootstrap, error) {
	p := parser.New(source)
	program, err := p.Parse()
	if err != nil {
		return nil, nil, fmt.Errorf("parse error: %w", err)
	}
	pool := value.NewDataPool()
	boot, err := compiler.New(pool).CompileProgram(program)
	if err != nil {
		return nil, nil, fmt.Errorf("compile error: %w", err)
	}
	return pool, boot, nil
}

// runFile reads, parses, compiles and executes a source file. The compiler
// and the VM share one pool so compiled string literals and native-produced
// strings intern identically (see pkg/natives.Register's doc comment).
func runFile(c *cli.Context, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error reading file: %v", err), 1)
	}
	p := parser.New(string(data))
	program, err := p.Parse()
	if err != nil {
		return cli.Exit(fmt.Sprintf("parse error: %v", err), 1)
	}

	pool := value.NewDataPool()
	machine := newVMWithPool(c, pool)

	boot, err := compiler.New(pool).CompileProgram(program)
	if err != nil {
		return cli.Exit(fmt.Sprintf("compile error: %v", err), 1)
	}
	if err := machine.Run(boot); err != nil {
		return cli.Exit(fmt.Sprintf("runtime error: %v", err), 1)
	}
	return nil
}

func newVMWithPool(c *cli.Context, pool *value.DataPool) *vm.VM {
	opts := []vm.Option{}
	if c.Bool("debug") {
		logger, _ := zap.NewDevelopment()
		opts = append(opts, vm.WithLogger(logger))
	}
	if c.Bool("trace") {
		d := vm.NewDebugger()
		d.Enable()
		d.SetStepMode(true)
		opts = append(opts, vm.WithDebugger(d))
	}
	machine := vm.New(pool, c.Int("stack-size"), opts...)
	natives.Register(machine.Globals(), pool)
	return machine
}

func compileFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error reading file: %v", err), 1)
	}
	_, boot, err := compileSource(string(data))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Println(bytecode.Disassemble(boot))
	return nil
}

func runREPL(c *cli.Context) error {
	fmt.Printf("luna %s\n", version)
	fmt.Println("Type an expression or statement, blank line to execute, ':quit' to exit.")

	pool := value.NewDataPool()
	machine := newVMWithPool(c, pool)
	com := compiler.New(pool)

	scanner := bufio.NewScanner(os.Stdin)
	var buf strings.Builder
	for {
		if buf.Len() == 0 {
			fmt.Print("luna> ")
		} else {
			fmt.Print("....> ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if buf.Len() == 0 {
			switch strings.TrimSpace(line) {
			case ":quit", ":exit":
				return nil
			case "":
				continue
			}
		}
		buf.WriteString(line)
		buf.WriteString("\n")

		input := strings.TrimSpace(buf.String())
		if line != "" {
			continue
		}
		buf.Reset()
		if input == "" {
			continue
		}

		p := parser.New(input)
		program, err := p.Parse()
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
			continue
		}
		boot, err := com.CompileProgram(program)
		if err != nil {
			fmt.Fprintf(os.Stderr, "compile error: %v\n", err)
			continue
		}
		if err := machine.Run(boot); err != nil {
			fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
		}
	}
	return scanner.Err()
}
