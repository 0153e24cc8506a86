package main

import (
	"fmt"
	"os"
	"strings"

	"rill/internal/bytecode"
	"rill/internal/compiler"
	"rill/internal/interp"
	"rill/internal/optimizer"
	"rill/internal/parser"
	"rill/internal/repl"
	"rill/internal/vm"
)

const usage = `rill - the rill execution core

Usage:
  rill                      start the interactive repl
  rill run <file>           compile and run on the bytecode vm
  rill eval <file>          run on the tree-walking interpreter
  rill build <file> [-o f]  compile to a .rlbc bytecode file
  rill disasm <file>        disassemble a source or .rlbc file

Flags for run/build/disasm:
  --no-opt                  disable all optimizer passes
  --no-fold                 disable constant folding
  --no-dce                  disable dead-code elimination
  --no-peephole             disable peephole rewrites
`

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		if err := repl.New().Run(); err != nil {
			fail(err)
		}
		return
	}

	switch args[0] {
	case "run":
		cmdRun(args[1:])
	case "eval":
		cmdEval(args[1:])
	case "build":
		cmdBuild(args[1:])
	case "disasm":
		cmdDisasm(args[1:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		os.Exit(2)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// parseOpts splits pass flags from positional arguments.
func parseOpts(args []string) ([]string, optimizer.Options) {
	opts := optimizer.All()
	var rest []string
	for _, a := range args {
		switch a {
		case "--no-opt":
			opts = optimizer.None()
		case "--no-fold":
			opts.Fold = false
		case "--no-dce":
			opts.DCE = false
		case "--no-peephole":
			opts.Peephole = false
		default:
			rest = append(rest, a)
		}
	}
	return rest, opts
}

// loadChunk produces a runnable chunk from either a source file or a
// compiled .rlbc file.
func loadChunk(path string, opts optimizer.Options) (*bytecode.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".rlbc") {
		return bytecode.Deserialize(data)
	}
	stmts, err := parser.ParseSource(string(data))
	if err != nil {
		return nil, err
	}
	chunk, err := compiler.Compile(stmts, path)
	if err != nil {
		return nil, err
	}
	return optimizer.Optimize(chunk, opts)
}

func cmdRun(args []string) {
	rest, opts := parseOpts(args)
	if len(rest) != 1 {
		fail(fmt.Errorf("usage: rill run <file>"))
	}
	chunk, err := loadChunk(rest[0], opts)
	if err != nil {
		fail(err)
	}
	if _, err := vm.New(chunk).Run(); err != nil {
		fail(err)
	}
}

func cmdEval(args []string) {
	if len(args) != 1 {
		fail(fmt.Errorf("usage: rill eval <file>"))
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fail(err)
	}
	stmts, err := parser.ParseSource(string(data))
	if err != nil {
		fail(err)
	}
	in := interp.New()
	in.SetFileName(args[0])
	if _, err := in.Exec(stmts); err != nil {
		fail(err)
	}
}

func cmdBuild(args []string) {
	rest, opts := parseOpts(args)
	var in, out string
	for i := 0; i < len(rest); i++ {
		if rest[i] == "-o" && i+1 < len(rest) {
			out = rest[i+1]
			i++
			continue
		}
		in = rest[i]
	}
	if in == "" {
		fail(fmt.Errorf("usage: rill build <file> [-o out.rlbc]"))
	}
	if out == "" {
		out = strings.TrimSuffix(in, ".rill") + ".rlbc"
	}
	chunk, err := loadChunk(in, opts)
	if err != nil {
		fail(err)
	}
	data, err := bytecode.Serialize(chunk)
	if err != nil {
		fail(err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		fail(err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
}

func cmdDisasm(args []string) {
	rest, opts := parseOpts(args)
	if len(rest) != 1 {
		fail(fmt.Errorf("usage: rill disasm <file>"))
	}
	chunk, err := loadChunk(rest[0], opts)
	if err != nil {
		fail(err)
	}
	fmt.Print(bytecode.Disassemble(chunk))
}
