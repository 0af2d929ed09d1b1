// Command run executes a program on the accumulator machine, reading
// either already-assembled text or, for a ".imp" source file,
// compiling it first. Standard input and output are wired directly to
// the machine's GET/PUT stream.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jakubdabek/gembiler"
	"github.com/jakubdabek/gembiler/asmgen"
	"github.com/jakubdabek/gembiler/vm"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: run <program>")
		os.Exit(2)
	}
	path := os.Args[1]

	contents, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %q: %v\n", path, err)
		os.Exit(1)
	}

	instrs, err := load(path, string(contents))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	m := vm.NewMachine(instrs, os.Stdin, os.Stdout)
	if err := m.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}

// load returns runnable instructions for path: source compiled then
// assembled for a ".imp" file, or the contents assembled directly
// otherwise.
func load(path, contents string) ([]vm.Instruction, error) {
	if strings.HasSuffix(path, ".imp") {
		_, instrs, diags, err := gembiler.Compile(contents)
		if len(diags) > 0 {
			var b strings.Builder
			for _, d := range diags {
				fmt.Fprintln(&b, d.String())
			}
			return nil, fmt.Errorf("compilation failed:\n%s", b.String())
		}
		if err != nil {
			return nil, fmt.Errorf("compilation failed: %w", err)
		}
		return instrs, nil
	}

	instrs, err := asmgen.Assemble(contents)
	if err != nil {
		return nil, fmt.Errorf("assembly failed: %w", err)
	}
	return instrs, nil
}
