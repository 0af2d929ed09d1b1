// Command compile reads a source program and writes its resolved
// assembler text, guarding the output path with a file lock so two
// concurrent invocations targeting the same file never interleave
// partial writes.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gofrs/flock"

	"github.com/jakubdabek/gembiler"
	"github.com/jakubdabek/gembiler/vm"
)

func main() {
	disasm := flag.Bool("S", false, "write a disassembly listing instead of assembler text")
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: compile [-S] <in> <out>")
		os.Exit(2)
	}
	inPath, outPath := args[0], args[1]

	source, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read input file %q: %v\n", inPath, err)
		os.Exit(1)
	}

	asmText, instrs, diags, err := gembiler.Compile(string(source))
	if len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, d.String())
		}
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "compilation failed: %v\n", err)
		os.Exit(1)
	}

	out := asmText
	if *disasm {
		out = vm.Disassemble(instrs)
	}

	if err := writeLocked(outPath, out); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write output file %q: %v\n", outPath, err)
		os.Exit(1)
	}

	fmt.Printf("compiled %q -> %q (%d instructions)\n", inPath, outPath, len(instrs))
}

// writeLocked takes an exclusive lock on outPath+".lock" before writing,
// so concurrent compiles of the same output path serialize instead of
// racing each other's os.WriteFile calls.
func writeLocked(outPath, text string) error {
	fl := flock.New(outPath + ".lock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquiring output lock: %w", err)
	}
	defer fl.Unlock()

	return os.WriteFile(outPath, []byte(text), 0o644)
}
