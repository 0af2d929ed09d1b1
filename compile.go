// Package gembiler wires the full pipeline from source text to a runnable
// accumulator-machine program: lex, parse, verify, lower to IR, generate
// code, resolve labels, and emit the textual assembler form.
package gembiler

import (
	"fmt"
	"os"

	"github.com/jakubdabek/gembiler/asmgen"
	"github.com/jakubdabek/gembiler/codegen"
	"github.com/jakubdabek/gembiler/ir"
	"github.com/jakubdabek/gembiler/lex"
	"github.com/jakubdabek/gembiler/parse"
	"github.com/jakubdabek/gembiler/verifier"
	"github.com/jakubdabek/gembiler/vm"
)

// Compile runs src through every stage of the pipeline. If the verifier
// finds any diagnostics, compilation stops there and diags is non-empty;
// asmText/instrs are only meaningful when diags is empty and err is nil.
func Compile(src string) (asmText string, instrs []vm.Instruction, diags []verifier.Diagnostic, err error) {
	tokens, err := lex.Lex(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lex error:", err)
		return "", nil, nil, err
	}

	prog, err := parse.Parse(tokens, src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse error:", err)
		return "", nil, nil, err
	}

	if diags = verifier.Verify(prog); len(diags) > 0 {
		return "", nil, diags, nil
	}

	ops, syms, err := ir.Build(prog)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ir error:", err)
		return "", nil, nil, err
	}

	items, err := codegen.Generate(ops, syms)
	if err != nil {
		fmt.Fprintln(os.Stderr, "codegen error:", err)
		return "", nil, nil, err
	}

	resolved, err := asmgen.Resolve(items)
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolve error:", err)
		return "", nil, nil, err
	}

	asmText = asmgen.Emit(resolved)
	instrs = asmgen.ToVM(resolved)
	return asmText, instrs, nil, nil
}
