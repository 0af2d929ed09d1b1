package codegen

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/jakubdabek/gembiler/asmgen"
	"github.com/jakubdabek/gembiler/ir"
	"github.com/jakubdabek/gembiler/symtab"
	"github.com/jakubdabek/gembiler/vm"
)

// runOps lowers ops against a fresh table, resolves and runs the result,
// returning everything written via OpWrite as parsed integers.
func runOps(t *testing.T, ops []ir.Op) []int64 {
	t.Helper()
	syms := symtab.New()

	items, err := Generate(ops, syms)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	resolved, err := asmgen.Resolve(items)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	instrs := asmgen.ToVM(resolved)

	var out bytes.Buffer
	m := vm.NewMachine(instrs, strings.NewReader(""), &out)
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v\n%s", err, asmgen.Emit(resolved))
	}

	var got []int64
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			t.Fatalf("non-integer output %q: %v", line, err)
		}
		got = append(got, n)
	}
	return got
}

func writeConst(k int64) []ir.Op {
	return []ir.Op{ir.Write(ir.ConstOperand(k)), ir.Halt()}
}

func TestLoadConstCoversSignAndMagnitude(t *testing.T) {
	for _, k := range []int64{0, 1, -1, 2, -2, 255, -255, 1 << 20, -(1 << 20)} {
		got := runOps(t, writeConst(k))
		if len(got) != 1 || got[0] != k {
			t.Errorf("constant %d: got %v", k, got)
		}
	}
}

func TestBinOpAddSubMulDivMod(t *testing.T) {
	cell := uint64(symtab.ScratchBase)
	cases := []struct {
		op   ir.BinOp
		a, b int64
		want int64
	}{
		{ir.Add, 3, 4, 7},
		{ir.Sub, 3, 4, -1},
		{ir.Mul, -6, 7, -42},
		{ir.Mul, 0, 99, 0},
		{ir.Div, -7, 2, -4},
		{ir.Mod, -7, 2, 1},
	}
	for _, c := range cases {
		ops := []ir.Op{
			ir.BinOpOp(cell, c.op, ir.ConstOperand(c.a), ir.ConstOperand(c.b)),
			ir.Write(ir.CellOperand(cell)),
			ir.Halt(),
		}
		got := runOps(t, ops)
		if len(got) != 1 || got[0] != c.want {
			t.Errorf("%v(%d,%d): got %v, want %d", c.op, c.a, c.b, got, c.want)
		}
	}
}

func TestJumpIfRelationalLowerings(t *testing.T) {
	// for each RelOp, (left,right) pairs that should take the Then branch.
	cases := []struct {
		op          ir.RelOp
		left, right int64
	}{
		{ir.Eq, 3, 3},
		{ir.Neq, 3, 4},
		{ir.Lt, 2, 3},
		{ir.Le, 3, 3},
		{ir.Gt, 4, 3},
		{ir.Ge, 3, 3},
	}
	for _, c := range cases {
		lThen, lElse, lEnd := ir.Label(0), ir.Label(1), ir.Label(2)
		ops := []ir.Op{
			ir.JumpIf(c.op, ir.ConstOperand(c.left), ir.ConstOperand(c.right), lThen, lElse),
			ir.LabelOp(lElse),
			ir.Write(ir.ConstOperand(0)), // else branch
			ir.Jump(lEnd),
			ir.LabelOp(lThen),
			ir.Write(ir.ConstOperand(1)), // then branch
			ir.LabelOp(lEnd),
			ir.Halt(),
		}
		got := runOps(t, ops)
		if len(got) != 1 || got[0] != 1 {
			t.Errorf("%v(%d,%d) should take the Then branch, got %v", c.op, c.left, c.right, got)
		}
	}
}

func TestJumpIfFalseTakesElseBranch(t *testing.T) {
	lThen, lElse, lEnd := ir.Label(0), ir.Label(1), ir.Label(2)
	ops := []ir.Op{
		ir.JumpIf(ir.Eq, ir.ConstOperand(1), ir.ConstOperand(2), lThen, lElse),
		ir.LabelOp(lElse),
		ir.Write(ir.ConstOperand(0)),
		ir.Jump(lEnd),
		ir.LabelOp(lThen),
		ir.Write(ir.ConstOperand(1)),
		ir.LabelOp(lEnd),
		ir.Halt(),
	}
	got := runOps(t, ops)
	if len(got) != 1 || got[0] != 0 {
		t.Errorf("Eq(1,2) should take the Else branch, got %v", got)
	}
}

func TestZeroDivisorInvariant(t *testing.T) {
	cell := uint64(symtab.ScratchBase)
	for _, op := range []ir.BinOp{ir.Div, ir.Mod} {
		ops := []ir.Op{
			ir.BinOpOp(cell, op, ir.ConstOperand(7), ir.ConstOperand(0)),
			ir.Write(ir.CellOperand(cell)),
			ir.Halt(),
		}
		got := runOps(t, ops)
		if len(got) != 1 || got[0] != 0 {
			t.Errorf("%v by zero: got %v, want [0]", op, got)
		}
	}
}
