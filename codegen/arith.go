package codegen

import (
	"github.com/jakubdabek/gembiler/asmgen"
	"github.com/jakubdabek/gembiler/ir"
	"github.com/jakubdabek/gembiler/symtab"
)

func (g *generator) translateBinOp(op ir.BinOp, a, b ir.Operand) {
	switch op {
	case ir.Add:
		g.simpleBinOp(a, b, asmgen.ADD)
	case ir.Sub:
		g.simpleBinOp(a, b, asmgen.SUB)
	case ir.Mul:
		g.translateMultiplication(a, b)
	case ir.Div:
		g.translateDivMod(a, b, true)
	case ir.Mod:
		g.translateDivMod(a, b, false)
	}
}

// simpleBinOp computes a op b by materializing b first into a scratch
// cell, then materializing a into the accumulator and applying opcode
// against that scratch cell — right operand first so subtraction comes
// out a-b rather than b-a, with addition riding along on the same
// template since its operands commute.
func (g *generator) simpleBinOp(a, b ir.Operand, opcode asmgen.Op) {
	g.materialize(b)
	g.emit(asmgen.STORE, symtab.ScratchT1)
	g.materialize(a)
	g.emit(opcode, symtab.ScratchT1)
}

// negateAcc negates whatever the accumulator currently holds, using the
// two-subtraction trick: storing the value then subtracting it from
// itself twice (acc-acc=0, 0-acc=-acc) needs the value parked somewhere
// stable first since SUB reads memory, not the accumulator's own prior
// value.
func (g *generator) negateAcc(tmp uint64) {
	g.emit(asmgen.STORE, tmp)
	g.emit(asmgen.SUB, tmp)
	g.emit(asmgen.SUB, tmp)
}

// translateMultiplication computes a*b by the Russian peasant method:
// while the (sign-normalized) right operand is nonzero, add the left
// operand into the result whenever the right operand is odd, then
// double the left operand and halve the right operand. The right operand
// is made non-negative up front (when it is negative, both operands are
// negated, which leaves the product unchanged) so the SHIFT-based halving
// (floor semantics) never has to cross zero; the left operand keeps
// whatever sign it then has.
//
// Scratch usage: T1 = left, T2 = right, T3 = halving scratch, T4 =
// running result.
func (g *generator) translateMultiplication(a, b ir.Operand) {
	const left, right, halveTmp, result = symtab.ScratchT1, symtab.ScratchT2, symtab.ScratchT3, symtab.ScratchT4

	lZero, lStart, lMain, lStep, lEnd, lRealEnd := g.newLabel(), g.newLabel(), g.newLabel(), g.newLabel(), g.newLabel(), g.newLabel()

	g.materialize(a)
	g.emit(asmgen.STORE, left)
	g.materialize(b)
	g.emit(asmgen.STORE, right)

	// Either operand zero: short-circuit to a zero result.
	g.emit(asmgen.LOAD, left)
	g.emitLabel(asmgen.JZERO, lZero)
	g.emit(asmgen.LOAD, right)
	g.emitLabel(asmgen.JZERO, lZero)
	g.emitLabel(asmgen.JUMP, lStart)

	g.defineLabel(lZero)
	g.emit(asmgen.SUB, 0)
	g.emitLabel(asmgen.JUMP, lRealEnd)

	g.defineLabel(lStart)
	// Normalize: if right is negative, negate both operands so the
	// halving loop only ever sees a non-negative right operand.
	g.emit(asmgen.LOAD, right)
	lBothPos := g.newLabel()
	g.emitLabel(asmgen.JPOS, lBothPos)
	g.negateAcc(right)
	g.emit(asmgen.STORE, right)
	g.emit(asmgen.LOAD, left)
	g.negateAcc(left)
	g.emit(asmgen.STORE, left)
	g.defineLabel(lBothPos)

	g.emit(asmgen.SUB, 0)
	g.emit(asmgen.STORE, result)

	g.defineLabel(lMain)
	g.emit(asmgen.LOAD, right)
	g.emit(asmgen.STORE, halveTmp)
	g.emit(asmgen.SHIFT, symtab.ScratchNegOne)
	g.emit(asmgen.SHIFT, symtab.ScratchOne)
	g.emit(asmgen.SUB, halveTmp)
	// acc == 0 exactly when right is even (halving then doubling
	// reproduces its pre-halved value); nonzero means the low bit was 1.
	g.emitLabel(asmgen.JZERO, lStep)

	g.emit(asmgen.LOAD, left)
	g.emit(asmgen.ADD, result)
	g.emit(asmgen.STORE, result)

	g.defineLabel(lStep)
	g.emit(asmgen.LOAD, right)
	g.emit(asmgen.SHIFT, symtab.ScratchNegOne)
	g.emitLabel(asmgen.JZERO, lEnd)

	g.emit(asmgen.STORE, right)
	g.emit(asmgen.LOAD, left)
	g.emit(asmgen.SHIFT, symtab.ScratchOne)
	g.emit(asmgen.STORE, left)
	g.emitLabel(asmgen.JUMP, lMain)

	g.defineLabel(lEnd)
	g.emit(asmgen.LOAD, result)

	g.defineLabel(lRealEnd)
}
