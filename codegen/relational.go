package codegen

import (
	"github.com/jakubdabek/gembiler/asmgen"
	"github.com/jakubdabek/gembiler/ir"
	"github.com/jakubdabek/gembiler/symtab"
)

// translateJumpIf lowers a relational test directly to a conditional
// jump plus a fallback unconditional jump, never materializing a
// boolean value: the accumulator machine has no flags register beyond
// the sign of whatever it last computed, so every comparison reduces
// to the sign of a subtraction. Eq and Neq test left-right for exactly
// zero and can skip the subtraction's sign for the other two cases;
// the four strict/non-strict orderings each need exactly one
// subtraction and one sign test, with the non-strict pair (Le, Ge)
// computed as the negation of the opposite strict pair so the same
// JNEG test serves both.
func (g *generator) translateJumpIf(op ir.RelOp, left, right ir.Operand, then, els ir.Label) {
	switch op {
	case ir.Eq:
		g.subtract(left, right)
		g.emitLabel(asmgen.JZERO, then)
		g.emitLabel(asmgen.JUMP, els)
	case ir.Neq:
		g.subtract(left, right)
		g.emitLabel(asmgen.JZERO, els)
		g.emitLabel(asmgen.JUMP, then)
	case ir.Lt:
		g.subtract(left, right)
		g.emitLabel(asmgen.JNEG, then)
		g.emitLabel(asmgen.JUMP, els)
	case ir.Ge:
		g.subtract(left, right)
		g.emitLabel(asmgen.JNEG, els)
		g.emitLabel(asmgen.JUMP, then)
	case ir.Le:
		// left <= right  <=>  right - left >= 0  <=>  not(right-left < 0)
		g.subtract(right, left)
		g.emitLabel(asmgen.JNEG, els)
		g.emitLabel(asmgen.JUMP, then)
	case ir.Gt:
		// left > right  <=>  right - left < 0
		g.subtract(right, left)
		g.emitLabel(asmgen.JNEG, then)
		g.emitLabel(asmgen.JUMP, els)
	}
}

// subtract leaves a-b in the accumulator.
func (g *generator) subtract(a, b ir.Operand) {
	g.materialize(b)
	g.emit(asmgen.STORE, symtab.ScratchT1)
	g.materialize(a)
	g.emit(asmgen.SUB, symtab.ScratchT1)
}
