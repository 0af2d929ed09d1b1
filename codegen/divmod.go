package codegen

import (
	"github.com/jakubdabek/gembiler/asmgen"
	"github.com/jakubdabek/gembiler/ir"
	"github.com/jakubdabek/gembiler/symtab"
)

// translateDivMod computes floor division or modulo of a by b, following
// the law a = q*b + r with r the same sign as b (or zero), 0 <= |r| <
// |b|. The zero-divisor invariant leaves the accumulator at 0 without
// touching the dividend.
//
// The magnitude is found by long division via doubling: align a scaled
// copy of |b| up to the largest power-of-two multiple not exceeding
// |a|, then walk back down extracting one quotient bit per halving.
// The truncating quotient/remainder that produces is then corrected to
// floor semantics by sign: unchanged when a and b share a sign, or
// decremented/adjusted by one divisor's worth when they differ and the
// remainder is nonzero.
//
// Scratch usage: T1=origA, T2=origB, T3=remain, T4=scaledDivisor,
// T5=multiple, T6=result, T7=general temp.
func (g *generator) translateDivMod(a, b ir.Operand, wantQuotient bool) {
	const (
		origA         = symtab.ScratchT1
		origB         = symtab.ScratchT2
		remain        = symtab.ScratchT3
		scaledDivisor = symtab.ScratchT4
		multiple      = symtab.ScratchT5
		result        = symtab.ScratchT6
		tmp           = symtab.ScratchT7
	)

	lZeroDivisor := g.newLabel()
	lNegA, lAbsADone := g.newLabel(), g.newLabel()
	lNegB, lAbsBDone := g.newLabel(), g.newLabel()
	lAlign, lAlignDone := g.newLabel(), g.newLabel()
	lExtract, lSkip, lExtractDone := g.newLabel(), g.newLabel(), g.newLabel()
	lANeg := g.newLabel()
	lAPosBNeg, lSameSignPos, lSameSignNeg, lDiffSignNegA := g.newLabel(), g.newLabel(), g.newLabel(), g.newLabel()
	lDiffSignPos := g.newLabel()
	lDiffPosRemZero, lDiffNegRemZero := g.newLabel(), g.newLabel()
	lFinish, lEnd := g.newLabel(), g.newLabel()

	g.materialize(a)
	g.emit(asmgen.STORE, origA)
	g.materialize(b)
	g.emit(asmgen.STORE, origB)

	g.emit(asmgen.LOAD, origB)
	g.emitLabel(asmgen.JZERO, lZeroDivisor)

	// remain <- |origA|
	g.emit(asmgen.LOAD, origA)
	g.emitLabel(asmgen.JNEG, lNegA)
	g.emit(asmgen.STORE, remain)
	g.emitLabel(asmgen.JUMP, lAbsADone)
	g.defineLabel(lNegA)
	g.negateAcc(tmp)
	g.emit(asmgen.STORE, remain)
	g.defineLabel(lAbsADone)

	// scaledDivisor <- |origB|
	g.emit(asmgen.LOAD, origB)
	g.emitLabel(asmgen.JNEG, lNegB)
	g.emit(asmgen.STORE, scaledDivisor)
	g.emitLabel(asmgen.JUMP, lAbsBDone)
	g.defineLabel(lNegB)
	g.negateAcc(tmp)
	g.emit(asmgen.STORE, scaledDivisor)
	g.defineLabel(lAbsBDone)

	g.emit(asmgen.LOAD, symtab.ScratchOne)
	g.emit(asmgen.STORE, multiple)
	g.emit(asmgen.SUB, 0)
	g.emit(asmgen.STORE, result)

	// Align: double scaledDivisor (and multiple in lockstep) while
	// doing so once more would still not exceed remain.
	g.defineLabel(lAlign)
	g.emit(asmgen.LOAD, scaledDivisor)
	g.emit(asmgen.ADD, scaledDivisor)
	g.emit(asmgen.STORE, tmp)
	g.emit(asmgen.LOAD, remain)
	g.emit(asmgen.SUB, tmp)
	g.emitLabel(asmgen.JNEG, lAlignDone)
	g.emit(asmgen.LOAD, scaledDivisor)
	g.emit(asmgen.ADD, scaledDivisor)
	g.emit(asmgen.STORE, scaledDivisor)
	g.emit(asmgen.LOAD, multiple)
	g.emit(asmgen.ADD, multiple)
	g.emit(asmgen.STORE, multiple)
	g.emitLabel(asmgen.JUMP, lAlign)
	g.defineLabel(lAlignDone)

	// Extract one quotient bit per halving, largest first.
	g.defineLabel(lExtract)
	g.emit(asmgen.LOAD, remain)
	g.emit(asmgen.SUB, scaledDivisor)
	g.emit(asmgen.STORE, tmp)
	g.emitLabel(asmgen.JNEG, lSkip)
	g.emit(asmgen.LOAD, tmp)
	g.emit(asmgen.STORE, remain)
	g.emit(asmgen.LOAD, result)
	g.emit(asmgen.ADD, multiple)
	g.emit(asmgen.STORE, result)
	g.defineLabel(lSkip)
	g.emit(asmgen.LOAD, multiple)
	g.emit(asmgen.SUB, symtab.ScratchOne)
	g.emitLabel(asmgen.JZERO, lExtractDone)
	g.emit(asmgen.LOAD, scaledDivisor)
	g.emit(asmgen.SHIFT, symtab.ScratchNegOne)
	g.emit(asmgen.STORE, scaledDivisor)
	g.emit(asmgen.LOAD, multiple)
	g.emit(asmgen.SHIFT, symtab.ScratchNegOne)
	g.emit(asmgen.STORE, multiple)
	g.emitLabel(asmgen.JUMP, lExtract)
	g.defineLabel(lExtractDone)

	// result/remain now hold the truncating quotient/remainder
	// magnitudes. Correct to floor semantics by sign combination.
	g.emit(asmgen.LOAD, origA)
	g.emitLabel(asmgen.JNEG, lANeg)

	g.emit(asmgen.LOAD, origB)
	g.emitLabel(asmgen.JNEG, lAPosBNeg)
	g.emitLabel(asmgen.JUMP, lSameSignPos)

	g.defineLabel(lAPosBNeg)
	g.emitLabel(asmgen.JUMP, lDiffSignPos)

	g.defineLabel(lANeg)
	g.emit(asmgen.LOAD, origB)
	g.emitLabel(asmgen.JNEG, lSameSignNeg)
	g.emitLabel(asmgen.JUMP, lDiffSignNegA)

	// Same sign, dividend non-negative: result and remain are already
	// the floor quotient/remainder.
	g.defineLabel(lSameSignPos)
	g.emitLabel(asmgen.JUMP, lFinish)

	// Same sign, both negative: quotient stays positive, remainder
	// takes the (negative) dividend's sign.
	g.defineLabel(lSameSignNeg)
	g.emit(asmgen.LOAD, remain)
	g.negateAcc(tmp)
	g.emit(asmgen.STORE, remain)
	g.emitLabel(asmgen.JUMP, lFinish)

	// Different signs, dividend non-negative (so divisor negative).
	g.defineLabel(lDiffSignPos)
	g.emit(asmgen.LOAD, remain)
	g.emitLabel(asmgen.JZERO, lDiffPosRemZero)
	g.emit(asmgen.LOAD, result)
	g.emit(asmgen.ADD, symtab.ScratchOne)
	g.negateAcc(tmp)
	g.emit(asmgen.STORE, result)
	g.emit(asmgen.LOAD, remain)
	g.emit(asmgen.ADD, origB)
	g.emit(asmgen.STORE, remain)
	g.emitLabel(asmgen.JUMP, lFinish)
	g.defineLabel(lDiffPosRemZero)
	g.emit(asmgen.LOAD, result)
	g.negateAcc(tmp)
	g.emit(asmgen.STORE, result)
	g.emitLabel(asmgen.JUMP, lFinish)

	// Different signs, dividend negative (so divisor non-negative).
	g.defineLabel(lDiffSignNegA)
	g.emit(asmgen.LOAD, remain)
	g.emitLabel(asmgen.JZERO, lDiffNegRemZero)
	g.emit(asmgen.LOAD, result)
	g.emit(asmgen.ADD, symtab.ScratchOne)
	g.negateAcc(tmp)
	g.emit(asmgen.STORE, result)
	g.emit(asmgen.LOAD, origB)
	g.emit(asmgen.SUB, remain)
	g.emit(asmgen.STORE, remain)
	g.emitLabel(asmgen.JUMP, lFinish)
	g.defineLabel(lDiffNegRemZero)
	g.emit(asmgen.LOAD, result)
	g.negateAcc(tmp)
	g.emit(asmgen.STORE, result)
	g.emitLabel(asmgen.JUMP, lFinish)

	g.defineLabel(lZeroDivisor)
	g.emit(asmgen.SUB, 0)
	g.emitLabel(asmgen.JUMP, lEnd)

	g.defineLabel(lFinish)
	if wantQuotient {
		g.emit(asmgen.LOAD, result)
	} else {
		g.emit(asmgen.LOAD, remain)
	}

	g.defineLabel(lEnd)
}
