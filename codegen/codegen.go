// Package codegen lowers a flat op list from the IR into accumulator-
// machine instructions. This is the dominant component of the compiler:
// the source language has no registers, no multiplication, no
// comparison-to-flag and no division, so every arithmetic and
// relational op expands to a template of several to several dozen
// instructions against a small, statically partitioned scratch pool
// (see symtab.ScratchOne..ScratchT7). Calling convention throughout is
// accumulator-passing: each template leaves its result in cell 0 unless
// documented otherwise.
package codegen

import (
	"fmt"

	"github.com/jakubdabek/gembiler/asmgen"
	"github.com/jakubdabek/gembiler/ir"
	"github.com/jakubdabek/gembiler/symtab"
)

type generator struct {
	syms    *symtab.Table
	out     []asmgen.Item
	nextLbl int
}

// newLabel mints a label for a template-internal loop (multiplication,
// division) that never existed in the IR. It continues the same integer
// space the builder used, picking up above every label already present
// in ops so the two numbering authorities can never collide.
func (g *generator) newLabel() ir.Label {
	l := ir.Label(g.nextLbl)
	g.nextLbl++
	return l
}

func (g *generator) emit(op asmgen.Op, addr uint64) {
	g.out = append(g.out, asmgen.InstrItem(asmgen.Addr(op, addr)))
}

func (g *generator) emitLabel(op asmgen.Op, l ir.Label) {
	g.out = append(g.out, asmgen.InstrItem(asmgen.ToLabel(op, l)))
}

func (g *generator) emitBare(op asmgen.Op) {
	g.out = append(g.out, asmgen.InstrItem(asmgen.Bare(op)))
}

func (g *generator) defineLabel(l ir.Label) {
	g.out = append(g.out, asmgen.LabelDefItem(l))
}

// Generate lowers ops into a pre-resolution instruction stream ready for
// asmgen.Resolve. syms must be the same table ir.Build populated —
// codegen never allocates a user-visible cell itself, only the fixed
// scratch pool's own addresses, which are compile-time constants.
func Generate(ops []ir.Op, syms *symtab.Table) ([]asmgen.Item, error) {
	g := &generator{syms: syms, nextLbl: maxLabel(ops) + 1}
	g.bootstrapScratchConstants()

	for _, op := range ops {
		if err := g.translate(op); err != nil {
			return nil, err
		}
	}

	return g.out, nil
}

// bootstrapScratchConstants materializes the two constant cells every
// other arithmetic template depends on. It cannot use the general
// constant-loading algorithm (that algorithm needs ScratchOne to exist
// already) so it builds both directly: the same single-bit case the
// general encoding collapses to for |k|==1.
func (g *generator) bootstrapScratchConstants() {
	g.emit(asmgen.SUB, 0)
	g.emitBare(asmgen.INC)
	g.emit(asmgen.STORE, symtab.ScratchOne)
	g.emit(asmgen.SUB, 0)
	g.emitBare(asmgen.DEC)
	g.emit(asmgen.STORE, symtab.ScratchNegOne)
}

func (g *generator) translate(op ir.Op) error {
	switch op.Kind {
	case ir.OpLoadConst:
		g.loadConstInAcc(op.Const)
		g.emit(asmgen.STORE, op.Dst)
	case ir.OpCopy:
		g.materialize(op.Src)
		g.emit(asmgen.STORE, op.Dst)
	case ir.OpLoadIndexed:
		g.loadArrayRef(op.Array)
		g.emit(asmgen.STORE, op.Dst)
	case ir.OpStoreIndexed:
		return g.storeIndexed(op.Array, op.Src)
	case ir.OpBinOp:
		g.translateBinOp(op.BinOp, op.A, op.B)
		g.emit(asmgen.STORE, op.Dst)
	case ir.OpRead:
		g.emitBare(asmgen.GET)
		g.emit(asmgen.STORE, op.Dst)
	case ir.OpWrite:
		g.materialize(op.Src)
		g.emitBare(asmgen.PUT)
	case ir.OpJumpIf:
		g.translateJumpIf(op.RelOp, op.Left, op.Right, op.LabelThen, op.LabelElse)
	case ir.OpJump:
		g.emitLabel(asmgen.JUMP, op.Target)
	case ir.OpLabel:
		g.defineLabel(op.Self)
	case ir.OpHalt:
		g.emitBare(asmgen.HALT)
	default:
		return fmt.Errorf("codegen: unhandled op kind %v", op.Kind)
	}
	return nil
}

// materialize loads a scalar Operand into the accumulator.
func (g *generator) materialize(o ir.Operand) {
	if o.Kind == ir.OperandConst {
		g.loadConstInAcc(o.Const)
		return
	}
	g.emit(asmgen.LOAD, o.Cell)
}

// loadArrayRef loads an array element into the accumulator: a direct
// LOAD for a literal index resolved at build time, or the offset-cell
// ADD + LOADI sequence for a variable index.
func (g *generator) loadArrayRef(ref ir.ArrayRef) {
	if ref.Const {
		g.emit(asmgen.LOAD, ref.Cell)
		return
	}
	g.materialize(ref.Index)
	g.emit(asmgen.ADD, ref.OffsetCell)
	g.emit(asmgen.STORE, symtab.ScratchT1)
	g.emit(asmgen.LOADI, symtab.ScratchT1)
}

// storeIndexed stores src into an array element, direct or indirect.
func (g *generator) storeIndexed(ref ir.ArrayRef, src ir.Operand) error {
	if ref.Const {
		g.materialize(src)
		g.emit(asmgen.STORE, ref.Cell)
		return nil
	}
	// Compute the address first so that materializing src (which may
	// itself clobber the accumulator) happens after the address is
	// safely parked in a scratch cell.
	g.materialize(ref.Index)
	g.emit(asmgen.ADD, ref.OffsetCell)
	g.emit(asmgen.STORE, symtab.ScratchT1)
	g.materialize(src)
	g.emit(asmgen.STOREI, symtab.ScratchT1)
	return nil
}

// loadConstInAcc materializes k directly into the accumulator via
// binary expansion: double through ScratchOne via SHIFT and INC per set
// bit, scanning from the most significant bit down. Negative constants
// fold the sign into the per-bit step (DEC instead of INC) rather than
// building |k| and negating afterward — the two are equivalent, and
// folding avoids an extra SUB pass. The accumulator is cleared with SUB 0
// first, which on its own already yields zero.
func (g *generator) loadConstInAcc(k int64) {
	g.emit(asmgen.SUB, 0)
	if k == 0 {
		return
	}

	abs := k
	grow := asmgen.INC
	if k < 0 {
		abs = -k
		grow = asmgen.DEC
	}
	n := uint64(abs)

	highBit := highestSetBit(n)
	for bit := highBit; bit >= 0; bit-- {
		if bit < highBit {
			g.emit(asmgen.SHIFT, symtab.ScratchOne)
		}
		if (n>>uint(bit))&1 == 1 {
			g.emitBare(grow)
		}
	}
}

func highestSetBit(n uint64) int {
	bit := -1
	for n != 0 {
		bit++
		n >>= 1
	}
	return bit
}

// maxLabel scans ops for the highest label the builder minted, so the
// generator's own template-internal labels can start strictly above it.
func maxLabel(ops []ir.Op) int {
	max := -1
	upd := func(l ir.Label) {
		if int(l) > max {
			max = int(l)
		}
	}
	for _, op := range ops {
		switch op.Kind {
		case ir.OpJumpIf:
			upd(op.LabelThen)
			upd(op.LabelElse)
		case ir.OpJump:
			upd(op.Target)
		case ir.OpLabel:
			upd(op.Self)
		}
	}
	return max
}
