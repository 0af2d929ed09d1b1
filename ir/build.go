package ir

import (
	"fmt"

	"github.com/jakubdabek/gembiler/ast"
	"github.com/jakubdabek/gembiler/symtab"
)

// builder holds the mutable state of one lowering pass: the symbol table
// being populated as declarations and FOR loops are encountered, the
// growing op list, and a monotonic label counter.
type builder struct {
	syms     *symtab.Table
	ops      []Op
	nextLbl  int
}

func (b *builder) newLabel() Label {
	l := Label(b.nextLbl)
	b.nextLbl++
	return l
}

func (b *builder) emit(op Op) { b.ops = append(b.ops, op) }

// Build lowers prog into a flat op list, allocating a fresh symbol table
// as it goes: declarations are entered first, then every structured
// construct is lowered to the label patterns in the design (IF/IF-ELSE,
// WHILE, DO-WHILE, frozen-bound FOR). The returned table is the one the
// code generator must use to resolve cell addresses, since it is the
// only pass that actually allocates them.
func Build(prog *ast.Program) ([]Op, *symtab.Table, error) {
	b := &builder{syms: symtab.New()}

	for _, decl := range prog.Declarations {
		if err := b.declare(decl); err != nil {
			return nil, nil, err
		}
	}

	b.emitArrayOffsetPrelude()

	if err := b.buildCommands(prog.Commands); err != nil {
		return nil, nil, err
	}
	b.emit(Halt())

	return b.ops, b.syms, nil
}

func (b *builder) declare(decl ast.Declaration) error {
	switch d := decl.(type) {
	case *ast.VarDecl:
		return b.syms.DeclareScalar(d.Ident)
	case *ast.ArrayDecl:
		return b.syms.DeclareArray(d.Ident, d.Lo, d.Hi)
	default:
		return fmt.Errorf("ir: unhandled declaration type %T", decl)
	}
}

// emitArrayOffsetPrelude initializes every array's offset cell to
// cellBase-indexLo once, at the very start of the program, exactly as the
// generator does for its other constant cells: the value never changes
// for the life of the program.
func (b *builder) emitArrayOffsetPrelude() {
	for _, sym := range b.syms.Arrays() {
		b.emit(LoadConst(sym.OffsetCell, sym.OffsetFromBase()))
	}
}

func (b *builder) buildCommands(cmds []ast.Command) error {
	for _, c := range cmds {
		if err := b.buildCommand(c); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) buildCommand(cmd ast.Command) error {
	switch c := cmd.(type) {
	case *ast.Assign:
		return b.buildAssign(c)
	case *ast.Read:
		return b.buildRead(c)
	case *ast.Write:
		return b.buildWrite(c)
	case *ast.If:
		return b.buildIf(c)
	case *ast.IfElse:
		return b.buildIfElse(c)
	case *ast.While:
		return b.buildWhile(c)
	case *ast.DoWhile:
		return b.buildDoWhile(c)
	case *ast.For:
		return b.buildFor(c)
	default:
		return fmt.Errorf("ir: unhandled command type %T", cmd)
	}
}

// toOperand evaluates a source Value down to a plain scalar Operand,
// emitting a LoadIndexed into a freshly minted cell when the value is an
// array element selected by a variable index (the only shape that cannot
// be named as a single existing cell).
func (b *builder) toOperand(v ast.Value) (Operand, error) {
	switch val := v.(type) {
	case *ast.NumValue:
		return ConstOperand(val.N), nil
	case *ast.IdentValue:
		return b.identOperand(val.Ident)
	default:
		return Operand{}, fmt.Errorf("ir: unhandled value type %T", v)
	}
}

func (b *builder) identOperand(id ast.Identifier) (Operand, error) {
	switch a := id.(type) {
	case *ast.VarAccess:
		cell, err := b.syms.AddrOf(a.Ident)
		if err != nil {
			return Operand{}, err
		}
		return CellOperand(cell), nil
	case *ast.ArrConstAccess:
		cell, err := b.syms.AddrOfArrayElement(a.Ident, a.Index)
		if err != nil {
			return Operand{}, err
		}
		return CellOperand(cell), nil
	case *ast.ArrAccess:
		ref, err := b.dynamicArrayRef(a)
		if err != nil {
			return Operand{}, err
		}
		tmp := b.syms.NextFreeCell()
		b.emit(LoadIndexed(tmp, ref))
		return CellOperand(tmp), nil
	default:
		return Operand{}, fmt.Errorf("ir: unhandled identifier type %T", id)
	}
}

func (b *builder) dynamicArrayRef(a *ast.ArrAccess) (ArrayRef, error) {
	sym, ok := b.syms.Resolve(a.Ident)
	if !ok || sym.Kind != symtab.KindArray {
		return ArrayRef{}, fmt.Errorf("%q is not a declared array", a.Ident)
	}
	idxCell, err := b.syms.AddrOf(a.IndexName)
	if err != nil {
		return ArrayRef{}, err
	}
	return DynamicArrayRef(sym.OffsetCell, CellOperand(idxCell)), nil
}

// lvalueRef resolves an assignment/read target to either a single direct
// cell (scalar, FOR iterator, or literal-index array element) or a
// dynamic ArrayRef, mirroring the split codegen must make between LOAD/
// STORE and the indirect LOADI/STOREI form.
type lvalue struct {
	direct   bool
	cell     uint64
	arrayRef ArrayRef
}

func (b *builder) resolveLvalue(id ast.Identifier) (lvalue, error) {
	switch a := id.(type) {
	case *ast.VarAccess:
		cell, err := b.syms.AddrOf(a.Ident)
		if err != nil {
			return lvalue{}, err
		}
		return lvalue{direct: true, cell: cell}, nil
	case *ast.ArrConstAccess:
		cell, err := b.syms.AddrOfArrayElement(a.Ident, a.Index)
		if err != nil {
			return lvalue{}, err
		}
		return lvalue{direct: true, cell: cell}, nil
	case *ast.ArrAccess:
		ref, err := b.dynamicArrayRef(a)
		if err != nil {
			return lvalue{}, err
		}
		return lvalue{direct: false, arrayRef: ref}, nil
	default:
		return lvalue{}, fmt.Errorf("ir: unhandled identifier type %T", id)
	}
}

func (b *builder) storeValue(lv lvalue, src Operand) {
	if lv.direct {
		b.emit(Copy(lv.cell, src))
		return
	}
	b.emit(StoreIndexed(lv.arrayRef, src))
}

func (b *builder) buildAssign(c *ast.Assign) error {
	lv, err := b.resolveLvalue(c.Target)
	if err != nil {
		return err
	}

	if c.Value.Right == nil {
		src, err := b.toOperand(c.Value.Left)
		if err != nil {
			return err
		}
		b.storeValue(lv, src)
		return nil
	}

	a, err := b.toOperand(c.Value.Left)
	if err != nil {
		return err
	}
	bb, err := b.toOperand(c.Value.Right)
	if err != nil {
		return err
	}
	op := mapExprOp(c.Value.Op)

	if lv.direct {
		b.emit(BinOpOp(lv.cell, op, a, bb))
		return nil
	}
	tmp := b.syms.NextFreeCell()
	b.emit(BinOpOp(tmp, op, a, bb))
	b.emit(StoreIndexed(lv.arrayRef, CellOperand(tmp)))
	return nil
}

func (b *builder) buildRead(c *ast.Read) error {
	lv, err := b.resolveLvalue(c.Target)
	if err != nil {
		return err
	}
	if lv.direct {
		b.emit(Read(lv.cell))
		return nil
	}
	tmp := b.syms.NextFreeCell()
	b.emit(Read(tmp))
	b.emit(StoreIndexed(lv.arrayRef, CellOperand(tmp)))
	return nil
}

func (b *builder) buildWrite(c *ast.Write) error {
	v, err := b.toOperand(c.Value)
	if err != nil {
		return err
	}
	b.emit(Write(v))
	return nil
}

func mapExprOp(op ast.ExprOp) BinOp {
	switch op {
	case ast.Plus:
		return Add
	case ast.Minus:
		return Sub
	case ast.Times:
		return Mul
	case ast.Div:
		return Div
	case ast.Mod:
		return Mod
	default:
		panic(fmt.Sprintf("ir: unhandled ExprOp %v", op))
	}
}

// mapRelOp maps the surface-token relational operators onto their
// semantic meaning: LE/GE are strict, LEQ/GEQ are their non-strict
// counterparts.
func mapRelOp(op ast.RelOp) RelOp {
	switch op {
	case ast.EQ:
		return Eq
	case ast.NEQ:
		return Neq
	case ast.LE:
		return Lt
	case ast.LEQ:
		return Le
	case ast.GE:
		return Gt
	case ast.GEQ:
		return Ge
	default:
		panic(fmt.Sprintf("ir: unhandled RelOp %v", op))
	}
}

func (b *builder) buildCondition(cond *ast.Condition, then, els Label) error {
	left, err := b.toOperand(cond.Left)
	if err != nil {
		return err
	}
	right, err := b.toOperand(cond.Right)
	if err != nil {
		return err
	}
	b.emit(JumpIf(mapRelOp(cond.Op), left, right, then, els))
	return nil
}

func (b *builder) buildIf(c *ast.If) error {
	lThen, lEnd := b.newLabel(), b.newLabel()
	if err := b.buildCondition(c.Cond, lThen, lEnd); err != nil {
		return err
	}
	b.emit(LabelOp(lThen))
	if err := b.buildCommands(c.Then); err != nil {
		return err
	}
	b.emit(LabelOp(lEnd))
	return nil
}

func (b *builder) buildIfElse(c *ast.IfElse) error {
	lThen, lElse, lEnd := b.newLabel(), b.newLabel(), b.newLabel()
	if err := b.buildCondition(c.Cond, lThen, lElse); err != nil {
		return err
	}
	b.emit(LabelOp(lThen))
	if err := b.buildCommands(c.Then); err != nil {
		return err
	}
	b.emit(Jump(lEnd))
	b.emit(LabelOp(lElse))
	if err := b.buildCommands(c.Else); err != nil {
		return err
	}
	b.emit(LabelOp(lEnd))
	return nil
}

func (b *builder) buildWhile(c *ast.While) error {
	lHead, lBody, lEnd := b.newLabel(), b.newLabel(), b.newLabel()
	b.emit(LabelOp(lHead))
	if err := b.buildCondition(c.Cond, lBody, lEnd); err != nil {
		return err
	}
	b.emit(LabelOp(lBody))
	if err := b.buildCommands(c.Body); err != nil {
		return err
	}
	b.emit(Jump(lHead))
	b.emit(LabelOp(lEnd))
	return nil
}

func (b *builder) buildDoWhile(c *ast.DoWhile) error {
	lBody, lEnd := b.newLabel(), b.newLabel()
	b.emit(LabelOp(lBody))
	if err := b.buildCommands(c.Body); err != nil {
		return err
	}
	if err := b.buildCondition(c.Cond, lBody, lEnd); err != nil {
		return err
	}
	b.emit(LabelOp(lEnd))
	return nil
}

// buildFor lowers a FOR loop with bounds frozen at entry: both the start
// and stop values are evaluated exactly once, before the header is first
// tested, so later mutation of whatever variables produced them cannot
// change the iteration count. The header reuses the same Le/Ge relations
// the six-operator condition lowering already provides: ascending
// continues while iter<=bound, descending while iter>=bound, which
// gives the exact zero/one-iteration edge cases the design calls for
// without a separate strict-inequality code path.
func (b *builder) buildFor(c *ast.For) error {
	fromOp, err := b.toOperand(c.From)
	if err != nil {
		return err
	}
	toOp, err := b.toOperand(c.To)
	if err != nil {
		return err
	}

	dir := symtab.Up
	if !c.Ascending {
		dir = symtab.Down
	}
	iterCell, boundCell, err := b.syms.EnterFor(c.Counter, dir)
	if err != nil {
		return err
	}

	b.emit(Copy(iterCell, fromOp))
	b.emit(Copy(boundCell, toOp))

	lHead, lBody, lEnd := b.newLabel(), b.newLabel(), b.newLabel()
	b.emit(LabelOp(lHead))
	rel := Le
	if !c.Ascending {
		rel = Ge
	}
	b.emit(JumpIf(rel, CellOperand(iterCell), CellOperand(boundCell), lBody, lEnd))

	b.emit(LabelOp(lBody))
	if err := b.buildCommands(c.Body); err != nil {
		b.syms.LeaveFor()
		return err
	}

	step := Add
	if !c.Ascending {
		step = Sub
	}
	b.emit(BinOpOp(iterCell, step, CellOperand(iterCell), ConstOperand(1)))
	b.emit(Jump(lHead))
	b.emit(LabelOp(lEnd))

	b.syms.LeaveFor()
	return nil
}
