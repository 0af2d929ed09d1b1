// Package verifier performs the single semantic pass required before a
// program may be lowered: every name used must resolve, scalars and
// arrays must be used consistently with their declared kind, FOR
// iterators must never be written, and only valid bounds may be declared.
// Unlike a typical single-shot check, every violation found is collected
// in one recursive descent rather than aborting on the first.
package verifier

import (
	"fmt"

	"github.com/jakubdabek/gembiler/ast"
)

type nameKind int

const (
	kindScalar nameKind = iota
	kindArray
	kindForIter
)

type scope map[string]nameKind

// state carries the accumulated diagnostics and the lexical scope stack
// across one recursive walk. It never touches symtab: this pass only
// needs to know whether a name is declared and what kind it is, not
// where it lives in memory.
type state struct {
	diags  []Diagnostic
	scopes []scope
}

func (s *state) report(k Kind, name string, line int, msg string) {
	s.diags = append(s.diags, Diagnostic{Kind: k, Name: name, Line: line, Msg: msg})
}

func (s *state) declaredAnywhere(name string) (nameKind, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if k, ok := s.scopes[i][name]; ok {
			return k, true
		}
	}
	return 0, false
}

func (s *state) pushScope() { s.scopes = append(s.scopes, make(scope)) }
func (s *state) popScope()  { s.scopes = s.scopes[:len(s.scopes)-1] }

// Verify walks prog once, returning every diagnostic found. A nil/empty
// result means the program may proceed to IR building.
func Verify(prog *ast.Program) []Diagnostic {
	s := &state{}
	s.pushScope()

	for _, decl := range prog.Declarations {
		s.checkDeclaration(decl)
	}
	s.checkCommands(prog.Commands)

	return s.diags
}

func (s *state) checkDeclaration(decl ast.Declaration) {
	name := decl.Name()
	if _, ok := s.declaredAnywhere(name); ok {
		s.report(Redeclaration, name, declLine(decl), fmt.Sprintf("%q is already declared", name))
		return
	}
	switch d := decl.(type) {
	case *ast.VarDecl:
		s.scopes[0][name] = kindScalar
	case *ast.ArrayDecl:
		if d.LoOverflow {
			s.report(LiteralOutOfRange, name, d.Line, fmt.Sprintf("lower bound of array %q does not fit in a signed 64-bit integer", name))
		}
		if d.HiOverflow {
			s.report(LiteralOutOfRange, name, d.Line, fmt.Sprintf("upper bound of array %q does not fit in a signed 64-bit integer", name))
		}
		if !d.LoOverflow && !d.HiOverflow && d.Lo > d.Hi {
			s.report(BadArrayBounds, name, d.Line, fmt.Sprintf("array %q has reversed bounds [%d:%d]", name, d.Lo, d.Hi))
		}
		s.scopes[0][name] = kindArray
	}
}

func declLine(decl ast.Declaration) int {
	switch d := decl.(type) {
	case *ast.VarDecl:
		return d.Line
	case *ast.ArrayDecl:
		return d.Line
	default:
		return 0
	}
}

func (s *state) checkCommands(cmds []ast.Command) {
	for _, c := range cmds {
		s.checkCommand(c)
	}
}

func (s *state) checkCommand(cmd ast.Command) {
	switch c := cmd.(type) {
	case *ast.Assign:
		s.checkLvalue(c.Target)
		s.checkExpression(c.Value)
	case *ast.Read:
		s.checkLvalue(c.Target)
	case *ast.Write:
		s.checkValue(c.Value)
	case *ast.If:
		s.checkCondition(c.Cond)
		s.checkCommands(c.Then)
	case *ast.IfElse:
		s.checkCondition(c.Cond)
		s.checkCommands(c.Then)
		s.checkCommands(c.Else)
	case *ast.While:
		s.checkCondition(c.Cond)
		s.checkCommands(c.Body)
	case *ast.DoWhile:
		s.checkCommands(c.Body)
		s.checkCondition(c.Cond)
	case *ast.For:
		s.checkValue(c.From)
		s.checkValue(c.To)
		if _, ok := s.declaredAnywhere(c.Counter); ok {
			s.report(Redeclaration, c.Counter, c.Line, fmt.Sprintf("FOR counter %q shadows an existing name", c.Counter))
			s.checkCommands(c.Body)
			return
		}
		s.pushScope()
		s.scopes[len(s.scopes)-1][c.Counter] = kindForIter
		s.checkCommands(c.Body)
		s.popScope()
	default:
		panic(fmt.Sprintf("verifier: unhandled command type %T", cmd))
	}
}

// checkLvalue verifies both that target resolves with the right kind and
// that it is actually writable: not a bare literal (WriteToNonLvalue),
// and not a FOR iterator (ForIteratorWrite).
func (s *state) checkLvalue(target ast.Identifier) {
	if lit, ok := target.(*ast.LiteralTarget); ok {
		s.report(WriteToNonLvalue, lit.Name(), lit.SourceLine(),
			fmt.Sprintf("%s is a literal and cannot be a READ or ASSIGN target", lit.String()))
		return
	}

	kind, ok := s.resolveIdentifier(target)
	if !ok {
		return
	}
	if kind == kindForIter {
		s.report(ForIteratorWrite, target.Name(), target.SourceLine(),
			fmt.Sprintf("%q is a FOR loop counter and cannot be assigned to", target.Name()))
	}
}

func (s *state) checkExpression(e *ast.Expression) {
	s.checkValue(e.Left)
	if e.Right != nil {
		s.checkValue(e.Right)
	}
}

func (s *state) checkCondition(c *ast.Condition) {
	s.checkValue(c.Left)
	s.checkValue(c.Right)
}

func (s *state) checkValue(v ast.Value) {
	switch val := v.(type) {
	case *ast.NumValue:
		if val.Overflow {
			s.report(LiteralOutOfRange, val.Lexeme, val.Line,
				fmt.Sprintf("literal %s does not fit in a signed 64-bit integer", val.Lexeme))
		}
	case *ast.IdentValue:
		s.resolveIdentifier(val.Ident)
	default:
		panic(fmt.Sprintf("verifier: unhandled value type %T", v))
	}
}

// resolveIdentifier checks declaration and kind-consistency for any
// identifier reference (read or write position) and reports at most one
// diagnostic for it.
func (s *state) resolveIdentifier(id ast.Identifier) (nameKind, bool) {
	name := id.Name()
	kind, ok := s.declaredAnywhere(name)
	if !ok {
		s.report(UndeclaredName, name, id.SourceLine(), fmt.Sprintf("%q is not declared", name))
		return 0, false
	}

	switch id.(type) {
	case *ast.VarAccess:
		if kind == kindArray {
			s.report(ArrayVsScalarMisuse, name, id.SourceLine(),
				fmt.Sprintf("%q is an array and must be indexed", name))
			return kind, false
		}
	case *ast.ArrAccess, *ast.ArrConstAccess:
		if kind != kindArray {
			s.report(ArrayVsScalarMisuse, name, id.SourceLine(),
				fmt.Sprintf("%q is not an array and cannot be indexed", name))
			return kind, false
		}
		if c, isConst := id.(*ast.ArrConstAccess); isConst && c.Overflow {
			s.report(LiteralOutOfRange, name, id.SourceLine(),
				fmt.Sprintf("index into %q does not fit in a signed 64-bit integer", name))
			return kind, false
		}
		if a, isVar := id.(*ast.ArrAccess); isVar {
			idxKind, ok := s.declaredAnywhere(a.IndexName)
			if !ok {
				s.report(UndeclaredName, a.IndexName, id.SourceLine(), fmt.Sprintf("%q is not declared", a.IndexName))
				return kind, false
			}
			if idxKind == kindArray {
				s.report(ArrayVsScalarMisuse, a.IndexName, id.SourceLine(),
					fmt.Sprintf("%q is an array and cannot be used as an index", a.IndexName))
				return kind, false
			}
		}
	}

	return kind, true
}
