// Package parse implements a recursive-descent parser that turns a token
// stream from lex into an ast.Program.
package parse

import (
	"fmt"
	"strings"

	"github.com/jakubdabek/gembiler/ast"
	"github.com/jakubdabek/gembiler/lex"
)

// Grammar:
//
//	program     = ("DECLARE" declarations)? "BEGIN" commands "END"
//	declarations = declaration ("," declaration)*
//	declaration  = IDENT | IDENT "(" NUM ":" NUM ")"
//	commands     = command+
//	command      = assign | read | write | if | while | doWhile | for
//	assign       = identifier "ASSIGN" expression ";"
//	read         = "READ" (identifier | NUM) ";"
//	write        = "WRITE" value ";"
//	if           = "IF" condition "THEN" commands ("ELSE" commands)? "ENDIF"
//	while        = "WHILE" condition "DO" commands "ENDWHILE"
//	doWhile      = "DO" commands "WHILE" condition "ENDDO"
//	for          = "FOR" IDENT "FROM" value ("TO"|"DOWNTO") value "DO" commands "ENDFOR"
//	expression   = value (exprOp value)?
//	condition    = value relOp value
//	value        = NUM | identifier
//	identifier   = IDENT | IDENT "(" (IDENT | NUM) ")"
type Parser struct {
	tokens      []lex.Token
	pos         int
	sourceLines []string
}

// NewParser builds a Parser over tokens, keeping rawSource around only to
// annotate error messages with the offending source line.
func NewParser(tokens []lex.Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, sourceLines: strings.Split(rawSource, "\n")}
}

// Parse tokenises nothing further; it consumes an already-lexed stream.
func Parse(tokens []lex.Token, rawSource string) (*ast.Program, error) {
	return NewParser(tokens, rawSource).parseProgram()
}

func (p *Parser) fmtError(tok lex.Token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	lineIdx := tok.Line - 1
	snippet := "<source unavailable>"
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[lineIdx])
	}
	return fmt.Errorf("line %d: %s\n  |> %s", tok.Line, msg, snippet)
}

func (p *Parser) peek() lex.Token {
	if p.pos >= len(p.tokens) {
		return lex.Token{Type: lex.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() lex.Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(tt lex.TokenType) (lex.Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, p.fmtError(tok, "expected %s, got %s (%q)", tt, tok.Type, tok.Lexeme)
	}
	return tok, nil
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{}

	if p.peek().Type == lex.DECLARE {
		p.advance()
		decls, err := p.parseDeclarations()
		if err != nil {
			return nil, err
		}
		prog.Declarations = decls
	}

	if _, err := p.expect(lex.BEGIN); err != nil {
		return nil, err
	}

	cmds, err := p.parseCommandsUntil(lex.END)
	if err != nil {
		return nil, err
	}
	prog.Commands = cmds

	if _, err := p.expect(lex.END); err != nil {
		return nil, err
	}
	return prog, nil
}

func (p *Parser) parseDeclarations() ([]ast.Declaration, error) {
	var decls []ast.Declaration
	for {
		tok, err := p.expect(lex.IDENT)
		if err != nil {
			return nil, err
		}
		if p.peek().Type == lex.LPAREN {
			p.advance()
			lo, err := p.expect(lex.NUM)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lex.COLON); err != nil {
				return nil, err
			}
			hi, err := p.expect(lex.NUM)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lex.RPAREN); err != nil {
				return nil, err
			}
			decls = append(decls, &ast.ArrayDecl{
				Ident: tok.Lexeme, Line: tok.Line,
				Lo: lo.Num, LoOverflow: lo.Overflow,
				Hi: hi.Num, HiOverflow: hi.Overflow,
			})
		} else {
			decls = append(decls, &ast.VarDecl{Ident: tok.Lexeme, Line: tok.Line})
		}

		if p.peek().Type != lex.COMMA {
			break
		}
		p.advance()
	}
	return decls, nil
}

func (p *Parser) parseCommandsUntil(terminators ...lex.TokenType) ([]ast.Command, error) {
	var cmds []ast.Command
	for !p.atAny(terminators...) {
		cmd, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	if len(cmds) == 0 {
		return nil, p.fmtError(p.peek(), "expected at least one command")
	}
	return cmds, nil
}

func (p *Parser) atAny(tts ...lex.TokenType) bool {
	cur := p.peek().Type
	for _, tt := range tts {
		if cur == tt {
			return true
		}
	}
	return false
}

func (p *Parser) parseCommand() (ast.Command, error) {
	switch p.peek().Type {
	case lex.IF:
		return p.parseIf()
	case lex.WHILE:
		return p.parseWhile()
	case lex.DO:
		return p.parseDoWhile()
	case lex.FOR:
		return p.parseFor()
	case lex.READ:
		return p.parseRead()
	case lex.WRITE:
		return p.parseWrite()
	case lex.IDENT:
		return p.parseAssign()
	default:
		tok := p.peek()
		return nil, p.fmtError(tok, "expected a command, got %s (%q)", tok.Type, tok.Lexeme)
	}
}

func (p *Parser) parseIf() (ast.Command, error) {
	line := p.advance().Line // IF
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.THEN); err != nil {
		return nil, err
	}
	then, err := p.parseCommandsUntil(lex.ELSE, lex.ENDIF)
	if err != nil {
		return nil, err
	}
	if p.peek().Type == lex.ELSE {
		p.advance()
		els, err := p.parseCommandsUntil(lex.ENDIF)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lex.ENDIF); err != nil {
			return nil, err
		}
		return &ast.IfElse{Cond: cond, Then: then, Else: els, Line: line}, nil
	}
	if _, err := p.expect(lex.ENDIF); err != nil {
		return nil, err
	}
	return &ast.If{Cond: cond, Then: then, Line: line}, nil
}

func (p *Parser) parseWhile() (ast.Command, error) {
	line := p.advance().Line // WHILE
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.DO); err != nil {
		return nil, err
	}
	body, err := p.parseCommandsUntil(lex.ENDWHILE)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.ENDWHILE); err != nil {
		return nil, err
	}
	return &ast.While{Cond: cond, Body: body, Line: line}, nil
}

func (p *Parser) parseDoWhile() (ast.Command, error) {
	line := p.advance().Line // DO
	body, err := p.parseCommandsUntil(lex.WHILE)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.WHILE); err != nil {
		return nil, err
	}
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.ENDDO); err != nil {
		return nil, err
	}
	return &ast.DoWhile{Body: body, Cond: cond, Line: line}, nil
}

func (p *Parser) parseFor() (ast.Command, error) {
	line := p.advance().Line // FOR
	counter, err := p.expect(lex.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.FROM); err != nil {
		return nil, err
	}
	from, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	var ascending bool
	switch p.peek().Type {
	case lex.TO:
		ascending = true
		p.advance()
	case lex.DOWNTO:
		ascending = false
		p.advance()
	default:
		tok := p.peek()
		return nil, p.fmtError(tok, "expected TO or DOWNTO, got %s (%q)", tok.Type, tok.Lexeme)
	}
	to, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.DO); err != nil {
		return nil, err
	}
	body, err := p.parseCommandsUntil(lex.ENDFOR)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.ENDFOR); err != nil {
		return nil, err
	}
	return &ast.For{Counter: counter.Lexeme, Ascending: ascending, From: from, To: to, Body: body, Line: line}, nil
}

func (p *Parser) parseRead() (ast.Command, error) {
	line := p.advance().Line // READ
	target, err := p.parseReadTarget()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.Read{Target: target, Line: line}, nil
}

// parseReadTarget accepts either an identifier or a bare literal. A
// literal isn't a valid READ target, but rejecting it is the verifier's
// job (WriteToNonLvalue), not the parser's: a grammar-level rejection
// here would bypass the single-pass diagnostic collection the rest of
// the pipeline relies on.
func (p *Parser) parseReadTarget() (ast.Identifier, error) {
	if tok := p.peek(); tok.Type == lex.NUM {
		p.advance()
		return &ast.LiteralTarget{N: tok.Num, Line: tok.Line}, nil
	}
	return p.parseIdentifier()
}

func (p *Parser) parseWrite() (ast.Command, error) {
	line := p.advance().Line // WRITE
	val, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.Write{Value: val, Line: line}, nil
}

func (p *Parser) parseAssign() (ast.Command, error) {
	target, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	line := target.SourceLine()
	if _, err := p.expect(lex.ASSIGN); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lex.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.Assign{Target: target, Value: expr, Line: line}, nil
}

func (p *Parser) parseExpression() (*ast.Expression, error) {
	left, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	op, ok := exprOpOf(p.peek().Type)
	if !ok {
		return &ast.Expression{Left: left}, nil
	}
	p.advance()
	right, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &ast.Expression{Left: left, Op: op, Right: right}, nil
}

func (p *Parser) parseCondition() (*ast.Condition, error) {
	left, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	op, ok := relOpOf(p.peek().Type)
	if !ok {
		tok := p.peek()
		return nil, p.fmtError(tok, "expected a relational operator, got %s (%q)", tok.Type, tok.Lexeme)
	}
	p.advance()
	right, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &ast.Condition{Left: left, Op: op, Right: right}, nil
}

func (p *Parser) parseValue() (ast.Value, error) {
	tok := p.peek()
	if tok.Type == lex.NUM {
		p.advance()
		return &ast.NumValue{N: tok.Num, Overflow: tok.Overflow, Lexeme: tok.Lexeme, Line: tok.Line}, nil
	}
	ident, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	return &ast.IdentValue{Ident: ident}, nil
}

func (p *Parser) parseIdentifier() (ast.Identifier, error) {
	tok, err := p.expect(lex.IDENT)
	if err != nil {
		return nil, err
	}
	if p.peek().Type != lex.LPAREN {
		return &ast.VarAccess{Ident: tok.Lexeme, Line: tok.Line}, nil
	}
	p.advance() // (
	idx := p.peek()
	switch idx.Type {
	case lex.IDENT:
		p.advance()
		if _, err := p.expect(lex.RPAREN); err != nil {
			return nil, err
		}
		return &ast.ArrAccess{Ident: tok.Lexeme, IndexName: idx.Lexeme, Line: tok.Line}, nil
	case lex.NUM:
		p.advance()
		if _, err := p.expect(lex.RPAREN); err != nil {
			return nil, err
		}
		return &ast.ArrConstAccess{Ident: tok.Lexeme, Index: idx.Num, Overflow: idx.Overflow, Line: tok.Line}, nil
	default:
		return nil, p.fmtError(idx, "expected an array index, got %s (%q)", idx.Type, idx.Lexeme)
	}
}

func exprOpOf(tt lex.TokenType) (ast.ExprOp, bool) {
	switch tt {
	case lex.PLUS:
		return ast.Plus, true
	case lex.MINUS:
		return ast.Minus, true
	case lex.TIMES:
		return ast.Times, true
	case lex.DIV:
		return ast.Div, true
	case lex.MOD:
		return ast.Mod, true
	default:
		return 0, false
	}
}

func relOpOf(tt lex.TokenType) (ast.RelOp, bool) {
	switch tt {
	case lex.EQ:
		return ast.EQ, true
	case lex.NEQ:
		return ast.NEQ, true
	case lex.LE:
		return ast.LE, true
	case lex.LEQ:
		return ast.LEQ, true
	case lex.GE:
		return ast.GE, true
	case lex.GEQ:
		return ast.GEQ, true
	default:
		return 0, false
	}
}
