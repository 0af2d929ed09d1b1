package verifier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jakubdabek/gembiler/ast"
	"github.com/jakubdabek/gembiler/lex"
	"github.com/jakubdabek/gembiler/parse"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	tokens, err := lex.Lex(src)
	require.NoError(t, err)
	prog, err := parse.Parse(tokens, src)
	require.NoError(t, err)
	return prog
}

func kindsOf(diags []Diagnostic) []Kind {
	kinds := make([]Kind, len(diags))
	for i, d := range diags {
		kinds[i] = d.Kind
	}
	return kinds
}

func TestVerifyAcceptsWellFormedProgram(t *testing.T) {
	prog := mustParse(t, `DECLARE a, b(1:10) BEGIN a ASSIGN 1; b(1) ASSIGN a; END`)
	require.Empty(t, Verify(prog))
}

func TestVerifyReportsUndeclaredName(t *testing.T) {
	prog := mustParse(t, `DECLARE a BEGIN a ASSIGN b; END`)
	diags := Verify(prog)
	require.Contains(t, kindsOf(diags), UndeclaredName)
}

func TestVerifyReportsRedeclaration(t *testing.T) {
	prog := mustParse(t, `DECLARE a, a BEGIN a ASSIGN 1; END`)
	diags := Verify(prog)
	require.Contains(t, kindsOf(diags), Redeclaration)
}

func TestVerifyReportsArrayVsScalarMisuse(t *testing.T) {
	prog := mustParse(t, `DECLARE a BEGIN a(1) ASSIGN 1; END`)
	diags := Verify(prog)
	require.Contains(t, kindsOf(diags), ArrayVsScalarMisuse)
}

func TestVerifyReportsScalarIndexedLikeArray(t *testing.T) {
	prog := mustParse(t, `DECLARE a, i BEGIN i ASSIGN 0; a ASSIGN i(0); END`)
	diags := Verify(prog)
	require.Contains(t, kindsOf(diags), ArrayVsScalarMisuse)
}

func TestVerifyReportsBadArrayBounds(t *testing.T) {
	prog := mustParse(t, `DECLARE a(5:3) BEGIN a(5) ASSIGN 1; END`)
	diags := Verify(prog)
	require.Contains(t, kindsOf(diags), BadArrayBounds)
}

func TestVerifyReportsForIteratorWrite(t *testing.T) {
	prog := mustParse(t, `BEGIN FOR i FROM 1 TO 3 DO i ASSIGN i PLUS 1; ENDFOR END`)
	diags := Verify(prog)
	require.Contains(t, kindsOf(diags), ForIteratorWrite)
}

func TestVerifyAllowsReadingForIterator(t *testing.T) {
	prog := mustParse(t, `DECLARE s BEGIN s ASSIGN 0; FOR i FROM 1 TO 3 DO s ASSIGN s PLUS i; ENDFOR WRITE s; END`)
	require.Empty(t, Verify(prog))
}

func TestVerifyForIteratorScopedToLoopBody(t *testing.T) {
	prog := mustParse(t, `
DECLARE s
BEGIN
	FOR i FROM 1 TO 3 DO
		s ASSIGN i;
	ENDFOR
	s ASSIGN i;
END`)
	diags := Verify(prog)
	require.Contains(t, kindsOf(diags), UndeclaredName)
}

func TestVerifyAccumulatesMultipleDiagnostics(t *testing.T) {
	prog := mustParse(t, `DECLARE a BEGIN a ASSIGN b; c ASSIGN 1; END`)
	diags := Verify(prog)
	require.Len(t, diags, 2)
}

func TestVerifyReportsWriteToNonLvalue(t *testing.T) {
	prog := mustParse(t, `BEGIN READ 5; END`)
	diags := Verify(prog)
	require.Contains(t, kindsOf(diags), WriteToNonLvalue)
}

func TestVerifyReportsLiteralOutOfRange(t *testing.T) {
	prog := mustParse(t, `DECLARE a BEGIN a ASSIGN 99999999999999999999; END`)
	diags := Verify(prog)
	require.Contains(t, kindsOf(diags), LiteralOutOfRange)
}

func TestVerifyReportsLiteralOutOfRangeInArrayBounds(t *testing.T) {
	prog := mustParse(t, `DECLARE a(1:99999999999999999999) BEGIN WRITE 1; END`)
	diags := Verify(prog)
	require.Contains(t, kindsOf(diags), LiteralOutOfRange)
}

func TestVerifyReportsArrayIndexedByArray(t *testing.T) {
	prog := mustParse(t, `DECLARE t(1:10), u(1:10) BEGIN t(u) ASSIGN 1; END`)
	diags := Verify(prog)
	require.Contains(t, kindsOf(diags), ArrayVsScalarMisuse)
}
