package ir

import (
	"testing"

	"github.com/jakubdabek/gembiler/lex"
	"github.com/jakubdabek/gembiler/parse"
)

func buildSrc(t *testing.T, src string) []Op {
	t.Helper()
	tokens, err := lex.Lex(src)
	if err != nil {
		t.Fatalf("Lex failed: %v", err)
	}
	prog, err := parse.Parse(tokens, src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	ops, _, err := Build(prog)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return ops
}

func TestBuildEndsInHalt(t *testing.T) {
	ops := buildSrc(t, `DECLARE a BEGIN a ASSIGN 1; END`)
	if ops[len(ops)-1].Kind != OpHalt {
		t.Fatalf("last op = %v, want OpHalt", ops[len(ops)-1].Kind)
	}
}

func TestBuildIfElseProducesThreeLabels(t *testing.T) {
	ops := buildSrc(t, `
DECLARE a
BEGIN
	IF a EQ 0 THEN
		a ASSIGN 1;
	ELSE
		a ASSIGN 2;
	ENDIF
END`)

	var jumpIfs, labels int
	for _, op := range ops {
		switch op.Kind {
		case OpJumpIf:
			jumpIfs++
		case OpLabel:
			labels++
		}
	}
	if jumpIfs != 1 {
		t.Errorf("got %d JumpIf ops, want 1", jumpIfs)
	}
	if labels != 3 {
		t.Errorf("got %d Label ops, want 3 (then/else/end)", labels)
	}
}

func TestBuildForFreezesBoundsViaCopy(t *testing.T) {
	ops := buildSrc(t, `
DECLARE n
BEGIN
	n ASSIGN 3;
	FOR i FROM 1 TO n DO
		n ASSIGN n PLUS 1;
	ENDFOR
END`)

	var copies int
	for _, op := range ops {
		if op.Kind == OpCopy {
			copies++
		}
	}
	// one Copy for the FOR's frozen `from`, one for its frozen `to`.
	if copies < 2 {
		t.Errorf("got %d Copy ops, want at least 2 for the frozen FOR bounds", copies)
	}
}

func TestBuildArrayLiteralIndexNeedsNoLoadIndexed(t *testing.T) {
	ops := buildSrc(t, `
DECLARE t(0:5)
BEGIN
	t(2) ASSIGN 7;
	WRITE t(2);
END`)

	for _, op := range ops {
		if op.Kind == OpLoadIndexed || op.Kind == OpStoreIndexed {
			t.Errorf("literal-index array access should lower directly, got %v", op.Kind)
		}
	}
}

func TestBuildArrayVariableIndexUsesIndexedOps(t *testing.T) {
	ops := buildSrc(t, `
DECLARE t(0:5), i, x
BEGIN
	i ASSIGN 2;
	t(i) ASSIGN 7;
	x ASSIGN t(i);
END`)

	var store, load bool
	for _, op := range ops {
		if op.Kind == OpStoreIndexed {
			store = true
		}
		if op.Kind == OpLoadIndexed {
			load = true
		}
	}
	if !store || !load {
		t.Errorf("variable-index array access should use indexed ops: store=%v load=%v", store, load)
	}
}

func TestBuildRelOpMappingMatchesStrictness(t *testing.T) {
	ops := buildSrc(t, `DECLARE a BEGIN IF a LE 1 THEN a ASSIGN 1; ENDIF END`)
	found := false
	for _, op := range ops {
		if op.Kind == OpJumpIf {
			if op.RelOp != Lt {
				t.Errorf("LE should map to the strict Lt, got %v", op.RelOp)
			}
			found = true
		}
	}
	if !found {
		t.Fatalf("no JumpIf op found")
	}
}
