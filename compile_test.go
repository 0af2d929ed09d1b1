package gembiler

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/jakubdabek/gembiler/verifier"
	"github.com/jakubdabek/gembiler/vm"
)

// runSource compiles src, assembles the result, and runs it against a
// newline-separated input stream, returning everything written to
// stdout as a slice of parsed integers.
func runSource(t *testing.T, src string, input ...int64) []int64 {
	t.Helper()

	asmText, instrs, diags, err := Compile(src)
	if len(diags) > 0 {
		for _, d := range diags {
			t.Fatalf("unexpected diagnostic: %s", d)
		}
	}
	if err != nil {
		t.Fatalf("Compile failed: %v\nasm so far:\n%s", err, asmText)
	}

	var in bytes.Buffer
	for _, v := range input {
		in.WriteString(strconv.FormatInt(v, 10))
		in.WriteByte('\n')
	}

	var out bytes.Buffer
	m := vm.NewMachine(instrs, &in, &out)
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v\nasm:\n%s", err, asmText)
	}

	var got []int64
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			t.Fatalf("non-integer output line %q: %v", line, err)
		}
		got = append(got, n)
	}
	return got
}

func requireOutput(t *testing.T, got []int64, want ...int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d output lines %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("output[%d] = %d, want %d (full: got=%v want=%v)", i, got[i], want[i], got, want)
		}
	}
}

func TestSquare(t *testing.T) {
	const src = `DECLARE n BEGIN READ n; WRITE n TIMES n; END`

	cases := []struct {
		in   int64
		want int64
	}{
		{7, 49},
		{-3, 9},
		{0, 0},
	}
	for _, c := range cases {
		got := runSource(t, src, c.in)
		requireOutput(t, got, c.want)
	}
}

func TestFloorDivModSigns(t *testing.T) {
	const src = `DECLARE a, b BEGIN READ a; READ b; WRITE a DIV b; WRITE a MOD b; END`

	cases := []struct {
		a, b     int64
		wantDiv  int64
		wantMod  int64
	}{
		{7, 2, 3, 1},
		{-7, 2, -4, 1},
		{7, -2, -4, -1},
		{-7, -2, 3, -1},
		{5, 0, 0, 0},
	}
	for _, c := range cases {
		got := runSource(t, src, c.a, c.b)
		requireOutput(t, got, c.wantDiv, c.wantMod)
	}
}

func TestArraySumWithNegativeBase(t *testing.T) {
	const src = `
DECLARE t(-3:3), s
BEGIN
	READ t(-3);
	READ t(-2);
	READ t(-1);
	READ t(0);
	READ t(1);
	READ t(2);
	READ t(3);
	s ASSIGN 0;
	FOR i FROM -3 TO 3 DO
		s ASSIGN s PLUS t(i);
	ENDFOR
	WRITE s;
END`
	got := runSource(t, src, 1, 2, 3, 4, 5, 6, 7)
	requireOutput(t, got, 28)
}

func TestForBoundsFrozen(t *testing.T) {
	const src = `
DECLARE n
BEGIN
	n ASSIGN 3;
	FOR i FROM 1 TO n DO
		n ASSIGN n PLUS 1;
		WRITE i;
	ENDFOR
END`
	got := runSource(t, src)
	requireOutput(t, got, 1, 2, 3)
}

func TestPowerBySquaring(t *testing.T) {
	const src = `
DECLARE b, e, m, result, bit
BEGIN
	READ b;
	READ e;
	READ m;
	result ASSIGN 1;
	b ASSIGN b MOD m;
	WHILE e NEQ 0 DO
		bit ASSIGN e MOD 2;
		IF bit EQ 1 THEN
			result ASSIGN result TIMES b;
			result ASSIGN result MOD m;
		ENDIF
		b ASSIGN b TIMES b;
		b ASSIGN b MOD m;
		e ASSIGN e DIV 2;
	ENDWHILE
	WRITE result;
END`
	requireOutput(t, runSource(t, src, 3, 13, 1000), 194)
	requireOutput(t, runSource(t, src, 2, 10, 10000), 1024)
}

func TestDoWhileOneShot(t *testing.T) {
	const src = `
DECLARE n
BEGIN
	n ASSIGN 0;
	DO
		n ASSIGN n PLUS 1;
	WHILE 0 EQ 1 ENDDO
	WRITE n;
END`
	requireOutput(t, runSource(t, src), 1)
}

func TestNegativeMultiplication(t *testing.T) {
	const src = `DECLARE a, b BEGIN READ a; READ b; WRITE a TIMES b; END`
	requireOutput(t, runSource(t, src, -6, 7), -42)
	requireOutput(t, runSource(t, src, -6, -7), 42)
	requireOutput(t, runSource(t, src, 0, -7), 0)
}

func TestIfElse(t *testing.T) {
	const src = `
DECLARE a, b
BEGIN
	READ a;
	READ b;
	IF a LE b THEN
		WRITE 1;
	ELSE
		WRITE 0;
	ENDIF
END`
	requireOutput(t, runSource(t, src, 1, 2), 1)
	requireOutput(t, runSource(t, src, 5, 2), 0)
}

func TestUndeclaredNameIsRejected(t *testing.T) {
	const src = `DECLARE a BEGIN a ASSIGN b PLUS 1; END`
	_, _, diags, err := Compile(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) == 0 {
		t.Fatalf("expected diagnostics for undeclared name %q", "b")
	}
}

func TestForIteratorWriteIsRejected(t *testing.T) {
	const src = `
BEGIN
	FOR i FROM 1 TO 3 DO
		i ASSIGN i PLUS 1;
	ENDFOR
END`
	_, _, diags, err := Compile(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, d := range diags {
		if d.Kind == verifier.ForIteratorWrite {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a ForIteratorWrite diagnostic, got %v", diags)
	}
}

func TestArrayBoundReversalIsRejected(t *testing.T) {
	const src = `DECLARE a(5:3) BEGIN WRITE 1; END`
	_, _, diags, err := Compile(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) == 0 {
		t.Fatalf("expected a BadArrayBounds diagnostic")
	}
}
