// Package asmgen turns the code generator's instruction stream — opcodes
// whose address operand may still be a symbolic label — into the
// resolved, textual assembler form in the external interface contract:
// a two-pass resolver binds every label to a concrete instruction index,
// then an emitter renders one line per instruction. A matching parser
// lets the same grammar be read back, so the VM's own input story and the
// round-trip testable property share one implementation.
package asmgen

import (
	"fmt"

	"github.com/jakubdabek/gembiler/ir"
)

// Op is an instruction opcode in the target accumulator machine.
type Op int

const (
	GET Op = iota
	PUT
	LOAD
	STORE
	LOADI
	STOREI
	ADD
	SUB
	SHIFT
	INC
	DEC
	JUMP
	JPOS
	JZERO
	JNEG
	HALT
)

var opNames = [...]string{
	GET: "GET", PUT: "PUT", LOAD: "LOAD", STORE: "STORE",
	LOADI: "LOADI", STOREI: "STOREI", ADD: "ADD", SUB: "SUB",
	SHIFT: "SHIFT", INC: "INC", DEC: "DEC", JUMP: "JUMP",
	JPOS: "JPOS", JZERO: "JZERO", JNEG: "JNEG", HALT: "HALT",
}

func (op Op) String() string {
	if int(op) >= 0 && int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// HasOperand reports whether op takes an address/label operand. GET, PUT,
// INC, DEC and HALT are zero-operand.
func (op Op) HasOperand() bool {
	switch op {
	case GET, PUT, INC, DEC, HALT:
		return false
	default:
		return true
	}
}

var mnemonics = map[string]Op{
	"GET": GET, "PUT": PUT, "LOAD": LOAD, "STORE": STORE,
	"LOADI": LOADI, "STOREI": STOREI, "ADD": ADD, "SUB": SUB,
	"SHIFT": SHIFT, "INC": INC, "DEC": DEC, "JUMP": JUMP,
	"JPOS": JPOS, "JZERO": JZERO, "JNEG": JNEG, "HALT": HALT,
}

// Instr is one pre-resolution instruction: an opcode plus either a
// literal integer operand or a reference to a label the code generator
// minted. Exactly one of Addr/Label is meaningful when Op.HasOperand.
type Instr struct {
	Op      Op
	IsLabel bool
	Addr    uint64
	Label   ir.Label
}

func Addr(op Op, addr uint64) Instr   { return Instr{Op: op, Addr: addr} }
func ToLabel(op Op, l ir.Label) Instr { return Instr{Op: op, IsLabel: true, Label: l} }
func Bare(op Op) Instr                { return Instr{Op: op} }

// Item is one element of the code generator's pre-resolution stream:
// either a real instruction, or a label definition marking the position
// that follows it without itself occupying an instruction slot. Labels
// are opaque arena indices (ir.Label), never a linked patch list, so the
// resolver can bind every one of them in a single forward pass.
type Item struct {
	IsLabelDef bool
	LabelDef   ir.Label
	Instr      Instr
}

func InstrItem(i Instr) Item          { return Item{Instr: i} }
func LabelDefItem(l ir.Label) Item    { return Item{IsLabelDef: true, LabelDef: l} }

// Resolved is a single instruction after backpatching: every operand is
// now a concrete non-negative instruction index or literal address.
type Resolved struct {
	Op   Op
	Addr uint64
}
