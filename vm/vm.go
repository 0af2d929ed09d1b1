// Package vm implements the accumulator-based virtual machine the code
// generator targets: a single special cell (0, the accumulator), direct
// and indirect load/store, add/subtract/shift/inc/dec arithmetic, and
// conditional jumps on the sign of the accumulator. Memory is sparse and
// reading a cell before it is written is a runtime error rather than an
// implicit zero.
package vm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
)

// Op identifies an instruction's opcode, matching the target ISA.
type Op int

const (
	Get Op = iota
	Put
	Load
	Loadi
	Store
	Storei
	Add
	Sub
	Shift
	Inc
	Dec
	Jump
	Jpos
	Jzero
	Jneg
	Halt
)

var opNames = [...]string{
	Get: "GET", Put: "PUT", Load: "LOAD", Loadi: "LOADI",
	Store: "STORE", Storei: "STOREI", Add: "ADD", Sub: "SUB",
	Shift: "SHIFT", Inc: "INC", Dec: "DEC", Jump: "JUMP",
	Jpos: "JPOS", Jzero: "JZERO", Jneg: "JNEG", Halt: "HALT",
}

func (op Op) String() string {
	if int(op) >= 0 && int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// Instruction is one resolved program instruction: an opcode plus the
// address operand opcodes that take one.
type Instruction struct {
	Op   Op
	Addr int64
}

// ErrUninitializedMemory is returned when a cell is read before any
// instruction has written to it.
var ErrUninitializedMemory = errors.New("vm: access to uninitialized memory")

// ErrInstructionPointerOutOfRange is returned when execution runs past
// the end of the program without having hit HALT.
var ErrInstructionPointerOutOfRange = errors.New("vm: instruction pointer out of range")

// instructionCost assigns each opcode a relative execution weight, used
// only for Machine.Cost reporting; nothing in the generator or the
// verifier depends on it.
var instructionCost = map[Op]uint64{
	Get: 100, Put: 100,
	Load: 10, Store: 10, Add: 10, Sub: 10,
	Loadi: 20, Storei: 20,
	Shift: 5,
}

func costOf(op Op) uint64 {
	if c, ok := instructionCost[op]; ok {
		return c
	}
	return 1
}

// Machine is one runnable instance of a compiled program.
type Machine struct {
	Program []Instruction
	Memory  map[int64]int64
	IP      int64
	Cost    uint64

	Input  io.Reader
	Output io.Writer

	in *bufio.Scanner
}

// NewMachine returns a Machine ready to run program against in/out.
// Every cell except cell 0 starts uninitialized.
// Cell 0, the accumulator, starts at 0 rather than joining the rest of
// memory in its uninitialized state: every generated program's first use
// of it is to zero it via SUB(0) (self-subtraction is 0 regardless of
// the operand's value), so there is no well-typed program that could
// ever observe this seed value directly.
func NewMachine(program []Instruction, in io.Reader, out io.Writer) *Machine {
	return &Machine{
		Program: program,
		Memory:  map[int64]int64{0: 0},
		Input:   in,
		Output:  out,
	}
}

func (m *Machine) scanner() *bufio.Scanner {
	if m.in == nil {
		s := bufio.NewScanner(m.Input)
		s.Split(bufio.ScanWords)
		m.in = s
	}
	return m.in
}

func (m *Machine) read(cell int64) (int64, error) {
	v, ok := m.Memory[cell]
	if !ok {
		return 0, fmt.Errorf("%w: cell %d", ErrUninitializedMemory, cell)
	}
	return v, nil
}

func (m *Machine) write(cell, value int64) { m.Memory[cell] = value }

// Step executes exactly one instruction. It returns halted=true once the
// program has executed HALT; any other return means execution may
// continue.
func (m *Machine) Step() (halted bool, err error) {
	if m.IP < 0 || int(m.IP) >= len(m.Program) {
		return false, ErrInstructionPointerOutOfRange
	}
	instr := m.Program[m.IP]
	m.Cost += costOf(instr.Op)

	switch instr.Op {
	case Get:
		if !m.scanner().Scan() {
			if err := m.scanner().Err(); err != nil {
				return false, fmt.Errorf("vm: GET: %w", err)
			}
			return false, fmt.Errorf("vm: GET: unexpected end of input")
		}
		var v int64
		if _, err := fmt.Sscanf(m.scanner().Text(), "%d", &v); err != nil {
			return false, fmt.Errorf("vm: GET: %w", err)
		}
		m.write(0, v)
		m.IP++

	case Put:
		v, err := m.read(0)
		if err != nil {
			return false, err
		}
		if _, err := fmt.Fprintf(m.Output, "%d\n", v); err != nil {
			return false, fmt.Errorf("vm: PUT: %w", err)
		}
		m.IP++

	case Load:
		v, err := m.read(instr.Addr)
		if err != nil {
			return false, err
		}
		m.write(0, v)
		m.IP++

	case Loadi:
		addr, err := m.read(instr.Addr)
		if err != nil {
			return false, err
		}
		v, err := m.read(addr)
		if err != nil {
			return false, err
		}
		m.write(0, v)
		m.IP++

	case Store:
		v, err := m.read(0)
		if err != nil {
			return false, err
		}
		m.write(instr.Addr, v)
		m.IP++

	case Storei:
		addr, err := m.read(instr.Addr)
		if err != nil {
			return false, err
		}
		v, err := m.read(0)
		if err != nil {
			return false, err
		}
		m.write(addr, v)
		m.IP++

	case Add:
		acc, err := m.read(0)
		if err != nil {
			return false, err
		}
		v, err := m.read(instr.Addr)
		if err != nil {
			return false, err
		}
		m.write(0, acc+v)
		m.IP++

	case Sub:
		acc, err := m.read(0)
		if err != nil {
			return false, err
		}
		v, err := m.read(instr.Addr)
		if err != nil {
			return false, err
		}
		m.write(0, acc-v)
		m.IP++

	case Shift:
		acc, err := m.read(0)
		if err != nil {
			return false, err
		}
		v, err := m.read(instr.Addr)
		if err != nil {
			return false, err
		}
		m.write(0, shift(acc, v))
		m.IP++

	case Inc:
		acc, err := m.read(0)
		if err != nil {
			return false, err
		}
		m.write(0, acc+1)
		m.IP++

	case Dec:
		acc, err := m.read(0)
		if err != nil {
			return false, err
		}
		m.write(0, acc-1)
		m.IP++

	case Jump:
		m.IP = instr.Addr

	case Jpos:
		acc, err := m.read(0)
		if err != nil {
			return false, err
		}
		if acc > 0 {
			m.IP = instr.Addr
		} else {
			m.IP++
		}

	case Jzero:
		acc, err := m.read(0)
		if err != nil {
			return false, err
		}
		if acc == 0 {
			m.IP = instr.Addr
		} else {
			m.IP++
		}

	case Jneg:
		acc, err := m.read(0)
		if err != nil {
			return false, err
		}
		if acc < 0 {
			m.IP = instr.Addr
		} else {
			m.IP++
		}

	case Halt:
		return true, nil

	default:
		return false, fmt.Errorf("vm: unknown opcode %v", instr.Op)
	}

	return false, nil
}

// shift implements SHIFT i: M(0) <- floor(M(0) * 2^M(i)); a positive
// shift amount doubles (left shift), negative halves with floor
// semantics (arithmetic right shift), zero is a no-op.
func shift(acc, by int64) int64 {
	switch {
	case by > 0:
		return acc << uint64(by)
	case by < 0:
		return acc >> uint64(-by)
	default:
		return acc
	}
}

// Run executes the program until HALT, a runtime error, or ctx is
// cancelled — the latter exists because GET blocks on input, and a
// caller embedding the VM (e.g. a test harness with a timeout, or a
// server running many programs) needs a way to give up on one that
// never produces output.
func (m *Machine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		halted, err := m.Step()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}
