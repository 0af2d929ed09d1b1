package vm

import (
	"fmt"
	"strings"
)

// Disassemble renders a resolved program back to the textual assembler
// form, one instruction per line, each followed by its own index as a
// trailing comment so a reader can correlate a jump target with the line it
// lands on without counting.
func Disassemble(program []Instruction) string {
	var b strings.Builder
	for i, instr := range program {
		switch instr.Op {
		case Get, Put, Inc, Dec, Halt:
			fmt.Fprintf(&b, "%s # %d\n", instr.Op, i)
		default:
			fmt.Fprintf(&b, "%s %d # %d\n", instr.Op, instr.Addr, i)
		}
	}
	return b.String()
}
