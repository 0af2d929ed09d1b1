package asmgen

import (
	"fmt"
	"strings"
)

// Emit renders resolved instructions as the textual assembler form from
// the external interface contract: one instruction per line, an integer
// operand only for opcodes that take one, terminated by HALT.
func Emit(resolved []Resolved) string {
	var b strings.Builder
	for _, r := range resolved {
		if r.Op.HasOperand() {
			fmt.Fprintf(&b, "%s %d\n", r.Op, r.Addr)
		} else {
			fmt.Fprintf(&b, "%s\n", r.Op)
		}
	}
	return b.String()
}
