package asmgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jakubdabek/gembiler/vm"
)

// opToVM maps this package's Op (used while still resolving labels) onto
// the already-resolved vm.Op the machine actually executes.
var opToVM = map[Op]vm.Op{
	GET: vm.Get, PUT: vm.Put, LOAD: vm.Load, STORE: vm.Store,
	LOADI: vm.Loadi, STOREI: vm.Storei, ADD: vm.Add, SUB: vm.Sub,
	SHIFT: vm.Shift, INC: vm.Inc, DEC: vm.Dec, JUMP: vm.Jump,
	JPOS: vm.Jpos, JZERO: vm.Jzero, JNEG: vm.Jneg, HALT: vm.Halt,
}

// ToVM converts a fully resolved instruction stream into the form the VM
// actually executes. Resolve's own output already satisfies every
// invariant (addresses in range, exactly one reachable HALT) this just
// re-tags the opcode enum.
func ToVM(resolved []Resolved) []vm.Instruction {
	out := make([]vm.Instruction, len(resolved))
	for i, r := range resolved {
		out[i] = vm.Instruction{Op: opToVM[r.Op], Addr: int64(r.Addr)}
	}
	return out
}

// Assemble parses the textual form from the external interface grammar
// back into instructions the VM can run directly: labels never appear in
// this form (every address is already a resolved instruction index), so
// this is a single pass, unlike Resolve's two.
func Assemble(text string) ([]vm.Instruction, error) {
	lines := strings.Split(text, "\n")
	var out []vm.Instruction
	for i, raw := range lines {
		lineNo := i + 1
		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		op, ok := mnemonics[strings.ToUpper(fields[0])]
		if !ok {
			return nil, fmt.Errorf("asmgen: line %d: unknown instruction %q", lineNo, fields[0])
		}
		instr := vm.Instruction{Op: opToVM[op]}
		if op.HasOperand() {
			if len(fields) != 2 {
				return nil, fmt.Errorf("asmgen: line %d: %s requires exactly one integer operand", lineNo, fields[0])
			}
			addr, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("asmgen: line %d: invalid operand %q: %w", lineNo, fields[1], err)
			}
			instr.Addr = addr
		} else if len(fields) != 1 {
			return nil, fmt.Errorf("asmgen: line %d: %s takes no operand", lineNo, fields[0])
		}
		out = append(out, instr)
	}
	return out, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}
