package asmgen

import "fmt"

// Resolve performs the two required passes over a code generator's
// instruction stream: the first assigns every real instruction its final
// 0-based index and records where each label landed; the second rewrites
// every label-referencing instruction to that recorded index. A label
// that is never defined, or a reference that outlives resolution, is an
// internal-error condition — the code generator is never supposed to
// produce one.
func Resolve(items []Item) ([]Resolved, error) {
	positions := make(map[int]int) // ir.Label (as int) -> instruction index
	index := 0
	for _, it := range items {
		if it.IsLabelDef {
			key := int(it.LabelDef)
			if _, exists := positions[key]; exists {
				return nil, fmt.Errorf("asmgen: label %d defined more than once", key)
			}
			positions[key] = index
			continue
		}
		index++
	}

	out := make([]Resolved, 0, index)
	for _, it := range items {
		if it.IsLabelDef {
			continue
		}
		instr := it.Instr
		if !instr.Op.HasOperand() {
			out = append(out, Resolved{Op: instr.Op})
			continue
		}
		if !instr.IsLabel {
			out = append(out, Resolved{Op: instr.Op, Addr: instr.Addr})
			continue
		}
		pos, ok := positions[int(instr.Label)]
		if !ok {
			return nil, fmt.Errorf("asmgen: unresolved label %d referenced by %s", int(instr.Label), instr.Op)
		}
		out = append(out, Resolved{Op: instr.Op, Addr: uint64(pos)})
	}

	if len(out) == 0 || out[len(out)-1].Op != HALT {
		return nil, fmt.Errorf("asmgen: instruction stream does not end in HALT")
	}
	for i, r := range out {
		if r.Op == JUMP || r.Op == JPOS || r.Op == JZERO || r.Op == JNEG {
			if int(r.Addr) < 0 || int(r.Addr) >= len(out) {
				return nil, fmt.Errorf("asmgen: instruction %d jumps to out-of-range address %d", i, r.Addr)
			}
		}
	}

	return out, nil
}
