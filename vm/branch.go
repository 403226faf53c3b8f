package vm

import "fmt"

// executeBranch handles cbz/cbnz/b/b.cond/bl/ret. Every taken branch sets
// e.PC to (target-1): Step increments PC by one right after execute
// returns, so this lands exactly on the target instruction.
func (e *Engine) executeBranch(instr *Instr) error {
	switch instr.Op {
	case OpCbnz:
		if e.Regs.MustGet(instr.Rn) != 0 {
			return e.jump(instr.Label)
		}
	case OpCbz:
		if e.Regs.MustGet(instr.Rn) == 0 {
			return e.jump(instr.Label)
		}
	case OpB:
		return e.jump(instr.Label)
	case OpBCond:
		if e.condTaken(instr.Cond) {
			return e.jump(instr.Label)
		}
	case OpBl:
		e.Regs.Set("lr", int64(e.PC))
		// A label's hit count is arrivals-at-the-label plus bl's targeting
		// it, so bl adds its own increment on top of the generic
		// landing-on-a-label-line bump Step already does.
		e.LabelHitCounts[instr.Label+":"]++
		if fn, ok := e.linked[instr.Label]; ok {
			return fn(e)
		}
		return e.jump(instr.Label)
	case OpRet:
		target := e.Regs.LR()
		if target < 0 || target >= int64(len(e.Instrs)) {
			return fmt.Errorf("%w: lr=0x%x out of instruction range", ErrInvalidReturn, target)
		}
		// lr holds the index of the bl instruction itself (bl never
		// increments its own PC before storing it), so landing on lr
		// and letting Step's trailing PC++ run once more resumes at
		// the instruction right after the bl, not the bl itself.
		e.PC = int(target)
	}
	return nil
}

// jump resolves label via a lookup in the frozen label index and sets PC
// to one before the target.
func (e *Engine) jump(label string) error {
	idx, ok := e.labelTarget(label)
	if !ok {
		return fmt.Errorf("%w: branch target %q not found", ErrOutOfBounds, label)
	}
	e.PC = idx - 1
	return nil
}

// condTaken implements the §4.5 conditional-branch truth table, ignoring
// C/V per the Non-goals. b.pl is ¬N ∨ Z, matching the source behavior
// rather than the true architectural "N clear" semantics.
func (e *Engine) condTaken(cond string) bool {
	z, n := e.Flags.Z, e.Flags.N
	switch cond {
	case "eq":
		return z
	case "ne":
		return !z
	case "lt", "mi":
		return n
	case "le":
		return n || z
	case "gt":
		return !n && !z
	case "ge":
		return !n
	case "pl":
		return !n || z
	}
	return false
}
