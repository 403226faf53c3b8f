package vm

import "fmt"

// executeMemory handles ldp/stp/ldr (including `=var`)/str.
func (e *Engine) executeMemory(instr *Instr) error {
	switch instr.Op {
	case OpLdrLit:
		sym, ok := e.Syms.Lookup(instr.Var)
		if !ok {
			return fmt.Errorf("%w: undefined symbol %q", ErrSyntaxOrUnsupported, instr.Var)
		}
		e.Regs.Set(instr.Rt, sym.Value)
		return nil

	case OpLdr:
		addr, err := e.effectiveAddress(instr)
		if err != nil {
			return err
		}
		v, err := e.Arena.ReadInt64(addr, e.Regs.SP())
		if err != nil {
			return err
		}
		e.Regs.Set(instr.Rt, v)
		return nil

	case OpStr:
		addr, err := e.effectiveAddress(instr)
		if err != nil {
			return err
		}
		return e.Arena.WriteInt64(addr, e.Regs.MustGet(instr.Rt), e.Regs.SP())

	case OpLdp:
		addr, err := e.pairAddress(instr)
		if err != nil {
			return err
		}
		v1, err := e.Arena.ReadInt64(addr, e.Regs.SP())
		if err != nil {
			return err
		}
		v2, err := e.Arena.ReadInt64(addr+8, e.Regs.SP())
		if err != nil {
			return err
		}
		e.Regs.Set(instr.Rt, v1)
		e.Regs.Set(instr.Rt2, v2)
		return nil

	case OpStp:
		addr, err := e.pairAddress(instr)
		if err != nil {
			return err
		}
		if err := e.Arena.WriteInt64(addr, e.Regs.MustGet(instr.Rt), e.Regs.SP()); err != nil {
			return err
		}
		return e.Arena.WriteInt64(addr+8, e.Regs.MustGet(instr.Rt2), e.Regs.SP())
	}
	return nil
}

// effectiveAddress computes a single load/store's address, applying
// pre/post-index write-back to Rn as a side effect.
func (e *Engine) effectiveAddress(instr *Instr) (int, error) {
	base := e.Regs.MustGet(instr.Rn)
	switch instr.Mode {
	case AddrPlain:
		return int(base), nil
	case AddrOffset:
		return int(base + instr.Offset), nil
	case AddrPreIndex:
		newBase := base + instr.Offset
		e.Regs.Set(instr.Rn, newBase)
		return int(newBase), nil
	case AddrPostIndex:
		e.Regs.Set(instr.Rn, base+instr.Offset)
		return int(base), nil
	case AddrRegister:
		return int(base + e.Regs.MustGet(instr.Rm)), nil
	}
	return int(base), nil
}

// pairAddress is effectiveAddress's counterpart for ldp/stp, which never
// take a register-offset form.
func (e *Engine) pairAddress(instr *Instr) (int, error) {
	base := e.Regs.MustGet(instr.Rn)
	switch instr.Mode {
	case AddrPlain:
		return int(base), nil
	case AddrOffset:
		return int(base + instr.Offset), nil
	case AddrPreIndex:
		newBase := base + instr.Offset
		e.Regs.Set(instr.Rn, newBase)
		return int(newBase), nil
	case AddrPostIndex:
		e.Regs.Set(instr.Rn, base+instr.Offset)
		return int(base), nil
	}
	return int(base), nil
}
