package vm

import "fmt"

// Registers is the named 64-bit register file: x0..x28, fp, lr, sp, xzr.
// xzr always reads as zero; writes to it are accepted (so a decoder never
// has to special-case the destination) but are not observable once the
// main loop re-zeroes it at the end of the step, per the source behavior.
type Registers struct {
	x   [generalRegisterCount]int64
	fp  int64
	lr  int64
	sp  int64
	xzr int64
}

// NewRegisters returns a register file with every register at zero.
func NewRegisters() *Registers {
	return &Registers{}
}

// Get returns the value of a named register. ok is false if name is not a
// known register.
func (r *Registers) Get(name string) (int64, bool) {
	if idx, ok := generalIndex(name); ok {
		return r.x[idx], true
	}
	switch name {
	case "fp":
		return r.fp, true
	case "lr":
		return r.lr, true
	case "sp":
		return r.sp, true
	case "xzr":
		return 0, true
	}
	return 0, false
}

// MustGet is Get but panics on an unknown register name; only used where
// the decoder has already validated the name.
func (r *Registers) MustGet(name string) int64 {
	v, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("vm: unknown register %q", name))
	}
	return v
}

// Set writes a named register. ok is false if name is not a known
// register. A write to xzr is accepted (ok=true) but discarded by
// ZeroXZR at the end of the instruction step.
func (r *Registers) Set(name string, value int64) bool {
	if idx, ok := generalIndex(name); ok {
		r.x[idx] = value
		return true
	}
	switch name {
	case "fp":
		r.fp = value
		return true
	case "lr":
		r.lr = value
		return true
	case "sp":
		r.sp = value
		return true
	case "xzr":
		r.xzr = value
		return true
	}
	return false
}

// ZeroXZR re-establishes the xzr == 0 invariant. Called by the main loop
// after every instruction step.
func (r *Registers) ZeroXZR() {
	r.xzr = 0
}

// SP returns the stack pointer.
func (r *Registers) SP() int64 { return r.sp }

// SetSP sets the stack pointer directly, bypassing Set's name dispatch.
func (r *Registers) SetSP(v int64) { r.sp = v }

// LR returns the link register.
func (r *Registers) LR() int64 { return r.lr }

// Names returns every register name, in a stable display order.
func Names() []string {
	names := make([]string, 0, generalRegisterCount+4)
	for i := 0; i < generalRegisterCount; i++ {
		names = append(names, fmt.Sprintf("x%d", i))
	}
	return append(names, "fp", "lr", "sp", "xzr")
}

// IsRegisterName reports whether name names a register.
func IsRegisterName(name string) bool {
	_, ok := generalIndex(name)
	if ok {
		return true
	}
	switch name {
	case "fp", "lr", "sp", "xzr":
		return true
	}
	return false
}

func generalIndex(name string) (int, bool) {
	if len(name) < 2 || name[0] != 'x' {
		return 0, false
	}
	n := 0
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
		if n >= generalRegisterCount {
			return 0, false
		}
	}
	return n, true
}

// Flags holds the two condition flags the spec models; C and V are not
// implemented (Non-goal) and any instruction that would touch them leaves
// them at their zero-equivalent, so they are simply absent from this type.
type Flags struct {
	Z bool
	N bool
}

// SetFromResult updates Z/N the way every {s}-suffixed data-processing
// instruction does: Z if the result is zero, N if it is negative.
func (f *Flags) SetFromResult(result int64) {
	f.Z = result == 0
	f.N = result < 0
}
