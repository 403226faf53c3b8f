package vm

import (
	"fmt"

	"github.com/aarch64sim/armsim/parser"
)

// LinkedFunc is a host callback invoked in place of a `bl` whose target
// label is externally linked, per Engine.LinkLabel.
type LinkedFunc func(*Engine) error

// Engine owns everything C3/C4/C5/C6/C8 need: every field below belongs to
// one Engine instance, so two Engines can run concurrently without any
// shared mutable state (this package's only package-level variables are
// sentinel errors and read-only lookup tables).
type Engine struct {
	Regs   *Registers
	Flags  Flags
	Arena  *Arena
	Syms   *parser.SymbolTable
	Instrs []string

	labelIndex map[string]int
	linked     map[string]LinkedFunc

	PC int

	LabelHitCounts map[string]int
	RecursedLabels map[string]bool

	IO HostIO
}

// NewEngine builds an Engine from a parsed program. The arena is
// constructed from prog.StaticData using the spec's default heap/stack
// capacities; the stack pointer starts at Arena.InitialSP().
func NewEngine(prog *parser.Program) *Engine {
	return NewEngineWithCapacity(prog, HeapCapacity, StackCapacity)
}

// NewEngineWithCapacity is NewEngine with caller-supplied heap/stack
// reservations, for a CLI or config override of the defaults. There is no
// cycle budget: a program runs to completion, to a trap, or forever, same
// as the hardware it simulates.
func NewEngineWithCapacity(prog *parser.Program, heapCap, stackCap int) *Engine {
	arena := NewArenaWithCapacity(prog.StaticData, heapCap, stackCap)
	regs := NewRegisters()
	regs.SetSP(arena.InitialSP())
	return &Engine{
		Regs:           regs,
		Arena:          arena,
		Syms:           prog.Symbols,
		Instrs:         prog.Instructions,
		labelIndex:     prog.LabelIndex,
		linked:         make(map[string]LinkedFunc),
		LabelHitCounts: make(map[string]int),
		RecursedLabels: make(map[string]bool),
	}
}

// LinkLabel registers a host callback that runs instead of branching into
// the instruction list whenever `bl label` targets this name. This is how
// a host program exposes native functions to the simulated code (printf-
// style helpers, test harness hooks) without those names ever appearing in
// the instruction list itself.
func (e *Engine) LinkLabel(label string, fn LinkedFunc) {
	e.linked[label] = fn
}

// IsLinked reports whether label is bound to a host callback.
func (e *Engine) IsLinked(label string) bool {
	_, ok := e.linked[label]
	return ok
}

// labelTarget resolves a bare label name (as it appears in a branch
// operand) to an instruction-list index, by looking up "label:" in the
// label index frozen at end of parse.
func (e *Engine) labelTarget(label string) (int, bool) {
	idx, ok := e.labelIndex[label+":"]
	return idx, ok
}

// ResolveLabel is labelTarget exported for external collaborators such as
// the debugger, which needs to turn a "break <label>" argument into a PC
// value without reaching into engine internals.
func (e *Engine) ResolveLabel(label string) (int, bool) {
	return e.labelTarget(label)
}

// Step executes exactly one iteration of the C8 main loop: the
// stack-bounds checks, label bookkeeping, dynamic recursion detection, the
// decode+execute of one instruction, and the end-of-step xzr reset.
// Returns done=true once PC has reached the end of the instruction list.
func (e *Engine) Step() (done bool, err error) {
	if e.PC >= len(e.Instrs) {
		return true, nil
	}
	if e.Regs.SP() <= int64(e.Arena.HeapPtr) {
		return false, fmt.Errorf("%w: sp=0x%x heap_ptr=0x%x", ErrStackOverflow, e.Regs.SP(), e.Arena.HeapPtr)
	}
	if e.Regs.SP() > int64(e.Arena.Len()) {
		return false, fmt.Errorf("%w: sp=0x%x arena_len=0x%x", ErrStackUnderflow, e.Regs.SP(), e.Arena.Len())
	}

	line := e.Instrs[e.PC]
	if parser.IsLabel(line) {
		e.LabelHitCounts[line]++
		e.PC++
		return false, nil
	}

	instr, err := Decode(line)
	if err != nil {
		return false, err
	}

	if instr.Op == OpBl && e.PC == int(e.Regs.LR()) {
		e.RecursedLabels[instr.Label] = true
	}

	if err := e.execute(instr); err != nil {
		return false, err
	}
	e.Regs.ZeroXZR()
	e.PC++
	return false, nil
}

// Run drives Step to completion and then checks the recursion-related
// rules that can only be evaluated after execution (forbid_recursion,
// require_recursion, recursive_labels), per C8.
func (e *Engine) Run(rules DynamicRules) error {
	for {
		done, err := e.Step()
		if err != nil {
			return err
		}
		if done {
			break
		}
	}
	return e.checkDynamicRules(rules)
}

// DynamicRules are the C8 post-execution checks that depend on which
// labels were dynamically detected as recursed.
type DynamicRules struct {
	ForbidRecursion  bool
	RequireRecursion bool
	RecursiveLabels  []string
}

func (e *Engine) checkDynamicRules(rules DynamicRules) error {
	if rules.ForbidRecursion && len(e.RecursedLabels) > 0 {
		return &StaticRuleViolation{Message: "recursion detected but forbidden"}
	}
	if rules.RequireRecursion && len(e.RecursedLabels) == 0 {
		return &StaticRuleViolation{Message: "no recursion detected but required"}
	}
	for _, label := range rules.RecursiveLabels {
		if !e.RecursedLabels[label] {
			return &StaticRuleViolation{Message: "required label never recursed", Line: label}
		}
	}
	return nil
}

// ExitCode returns the value of x0 at termination, per the CLI contract.
func (e *Engine) ExitCode() int64 {
	v, _ := e.Regs.Get("x0")
	return v
}
