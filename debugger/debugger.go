// Package debugger is a line-oriented interactive front-end over a
// vm.Engine: breakpoints, watchpoints, single-stepping, and register/
// memory/symbol inspection, grounded on the original project's armdb.py
// command set.
package debugger

import (
	"fmt"
	"strings"

	"github.com/aarch64sim/armsim/vm"
)

// Debugger wraps an Engine with breakpoint/watchpoint bookkeeping, a
// command history, and a buffered output stream the interface layer
// flushes after each command.
type Debugger struct {
	Engine      *vm.Engine
	Breakpoints *BreakpointManager
	Watchpoints *WatchpointManager
	History     *CommandHistory

	Running bool

	output strings.Builder
}

// New returns a Debugger wrapping engine, with empty breakpoint/watchpoint
// sets and a history capped at historySize entries.
func New(engine *vm.Engine, historySize int) *Debugger {
	return &Debugger{
		Engine:      engine,
		Breakpoints: NewBreakpointManager(),
		Watchpoints: NewWatchpointManager(),
		History:     NewCommandHistory(historySize),
	}
}

// GetOutput drains and returns everything written to the output buffer
// since the last call.
func (d *Debugger) GetOutput() string {
	s := d.output.String()
	d.output.Reset()
	return s
}

func (d *Debugger) printf(format string, args ...any) {
	fmt.Fprintf(&d.output, format, args...)
}

// ShouldBreak reports whether the engine is currently sitting on an
// enabled breakpoint, or a watched value has changed, and a human-readable
// reason for the stop.
func (d *Debugger) ShouldBreak() (bool, string) {
	if bp := d.Breakpoints.ProcessHit(d.Engine.PC); bp != nil {
		return true, fmt.Sprintf("breakpoint %d", bp.ID)
	}
	if wp, changed := d.Watchpoints.CheckWatchpoints(d.Engine); changed {
		return true, fmt.Sprintf("watchpoint %d (%s) changed to %d", wp.ID, wp.Expression, wp.LastValue)
	}
	return false, ""
}

// Done reports whether the program has run off the end of the
// instruction list.
func (d *Debugger) Done() bool {
	return d.Engine.PC >= len(d.Engine.Instrs)
}

// resolveTarget turns a "break" argument into an instruction-list
// index: either a bare label name or a decimal PC index.
func (d *Debugger) resolveTarget(tok string) (int, error) {
	tok = strings.TrimSuffix(tok, ":")
	if idx, ok := d.Engine.ResolveLabel(tok); ok {
		return idx, nil
	}
	var n int
	if _, err := fmt.Sscanf(tok, "%d", &n); err == nil {
		return n, nil
	}
	return 0, fmt.Errorf("unknown label or address %q", tok)
}
