package debugger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aarch64sim/armsim/vm"
)

// ExecuteCommand parses and runs one command line, appending any output to
// the debugger's output buffer. Recognized commands (and their grounding
// in the original debugger's command set): step/s, continue/c, break/b,
// delete/d, watch/w, info/registers/r, print/p, mem/x, labels, list/l.
func (d *Debugger) ExecuteCommand(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	d.History.Add(line)

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "step", "s":
		return d.cmdStep(args)
	case "continue", "c":
		return d.cmdContinue()
	case "break", "b":
		return d.cmdBreak(args)
	case "delete", "d":
		return d.cmdDelete(args)
	case "watch", "w":
		return d.cmdWatch(args)
	case "registers", "r", "info":
		return d.cmdRegisters()
	case "print", "p":
		return d.cmdPrint(args)
	case "mem", "x":
		return d.cmdMem(args)
	case "labels":
		return d.cmdLabels()
	case "list", "l":
		return d.cmdList()
	case "help", "h":
		return d.cmdHelp()
	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
}

func (d *Debugger) cmdStep(args []string) error {
	n := 1
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			n = v
		}
	}
	for i := 0; i < n; i++ {
		done, err := d.Engine.Step()
		if err != nil {
			return err
		}
		if done {
			d.printf("program exited with code %d\n", d.Engine.ExitCode())
			return nil
		}
	}
	d.printCurrentLine()
	return nil
}

func (d *Debugger) cmdContinue() error {
	d.Running = true
	return nil
}

func (d *Debugger) cmdBreak(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: break <label|pc>")
	}
	idx, err := d.resolveTarget(args[0])
	if err != nil {
		return err
	}
	bp := d.Breakpoints.AddBreakpoint(idx, false, "")
	d.printf("breakpoint %d set at pc=%d\n", bp.ID, idx)
	return nil
}

func (d *Debugger) cmdDelete(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete <id>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint id %q", args[0])
	}
	if err := d.Breakpoints.DeleteBreakpoint(id); err != nil {
		return err
	}
	d.printf("breakpoint %d deleted\n", id)
	return nil
}

func (d *Debugger) cmdWatch(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: watch <register|addr>")
	}
	expr := args[0]
	var wp *Watchpoint
	if vm.IsRegisterName(expr) {
		wp = d.Watchpoints.AddWatchpoint(WatchReadWrite, expr, 0, true, expr)
	} else {
		addr, err := strconv.Atoi(expr)
		if err != nil {
			return fmt.Errorf("invalid watch target %q", expr)
		}
		wp = d.Watchpoints.AddWatchpoint(WatchReadWrite, expr, addr, false, "")
	}
	if err := d.Watchpoints.InitializeWatchpoint(wp.ID, d.Engine); err != nil {
		return err
	}
	d.printf("watchpoint %d set on %s\n", wp.ID, expr)
	return nil
}

func (d *Debugger) cmdRegisters() error {
	for _, name := range vm.Names() {
		v, _ := d.Engine.Regs.Get(name)
		d.printf("%-4s = %d (0x%x)\n", name, v, v)
	}
	d.printf("flags: Z=%v N=%v\n", d.Engine.Flags.Z, d.Engine.Flags.N)
	return nil
}

func (d *Debugger) cmdPrint(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: print <register|symbol>")
	}
	name := args[0]
	if vm.IsRegisterName(name) {
		v, _ := d.Engine.Regs.Get(name)
		d.printf("%s = %d (0x%x)\n", name, v, v)
		return nil
	}
	val, err := d.Engine.ResolveSymbol(name)
	if err != nil {
		return err
	}
	switch val.Kind.String() {
	case "asciz":
		d.printf("%s = %q\n", name, val.Text)
	case "words8":
		d.printf("%s = %v\n", name, val.Words)
	case "space":
		d.printf("%s = % x\n", name, val.Raw)
	default:
		d.printf("%s = %d\n", name, val.Literal)
	}
	return nil
}

func (d *Debugger) cmdMem(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: mem <addr> [rows]")
	}
	addr, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid address %q", args[0])
	}
	rows := MemoryDisplayDefaultRows
	if len(args) > 1 {
		if v, err := strconv.Atoi(args[1]); err == nil {
			rows = v
		}
	}
	for r := 0; r < rows; r++ {
		base := addr + r*MemoryDisplayBytesPerRow
		if base >= d.Engine.Arena.Len() {
			break
		}
		width := MemoryDisplayBytesPerRow
		if base+width > d.Engine.Arena.Len() {
			width = d.Engine.Arena.Len() - base
		}
		d.printf("0x%04x: % x\n", base, d.Engine.Arena.Raw(base, width))
	}
	return nil
}

func (d *Debugger) cmdLabels() error {
	for _, name := range d.Engine.Syms.Names() {
		d.printf("%s\n", name)
	}
	return nil
}

func (d *Debugger) cmdList() error {
	lo := d.Engine.PC - CodeContextLines
	if lo < 0 {
		lo = 0
	}
	hi := d.Engine.PC + CodeContextLines
	if hi >= len(d.Engine.Instrs) {
		hi = len(d.Engine.Instrs) - 1
	}
	for i := lo; i <= hi; i++ {
		marker := "  "
		if i == d.Engine.PC {
			marker = "->"
		}
		d.printf("%s %4d  %s\n", marker, i, d.Engine.Instrs[i])
	}
	return nil
}

func (d *Debugger) cmdHelp() error {
	d.printf("commands: step(s) [n], continue(c), break(b) <label|pc>, delete(d) <id>,\n")
	d.printf("          watch(w) <reg|addr>, registers(r), print(p) <reg|sym>, mem(x) <addr> [rows],\n")
	d.printf("          labels, list(l), quit\n")
	return nil
}

func (d *Debugger) printCurrentLine() {
	if d.Engine.PC < len(d.Engine.Instrs) {
		d.printf("%4d  %s\n", d.Engine.PC, d.Engine.Instrs[d.Engine.PC])
	}
}
