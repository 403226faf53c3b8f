package debugger

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// TUI is a minimal full-screen front-end over a Debugger: a source/PC view,
// a register dump, an output log, and a command line. It drives the same
// Debugger.ExecuteCommand path the line-oriented Run loop uses, so any
// command recognized there works here too.
type TUI struct {
	Debugger *Debugger
	App      *tview.Application

	SourceView   *tview.TextView
	RegisterView *tview.TextView
	OutputView   *tview.TextView
	CommandInput *tview.InputField
}

// NewTUI builds a TUI wrapping dbg. Call Run to start the event loop.
func NewTUI(dbg *Debugger) *TUI {
	t := &TUI{
		Debugger: dbg,
		App:      tview.NewApplication(),
	}
	t.initializeViews()
	t.refresh()
	return t
}

func (t *TUI) initializeViews() {
	t.SourceView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	t.SourceView.SetBorder(true).SetTitle(" Source ")

	t.RegisterView = tview.NewTextView().SetDynamicColors(true)
	t.RegisterView.SetBorder(true).SetTitle(" Registers ")

	t.OutputView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(true)
	t.OutputView.SetBorder(true).SetTitle(" Output ")

	t.CommandInput = tview.NewInputField().SetLabel("> ")
	t.CommandInput.SetBorder(true).SetTitle(" Command ")
	t.CommandInput.SetDoneFunc(t.handleCommand)

	top := tview.NewFlex().
		AddItem(t.SourceView, 0, 2, false).
		AddItem(t.RegisterView, 0, 1, false)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(top, 0, 3, false).
		AddItem(t.OutputView, 0, 2, false).
		AddItem(t.CommandInput, 3, 0, true)

	t.App.SetRoot(layout, true).SetFocus(t.CommandInput)
}

func (t *TUI) handleCommand(key tcell.Key) {
	if key != tcell.KeyEnter {
		return
	}
	line := strings.TrimSpace(t.CommandInput.GetText())
	t.CommandInput.SetText("")
	if line == "" {
		return
	}
	if line == "quit" || line == "q" || line == "exit" {
		t.App.Stop()
		return
	}

	if err := t.Debugger.ExecuteCommand(line); err != nil {
		fmt.Fprintf(&outputSink{t}, "error: %v\n", err)
	}
	if t.Debugger.Running {
		t.runUntilStop()
	}
	t.refresh()
}

func (t *TUI) runUntilStop() {
	for t.Debugger.Running {
		if shouldBreak, reason := t.Debugger.ShouldBreak(); shouldBreak {
			t.Debugger.Running = false
			fmt.Fprintf(t.OutputView, "stopped: %s at pc=%d\n", reason, t.Debugger.Engine.PC)
			break
		}
		done, err := t.Debugger.Engine.Step()
		if err != nil {
			fmt.Fprintf(t.OutputView, "runtime error: %v\n", err)
			t.Debugger.Running = false
			break
		}
		if done {
			fmt.Fprintf(t.OutputView, "program exited with code %d\n", t.Debugger.Engine.ExitCode())
			t.Debugger.Running = false
			break
		}
	}
}

// outputSink adapts fmt.Fprintf's io.Writer requirement to the TUI's
// output view. It writes straight to the view, so an error appears there
// before the command's own buffered output, which refresh flushes later.
type outputSink struct{ t *TUI }

func (s *outputSink) Write(p []byte) (int, error) {
	return fmt.Fprint(s.t.OutputView, string(p))
}

func (t *TUI) refresh() {
	if out := t.Debugger.GetOutput(); out != "" {
		fmt.Fprint(t.OutputView, out)
	}

	t.RegisterView.Clear()
	e := t.Debugger.Engine
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("x%d", i)
		v, _ := e.Regs.Get(name)
		fmt.Fprintf(t.RegisterView, "%-4s = %d\n", name, v)
	}
	fmt.Fprintf(t.RegisterView, "sp   = %d\n", e.Regs.SP())
	fmt.Fprintf(t.RegisterView, "lr   = %d\n", e.Regs.LR())
	fmt.Fprintf(t.RegisterView, "pc   = %d\n", e.PC)
	fmt.Fprintf(t.RegisterView, "Z=%v N=%v\n", e.Flags.Z, e.Flags.N)

	t.SourceView.Clear()
	lo := e.PC - CodeContextLines
	if lo < 0 {
		lo = 0
	}
	hi := e.PC + CodeContextLines
	if hi >= len(e.Instrs) {
		hi = len(e.Instrs) - 1
	}
	for i := lo; i <= hi; i++ {
		marker := "  "
		if i == e.PC {
			marker = "[yellow]->[-]"
		}
		fmt.Fprintf(t.SourceView, "%s %4d  %s\n", marker, i, e.Instrs[i])
	}
}

// Run starts the full-screen event loop; it returns when the user quits.
func (t *TUI) Run() error {
	return t.App.Run()
}
