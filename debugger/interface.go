package debugger

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Run drives the line-oriented debugger REPL: read a command from r, run
// it, print the command's output (or its error) to w, and if the
// command was "continue" run until a breakpoint, watchpoint, or program
// exit.
func (d *Debugger) Run(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)

	for {
		fmt.Fprint(w, "(armsim) ")

		if !scanner.Scan() {
			break
		}
		cmdLine := strings.TrimSpace(scanner.Text())

		if cmdLine == "quit" || cmdLine == "q" || cmdLine == "exit" {
			fmt.Fprintln(w, "exiting")
			break
		}

		if err := d.ExecuteCommand(cmdLine); err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
		}
		if out := d.GetOutput(); out != "" {
			fmt.Fprint(w, out)
		}

		if d.Running {
			for d.Running {
				if shouldBreak, reason := d.ShouldBreak(); shouldBreak {
					d.Running = false
					fmt.Fprintf(w, "stopped: %s at pc=%d\n", reason, d.Engine.PC)
					break
				}
				done, err := d.Engine.Step()
				if err != nil {
					fmt.Fprintf(w, "runtime error: %v\n", err)
					d.Running = false
					break
				}
				if done {
					fmt.Fprintf(w, "program exited with code %d\n", d.Engine.ExitCode())
					d.Running = false
					break
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("debugger input error: %w", err)
	}
	return nil
}
