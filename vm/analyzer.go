package vm

import (
	"strings"

	"github.com/samber/lo"

	"github.com/aarch64sim/armsim/parser"
)

// AnalyzerConfig is the set of optional, pedagogy-oriented rules C7 can
// enforce before execution starts.
type AnalyzerConfig struct {
	Forbidden     []string
	ForbidLoops   bool
	CheckDeadCode bool
}

// CheckStatic runs every C7 rule against prog, treating any label name in
// linked as a valid branch target even though it never appears in
// prog.Instructions. Returns a *StaticRuleViolation (wrapping
// ErrStaticRuleViolation) on the first rule violated.
func CheckStatic(prog *parser.Program, linked map[string]bool, cfg AnalyzerConfig) error {
	if len(prog.Instructions) == 0 {
		return &StaticRuleViolation{Message: "no code"}
	}

	if err := checkForbiddenMnemonics(prog, cfg.Forbidden); err != nil {
		return err
	}
	if err := checkDuplicateLabels(prog); err != nil {
		return err
	}
	if err := checkBranchTargets(prog, linked); err != nil {
		return err
	}
	if cfg.ForbidLoops {
		if err := checkNoLoops(prog); err != nil {
			return err
		}
	}
	if cfg.CheckDeadCode {
		if err := checkDeadCode(prog); err != nil {
			return err
		}
	}
	return nil
}

func checkForbiddenMnemonics(prog *parser.Program, forbidden []string) error {
	if len(forbidden) == 0 {
		return nil
	}
	for _, line := range prog.Instructions {
		if parser.IsLabel(line) {
			continue
		}
		mnem, _ := splitMnemonic(line)
		if lo.Contains(forbidden, mnem) {
			return &StaticRuleViolation{Message: "forbidden mnemonic " + mnem, Line: line}
		}
	}
	return nil
}

func checkDuplicateLabels(prog *parser.Program) error {
	seen := make(map[string]bool)
	for _, line := range prog.Instructions {
		if !parser.IsLabel(line) {
			continue
		}
		if seen[line] {
			return &StaticRuleViolation{Message: "duplicate label", Line: line}
		}
		seen[line] = true
	}
	return nil
}

// isBranchMnemonic reports whether mnem is one of the instructions whose
// operand set includes a branch target: b, b.*, bl, cbz, cbnz.
func isBranchMnemonic(mnem string) bool {
	return mnem == "b" || mnem == "bl" || mnem == "cbz" || mnem == "cbnz" || strings.HasPrefix(mnem, "b.")
}

func checkBranchTargets(prog *parser.Program, linked map[string]bool) error {
	for _, line := range prog.Instructions {
		if parser.IsLabel(line) {
			continue
		}
		mnem, _ := splitMnemonic(line)
		if !isBranchMnemonic(mnem) {
			continue
		}
		instr, err := Decode(line)
		if err != nil {
			return &StaticRuleViolation{Message: err.Error(), Line: line}
		}
		if _, ok := prog.LabelIndex[instr.Label+":"]; ok {
			continue
		}
		if linked[instr.Label] {
			continue
		}
		return &StaticRuleViolation{Message: "branch target does not exist: " + instr.Label, Line: line}
	}
	return nil
}

func checkNoLoops(prog *parser.Program) error {
	for i, line := range prog.Instructions {
		if parser.IsLabel(line) {
			continue
		}
		mnem, _ := splitMnemonic(line)
		if mnem == "bl" || !isBranchMnemonic(mnem) {
			continue
		}
		instr, err := Decode(line)
		if err != nil {
			continue
		}
		targetIdx, ok := prog.LabelIndex[instr.Label+":"]
		if !ok {
			continue
		}
		if targetIdx <= i {
			return &StaticRuleViolation{Message: "backward branch forms a loop", Line: line}
		}
	}
	return nil
}

func checkDeadCode(prog *parser.Program) error {
	for i, line := range prog.Instructions {
		if parser.IsLabel(line) {
			continue
		}
		mnem, _ := splitMnemonic(line)
		if mnem != "ret" && mnem != "b" {
			continue
		}
		if i == len(prog.Instructions)-1 {
			continue
		}
		next := prog.Instructions[i+1]
		if !parser.IsLabel(next) {
			return &StaticRuleViolation{Message: "dead code after " + mnem, Line: next}
		}
	}
	return nil
}
