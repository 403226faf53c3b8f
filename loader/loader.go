// Package loader wires the parser and vm packages together: read a source
// file, parse it, and build an Engine configured per config.Config.
package loader

import (
	"bufio"
	"fmt"
	"os"

	"github.com/aarch64sim/armsim/config"
	"github.com/aarch64sim/armsim/parser"
	"github.com/aarch64sim/armsim/vm"
)

// Load reads path, runs the section parser over it, and returns the
// resulting Program alongside a fully-configured Engine.
func Load(path string, cfg *config.Config) (*vm.Engine, *parser.Program, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loader: %w", err)
	}

	prog, err := parser.Parse(lines, path)
	if err != nil {
		return nil, nil, err
	}

	engine := vm.NewEngineWithCapacity(
		prog,
		cfg.Engine.HeapCapacity,
		cfg.Engine.StackCapacity,
	)
	return engine, prog, nil
}

// AnalyzerConfig extracts the C7 analyzer settings from cfg.
func AnalyzerConfig(cfg *config.Config) vm.AnalyzerConfig {
	return vm.AnalyzerConfig{
		Forbidden:     cfg.Analyzer.Forbidden,
		ForbidLoops:   cfg.Analyzer.ForbidLoops,
		CheckDeadCode: cfg.Analyzer.CheckDeadCode,
	}
}

// DynamicRules extracts the C8 post-execution recursion settings from cfg.
func DynamicRules(cfg *config.Config) vm.DynamicRules {
	return vm.DynamicRules{
		ForbidRecursion:  cfg.Analyzer.ForbidRecursion,
		RequireRecursion: cfg.Analyzer.RequireRecursion,
		RecursiveLabels:  cfg.Analyzer.RecursiveLabels,
	}
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path) // #nosec G304 -- path is an explicit CLI argument
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
