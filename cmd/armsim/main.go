// Command armsim runs, statically checks, or debugs a single AArch64
// assembly-subset source file.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aarch64sim/armsim/config"
	"github.com/aarch64sim/armsim/debugger"
	"github.com/aarch64sim/armsim/loader"
	"github.com/aarch64sim/armsim/vm"
)

var (
	cfgFile          string
	heapCapacity     int
	stackCapacity    int
	forbidList       []string
	forbidLoops      bool
	forbidRecursion  bool
	requireRecursion bool
	recursiveLabels  []string
	checkDeadCode    bool
	verbose          bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "armsim",
		Short: "Interpreting simulator for a curated AArch64 instruction subset",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a TOML config file")
	root.PersistentFlags().IntVar(&heapCapacity, "heap-capacity", 0, "heap capacity in bytes (0 = config/default)")
	root.PersistentFlags().IntVar(&stackCapacity, "stack-capacity", 0, "stack capacity in bytes (0 = config/default)")
	root.PersistentFlags().StringSliceVar(&forbidList, "forbid", nil, "forbid a mnemonic (repeatable)")
	root.PersistentFlags().BoolVar(&forbidLoops, "forbid-loops", false, "fail static analysis if any backward branch forms a loop")
	root.PersistentFlags().BoolVar(&forbidRecursion, "forbid-recursion", false, "fail if dynamic recursion is detected")
	root.PersistentFlags().BoolVar(&requireRecursion, "require-recursion", false, "fail if no dynamic recursion is detected")
	root.PersistentFlags().StringSliceVar(&recursiveLabels, "recursive-label", nil, "require this label to recurse (repeatable)")
	root.PersistentFlags().BoolVar(&checkDeadCode, "check-dead-code", false, "fail static analysis on unreachable code after ret/b")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newRunCmd(), newCheckCmd(), newDebugCmd(), newTUICmd())
	return root
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if heapCapacity > 0 {
		cfg.Engine.HeapCapacity = heapCapacity
	}
	if stackCapacity > 0 {
		cfg.Engine.StackCapacity = stackCapacity
	}
	if len(forbidList) > 0 {
		cfg.Analyzer.Forbidden = forbidList
	}
	if forbidLoops {
		cfg.Analyzer.ForbidLoops = true
	}
	if forbidRecursion {
		cfg.Analyzer.ForbidRecursion = true
	}
	if requireRecursion {
		cfg.Analyzer.RequireRecursion = true
	}
	if len(recursiveLabels) > 0 {
		cfg.Analyzer.RecursiveLabels = recursiveLabels
	}
	if checkDeadCode {
		cfg.Analyzer.CheckDeadCode = true
	}
	return cfg, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Statically check and execute a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			engine, prog, err := loader.Load(args[0], cfg)
			if err != nil {
				return err
			}
			engine.IO = vm.NewStdIO(os.Stdin, os.Stdout)

			if err := vm.CheckStatic(prog, nil, loader.AnalyzerConfig(cfg)); err != nil {
				return err
			}
			log.Debug("static checks passed", "file", args[0])

			if err := engine.Run(loader.DynamicRules(cfg)); err != nil {
				return err
			}

			os.Exit(int(engine.ExitCode()))
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Run only the static analyzer, without executing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, prog, err := loader.Load(args[0], cfg)
			if err != nil {
				return err
			}
			if err := vm.CheckStatic(prog, nil, loader.AnalyzerConfig(cfg)); err != nil {
				var violation *vm.StaticRuleViolation
				if errors.As(err, &violation) {
					fmt.Fprintln(os.Stderr, violation.Error())
					os.Exit(1)
				}
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func newDebugCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "debug <file>",
		Short: "Run under the interactive line-oriented debugger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			engine, prog, err := loader.Load(args[0], cfg)
			if err != nil {
				return err
			}
			engine.IO = vm.NewStdIO(os.Stdin, os.Stdout)

			if err := vm.CheckStatic(prog, nil, loader.AnalyzerConfig(cfg)); err != nil {
				return err
			}

			dbg := debugger.New(engine, cfg.Debugger.HistorySize)
			return dbg.Run(os.Stdin, os.Stdout)
		},
	}
}

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui <file>",
		Short: "Run under the full-screen debugger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			engine, prog, err := loader.Load(args[0], cfg)
			if err != nil {
				return err
			}
			engine.IO = vm.NewStdIO(os.Stdin, os.Stdout)

			if err := vm.CheckStatic(prog, nil, loader.AnalyzerConfig(cfg)); err != nil {
				return err
			}

			dbg := debugger.New(engine, cfg.Debugger.HistorySize)
			return debugger.NewTUI(dbg).Run()
		},
	}
}
