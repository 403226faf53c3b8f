// Package config loads and saves the simulator's TOML configuration file,
// and supplies the defaults every CLI flag falls back to.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config holds every setting the engine, static analyzer, and debugger
// accept, whether set via config file or CLI flag override.
type Config struct {
	Engine struct {
		HeapCapacity  int `toml:"heap_capacity"`
		StackCapacity int `toml:"stack_capacity"`
	} `toml:"engine"`

	Analyzer struct {
		Forbidden        []string `toml:"forbidden"`
		ForbidLoops      bool     `toml:"forbid_loops"`
		CheckDeadCode    bool     `toml:"check_dead_code"`
		ForbidRecursion  bool     `toml:"forbid_recursion"`
		RequireRecursion bool     `toml:"require_recursion"`
		RecursiveLabels  []string `toml:"recursive_labels"`
	} `toml:"analyzer"`

	Debugger struct {
		HistorySize   int  `toml:"history_size"`
		ShowSource    bool `toml:"show_source"`
		ShowRegisters bool `toml:"show_registers"`
	} `toml:"debugger"`
}

// DefaultConfig returns a configuration with default values, matching the
// spec's HeapCapacity/StackCapacity constants.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Engine.HeapCapacity = 0x4000
	cfg.Engine.StackCapacity = 4096

	cfg.Analyzer.ForbidLoops = false
	cfg.Analyzer.CheckDeadCode = false
	cfg.Analyzer.ForbidRecursion = false
	cfg.Analyzer.RequireRecursion = false

	cfg.Debugger.HistorySize = 1000
	cfg.Debugger.ShowSource = true
	cfg.Debugger.ShowRegisters = true

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "armsim")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "armsim")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file, falling back to
// defaults if the file does not exist.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// SaveTo saves configuration to the specified file.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", closeErr)
		}
	}()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
