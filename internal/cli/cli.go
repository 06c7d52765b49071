// Package cli wires configuration, logging, and the session components into
// the enderbridge commands.
package cli

import (
	"fmt"

	"github.com/VincentDePincent/EnderV3KE-integration/internal/config"
)

// CLI is the top-level command tree.
type CLI struct {
	Globals

	Run     RunCmd     `cmd:"" default:"1" help:"Run the telemetry bridge"`
	Config  ConfigCmd  `cmd:"" help:"Print the effective configuration"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// Globals carries flags shared by all commands.
type Globals struct {
	ConfigFile string `short:"c" name:"config" help:"Path to config file" type:"path"`
	LogLevel   string `help:"Override log level (debug, info, warn, error)"`
	Verbose    bool   `short:"v" help:"Shortcut for --log-level=debug"`
}

// loadConfig loads from the explicit file when given, otherwise from the
// standard search paths, and applies global flag overrides.
func (g *Globals) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.ConfigFile != "" {
		cfg, err = config.LoadFromFile(g.ConfigFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}
