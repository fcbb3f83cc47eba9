/*
PURPOSE:
  Defines the root Cobra command for the Coilgun Sim CLI.
  Handles global flags, config loading and logger setup.

REQUIREMENTS:
  User-specified:
  - Provide a CLI interface.
  - Support global flags like --config and --log-level.

  Implementation-discovered:
  - Needs to expose an Execute() function for main.go.
  - Every subcommand needs the loaded config and material catalog, so they
    are loaded once in PersistentPreRunE.

ARCHITECTURE INTEGRATION:
  - Called by: cmd/coilgun-sim/main.go
  - Calls: Child commands (run, single, variants, status, show, plot, materials)
  - Modifies: output.Logger

ERROR HANDLING:
  - Returns error to main.go for exit code handling.

IMPLEMENTATION RULES:
  - Use `PersistentFlags()` for flags available to all subcommands.
  - Keep Run logic in subcommands, Root is usually empty or helps.

USAGE:
  Called by main.go.

SELF-HEALING INSTRUCTIONS:
  - If adding new global flags, add them to init().
  - If a subcommand sees a nil cfg, check it does not override PersistentPreRunE.

RELATED FILES:
  - cmd/coilgun-sim/main.go
  - internal/config/config.go

MAINTENANCE:
  - Update when adding global configuration options.
*/

package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/daryltucker/coilgun-sim/internal/config"
	"github.com/daryltucker/coilgun-sim/internal/material"
	"github.com/daryltucker/coilgun-sim/internal/output"
)

var (
	// cfgFile stores the path to the config file (if specified via flag)
	cfgFile  string
	logLevel string

	// Loaded by PersistentPreRunE.
	cfg     *config.Config
	catalog *material.Catalog

	rootCmd = &cobra.Command{
		Use:   "coilgun-sim",
		Short: "Batch FEMM simulation of coilgun coil and projectile designs",
		Long: `Sweeps coil and projectile designs through a magnetostatic solver and records
inductance and force against projectile position. Use 'run --help' for batch options.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

// Execute executes the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./coilgun.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides config)")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	// Logs go to stderr so command output on stdout stays pipeable.
	output.SetLogger(output.NewLogger(cfg.LogLevel, os.Stderr))

	catalog, err = material.Load(cfg.MaterialsFile)
	return err
}
