/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes the full design sweep.

REQUIREMENTS:
  User-specified:
  - Run every variant of the configured sweep.
  - Specific flags for overrides.
  - Resume from a variant index; finished designs are skipped anyway.

  Implementation-discovered:
  - Need to load config first.
  - Apply flag overrides to config.
  - The progress server lives exactly as long as the batch.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Run()
  - Uses: internal/config, internal/ledger, internal/progress

ERROR HANDLING:
  - Returns error if config load fails or engine run fails.
  - Interrupt drains the batch and returns context.Canceled.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Engine.Run.

USAGE:
  coilgun-sim run --workers 8 --start-index 120

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config struct fields generally.

RELATED FILES:
  - internal/cli/root.go
  - internal/engine/runner.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/daryltucker/coilgun-sim/internal/engine"
	"github.com/daryltucker/coilgun-sim/internal/ledger"
	"github.com/daryltucker/coilgun-sim/internal/output"
	"github.com/daryltucker/coilgun-sim/internal/progress"
)

var (
	outputOverride   string
	workersOverride  int
	startOverride    int
	retriesOverride  int
	backendOverride  string
	progressOverride string
	ledgerOverride   string
	noLedger         bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the design sweep",
	Long: `Simulates every coil/projectile design of the configured sweep.
Each design goes through a fresh solver session:
1. Build: boundary, coil and projectile geometry.
2. Inductance sweep: walk the projectile out of the coil until it decouples.
3. Force sweep: measure the axial force at every drive current on each step.

Results are saved as <design>.json and <design>.csv. A design with both files
is skipped, so an interrupted batch resumes by running it again.`,
	Example: `  # Run with defaults (uses coilgun.yaml)
  coilgun-sim run

  # Use the FEMM backend with 8 workers
  coilgun-sim run --backend femm --workers 8

  # Resume from variant 120 and stream progress to websocket clients
  coilgun-sim run --start-index 120 --progress-addr :8088`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if outputOverride != "" {
			cfg.OutputDir = outputOverride
		}
		if flags.Changed("workers") {
			cfg.Workers = workersOverride
		}
		if flags.Changed("start-index") {
			cfg.StartIndex = startOverride
		}
		if flags.Changed("max-retries") {
			cfg.MaxRetries = retriesOverride
		}
		if backendOverride != "" {
			cfg.Solver.Backend = backendOverride
		}
		if progressOverride != "" {
			cfg.ProgressAddr = progressOverride
		}
		if ledgerOverride != "" {
			cfg.LedgerPath = ledgerOverride
		}
		if noLedger {
			cfg.LedgerPath = ""
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		opts := []engine.Option{engine.WithCatalog(catalog), engine.WithLogger(output.Logger)}
		if cfg.LedgerPath != "" {
			l, err := ledger.Open(cfg.LedgerPath)
			if err != nil {
				return err
			}
			defer l.Close()
			opts = append(opts, engine.WithRecorder(l))
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		serveCtx, stopServe := context.WithCancel(ctx)
		defer stopServe()
		if cfg.ProgressAddr != "" {
			hub := progress.NewHub(output.Logger)
			opts = append(opts, engine.WithPublisher(hub))
			g.Go(func() error { return progress.Serve(serveCtx, cfg.ProgressAddr, hub) })
			output.Logger.Info("Progress server listening", "addr", cfg.ProgressAddr, "path", "/ws")
		}

		var sum engine.Summary
		g.Go(func() error {
			defer stopServe()
			var err error
			sum, err = engine.Run(ctx, cfg, opts...)
			return err
		})
		err := g.Wait()

		fmt.Fprintf(cmd.OutOrStdout(), "batch %s: %d designs, %d completed, %d skipped, %d failed in %s\n",
			sum.BatchID, sum.Total, sum.Completed, sum.Skipped, sum.Failed, sum.Elapsed.Round(time.Second))
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&outputOverride, "output-dir", "o", "", "Output directory for design reports (JSON/CSV)")
	runCmd.Flags().IntVarP(&workersOverride, "workers", "w", 0, "Number of concurrent solver workers")
	runCmd.Flags().IntVar(&startOverride, "start-index", 0, "Resume from this variant index")
	runCmd.Flags().IntVar(&retriesOverride, "max-retries", 0, "Extra attempts for a design whose solve fails")
	runCmd.Flags().StringVar(&backendOverride, "backend", "", "Solver backend: analytic or femm")
	runCmd.Flags().StringVar(&progressOverride, "progress-addr", "", "Serve websocket progress events on this address")
	runCmd.Flags().StringVar(&ledgerOverride, "ledger", "", "SQLite run ledger path")
	runCmd.Flags().BoolVar(&noLedger, "no-ledger", false, "Do not record runs in the ledger")
}
