package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/daryltucker/coilgun-sim/internal/ledger"
)

var (
	statusBatch string
	statusAll   bool
	failedLimit int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report batch progress from the run ledger",
	Long: `Counts designs by the status of their latest ledger row and lists the designs
whose latest attempt failed. Defaults to the most recent batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.LedgerPath == "" {
			return errors.New("no ledger configured (ledger_path is empty)")
		}
		l, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return err
		}
		defer l.Close()

		ctx := cmd.Context()
		batch := statusBatch
		if batch == "" && !statusAll {
			if batch, err = l.LatestBatch(ctx); err != nil {
				return err
			}
		}
		counts, err := l.Counts(ctx, batch)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if batch == "" {
			fmt.Fprintln(out, "all batches")
		} else {
			fmt.Fprintf(out, "batch %s\n", batch)
		}
		fmt.Fprintf(out, "  completed %d, skipped %d, failed %d (%d designs)\n",
			counts.Completed, counts.Skipped, counts.Failed, counts.Total())

		failed, err := l.Failed(ctx, failedLimit)
		if err != nil {
			return err
		}
		if len(failed) == 0 {
			return nil
		}
		fmt.Fprintln(out, "\nfailed designs:")
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INDEX\tDESIGN\tATTEMPT\tSTAGE\tERROR")
		for _, r := range failed {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", r.Index, r.Design, r.Attempt, r.Stage, r.Error)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusBatch, "batch", "", "Batch id (default: latest)")
	statusCmd.Flags().BoolVar(&statusAll, "all", false, "Count across all batches")
	statusCmd.Flags().IntVar(&failedLimit, "failed", 20, "Maximum failed designs to list (0 lists all)")
}
