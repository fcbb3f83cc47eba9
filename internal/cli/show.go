package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daryltucker/coilgun-sim/internal/output"
)

var (
	chartHeight int
	chartWidth  int
	plotDir     string
)

var showCmd = &cobra.Command{
	Use:   "show <design>",
	Short: "Draw a design's inductance and force curves in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := output.ReadReport(cfg.OutputDir, designName(args[0]))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (run %s), %d steps\n", rep.Name, rep.RunID, len(rep.Steps))
		printSummary(cmd, rep)
		fmt.Fprintln(out, output.Chart(rep, chartHeight, chartWidth))
		return nil
	},
}

var plotCmd = &cobra.Command{
	Use:   "plot <design>",
	Short: "Render a design's inductance and force curves as PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := output.ReadReport(cfg.OutputDir, designName(args[0]))
		if err != nil {
			return err
		}
		dir := plotDir
		if dir == "" {
			dir = cfg.OutputDir
		}
		paths, err := output.RenderPlots(dir, rep)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

// designName accepts a bare design name or a path to one of its reports.
func designName(arg string) string {
	for _, ext := range []string{".json", ".csv"} {
		if name, ok := strings.CutSuffix(arg, ext); ok {
			arg = name
			break
		}
	}
	if i := strings.LastIndexAny(arg, `/\`); i >= 0 {
		arg = arg[i+1:]
	}
	return arg
}

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(plotCmd)

	showCmd.Flags().IntVar(&chartHeight, "height", 12, "Chart height in rows")
	showCmd.Flags().IntVar(&chartWidth, "width", 70, "Chart width in columns")
	plotCmd.Flags().StringVar(&plotDir, "out", "", "Directory for the PNG files (default: output directory)")
}
