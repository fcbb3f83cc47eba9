package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/coilgun-sim/internal/variant"
)

var (
	listVariants bool
	listFrom     int
	listLimit    int
)

var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "Count or list the designs of the configured sweep",
	Long: `Prints how many values each swept dimension takes and the total design count.
With --list, prints each design with its variant index, the number --start-index
of 'run' refers to.`,
	Example: `  coilgun-sim variants
  coilgun-sim variants --list --from 100 --limit 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		c := variant.Count(cfg.Permutations)
		fmt.Fprintf(out, "wire sizes:           %d\n", c.WireSizes)
		fmt.Fprintf(out, "coil lengths:         %d\n", c.CoilLengths)
		fmt.Fprintf(out, "coil turns:           %d\n", c.CoilTurns)
		fmt.Fprintf(out, "projectile diameters: %d\n", c.ProjectileDiameters)
		fmt.Fprintf(out, "projectile lengths:   %d\n", c.ProjectileLengths)
		fmt.Fprintf(out, "total:                %d\n", c.Total())
		if !listVariants {
			return nil
		}

		params, _ := variant.Generate(cfg.Permutations, cfg.Defaults)
		end := len(params)
		if listLimit > 0 && listFrom+listLimit < end {
			end = listFrom + listLimit
		}
		for i := max(listFrom, 0); i < end; i++ {
			fmt.Fprintf(out, "%6d  %s\n", i, params[i].PairName())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(variantsCmd)

	variantsCmd.Flags().BoolVarP(&listVariants, "list", "l", false, "List every design with its index")
	variantsCmd.Flags().IntVar(&listFrom, "from", 0, "First variant index to list")
	variantsCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of designs to list (0 lists all)")
}
