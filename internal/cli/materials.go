package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var materialsCmd = &cobra.Command{
	Use:   "materials",
	Short: "List the projectile material catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MATERIAL\tDENSITY (g/cm3)\tPERMEABILITY")
		for _, name := range catalog.Names() {
			m, err := catalog.Lookup(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%g\t%g\n", m.Name, m.Density, m.Permeability)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(materialsCmd)
}
