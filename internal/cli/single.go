package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/daryltucker/coilgun-sim/internal/engine"
	"github.com/daryltucker/coilgun-sim/internal/femm"
	"github.com/daryltucker/coilgun-sim/internal/model"
	"github.com/daryltucker/coilgun-sim/internal/output"
)

var design struct {
	coilLength         float64
	turns              int
	wire               float64
	projectileDiameter float64
	projectileLength   float64
	material           string
	save               bool
}

var singleCmd = &cobra.Command{
	Use:   "single",
	Short: "Simulate one design",
	Long: `Runs one design built from the config defaults and the flags below, prints its
curves and, with --save, writes its report next to the batch results.`,
	Example: `  coilgun-sim single --coil-length 45 --turns 220 --wire 0.9 --material "Pure Iron"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := singleParams(cmd)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(cfg.ScratchDir, 0755); err != nil {
			return fmt.Errorf("failed to create scratch directory: %w", err)
		}

		newSolver, err := engine.NewSolverFactory(cfg.Solver, catalog)
		if err != nil {
			return err
		}
		solver, err := newSolver()
		if err != nil {
			return err
		}
		s := femm.NewSession(uuid.NewString(), solver)
		res, err := engine.NewDriver(cfg.Sweep, output.Logger).Simulate(cmd.Context(), s, p, filepath.Join(cfg.ScratchDir, "single.fem"))
		if err != nil {
			return err
		}

		rep := output.NewReport(p, res)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (run %s), %d steps\n", rep.Name, rep.RunID, len(rep.Steps))
		fmt.Fprintf(out, "coil: %.3f ohm, %.2f m wire, %.1f layers; projectile: %.3f g\n",
			res.Coil.Resistance, res.Coil.WireLength, res.Coil.Layers, res.Projectile.Mass)
		printSummary(cmd, rep)
		fmt.Fprintln(out, output.Chart(rep, 12, 70))

		if design.save {
			if err := output.WriteReport(cfg.OutputDir, rep); err != nil {
				return err
			}
			output.Logger.Info("Report written", "design", rep.Name, "dir", cfg.OutputDir)
		}
		return nil
	},
}

// singleParams applies the design flags to the config defaults.
func singleParams(cmd *cobra.Command) (model.Params, error) {
	p := cfg.Defaults
	flags := cmd.Flags()
	if flags.Changed("coil-length") {
		p.CoilLength = design.coilLength
	}
	if flags.Changed("turns") {
		p.Turns = design.turns
	}
	if flags.Changed("wire") {
		p.WireDiameter = design.wire
	}
	if flags.Changed("projectile-diameter") {
		p.ProjectileDiameter = design.projectileDiameter
	}
	if flags.Changed("projectile-length") {
		p.ProjectileLength = design.projectileLength
	}
	if flags.Changed("material") {
		m, err := catalog.Lookup(design.material)
		if err != nil {
			return p, fmt.Errorf("%w: projectile material: %w", model.ErrInvalidParams, err)
		}
		p.ProjectileMaterial = m.Name
		p.ProjectileDensity = m.Density
	}
	return p, p.Validate()
}

func printSummary(cmd *cobra.Command, rep output.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "inductance swing: %.2f uH\n", rep.Summary.InductanceSwing)
	for _, c := range rep.Summary.Currents {
		fmt.Fprintf(out, "  %6gA  peak %.4g N at %g mm, work %.4g J\n", c.Current, c.PeakForce, c.PeakDistance, c.Work)
	}
}

func init() {
	rootCmd.AddCommand(singleCmd)

	f := singleCmd.Flags()
	f.Float64Var(&design.coilLength, "coil-length", 0, "Coil length in mm")
	f.IntVar(&design.turns, "turns", 0, "Coil turns")
	f.Float64Var(&design.wire, "wire", 0, "Wire diameter in mm")
	f.Float64Var(&design.projectileDiameter, "projectile-diameter", 0, "Projectile diameter in mm")
	f.Float64Var(&design.projectileLength, "projectile-length", 0, "Projectile length in mm")
	f.StringVar(&design.material, "material", "", "Projectile material from the catalog")
	f.BoolVar(&design.save, "save", false, "Write the JSON/CSV report to the output directory")
}
