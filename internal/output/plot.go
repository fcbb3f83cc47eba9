package output

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/daryltucker/coilgun-sim/internal/analysis"
)

// RenderPlots writes <name>_force.png and <name>_inductance.png for rep into
// dir and returns their paths.
func RenderPlots(dir string, rep Report) ([]string, error) {
	res := rep.Result()
	xs := analysis.Distances(res)

	force := plot.New()
	force.Title.Text = rep.Name
	force.X.Label.Text = "Distance (mm)"
	force.Y.Label.Text = "Force (N)"
	var lines []any
	for i, c := range rep.Currents {
		lines = append(lines, currentLabel(c), xyData(xs, analysis.Forces(res, i)))
	}
	if err := plotutil.AddLines(force, lines...); err != nil {
		return nil, fmt.Errorf("failed to plot forces: %w", err)
	}

	ind := plot.New()
	ind.Title.Text = rep.Name
	ind.X.Label.Text = "Distance (mm)"
	ind.Y.Label.Text = "Inductance (uH)"
	if err := plotutil.AddLinePoints(ind, "L", xyData(xs, analysis.Inductances(res))); err != nil {
		return nil, fmt.Errorf("failed to plot inductance: %w", err)
	}

	forcePath := filepath.Join(dir, rep.Name+"_force.png")
	indPath := filepath.Join(dir, rep.Name+"_inductance.png")
	if err := force.Save(8*vg.Inch, 4*vg.Inch, forcePath); err != nil {
		return nil, err
	}
	if err := ind.Save(8*vg.Inch, 4*vg.Inch, indPath); err != nil {
		return nil, err
	}
	return []string{forcePath, indPath}, nil
}

// Chart renders the inductance curve and one force curve per current as
// terminal line charts.
func Chart(rep Report, height, width int) string {
	res := rep.Result()
	if len(res.Steps) == 0 {
		return rep.Name + ": no steps recorded\n"
	}
	var b strings.Builder
	b.WriteString(asciigraph.Plot(analysis.Inductances(res),
		asciigraph.Height(height), asciigraph.Width(width), asciigraph.Caption("Inductance (uH) vs distance")))
	b.WriteString("\n\n")
	for i, c := range rep.Currents {
		b.WriteString(asciigraph.Plot(analysis.Forces(res, i),
			asciigraph.Height(height), asciigraph.Width(width), asciigraph.Caption("Force (N) @ "+currentLabel(c))))
		b.WriteString("\n\n")
	}
	return b.String()
}

func currentLabel(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64) + "A"
}

func xyData(xs, ys []float64) plotter.XYs {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X, pts[i].Y = xs[i], ys[i]
	}
	return pts
}
