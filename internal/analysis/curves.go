// Package analysis reduces a simulation result to the figures used to rank
// designs: peak force, where it occurs, and mechanical work per drive current.
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"

	"github.com/daryltucker/coilgun-sim/internal/model"
)

// CurrentSummary describes the force curve at one drive current.
type CurrentSummary struct {
	Current      float64 `json:"Current"`      // A
	PeakForce    float64 `json:"PeakForce"`    // N
	PeakDistance float64 `json:"PeakDistance"` // mm
	Work         float64 `json:"Work"`         // J over the recorded steps
}

// Summary is the analysis of one SimResult.
type Summary struct {
	Steps           int              `json:"Steps"`
	InductanceSwing float64          `json:"InductanceSwing"` // uH, first step minus last
	Currents        []CurrentSummary `json:"Currents"`
}

// Summarize computes the curve summary of res.
func Summarize(res *model.SimResult) Summary {
	sum := Summary{Steps: len(res.Steps)}
	if len(res.Steps) == 0 {
		return sum
	}
	sum.InductanceSwing = res.Steps[0].Inductance - res.Steps[len(res.Steps)-1].Inductance

	xs := Distances(res)
	floats.Scale(1e-3, xs) // mm -> m
	for i, current := range res.Currents {
		fs := Forces(res, i)
		mag := make([]float64, len(fs))
		for j, f := range fs {
			mag[j] = math.Abs(f)
		}
		peak := floats.MaxIdx(mag)
		cs := CurrentSummary{
			Current:      current,
			PeakForce:    fs[peak],
			PeakDistance: res.Steps[peak].Distance,
		}
		if len(fs) > 1 {
			cs.Work = integrate.Trapezoidal(xs, fs)
		}
		sum.Currents = append(sum.Currents, cs)
	}
	return sum
}

// Distances returns the step distances in mm.
func Distances(res *model.SimResult) []float64 {
	xs := make([]float64, len(res.Steps))
	for i, s := range res.Steps {
		xs[i] = s.Distance
	}
	return xs
}

// Inductances returns the step inductances in uH.
func Inductances(res *model.SimResult) []float64 {
	ls := make([]float64, len(res.Steps))
	for i, s := range res.Steps {
		ls[i] = s.Inductance
	}
	return ls
}

// Forces returns the force curve of the current at index.
func Forces(res *model.SimResult, index int) []float64 {
	fs := make([]float64, len(res.Steps))
	for i, s := range res.Steps {
		if index < len(s.Forces) {
			fs[i] = s.Forces[index]
		}
	}
	return fs
}
