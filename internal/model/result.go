/*
PURPOSE:
  Defines the simulation result record built by one driver run:
  coil/projectile summaries, the shared drive-current list and the ordered steps.

REQUIREMENTS:
  User-specified:
  - Every step holds one force per drive current, in the same order as Currents.
  - Steps are ordered by increasing distance from the coil centre (index 0 = centre).

  Implementation-discovered:
  - JSON field names follow the historical report layout (PascalCase).

ARCHITECTURE INTEGRATION:
  - Produced by: internal/engine (Driver)
  - Consumed by: internal/output, internal/analysis

ERROR HANDLING:
  - CheckShape() reports a broken step/current invariant.

IMPLEMENTATION RULES:
  - Keep structs simple and public.

USAGE:
  res := model.NewSimResult(params, currents)
  res.Steps = append(res.Steps, model.StepRecord{...})

RELATED FILES:
  - internal/output/json.go
  - internal/output/csv.go

MAINTENANCE:
  - New per-step metrics need a CSV column and a JSON field.
*/

package model

import (
	"fmt"
)

// StepRecord is one projectile position.
type StepRecord struct {
	Distance   float64   `json:"Distance"`   // mm from coil centre
	Inductance float64   `json:"Inductance"` // uH at the reference current
	Forces     []float64 `json:"Forces"`     // N, one per SimResult.Currents entry
}

// CoilSummary is computed once from Params.
type CoilSummary struct {
	Height     float64 `json:"Height"`
	Resistance float64 `json:"Resistance"`
	Layers     float64 `json:"Layers"`
	WireLength float64 `json:"WireLength"`
}

// ProjectileSummary is computed once from Params.
type ProjectileSummary struct {
	Mass float64 `json:"Mass"` // grams
}

// SimResult is the outcome of one completed simulation run.
type SimResult struct {
	RunID      string            `json:"RunID,omitempty"`
	Coil       CoilSummary       `json:"Coil"`
	Projectile ProjectileSummary `json:"Projectile"`
	Currents   []float64         `json:"Currents"`
	Steps      []StepRecord      `json:"Steps"`
}

// NewSimResult creates an empty result with the summaries filled from p.
func NewSimResult(p Params, currents []float64) *SimResult {
	cs := make([]float64, len(currents))
	copy(cs, currents)
	return &SimResult{
		Coil: CoilSummary{
			Height:     p.CoilHeight(),
			Resistance: p.CoilWireResistance(),
			Layers:     p.CoilLayers(),
			WireLength: p.CoilWireLength(),
		},
		Projectile: ProjectileSummary{Mass: p.ProjectileMass()},
		Currents:   cs,
	}
}

// CheckShape verifies that every step carries exactly one force per current
// and that distances increase monotonically.
func (r *SimResult) CheckShape() error {
	for i, s := range r.Steps {
		if len(s.Forces) != len(r.Currents) {
			return fmt.Errorf("step %d has %d forces for %d currents", i, len(s.Forces), len(r.Currents))
		}
		if i > 0 && s.Distance <= r.Steps[i-1].Distance {
			return fmt.Errorf("step %d distance %g does not increase (previous %g)", i, s.Distance, r.Steps[i-1].Distance)
		}
	}
	return nil
}
