/*
PURPOSE:
  Simulation driver. Runs one design through one solver session:
  configure, build boundary, coil and projectile, sweep inductance until the
  projectile decouples, then sweep force over every drive current.

REQUIREMENTS:
  User-specified:
  - States run strictly in order, once: Initialized, Configured,
    BoundaryBuilt, CoilBuilt, ProjectileBuilt, InductanceSweep, ForceSweep,
    Finalized.
  - Step 0 is the coil centre. The projectile walks outward one step at a
    time and every measured step is recorded, the converged one included.
  - The force sweep stops once the projectile is past the coil length and the
    force at the highest current is below the force threshold. Later steps
    are dropped, not zero-filled.
  - Forces are stored as magnitudes; the sign only reaches the debug log.
  - No partial result: a run completes through Finalized or fails.
  - The session is released on every path.

  Implementation-discovered:
  - A non-negligible imaginary part in a static solve means the solver is
    misconfigured; it is logged, not fatal.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go, internal/cli (single)
  - Uses: internal/femm (adapter primitives), internal/model

ERROR HANDLING:
  - Every failure is returned as *RunError carrying the last state reached.

IMPLEMENTATION RULES:
  - Geometry in millimetres, axisymmetric, projectile moves along -z.
  - Group 0 is free space, 1 the coil, 2 the projectile.

USAGE:
  d := engine.NewDriver(cfg.Sweep, logger)
  res, err := d.Simulate(ctx, session, params, scratchPath)

SELF-HEALING INSTRUCTIONS:
  - If a new geometry stage is added, add a State and keep advance() order.

RELATED FILES:
  - internal/femm/adapter.go
  - internal/engine/pool.go

MAINTENANCE:
  - Projectile shapes other than cylinder need their own build stage.
*/

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"

	"github.com/daryltucker/coilgun-sim/internal/config"
	"github.com/daryltucker/coilgun-sim/internal/femm"
	"github.com/daryltucker/coilgun-sim/internal/model"
	"github.com/daryltucker/coilgun-sim/internal/output"
)

// Geometry groups.
const (
	GroupCommon     = femm.AllGroups
	GroupCoil       = 1
	GroupProjectile = 2
)

// Solver-side names.
const (
	AirMaterial     = "Air"
	WireLibraryKey  = "1mm"
	WireAlias       = "Wire"
	ProjectileAlias = "Projectile"
	CoilCircuit     = "Coil"
)

// imagTolerance is the relative imaginary part above which a solve is suspect.
const imagTolerance = 1e-6

// State is a driver stage.
type State int

const (
	Initialized State = iota
	Configured
	BoundaryBuilt
	CoilBuilt
	ProjectileBuilt
	InductanceSweep
	ForceSweep
	Finalized
)

var stateNames = [...]string{"initialized", "configured", "boundary-built", "coil-built",
	"projectile-built", "inductance-sweep", "force-sweep", "finalized"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Driver runs designs. It holds only read-only settings and is safe to share
// between workers.
type Driver struct {
	sweep config.SweepConfig
	log   *slog.Logger
}

// NewDriver returns a driver for the given sweep settings.
func NewDriver(sweep config.SweepConfig, log *slog.Logger) *Driver {
	return &Driver{sweep: sweep, log: log}
}

// CheckFit reports whether p leaves room for the inductance sweep: the
// projectile at its extreme position must stay inside the boundary.
func (d *Driver) CheckFit(p model.Params) error {
	reach := float64(d.sweep.MaxSteps)*d.sweep.StepSize + p.ProjectileLength/2
	if reach >= p.BoundaryRadius {
		return &model.ParamError{Field: "BoundaryRadius", Value: p.BoundaryRadius,
			Reason: fmt.Sprintf("must exceed max_steps*step_size + projectile_length/2 = %g", reach)}
	}
	return nil
}

// run is the state of one Simulate call.
type run struct {
	*Driver
	ctx     context.Context
	s       *femm.Session
	p       model.Params
	scratch string
	state   State
	res     *model.SimResult
	raw     float64
	log     *slog.Logger
}

// Simulate runs p on session s, using scratch as the solver's working file,
// and always closes s.
func (d *Driver) Simulate(ctx context.Context, s *femm.Session, p model.Params, scratch string) (res *model.SimResult, err error) {
	r := &run{
		Driver:  d,
		ctx:     ctx,
		s:       s,
		p:       p,
		scratch: scratch,
		res:     model.NewSimResult(p, d.sweep.Currents),
		log:     d.log.With("design", p.PairName(), "run_id", s.ID()),
	}
	r.res.RunID = s.ID()
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = &RunError{Design: p.PairName(), Stage: r.state, Err: fmt.Errorf("release session: %w", cerr)}
			res = nil
		}
	}()

	steps := []struct {
		next State
		fn   func() error
	}{
		{Configured, r.configure},
		{BoundaryBuilt, r.buildBoundary},
		{CoilBuilt, r.buildCoil},
		{ProjectileBuilt, r.buildProjectile},
		{InductanceSweep, r.sweepInductance},
		{ForceSweep, r.sweepForce},
		{Finalized, r.finalize},
	}
	for _, st := range steps {
		if err := r.advance(st.next, st.fn); err != nil {
			return nil, &RunError{Design: p.PairName(), Stage: r.state, Err: err}
		}
	}
	return r.res, nil
}

func (r *run) advance(next State, fn func() error) error {
	if next != r.state+1 {
		return fmt.Errorf("illegal transition %s -> %s", r.state, next)
	}
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", next, err)
	}
	r.state = next
	r.log.Log(r.ctx, output.LevelTrace, "driver state", "state", next)
	return nil
}

func (r *run) configure() error {
	if err := r.p.Validate(); err != nil {
		return err
	}
	if err := r.CheckFit(r.p); err != nil {
		return err
	}
	doc := r.s.Doc()
	doc.SetProblem(femm.ProblemDef{
		Units:     "millimeters",
		Type:      femm.Axisymmetric,
		Precision: 1e-8,
		Depth:     1,
		MinAngle:  30,
		SmartMesh: true,
	})
	for _, name := range []string{AirMaterial, WireLibraryKey, r.p.ProjectileMaterial} {
		if err := r.s.GetMaterial(name); err != nil {
			return err
		}
	}
	if err := doc.RenameMaterial(WireLibraryKey, WireAlias); err != nil {
		return err
	}
	if err := doc.SetWireDiameter(WireAlias, r.p.WireDiameter); err != nil {
		return err
	}
	return doc.RenameMaterial(r.p.ProjectileMaterial, ProjectileAlias)
}

func (r *run) buildBoundary() error {
	radius := r.p.BoundaryRadius
	r.s.Doc().MakeABC(r.p.BoundaryLayers, radius)
	return femm.AddRegionLabel(r.s, femm.Point{X: 0.1, Y: radius - 0.05*radius}, AirMaterial, "", GroupCommon, 0)
}

func (r *run) buildCoil() error {
	inner := r.p.CoilInnerDiameter() / 2
	outer := r.p.CoilOuterDiameter() / 2
	half := r.p.CoilLength / 2

	r.s.Doc().AddCircuit(CoilCircuit, 1, true)
	if err := femm.AddRectangle(r.s, femm.Point{X: inner, Y: -half}, femm.Point{X: outer, Y: half}, GroupCoil); err != nil {
		return err
	}
	return femm.AddRegionLabel(r.s, femm.Point{X: (inner + outer) / 2, Y: 0}, WireAlias, CoilCircuit, GroupCoil, r.p.Turns)
}

func (r *run) buildProjectile() error {
	radius := r.p.ProjectileDiameter / 2
	half := r.p.ProjectileLength / 2
	if err := femm.AddRectangle(r.s, femm.Point{X: 0, Y: -half}, femm.Point{X: radius, Y: half}, GroupProjectile); err != nil {
		return err
	}
	return femm.AddRegionLabel(r.s, femm.Point{X: radius / 2, Y: 0}, ProjectileAlias, "", GroupProjectile, 0)
}

// sweepInductance measures the decoupled inductance with the projectile at
// the extreme position, then walks outward from the centre until the
// measured inductance is within the threshold of it.
func (r *run) sweepInductance() error {
	step := r.sweep.StepSize
	extreme := float64(r.sweep.MaxSteps) * step

	if err := r.move(-extreme); err != nil {
		return err
	}
	raw, err := r.inductance()
	if err != nil {
		return fmt.Errorf("raw inductance: %w", err)
	}
	r.raw = raw
	if err := r.move(extreme); err != nil {
		return err
	}
	r.log.Debug("raw inductance", "inductance_uh", raw)

	for i := 0; i < r.sweep.MaxSteps; i++ {
		distance := float64(i) * step
		if i > 0 {
			if err := r.move(-step); err != nil {
				return err
			}
		}
		l, err := r.inductance()
		if err != nil {
			return fmt.Errorf("inductance at %g mm: %w", distance, err)
		}
		r.res.Steps = append(r.res.Steps, model.StepRecord{Distance: distance, Inductance: l})
		r.log.Debug("inductance step", "distance_mm", distance, "inductance_uh", l)
		if math.Abs(raw-l) <= r.sweep.InductanceThreshold {
			return nil
		}
	}
	r.log.Warn("inductance did not converge", "steps", r.sweep.MaxSteps, "inductance_uh", r.res.Steps[len(r.res.Steps)-1].Inductance, "raw_uh", raw)
	return nil
}

// sweepForce returns the projectile to the centre and measures the force
// magnitude at every drive current on each recorded step, in recorded order.
func (r *run) sweepForce() error {
	step := r.sweep.StepSize
	last := r.res.Steps[len(r.res.Steps)-1].Distance
	if err := r.move(last); err != nil {
		return err
	}

	limit := len(r.res.Steps)
	if r.sweep.ExtendPastConvergence {
		limit = r.sweep.MaxSteps
	}
	top := len(r.sweep.Currents) - 1
	for i := 0; i < limit; i++ {
		distance := float64(i) * step
		if i > 0 {
			if err := r.move(-step); err != nil {
				return err
			}
		}
		if i == len(r.res.Steps) {
			r.res.Steps = append(r.res.Steps, model.StepRecord{Distance: distance, Inductance: r.raw})
		}
		forces := make([]float64, 0, len(r.sweep.Currents))
		for _, current := range r.sweep.Currents {
			f, err := femm.IntegrateFieldForce(r.ctx, r.s, CoilCircuit, current, GroupProjectile, r.scratch)
			if err != nil {
				return fmt.Errorf("force at %g mm, %g A: %w", distance, current, err)
			}
			r.checkReal(f, "force_n", distance, current)
			forces = append(forces, cmplx.Abs(f))
			r.log.Debug("force step", "distance_mm", distance, "current_a", current, "force_n", real(f))
		}
		r.res.Steps[i].Forces = forces

		if distance > r.p.CoilLength && math.Abs(forces[top]) < r.sweep.ForceThreshold {
			r.res.Steps = r.res.Steps[:i+1]
			r.log.Debug("force sweep early exit", "distance_mm", distance, "force_n", forces[top])
			return nil
		}
	}
	return nil
}

func (r *run) finalize() error {
	if err := r.res.CheckShape(); err != nil {
		return err
	}
	return r.s.Save(r.scratch)
}

func (r *run) move(dy float64) error {
	return femm.TranslateGroup(r.s, 0, dy, GroupProjectile)
}

func (r *run) inductance() (float64, error) {
	l, err := femm.IntegrateInductance(r.ctx, r.s, CoilCircuit, r.sweep.ReferenceCurrent, r.scratch)
	if err != nil {
		return 0, err
	}
	r.checkReal(l, "inductance_uh", -1, r.sweep.ReferenceCurrent)
	return real(l), nil
}

func (r *run) checkReal(v complex128, key string, distance, current float64) {
	if math.Abs(imag(v)) > imagTolerance*math.Max(1, math.Abs(real(v))) {
		r.log.Warn("solver returned complex value for static problem",
			key, real(v), "imag", imag(v), "distance_mm", distance, "current_a", current)
	}
}
