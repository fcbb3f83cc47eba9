package engine

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/daryltucker/coilgun-sim/internal/config"
	"github.com/daryltucker/coilgun-sim/internal/femm"
	"github.com/daryltucker/coilgun-sim/internal/model"
	"github.com/daryltucker/coilgun-sim/internal/output"
)

func testSweep() config.SweepConfig {
	sw := config.DefaultConfig().Sweep
	sw.MaxSteps = 20
	return sw
}

func shortCoil() model.Params {
	p := model.DefaultParams()
	p.CoilLength = 5
	return p
}

func simulate(t *testing.T, env *synthEnv, sw config.SweepConfig, p model.Params) (*model.SimResult, error) {
	t.Helper()
	d := NewDriver(sw, output.Discard())
	s := femm.NewSession("run-"+t.Name(), newSynth(env))
	return d.Simulate(context.Background(), s, p, filepath.Join(t.TempDir(), "temp0.fem"))
}

func TestSimulate_ConvergenceStepCount(t *testing.T) {
	env := &synthEnv{inductance: steppedInductance, force: func(d, i float64) float64 { return i }}
	res, err := simulate(t, env, testSweep(), shortCoil())
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	// Gap to the flat tail is 10-d; first d with gap <= 0.25 is 10.
	if len(res.Steps) != 11 {
		t.Fatalf("recorded %d steps, want 11", len(res.Steps))
	}
	for i, s := range res.Steps {
		if s.Distance != float64(i) {
			t.Errorf("step %d distance = %g, want %d", i, s.Distance, i)
		}
		want := 220 + math.Max(0, 10-float64(i))
		if math.Abs(s.Inductance-want) > 1e-9 {
			t.Errorf("step %d inductance = %g, want %g", i, s.Inductance, want)
		}
	}
	if res.RunID != "run-"+t.Name() {
		t.Errorf("RunID = %q", res.RunID)
	}
	if got := env.closed.Load(); got != 1 {
		t.Errorf("session closed %d times, want 1", got)
	}
}

func TestSimulate_ForceEarlyExit(t *testing.T) {
	tests := []struct {
		name      string
		force     func(d, i float64) float64
		wantSteps int
	}{
		// Top-current force drops below 0.1 N at 8 mm, past the 5 mm coil.
		{"cliff past coil", cliffForce, 9},
		// Force vanishes at 2 mm but the exit waits until distance > coil length.
		{"vanishes inside coil", func(d, i float64) float64 {
			if d < 2 {
				return i
			}
			return 0
		}, 7},
		// Only the highest current counts: low currents are tiny from the start.
		{"keyed on highest current", func(d, i float64) float64 {
			if i < 1000 {
				return 0
			}
			return 50
		}, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &synthEnv{inductance: steppedInductance, force: tt.force}
			res, err := simulate(t, env, testSweep(), shortCoil())
			if err != nil {
				t.Fatalf("Simulate() error = %v", err)
			}
			if len(res.Steps) != tt.wantSteps {
				t.Fatalf("recorded %d steps, want %d", len(res.Steps), tt.wantSteps)
			}
			if err := res.CheckShape(); err != nil {
				t.Errorf("CheckShape() = %v", err)
			}
			for i, s := range res.Steps {
				if len(s.Forces) != len(res.Currents) {
					t.Errorf("step %d has %d forces, want %d", i, len(s.Forces), len(res.Currents))
				}
			}
		})
	}
}

func TestSimulate_ForcesFollowCurrentOrder(t *testing.T) {
	env := &synthEnv{inductance: steppedInductance, force: func(d, i float64) float64 { return i / 10 }}
	res, err := simulate(t, env, testSweep(), shortCoil())
	if err != nil {
		t.Fatal(err)
	}
	got := res.Steps[3].Forces
	want := []float64{1, 10, 100}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("forces at step 3 = %v, want %v", got, want)
			break
		}
	}
}

func TestSimulate_StoresForceMagnitude(t *testing.T) {
	// The solver reports a pull toward the centre as a negative axial force.
	env := &synthEnv{inductance: steppedInductance, force: func(d, i float64) float64 { return -i }}
	res, err := simulate(t, env, testSweep(), shortCoil())
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{10, 100, 1000}
	for i, s := range res.Steps {
		for j := range want {
			if math.Abs(s.Forces[j]-want[j]) > 1e-9 {
				t.Fatalf("step %d forces = %v, want %v", i, s.Forces, want)
			}
		}
	}
}

func TestSimulate_ZeroBoreWallRejected(t *testing.T) {
	env := &synthEnv{inductance: steppedInductance, force: cliffForce}
	p := model.DefaultParams()
	p.BoreWallThickness = 0
	p.CoilLength = 35
	p.ProjectileLength = 35
	res, err := simulate(t, env, testSweep(), p)
	if !errors.Is(err, model.ErrInvalidParams) {
		t.Fatalf("Simulate() error = %v, want ErrInvalidParams", err)
	}
	if res != nil {
		t.Errorf("result returned for invalid design: %+v", res)
	}
}

func TestSimulate_ExtendPastConvergence(t *testing.T) {
	sw := testSweep()
	sw.ExtendPastConvergence = true
	env := &synthEnv{inductance: steppedInductance, force: func(d, i float64) float64 { return i }}
	res, err := simulate(t, env, sw, shortCoil())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Steps) != sw.MaxSteps {
		t.Fatalf("recorded %d steps, want %d", len(res.Steps), sw.MaxSteps)
	}
	if last := res.Steps[sw.MaxSteps-1]; math.Abs(last.Inductance-220) > 1e-9 || last.Distance != 19 {
		t.Errorf("extended step = %+v, want raw inductance 220 at 19 mm", last)
	}
}

func TestSimulate_SolveFailureReleasesSession(t *testing.T) {
	env := &synthEnv{inductance: steppedInductance, force: cliffForce}
	solver := newSynth(env)
	solver.failAt = 4
	d := NewDriver(testSweep(), output.Discard())
	s := femm.NewSession("failing", solver)

	res, err := d.Simulate(context.Background(), s, shortCoil(), filepath.Join(t.TempDir(), "temp0.fem"))
	if res != nil {
		t.Errorf("partial result returned: %+v", res)
	}
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("error = %v, want *RunError", err)
	}
	if runErr.Stage != ProjectileBuilt {
		t.Errorf("failed after %s, want %s", runErr.Stage, ProjectileBuilt)
	}
	if !errors.Is(err, femm.ErrSolve) {
		t.Errorf("error %v does not wrap femm.ErrSolve", err)
	}
	if got := env.closed.Load(); got != 1 {
		t.Errorf("session closed %d times, want 1", got)
	}
}

func TestSimulate_InvalidParams(t *testing.T) {
	env := &synthEnv{inductance: steppedInductance, force: cliffForce}
	p := shortCoil()
	p.WireDiameter = 0
	_, err := simulate(t, env, testSweep(), p)
	if !errors.Is(err, model.ErrInvalidParams) {
		t.Fatalf("error = %v, want ErrInvalidParams", err)
	}
	if got := env.closed.Load(); got != 1 {
		t.Errorf("session closed %d times, want 1", got)
	}
}

func TestCheckFit(t *testing.T) {
	sw := testSweep()
	sw.MaxSteps = 140
	d := NewDriver(sw, output.Discard())
	p := model.DefaultParams() // 150 mm boundary, 35 mm projectile
	if err := d.CheckFit(p); !errors.Is(err, model.ErrInvalidParams) {
		t.Errorf("CheckFit() = %v, want ErrInvalidParams", err)
	}
	sw.MaxSteps = 100
	if err := NewDriver(sw, output.Discard()).CheckFit(p); err != nil {
		t.Errorf("CheckFit() = %v, want nil", err)
	}
}

func TestState_String(t *testing.T) {
	if got := InductanceSweep.String(); got != "inductance-sweep" {
		t.Errorf("String() = %q", got)
	}
	if got := State(42).String(); got != "state(42)" {
		t.Errorf("String() = %q", got)
	}
}
