package femm

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/daryltucker/coilgun-sim/internal/material"
)

// buildCoilgun draws a 220-turn coil and an M-50 slug centred at z.
func buildCoilgun(t *testing.T, s *Session, z float64) {
	t.Helper()
	d := s.Doc()
	d.SetProblem(ProblemDef{Units: "millimeters", Type: Axisymmetric, Precision: 1e-8, Depth: 1, MinAngle: 30})
	for _, m := range []string{"Air", "1mm", "M-50"} {
		if err := s.GetMaterial(m); err != nil {
			t.Fatal(err)
		}
	}
	must(t, d.RenameMaterial("1mm", "Wire"))
	must(t, d.RenameMaterial("M-50", "Projectile"))
	d.AddCircuit("Coil", 1, true)
	d.MakeABC(3, 150)
	must(t, AddRegionLabel(s, Point{0.1, 142.5}, "Air", "", 0, 0))
	must(t, AddRectangle(s, Point{3.25, -22.5}, Point{13.25, 22.5}, 1))
	must(t, AddRegionLabel(s, Point{8, 0}, "Wire", "Coil", 1, 220))
	must(t, AddRectangle(s, Point{0, z - 17.5}, Point{2.25, z + 17.5}, 2))
	must(t, AddRegionLabel(s, Point{1.125, z}, "Projectile", "", 2, 0))
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func solveAt(t *testing.T, z float64) (inductance, force float64) {
	t.Helper()
	s := NewSession("analytic", NewAnalytic(material.Builtin()))
	defer s.Close()
	buildCoilgun(t, s, z)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "temp0.fem")
	l, err := IntegrateInductance(ctx, s, "Coil", 5, path)
	if err != nil {
		t.Fatalf("IntegrateInductance() error = %v", err)
	}
	f, err := IntegrateFieldForce(ctx, s, "Coil", 100, 2, path)
	if err != nil {
		t.Fatalf("IntegrateFieldForce() error = %v", err)
	}
	if imag(l) != 0 || imag(f) != 0 {
		t.Errorf("static solution has imaginary parts %v %v", l, f)
	}
	return real(l), real(f)
}

func TestAnalytic_InductanceFallsWithDistance(t *testing.T) {
	centre, _ := solveAt(t, 0)
	near, _ := solveAt(t, -20)
	far, _ := solveAt(t, -120)
	if !(centre > near && near > far && far > 0) {
		t.Errorf("inductance not decreasing outward: centre %g, near %g, far %g", centre, near, far)
	}
}

func TestAnalytic_ForcePullsTowardCentre(t *testing.T) {
	_, below := solveAt(t, -15)
	_, above := solveAt(t, 15)
	_, centre := solveAt(t, 0)
	_, far := solveAt(t, -120)

	if below <= 0 {
		t.Errorf("force below centre = %g, want > 0", below)
	}
	if math.Abs(below+above) > 1e-6*math.Abs(below) {
		t.Errorf("force not antisymmetric: %g vs %g", below, above)
	}
	if math.Abs(centre) > 1e-6*math.Abs(below) {
		t.Errorf("force at centre = %g, want ~0", centre)
	}
	if math.Abs(far) > 1e-6*math.Abs(below) {
		t.Errorf("force far away = %g, want ~0", far)
	}
}

func TestAnalytic_AirCoilMatchesWheeler(t *testing.T) {
	s := NewSession("air", NewAnalytic(nil))
	defer s.Close()
	must(t, s.GetMaterial("1mm"))
	s.Doc().AddCircuit("Coil", 1, true)
	must(t, AddRectangle(s, Point{3.25, -22.5}, Point{13.25, 22.5}, 1))
	must(t, AddRegionLabel(s, Point{8, 0}, "1mm", "Coil", 1, 220))

	got, err := IntegrateInductance(context.Background(), s, "Coil", 5, filepath.Join(t.TempDir(), "air.fem"))
	if err != nil {
		t.Fatal(err)
	}
	a, l, c := 8.25/25.4, 45/25.4, 10/25.4
	want := 0.8 * a * a * 220 * 220 / (6*a + 9*l + 10*c)
	if math.Abs(real(got)-want) > 1e-9*want {
		t.Errorf("inductance = %g uH, want %g", real(got), want)
	}
}

func TestAnalytic_UnknownMaterial(t *testing.T) {
	s := NewSession("x", NewAnalytic(nil))
	if err := s.GetMaterial("Kryptonite"); !errors.Is(err, ErrUnknownMaterial) {
		t.Errorf("GetMaterial error = %v, want ErrUnknownMaterial", err)
	}
}

func TestAnalytic_CancelledContext(t *testing.T) {
	s := NewSession("x", NewAnalytic(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Analyze(ctx, filepath.Join(t.TempDir(), "c.fem"))
	if !errors.Is(err, ErrSolve) || !errors.Is(err, context.Canceled) {
		t.Errorf("Analyze error = %v, want ErrSolve wrapping context.Canceled", err)
	}
}
