package femm

import (
	"context"
	"errors"
	"math/cmplx"
	"testing"
)

// stubSolver serves a fixed energy and force and records its lifecycle.
type stubSolver struct {
	energy   float64
	force    float64
	solveErr error
	persists int
	closes   int
}

func (s *stubSolver) Persist(*Document, string) error { s.persists++; return nil }
func (s *stubSolver) Solve(context.Context, string) error { return s.solveErr }
func (s *stubSolver) Save(*Document, string) error       { return nil }
func (s *stubSolver) Close() error                       { s.closes++; return nil }
func (s *stubSolver) Load(string) (Solution, error) {
	sol := &tableSolution{}
	sol.set(AllGroups, IntegralEnergy, s.energy)
	sol.set(2, IntegralForceZ, s.force)
	return sol, nil
}

func newStubSession(t *testing.T, solver Solver) *Session {
	t.Helper()
	s := NewSession("test-run", solver)
	s.Doc().AddMaterial("Air")
	s.Doc().AddCircuit("Coil", 1, true)
	return s
}

func TestAddRectangle(t *testing.T) {
	s := newStubSession(t, &stubSolver{})
	if err := AddRectangle(s, Point{1, -2}, Point{3, 2}, 7); err != nil {
		t.Fatalf("AddRectangle() error = %v", err)
	}
	d := s.Doc()
	if len(d.Nodes) != 4 || len(d.Segments) != 4 {
		t.Fatalf("got %d nodes, %d segments, want 4 and 4", len(d.Nodes), len(d.Segments))
	}
	for i, n := range d.Nodes {
		if n.Group != 7 {
			t.Errorf("node %d group = %d, want 7", i, n.Group)
		}
	}
	for i, seg := range d.Segments {
		if seg.Group != 7 {
			t.Errorf("segment %d group = %d, want 7", i, seg.Group)
		}
	}
	if got := d.SelectionSize(); got != 0 {
		t.Errorf("selection after AddRectangle = %d, want 0", got)
	}
	lo, hi, ok := d.GroupBounds(7)
	if !ok || lo != (Point{1, -2}) || hi != (Point{3, 2}) {
		t.Errorf("GroupBounds(7) = %v %v %v", lo, hi, ok)
	}
}

func TestAddRectangle_Degenerate(t *testing.T) {
	s := newStubSession(t, &stubSolver{})
	err := AddRectangle(s, Point{1, 0}, Point{1, 5}, 1)
	if !errors.Is(err, ErrGeometry) {
		t.Fatalf("error = %v, want ErrGeometry", err)
	}
}

func TestAddRectangle_SharedCornerWithOtherGroup(t *testing.T) {
	s := newStubSession(t, &stubSolver{})
	if err := AddRectangle(s, Point{2.25, -17.5}, Point{5, 17.5}, 1); err != nil {
		t.Fatal(err)
	}
	// Same half-length, outer radius on the first rectangle's inner edge.
	err := AddRectangle(s, Point{0, -17.5}, Point{2.25, 17.5}, 2)
	if !errors.Is(err, ErrGeometry) {
		t.Fatalf("AddRectangle() error = %v, want ErrGeometry", err)
	}
	d := s.Doc()
	if len(d.Nodes) != 4 {
		t.Errorf("got %d nodes, want the first rectangle's 4 untouched", len(d.Nodes))
	}
	for i, n := range d.Nodes {
		if n.Group != 1 {
			t.Errorf("node %d group = %d, want 1", i, n.Group)
		}
	}

	// Re-drawing within the same group may share its nodes.
	if err := AddRectangle(s, Point{5, -17.5}, Point{6, 17.5}, 1); err != nil {
		t.Errorf("AddRectangle() in the same group error = %v", err)
	}
}

func TestAddRegionLabel(t *testing.T) {
	tests := []struct {
		name      string
		material  string
		circuit   string
		turns     int
		wantTurns int
		wantErr   error
	}{
		{"zero turns become one", "Air", "", 0, 1, nil},
		{"turns kept", "Air", "Coil", 220, 220, nil},
		{"unknown material", "Unobtainium", "", 1, 0, ErrUnknownMaterial},
		{"unknown circuit", "Air", "Nope", 1, 0, ErrUnknownCircuit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStubSession(t, &stubSolver{})
			err := AddRegionLabel(s, Point{0.1, 140}, tt.material, tt.circuit, 3, tt.turns)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("AddRegionLabel() error = %v", err)
			}
			l := s.Doc().Labels[0]
			if l.Turns != tt.wantTurns || l.Group != 3 || l.Material != tt.material {
				t.Errorf("label = %+v", l)
			}
		})
	}
}

func TestTranslateGroup_MovesOnlyGroup(t *testing.T) {
	s := newStubSession(t, &stubSolver{})
	if err := AddRectangle(s, Point{0, -1}, Point{1, 1}, 2); err != nil {
		t.Fatal(err)
	}
	if err := AddRectangle(s, Point{3, -5}, Point{4, 5}, 1); err != nil {
		t.Fatal(err)
	}
	if err := AddRegionLabel(s, Point{0.5, 0}, "Air", "", 2, 0); err != nil {
		t.Fatal(err)
	}

	if err := TranslateGroup(s, 0, -10, 2); err != nil {
		t.Fatal(err)
	}
	d := s.Doc()
	lo, hi, _ := d.GroupBounds(2)
	if lo.Y != -11 || hi.Y != -9 {
		t.Errorf("group 2 spans %g..%g, want -11..-9", lo.Y, hi.Y)
	}
	lo, hi, _ = d.GroupBounds(1)
	if lo.Y != -5 || hi.Y != 5 {
		t.Errorf("group 1 moved to %g..%g", lo.Y, hi.Y)
	}
	if got := d.Labels[0].P.Y; got != -10 {
		t.Errorf("label y = %g, want -10", got)
	}
	if got := d.SelectionSize(); got != 0 {
		t.Errorf("selection after TranslateGroup = %d, want 0", got)
	}
}

func TestIntegrateInductance_Scaling(t *testing.T) {
	// W = 1.25e-4 J at 5 A gives L = 2W/I^2 = 10 uH.
	s := newStubSession(t, &stubSolver{energy: 1.25e-4})
	got, err := IntegrateInductance(context.Background(), s, "Coil", 5, "scratch.fem")
	if err != nil {
		t.Fatalf("IntegrateInductance() error = %v", err)
	}
	if cmplx.Abs(got-complex(10, 0)) > 1e-9 {
		t.Errorf("inductance = %v, want 10", got)
	}
	if c, _ := s.Doc().Circuit("Coil"); c.Amps != 5 {
		t.Errorf("circuit current = %g, want 5", c.Amps)
	}
}

func TestIntegrateFieldForce(t *testing.T) {
	s := newStubSession(t, &stubSolver{force: -3.5})
	got, err := IntegrateFieldForce(context.Background(), s, "Coil", 100, 2, "scratch.fem")
	if err != nil {
		t.Fatalf("IntegrateFieldForce() error = %v", err)
	}
	if real(got) != -3.5 {
		t.Errorf("force = %v, want -3.5", got)
	}
	if _, err := IntegrateFieldForce(context.Background(), s, "Missing", 1, 2, "scratch.fem"); !errors.Is(err, ErrUnknownCircuit) {
		t.Errorf("unknown circuit error = %v", err)
	}
}

func TestSession_NoSolution(t *testing.T) {
	s := newStubSession(t, &stubSolver{})
	if _, err := s.BlockIntegral(IntegralEnergy); !errors.Is(err, ErrNoSolution) {
		t.Errorf("BlockIntegral before Analyze error = %v, want ErrNoSolution", err)
	}
	if err := s.GroupSelectBlock(0); !errors.Is(err, ErrNoSolution) {
		t.Errorf("GroupSelectBlock before Analyze error = %v, want ErrNoSolution", err)
	}
}

func TestSession_FailedAnalyzeDropsSolution(t *testing.T) {
	solver := &stubSolver{energy: 1}
	s := newStubSession(t, solver)
	ctx := context.Background()
	if err := s.Analyze(ctx, "a.fem"); err != nil {
		t.Fatal(err)
	}
	solver.solveErr = errors.New("mesher crashed")
	if err := s.Analyze(ctx, "a.fem"); !errors.Is(err, ErrSolve) {
		t.Fatalf("Analyze error = %v, want ErrSolve", err)
	}
	if err := s.GroupSelectBlock(0); !errors.Is(err, ErrNoSolution) {
		t.Errorf("after failed Analyze error = %v, want ErrNoSolution", err)
	}
}

func TestSession_Close(t *testing.T) {
	solver := &stubSolver{}
	s := newStubSession(t, solver)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if solver.closes != 1 {
		t.Errorf("solver closed %d times, want 1", solver.closes)
	}
	if err := s.Analyze(context.Background(), "a.fem"); !errors.Is(err, ErrClosed) {
		t.Errorf("Analyze after Close error = %v, want ErrClosed", err)
	}
	if err := AddRectangle(s, Point{0, 0}, Point{1, 1}, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("AddRectangle after Close error = %v, want ErrClosed", err)
	}
}
