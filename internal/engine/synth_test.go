package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/daryltucker/coilgun-sim/internal/femm"
)

// synthSolver answers integrals from closed-form curves of the projectile's
// distance below the coil centre, so the driver runs against a real Document
// without a finite-element solve.
type synthSolver struct {
	env    *synthEnv
	failAt int // fail the n-th solve, 0 never

	docID  string
	path   string
	turns  int
	solves int
	docs   map[string]*femm.Document
}

func newSynth(env *synthEnv) *synthSolver {
	return &synthSolver{env: env, docs: map[string]*femm.Document{}}
}

// synthEnv is the shared state of the solvers a test creates.
type synthEnv struct {
	inductance func(turns int, d float64) float64
	force      func(d, current float64) float64
	failTurns  int // designs with this turn count fail every attempt
	scratch    sync.Map
	conflicts  atomic.Int32
	closed     atomic.Int32
	opened     atomic.Int32
}

func (e *synthEnv) factory() SolverFactory {
	return func() (femm.Solver, error) {
		e.opened.Add(1)
		return newSynth(e), nil
	}
}

// Stepped inductance: falls 1 uH per mm until 10 mm, flat (= turns) beyond.
func steppedInductance(turns int, d float64) float64 {
	return float64(turns) + math.Max(0, 10-d)
}

// Strong force until 8 mm, negligible beyond.
func cliffForce(d, current float64) float64 {
	if d < 8 {
		return current
	}
	return current * 1e-5
}

func (s *synthSolver) Persist(doc *femm.Document, path string) error {
	if s.docID == "" {
		s.docID = doc.ID
	} else if s.docID != doc.ID {
		s.env.conflicts.Add(1)
		return fmt.Errorf("solver shared between sessions %s and %s", s.docID, doc.ID)
	}
	if prev, loaded := s.env.scratch.LoadOrStore(path, doc.ID); loaded && prev != doc.ID {
		s.env.conflicts.Add(1)
		return fmt.Errorf("scratch %s in use by %v", path, prev)
	}
	s.path = path
	s.docs[path] = doc.Clone()
	s.turns = coilTurns(doc)
	return nil
}

func (s *synthSolver) Solve(ctx context.Context, path string) error {
	s.solves++
	if s.failAt > 0 && s.solves >= s.failAt {
		return errors.New("synthetic mesher failure")
	}
	if s.env.failTurns != 0 && s.turns == s.env.failTurns {
		return fmt.Errorf("synthetic solver rejects %d turns", s.turns)
	}
	return nil
}

func (s *synthSolver) Load(path string) (femm.Solution, error) {
	doc := s.docs[path]
	lo, hi, ok := doc.GroupBounds(GroupProjectile)
	if !ok {
		return nil, errors.New("no projectile")
	}
	d := -(lo.Y + hi.Y) / 2
	c, _ := doc.Circuit(CoilCircuit)
	return synthSolution{
		energy: s.env.inductance(coilTurns(doc), d) * 1e-6 * c.Amps * c.Amps / 2,
		force:  s.env.force(d, c.Amps),
	}, nil
}

func (s *synthSolver) Save(*femm.Document, string) error { return nil }

func (s *synthSolver) Close() error {
	s.env.closed.Add(1)
	if s.path != "" {
		s.env.scratch.CompareAndDelete(s.path, s.docID)
	}
	return nil
}

func coilTurns(doc *femm.Document) int {
	for _, l := range doc.Labels {
		if l.Circuit != "" {
			return l.Turns
		}
	}
	return 0
}

type synthSolution struct {
	energy, force float64
}

func (s synthSolution) BlockIntegral(group int, t femm.IntegralType) (complex128, error) {
	switch {
	case group == femm.AllGroups && t == femm.IntegralEnergy:
		return complex(s.energy, 0), nil
	case group == GroupProjectile && t == femm.IntegralForceZ:
		return complex(s.force, 0), nil
	}
	return 0, femm.ErrNoSolution
}
