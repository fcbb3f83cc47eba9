/*
PURPOSE:
  Owns one solver session: a problem Document, the backend that solves it,
  and the post-processor state of the last loaded solution.

REQUIREMENTS:
  User-specified:
  - Each simulation run works on its own session; sessions never share state.
  - Analysis is persist -> solve -> load, against a per-worker scratch path.

  Implementation-discovered:
  - A failed analysis leaves no solution behind; post-processing then
    fails with ErrNoSolution until the next successful analysis.
  - Mutating the document after analysis does not invalidate the solution.
    Callers re-analyze when they need fresh results.

ARCHITECTURE INTEGRATION:
  - Used by: internal/femm/adapter.go, internal/engine/driver.go
  - Backends: analytic.go (in-process), lua.go (external FEMM process)

ERROR HANDLING:
  - Backend failures are wrapped with ErrSolve.
  - Calls after Close return ErrClosed.

IMPLEMENTATION RULES:
  - A Session is not safe for concurrent use. One worker, one session.

USAGE:
  s := femm.NewSession(runID, solver)
  defer s.Close()

RELATED FILES:
  - internal/femm/document.go
  - internal/femm/adapter.go

MAINTENANCE:
  - New integral types go into IntegralType and every backend's Solution.
*/

package femm

import (
	"context"
	"errors"
	"fmt"
)

// IntegralType selects a block integral of the post-processor.
type IntegralType int

const (
	// IntegralEnergy is the magnetic field energy (J) of the selected blocks.
	IntegralEnergy IntegralType = 2
	// IntegralForceZ is the weighted-stress-tensor axial force (N) on the selected blocks.
	IntegralForceZ IntegralType = 19
)

// AllGroups selects every block in the post-processor.
const AllGroups = 0

// Solver is a field-solver backend. Persist writes the document to path,
// Solve meshes and solves the file at path, and Load returns its solution.
type Solver interface {
	Persist(doc *Document, path string) error
	Solve(ctx context.Context, path string) error
	Load(path string) (Solution, error)
	// Save keeps the final state of a run at path.
	Save(doc *Document, path string) error
	Close() error
}

// Solution answers block integrals over a group of the solved problem.
type Solution interface {
	BlockIntegral(group int, t IntegralType) (complex128, error)
}

// MaterialLibrary is implemented by solvers that can check library names.
type MaterialLibrary interface {
	HasMaterial(name string) bool
}

// Session is a Document bound to a Solver.
type Session struct {
	id       string
	doc      *Document
	solver   Solver
	solution Solution
	selected int
	hasSel   bool
	closed   bool
}

// NewSession opens an empty problem on solver.
func NewSession(id string, solver Solver) *Session {
	return &Session{id: id, doc: NewDocument(id), solver: solver}
}

// ID returns the run identity of the session.
func (s *Session) ID() string { return s.id }

// Doc returns the editable problem.
func (s *Session) Doc() *Document { return s.doc }

// GetMaterial registers a library material in the document.
func (s *Session) GetMaterial(name string) error {
	if s.closed {
		return ErrClosed
	}
	if lib, ok := s.solver.(MaterialLibrary); ok && !lib.HasMaterial(name) {
		return fmt.Errorf("%w: %q", ErrUnknownMaterial, name)
	}
	s.doc.AddMaterial(name)
	return nil
}

// Analyze persists the document to path, solves it and loads the solution.
func (s *Session) Analyze(ctx context.Context, path string) error {
	if s.closed {
		return ErrClosed
	}
	s.solution = nil
	s.hasSel = false
	if err := s.solver.Persist(s.doc, path); err != nil {
		return fmt.Errorf("%w: persist %s: %v", ErrSolve, path, err)
	}
	if err := s.solver.Solve(ctx, path); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrSolve, err)
		}
		return fmt.Errorf("%w: %v", ErrSolve, err)
	}
	sol, err := s.solver.Load(path)
	if err != nil {
		return fmt.Errorf("%w: load %s: %v", ErrSolve, path, err)
	}
	s.solution = sol
	return nil
}

// GroupSelectBlock selects the blocks of group for integration.
func (s *Session) GroupSelectBlock(group int) error {
	if s.solution == nil {
		return ErrNoSolution
	}
	s.selected, s.hasSel = group, true
	return nil
}

// ClearBlock drops the post-processor selection.
func (s *Session) ClearBlock() {
	s.hasSel = false
}

// BlockIntegral integrates t over the selected blocks.
func (s *Session) BlockIntegral(t IntegralType) (complex128, error) {
	if s.solution == nil {
		return 0, ErrNoSolution
	}
	if !s.hasSel {
		return 0, fmt.Errorf("%w: no blocks selected", ErrNoSolution)
	}
	return s.solution.BlockIntegral(s.selected, t)
}

// Save hands the document to the backend for keeping at path.
func (s *Session) Save(path string) error {
	if s.closed {
		return ErrClosed
	}
	return s.solver.Save(s.doc, path)
}

// Close releases the backend. Calling it twice is harmless.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.solution = nil
	return s.solver.Close()
}
