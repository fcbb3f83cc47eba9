package femm

import "errors"

var (
	// ErrSolve reports that persisting, meshing or solving a problem failed.
	ErrSolve = errors.New("femm: solve failed")
	// ErrNoSolution reports a post-processing call without a loaded solution.
	ErrNoSolution = errors.New("femm: no solution loaded")
	// ErrUnknownMaterial reports a material missing from the library or document.
	ErrUnknownMaterial = errors.New("femm: unknown material")
	// ErrUnknownCircuit reports a reference to an unregistered circuit.
	ErrUnknownCircuit = errors.New("femm: unknown circuit")
	// ErrGeometry reports degenerate geometry.
	ErrGeometry = errors.New("femm: invalid geometry")
	// ErrClosed reports use of a released session.
	ErrClosed = errors.New("femm: session closed")
)
