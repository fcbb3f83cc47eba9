package engine

import (
	"errors"
	"fmt"
)

// ErrPoolStopped is returned by Submit after Stop.
var ErrPoolStopped = errors.New("engine: pool stopped")

// RunError reports a failed simulation run of one design.
type RunError struct {
	Design  string
	Stage   State // last state reached before the failure
	Attempt int
	Err     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("design %s: attempt %d failed after %s: %v", e.Design, e.Attempt, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
