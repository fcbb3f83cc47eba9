package model

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is wrapped by every ParamError.
var ErrInvalidParams = errors.New("model: invalid design parameters")

// ParamError reports the first field of a Params value that breaks an invariant.
type ParamError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s (%g): %s", e.Field, e.Value, e.Reason)
}

func (e *ParamError) Unwrap() error {
	return ErrInvalidParams
}
