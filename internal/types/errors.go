package types

import (
	"errors"
	"fmt"
)

var (
	ErrSchema               = errors.New("schema error")
	ErrReferenceUnavailable = errors.New("reference unavailable")
	ErrRemoteCreate         = errors.New("remote create failure")
	// ErrPartialCreate accompanies a full result slice when a create call
	// failed after some records were already created remotely.
	ErrPartialCreate = errors.New("partial create failure")
	ErrRulesSuspend  = errors.New("rules suspend failure")
	ErrRulesRestore  = errors.New("rules restore failure")
	ErrDurableLog    = errors.New("durable log write failure")
	ErrSetup         = errors.New("run setup failure")
	ErrCancelled     = errors.New("run cancelled")
)

// CodeRemoteCreateFailure marks records whose create request failed as a whole.
const CodeRemoteCreateFailure = "REMOTE_CREATE_FAILURE"

// RunError attaches the entity type (when there is one) to a taxonomy error.
type RunError struct {
	Kind   error
	Entity string
	Err    error
}

func (e *RunError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%v (%s): %v", e.Kind, e.Entity, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *RunError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func NewRunError(kind error, entity string, err error) *RunError {
	return &RunError{Kind: kind, Entity: entity, Err: err}
}

// IsFatal reports whether err terminates a run early.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDurableLog) || errors.Is(err, ErrSetup)
}
