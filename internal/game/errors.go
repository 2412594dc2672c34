package game

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownParticipant  = errors.New("unknown participant")
	ErrDuplicateSubmission = errors.New("participant already submitted an action this round")
	ErrRosterIncomplete    = errors.New("ledger does not cover the full roster")
	ErrActionsLocked       = errors.New("actions are locked; resolving current round")
)

// ValidationError marks oracle output that cannot be coerced into the
// expected shape (missing or malformed required fields).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// OracleFailure wraps any generative-call error with enough context to
// identify the failing stage and participant. Not retried by the engine.
type OracleFailure struct {
	Stage         string // "decide" or "resolve"
	ParticipantID string // empty for the resolution stage
	Err           error
}

func (e *OracleFailure) Error() string {
	if e.ParticipantID != "" {
		return fmt.Sprintf("oracle failure in %s stage for participant %q: %v", e.Stage, e.ParticipantID, e.Err)
	}
	return fmt.Sprintf("oracle failure in %s stage: %v", e.Stage, e.Err)
}

func (e *OracleFailure) Unwrap() error { return e.Err }
