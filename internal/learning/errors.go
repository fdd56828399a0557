package learning

import (
	"errors"
	"fmt"
)

// ErrNotFound reports an unknown skill code or learner in a query path.
// Nothing is persisted when it is returned.
var ErrNotFound = errors.New("not found")

// ErrConflict reports that the per-pair atomic section could not be
// entered within the retry budget. The caller decides whether to replay
// the whole attempt-processing pipeline; this core never retries.
var ErrConflict = errors.New("concurrency conflict")

// ValidationError reports a malformed outcome field. It is returned
// before any write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid outcome: %s %s", e.Field, e.Reason)
}

// validateOutcome checks the outcome field constraints from the data
// model: quality in [0,5], non-negative counters, identifiers present.
func validateOutcome(o Outcome) error {
	switch {
	case o.LearnerID == "":
		return &ValidationError{Field: "learner_id", Reason: "is required"}
	case o.SkillCode == "":
		return &ValidationError{Field: "skill_code", Reason: "is required"}
	case o.Quality < 0 || o.Quality > 5:
		return &ValidationError{Field: "quality", Reason: fmt.Sprintf("must be in [0,5], got %g", o.Quality)}
	case o.HintsUsed < 0:
		return &ValidationError{Field: "hints_used", Reason: "must not be negative"}
	case o.TimeSpentSeconds < 0:
		return &ValidationError{Field: "time_spent_seconds", Reason: "must not be negative"}
	}
	return nil
}
