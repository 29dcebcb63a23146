package fraud

import (
	"errors"
	"fmt"
)

var (
	// Input errors
	ErrInvalidInput     = errors.New("invalid fraud check input")
	ErrInvalidCheckType = errors.New("invalid check type")

	// Rule errors
	ErrRuleNotFound          = errors.New("fraud rule not found")
	ErrRuleAlreadyExists     = errors.New("rule with this name already exists")
	ErrInvalidRuleType       = errors.New("invalid rule type")
	ErrInvalidRuleSeverity   = errors.New("invalid rule severity")
	ErrInvalidRuleAction     = errors.New("invalid rule action")
	ErrRuleConditionsInvalid = errors.New("rule conditions are invalid")
	ErrInvalidScoreImpact    = errors.New("score impact must be between 0 and 100")

	// Alert errors
	ErrAlertNotFound          = errors.New("fraud alert not found")
	ErrAlertAlreadyReviewed   = errors.New("fraud alert has already been reviewed")
	ErrInvalidReviewDecision  = errors.New("invalid review decision")
	ErrInvalidAlertTransition = errors.New("invalid alert status transition")

	// Risk profile errors
	ErrRiskProfileNotFound = errors.New("user risk profile not found")
	ErrConcurrentUpdate    = errors.New("risk profile was modified concurrently")

	// Check errors
	ErrUserLockUnavailable = errors.New("could not acquire user lock")
)

// ValidationError describes a malformed field in caller input.
// It matches ErrInvalidInput with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is reports whether target is ErrInvalidInput
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
