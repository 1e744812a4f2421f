package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for Dossier operations.
var (
	// ErrMissingID indicates a cached condition kind was authored without an id.
	ErrMissingID = errors.New("condition has no id")

	// ErrMissingField indicates a field condition has no field name.
	ErrMissingField = errors.New("condition has no field")

	// ErrMissingTarget indicates a not or fragment condition has nothing to point at.
	ErrMissingTarget = errors.New("condition has no target")

	// ErrNotImplemented indicates an unrecognized operator or condition kind.
	ErrNotImplemented = errors.New("not implemented")

	// ErrConditionNotFound indicates a fragment references an unknown condition.
	ErrConditionNotFound = errors.New("condition not found")

	// ErrLexiconNotFound indicates a lexicon condition references an unknown lexicon.
	ErrLexiconNotFound = errors.New("lexicon not found")

	// ErrInvalidPattern indicates a regex pattern failed to compile.
	ErrInvalidPattern = errors.New("invalid regex pattern")

	// ErrInvalidDateValue indicates a date condition value has no recognized shape.
	ErrInvalidDateValue = errors.New("invalid date condition value")

	// ErrMaxDepthExceeded indicates nesting beyond the engine's depth limit.
	ErrMaxDepthExceeded = errors.New("condition nesting exceeds maximum depth")

	// ErrFragmentCycle indicates a fragment eventually references itself.
	ErrFragmentCycle = errors.New("fragment cycle detected")

	// ErrDuplicateID indicates two conditions in a snapshot share an id.
	ErrDuplicateID = errors.New("duplicate condition id")

	// ErrInvalidExpression indicates the external service rejected a text expression.
	ErrInvalidExpression = errors.New("invalid text expression")

	// ErrTooManyExpressions indicates a lexicon exceeds MaxLexiconExpressions.
	ErrTooManyExpressions = errors.New("lexicon has too many expressions")
)

// ConfigurationError marks a condition that cannot be evaluated as authored.
// Configuration errors are fatal for the evaluation run and never retried.
type ConfigurationError struct {
	ConditionID ConditionID
	Err         error
}

func (e *ConfigurationError) Error() string {
	if e.ConditionID == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error in condition %s: %v", e.ConditionID, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps err for the given condition.
func NewConfigurationError(id ConditionID, err error) error {
	return &ConfigurationError{ConditionID: id, Err: err}
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
