package types

import (
	"github.com/google/uuid"
)

// NewConditionID generates a UUIDv7 condition identifier.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewConditionID() ConditionID {
	return ConditionID(uuid.Must(uuid.NewV7()).String())
}

// NewExpressionID generates a UUIDv7 lexicon expression identifier.
func NewExpressionID() ExpressionID {
	return ExpressionID(uuid.Must(uuid.NewV7()).String())
}

// NewDocumentID generates a UUIDv7 document identifier.
func NewDocumentID() DocumentID {
	return DocumentID(uuid.Must(uuid.NewV7()).String())
}
