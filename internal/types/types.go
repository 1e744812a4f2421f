// Package types provides domain models shared across Dossier components.
//
// Zero-dependency design: conditions.go, documents.go and errors.go use only the
// standard library so the condition model can be shared with authoring tools
// without pulling in the engine. ID utilities in ids.go import uuid but are
// isolated for selective inclusion.
package types

// ConditionID identifies a condition node. UUIDv7 for authored conditions;
// any non-empty string is accepted from snapshots.
type ConditionID string

// LexiconID identifies a lexicon referenced by a LexiconCondition.
type LexiconID string

// ExpressionID identifies a single expression inside a lexicon.
type ExpressionID string

// DocumentID identifies a source document.
type DocumentID string

// AgentResult maps an expression or condition id to the terms the external
// text-classification service matched for it. Presence of a key means the
// expression was satisfied.
type AgentResult map[string][]string

// Resource limits enforced by the evaluation engine.
const (
	// DefaultMaxDepth bounds combinator and fragment nesting during evaluation.
	// 64 levels is far beyond authored trees and stops fragment cycles quickly.
	DefaultMaxDepth = 64

	// MaxLexiconExpressions limits expressions evaluated for one lexicon.
	MaxLexiconExpressions = 4096
)
