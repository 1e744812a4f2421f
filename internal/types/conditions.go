// internal/types/conditions.go
package types

/*
 * Domain types for condition trees.
 *
 * Provides the Condition sum type used by internal/rules for evaluation and by
 * internal/snapshot for decoding. These types are wire-format agnostic: the
 * snapshot codec converts YAML/JSON maps at the boundary.
 *
 * Key types:
 *   - Condition: sealed interface implemented by the ten condition kinds
 *   - ConditionBase: id, name, target set and fragment flag shared by all kinds
 *   - FieldBase: field name and optional language shared by field leaves
 *   - BooleanCondition, NotCondition, FragmentCondition: combinators
 *   - Exists/String/Number/Date/Regex/Lexicon/TextCondition: field leaves
 *
 * Ownership: combinators own their children. FragmentCondition holds only an
 * id and is resolved through the snapshot at evaluation time, which lets
 * trees reuse shared conditions without forming a cyclic object graph.
 */

// ConditionKind names a condition variant. Used as the `type` discriminator
// in snapshot documents.
type ConditionKind string

const (
	KindBoolean  ConditionKind = "boolean"
	KindNot      ConditionKind = "not"
	KindFragment ConditionKind = "fragment"
	KindExists   ConditionKind = "exists"
	KindString   ConditionKind = "string"
	KindNumber   ConditionKind = "number"
	KindDate     ConditionKind = "date"
	KindRegex    ConditionKind = "regex"
	KindLexicon  ConditionKind = "lexicon"
	KindText     ConditionKind = "text"
)

// Target selects which documents of a container hierarchy a condition is
// evaluated against. The zero value evaluates the document itself.
type Target string

const (
	TargetSelf      Target = ""
	TargetAll       Target = "ALL"
	TargetContainer Target = "CONTAINER"
	TargetChildren  Target = "CHILDREN"
)

// Valid reports whether t is a known target.
func (t Target) Valid() bool {
	switch t {
	case TargetSelf, TargetAll, TargetContainer, TargetChildren:
		return true
	}
	return false
}

// BooleanOperator combines the children of a BooleanCondition.
type BooleanOperator string

const (
	OpAnd BooleanOperator = "AND"
	OpOr  BooleanOperator = "OR"
)

// StringOperator compares field values case-insensitively.
type StringOperator string

const (
	OpContains   StringOperator = "CONTAINS"
	OpStartsWith StringOperator = "STARTS_WITH"
	OpEndsWith   StringOperator = "ENDS_WITH"
	OpIs         StringOperator = "IS"
)

// NumberOperator compares integer field values.
type NumberOperator string

const (
	OpEq NumberOperator = "EQ"
	OpGt NumberOperator = "GT"
	OpLt NumberOperator = "LT"
)

// DateOperator compares date field values against a computed target.
type DateOperator string

const (
	OpOn     DateOperator = "ON"
	OpBefore DateOperator = "BEFORE"
	OpAfter  DateOperator = "AFTER"
)

// Condition is a node in a classification predicate tree.
type Condition interface {
	// Common returns the attributes shared by every condition kind.
	Common() *ConditionBase
	// Kind returns the variant discriminator.
	Kind() ConditionKind
	isCondition()
}

// FieldCondition is a leaf condition that reads one document field.
type FieldCondition interface {
	Condition
	FieldParams() *FieldBase
}

// ConditionBase holds attributes shared by all condition kinds.
type ConditionBase struct {
	ID                 ConditionID
	Name               string
	Target             Target
	IncludeDescendants bool
	IsFragment         bool
}

// Common implements Condition.
func (b *ConditionBase) Common() *ConditionBase { return b }

func (b *ConditionBase) isCondition() {}

// FieldBase holds attributes shared by field leaves.
type FieldBase struct {
	ConditionBase
	Field    string
	Language string // optional; restricts values to the language's script
}

// FieldParams implements FieldCondition.
func (f *FieldBase) FieldParams() *FieldBase { return f }

// BooleanCondition combines ordered children with AND or OR.
type BooleanCondition struct {
	ConditionBase
	Operator BooleanOperator
	Children []Condition
}

func (*BooleanCondition) Kind() ConditionKind { return KindBoolean }

// NotCondition negates its inner condition.
type NotCondition struct {
	ConditionBase
	Inner Condition
}

func (*NotCondition) Kind() ConditionKind { return KindNot }

// FragmentCondition is a non-owning reference to another condition by id.
type FragmentCondition struct {
	ConditionBase
	TargetID ConditionID
}

func (*FragmentCondition) Kind() ConditionKind { return KindFragment }

// ExistsCondition matches when the field has at least one non-empty value.
type ExistsCondition struct {
	FieldBase
}

func (*ExistsCondition) Kind() ConditionKind { return KindExists }

// StringCondition compares field values against a string.
type StringCondition struct {
	FieldBase
	Operator StringOperator
	Value    string
}

func (*StringCondition) Kind() ConditionKind { return KindString }

// NumberCondition compares integer field values against a number.
type NumberCondition struct {
	FieldBase
	Operator NumberOperator
	Value    int64
}

func (*NumberCondition) Kind() ConditionKind { return KindNumber }

// DateCondition compares date field values. Value is an absolute date, an
// ISO-8601 period (meaning "that long ago"), a weekday name, or a local time.
type DateCondition struct {
	FieldBase
	Operator DateOperator
	Value    string
}

func (*DateCondition) Kind() ConditionKind { return KindDate }

// RegexCondition matches field values against a regular expression.
type RegexCondition struct {
	FieldBase
	Value string
}

func (*RegexCondition) Kind() ConditionKind { return KindRegex }

// LexiconCondition matches field values against the expressions of a lexicon.
type LexiconCondition struct {
	FieldBase
	Value LexiconID
}

func (*LexiconCondition) Kind() ConditionKind { return KindLexicon }

// TextCondition delegates an opaque content expression to the external
// text-classification service.
type TextCondition struct {
	FieldBase
	Value string
}

func (*TextCondition) Kind() ConditionKind { return KindText }

// ExpressionKind selects how a lexicon expression is evaluated.
type ExpressionKind string

const (
	// ExpressionRegex is evaluated locally with the pattern cache.
	ExpressionRegex ExpressionKind = "REGEX"
	// ExpressionAgent is evaluated by the external text-classification service.
	ExpressionAgent ExpressionKind = "AGENT"
)

// LexiconExpression is one matching expression of a lexicon.
type LexiconExpression struct {
	ID    ExpressionID
	Kind  ExpressionKind
	Value string
}

// Lexicon is a named set of matching expressions.
type Lexicon struct {
	ID          LexiconID
	Name        string
	Expressions []LexiconExpression
}

// FieldLabel is a named alias resolving to one of several physical fields,
// tried in declared order.
type FieldLabel struct {
	Name   string
	Fields []string
}

// Walk calls fn for cond and every condition it owns, depth first. Fragment
// targets are not followed.
func Walk(cond Condition, fn func(Condition) error) error {
	if cond == nil {
		return nil
	}
	if err := fn(cond); err != nil {
		return err
	}
	switch c := cond.(type) {
	case *BooleanCondition:
		for _, child := range c.Children {
			if err := Walk(child, fn); err != nil {
				return err
			}
		}
	case *NotCondition:
		return Walk(c.Inner, fn)
	}
	return nil
}
