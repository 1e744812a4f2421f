// internal/rules/field.go
package rules

import (
	"context"

	"github.com/solatis/dossier/internal/types"
)

/*
 * Field resolution and the missing-field policy.
 *
 * A condition's field is either a field label (an alias tried against its
 * physical fields in declared order, first present wins, values cached on the
 * document under the label name) or a direct field looked up in metadata and
 * streams.
 *
 * Missing-field policy decides the tri-state before any comparison:
 *   - service required and unavailable -> UNEVALUATED(MISSING_SERVICE)
 *   - field missing, extraction incomplete -> UNEVALUATED(MISSING_FIELD)
 *   - field missing, extraction complete -> compare against no values,
 *     which is a definitive non-match
 */

// leafOutcome is what a leaf matcher decided for one target item.
type leafOutcome struct {
	match       bool
	terms       []string
	expressions []MatchedLexiconExpression
	// unevaluated is set when part of the leaf could not be decided. A leaf can
	// match and be partially unevaluated (lexicon regex hit, agent down).
	unevaluated UnevaluatedReason
}

// evaluateField resolves the field of a leaf condition and runs its matcher.
func (r *Run) evaluateField(ctx context.Context, res *Result, item *Document, c types.FieldCondition) error {
	fb := c.FieldParams()
	if fb.Field == "" {
		return types.NewConfigurationError(fb.ID, types.ErrMissingField)
	}

	if r.requiresAgent(c) && !r.agentAvailable(ctx) {
		res.addUnevaluated(selfUnevaluated(item, &fb.ConditionBase, ReasonMissingService))
		return nil
	}

	values, present := r.fieldValues(item, fb.Field)
	if !present && !item.FullMetadata {
		res.addUnevaluated(selfUnevaluated(item, &fb.ConditionBase, ReasonMissingField))
		return nil
	}

	var (
		out leafOutcome
		err error
	)
	switch leaf := c.(type) {
	case *types.ExistsCondition:
		out = matchExists(values)
	case *types.StringCondition:
		out, err = matchString(leaf, values)
	case *types.NumberCondition:
		out, err = matchNumber(leaf, values)
	case *types.DateCondition:
		out, err = r.engine.matchDate(leaf, values)
	case *types.RegexCondition:
		out, err = r.engine.matchRegex(leaf, values)
	case *types.LexiconCondition:
		out, err = r.matchLexicon(ctx, item, leaf, filterByLanguage(values, fb.Language))
	case *types.TextCondition:
		out = r.matchText(ctx, item, leaf, filterByLanguage(values, fb.Language))
	default:
		return types.NewConfigurationError(fb.ID, types.ErrNotImplemented)
	}
	if err != nil {
		return types.NewConfigurationError(fb.ID, err)
	}

	record(res, item, fb, out)
	return nil
}

// record writes a leaf outcome into res as self entries.
func record(res *Result, item *Document, fb *types.FieldBase, out leafOutcome) {
	if out.unevaluated != "" {
		res.addUnevaluated(selfUnevaluated(item, &fb.ConditionBase, out.unevaluated))
	}
	if out.match {
		res.Match = true
		m := selfMatched(item, &fb.ConditionBase, out.terms)
		m.MatchedLexiconExpressions = out.expressions
		res.addMatched(m)
		return
	}
	if out.unevaluated == "" {
		res.addUnmatched(selfUnmatched(item, &fb.ConditionBase))
	}
}

// fieldValues returns the values of field on item, resolving field labels.
// The second result reports whether the field is present.
func (r *Run) fieldValues(item *Document, field string) ([]string, bool) {
	if r.snapshot != nil {
		if label, ok := r.snapshot.FieldLabel(field); ok {
			return r.labelValues(item, label)
		}
	}
	return item.Source.Values(field)
}

func (r *Run) labelValues(item *Document, label *types.FieldLabel) ([]string, bool) {
	cache := r.cache(item)
	if values, ok := cache.labelValues[label.Name]; ok {
		return values, true
	}
	for _, f := range label.Fields {
		if values, ok := item.Source.Values(f); ok {
			cache.labelValues[label.Name] = values
			return values, true
		}
	}
	return nil, false
}

// requiresAgent reports whether a leaf cannot be decided at all without the
// external service: text conditions, and lexicons made only of AGENT
// expressions. Mixed lexicons degrade per expression instead.
func (r *Run) requiresAgent(c types.FieldCondition) bool {
	switch leaf := c.(type) {
	case *types.TextCondition:
		return true
	case *types.LexiconCondition:
		if r.snapshot == nil || leaf.Value == "" {
			return false
		}
		lex, err := r.snapshot.Lexicon(leaf.Value)
		if err != nil || len(lex.Expressions) == 0 {
			return false
		}
		for _, expr := range lex.Expressions {
			if expr.Kind != types.ExpressionAgent {
				return false
			}
		}
		return true
	}
	return false
}

func (r *Run) agentAvailable(ctx context.Context) bool {
	return r.engine.agent != nil && r.engine.agent.Available(ctx)
}
