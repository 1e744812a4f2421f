// internal/rules/combinators.go
package rules

import (
	"context"
	"fmt"

	"github.com/solatis/dossier/internal/types"
)

/*
 * Boolean, not and fragment combinators.
 *
 * Boolean state machine over children in declared order:
 *   - no children: vacuously true, recorded nowhere
 *   - every child's unmatched, unevaluated and all-match sets merge into the
 *     item result, whether or not evaluation continues
 *   - AND stops at the first non-matching child
 *   - OR stops at the first matching child unless the collection asks for
 *     full evaluation
 *   - matching children's matched entries collect in a local accumulator that
 *     is committed only if the boolean matches; a failing AND discards the
 *     matches of siblings that did succeed
 *   - a non-matching boolean records itself unmatched only when nothing in
 *     its sub-tree is unevaluated
 *
 * Not propagates undetermined inner results unchanged; negating "unknown"
 * stays "unknown".
 *
 * Fragment resolves its target through the snapshot and passes the target's
 * result through verbatim. It adds no entry of its own and is never cached.
 */

// evaluateBoolean evaluates an AND/OR node against one target item.
func (r *Run) evaluateBoolean(ctx context.Context, res *Result, item *Document, c *types.BooleanCondition, depth int) error {
	if c.Operator != types.OpAnd && c.Operator != types.OpOr {
		return types.NewConfigurationError(c.ID, fmt.Errorf("%w: boolean operator %q", types.ErrNotImplemented, c.Operator))
	}

	if len(c.Children) == 0 {
		res.Match = true
		return nil
	}

	foundMatch := false
	accumulated := NewResult()

	for _, child := range c.Children {
		childRes, err := r.dispatch(ctx, item, child, depth+1)
		if err != nil {
			return err
		}
		res.mergeDiagnostics(childRes)

		if !childRes.Match {
			if c.Operator == types.OpAnd {
				foundMatch = false
				break
			}
			continue
		}

		foundMatch = true
		accumulated.mergeMatches(childRes)

		if c.Operator == types.OpOr && !r.collection.FullEvaluation {
			break
		}
	}

	res.Match = foundMatch
	if foundMatch {
		res.addMatched(selfMatched(item, &c.ConditionBase, nil))
		res.mergeMatches(accumulated)
		return nil
	}
	if !res.Undetermined() {
		res.addUnmatched(selfUnmatched(item, &c.ConditionBase))
	}
	return nil
}

// evaluateNot evaluates a negation against one target item.
func (r *Run) evaluateNot(ctx context.Context, res *Result, item *Document, c *types.NotCondition, depth int) error {
	if c.Inner == nil {
		return types.NewConfigurationError(c.ID, types.ErrMissingTarget)
	}

	inner, err := r.dispatch(ctx, item, c.Inner, depth+1)
	if err != nil {
		return err
	}
	// The inner condition's own matched/unmatched entries do not describe the
	// negation; only undetermined leaves and observed matches carry over.
	res.mergeUnevaluated(inner)
	res.mergeObserved(inner)

	if inner.Undetermined() {
		res.Match = false
		return nil
	}

	res.Match = !inner.Match
	if res.Match {
		res.addMatched(selfMatched(item, &c.ConditionBase, nil))
	} else {
		res.addUnmatched(selfUnmatched(item, &c.ConditionBase))
	}
	return nil
}

// evaluateFragment resolves the referenced condition and returns its result
// unchanged.
func (r *Run) evaluateFragment(ctx context.Context, doc *Document, c *types.FragmentCondition, depth int) (*Result, error) {
	if c.TargetID == "" {
		return nil, types.NewConfigurationError(c.ID, types.ErrMissingTarget)
	}

	target, err := r.snapshot.Condition(c.TargetID)
	if err != nil {
		return nil, types.NewConfigurationError(c.ID, fmt.Errorf("fragment target %s: %w", c.TargetID, err))
	}

	return r.dispatch(ctx, doc, target, depth+1)
}

func selfMatched(item *Document, base *types.ConditionBase, terms []string) MatchedCondition {
	return MatchedCondition{
		DocumentID:  item.ID(),
		ConditionID: base.ID,
		Name:        base.Name,
		Terms:       unionTerms(terms, nil),
	}
}

func selfUnmatched(item *Document, base *types.ConditionBase) UnmatchedCondition {
	return UnmatchedCondition{
		DocumentID:  item.ID(),
		ConditionID: base.ID,
		Name:        base.Name,
	}
}

func selfUnevaluated(item *Document, base *types.ConditionBase, reason UnevaluatedReason) UnevaluatedCondition {
	return UnevaluatedCondition{
		DocumentID:  item.ID(),
		ConditionID: base.ID,
		Name:        base.Name,
		Reason:      reason,
	}
}
