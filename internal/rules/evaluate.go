// internal/rules/evaluate.go
package rules

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/iter"

	"github.com/solatis/dossier/internal/types"
)

/*
 * Shared evaluation pipeline.
 *
 * Every leaf and every non-fragment combinator runs through evaluateTargets:
 *   1. Cache check: a condition already evaluated for this document in this
 *      run returns its cached tri-state slot. An evaluated id without a slot
 *      (the outcome was undetermined) falls through and is evaluated again.
 *   2. Target resolution: self, children or descendants per Target and
 *      IncludeDescendants, skipping excluded documents.
 *   3. Per-item evaluation into a fresh Result, merged into the aggregate:
 *      diagnostics always union, match if any item matched, matched entries
 *      kept only when the aggregate matched.
 *   4. The outcome is written into the document cache.
 *
 * Fragments bypass this pipeline entirely; they are transparent pointers and
 * never own a cache slot.
 */

// itemEvaluator evaluates a condition's own logic against one target item,
// writing into res.
type itemEvaluator func(res *Result, item *Document) error

// evaluateTargets runs the shared pipeline for cond against doc.
func (r *Run) evaluateTargets(ctx context.Context, doc *Document, cond types.Condition, eval itemEvaluator) (*Result, error) {
	base := cond.Common()
	if base.ID == "" {
		return nil, types.NewConfigurationError(base.ID, types.ErrMissingID)
	}
	if !base.Target.Valid() {
		return nil, types.NewConfigurationError(base.ID, fmt.Errorf("%w: target %q", types.ErrNotImplemented, base.Target))
	}
	cache := r.cache(doc)

	if slot, ok := cache.lookup(base.ID); ok {
		return slot.restore(), nil
	}

	agg := NewResult()
	for _, item := range resolveTargets(doc, base) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := NewResult()
		if err := eval(res, item); err != nil {
			return nil, err
		}
		agg.mergeItem(res)
	}
	agg.finishItems()

	cache.store(base.ID, slotFor(agg, base.ID))

	r.engine.logger.Debug("condition evaluated",
		"condition_id", base.ID,
		"kind", cond.Kind(),
		"document_id", doc.ID(),
		"match", agg.Match,
		"unevaluated", agg.unevaluated.len(),
	)

	return agg, nil
}

// resolveTargets computes the documents a condition's logic runs against.
func resolveTargets(doc *Document, base *types.ConditionBase) []*Document {
	var items []*Document

	switch base.Target {
	case types.TargetSelf, types.TargetAll:
		items = append(items, doc)
	case types.TargetContainer:
		if !doc.Excluded() {
			items = append(items, doc)
		}
	}

	if base.Target == types.TargetAll || base.Target == types.TargetChildren {
		if base.IncludeDescendants {
			items = append(items, doc.descendants()...)
		} else {
			items = append(items, doc.includedChildren()...)
		}
	}

	return items
}

// slotFor builds the cache slot for an aggregate outcome. A match stores the
// condition's own matched entries folded into one; a definitive non-match
// stores its own unmatched entry. Undetermined outcomes get no slot.
func slotFor(agg *Result, id types.ConditionID) *cachedResult {
	if agg.Undetermined() {
		return nil
	}
	if agg.Match {
		slot := &cachedResult{isMatch: true}
		for _, k := range agg.matched.keys {
			if k.cond != id {
				continue
			}
			m := agg.matched.items[k]
			if slot.matched == nil {
				slot.matched = &m
				continue
			}
			merged := mergeMatched(*slot.matched, m)
			slot.matched = &merged
		}
		return slot
	}

	for _, k := range agg.unmatched.keys {
		if k.cond == id {
			u := agg.unmatched.items[k]
			return &cachedResult{unmatched: &u}
		}
	}
	return nil
}

// EvaluateAll evaluates cond against independent documents concurrently.
// Each document gets its own Run; results are returned in input order. The
// first configuration error encountered is returned alongside the results
// that completed.
func (e *Engine) EvaluateAll(ctx context.Context, collection CollectionContext, docs []*Document, cond types.Condition, snapshot Snapshot) ([]*Result, error) {
	type docOutcome struct {
		res *Result
		err error
	}

	mapper := iter.Mapper[*Document, docOutcome]{MaxGoroutines: e.workers}
	outcomes := mapper.Map(docs, func(d **Document) docOutcome {
		res, err := e.Evaluate(ctx, collection, *d, cond, snapshot)
		return docOutcome{res: res, err: err}
	})

	results := make([]*Result, len(outcomes))
	var firstErr error
	for i, o := range outcomes {
		results[i] = o.res
		if o.err != nil && firstErr == nil {
			firstErr = o.err
		}
	}
	return results, firstErr
}
