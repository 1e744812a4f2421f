// internal/rules/result.go
package rules

import (
	"encoding/json"
	"sort"

	"github.com/solatis/dossier/internal/types"
)

/*
 * Tri-state evaluation result.
 *
 * A Result is matched, unmatched, or undetermined. Undetermined means at
 * least one leaf recorded an UnevaluatedCondition (field not extracted yet,
 * external service unavailable) and the outcome may change on a later run.
 *
 * Sets:
 *   - matched: matches belonging to the final successful outcome
 *   - unmatched: leaves and combinators definitively not matched
 *   - unevaluated: leaves that could not be decided, with a reason
 *   - all: every match observed in the sub-tree, contributing or not
 *
 * Every entry inserted into matched is first inserted into all; the reverse
 * does not hold because a failing AND discards its accumulated matches.
 *
 * Set identity is (document, condition). Re-inserting a match merges terms.
 */

// UnevaluatedReason explains why a condition could not be decided.
type UnevaluatedReason string

const (
	// ReasonMissingField: the field is absent and extraction is still in flight.
	ReasonMissingField UnevaluatedReason = "MISSING_FIELD"
	// ReasonMissingService: the external service required for matching is unavailable.
	ReasonMissingService UnevaluatedReason = "MISSING_SERVICE"
)

// MatchedLexiconExpression attributes matched terms to one lexicon expression.
type MatchedLexiconExpression struct {
	ExpressionID types.ExpressionID `json:"expression_id"`
	Terms        []string           `json:"terms"`
}

// MatchedCondition records a condition that matched a document.
type MatchedCondition struct {
	DocumentID                types.DocumentID           `json:"document_id"`
	ConditionID               types.ConditionID          `json:"condition_id"`
	Name                      string                     `json:"name,omitempty"`
	Terms                     []string                   `json:"terms,omitempty"`
	MatchedLexiconExpressions []MatchedLexiconExpression `json:"matched_lexicon_expressions,omitempty"`
}

// UnmatchedCondition records a condition definitively not matched.
type UnmatchedCondition struct {
	DocumentID  types.DocumentID  `json:"document_id"`
	ConditionID types.ConditionID `json:"condition_id"`
	Name        string            `json:"name,omitempty"`
}

// UnevaluatedCondition records a condition that could not be decided.
type UnevaluatedCondition struct {
	DocumentID  types.DocumentID  `json:"document_id"`
	ConditionID types.ConditionID `json:"condition_id"`
	Name        string            `json:"name,omitempty"`
	Reason      UnevaluatedReason `json:"reason"`
}

type entryKey struct {
	doc  types.DocumentID
	cond types.ConditionID
}

// entrySet is an insertion-ordered set keyed by (document, condition).
type entrySet[T any] struct {
	keys  []entryKey
	items map[entryKey]T
}

func (s *entrySet[T]) add(k entryKey, v T, merge func(prev, next T) T) {
	if s.items == nil {
		s.items = make(map[entryKey]T)
	}
	if old, ok := s.items[k]; ok {
		if merge != nil {
			s.items[k] = merge(old, v)
		}
		return
	}
	s.keys = append(s.keys, k)
	s.items[k] = v
}

func (s *entrySet[T]) get(k entryKey) (T, bool) {
	v, ok := s.items[k]
	return v, ok
}

func (s *entrySet[T]) values() []T {
	out := make([]T, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.items[k])
	}
	return out
}

func (s *entrySet[T]) len() int { return len(s.keys) }

func (s *entrySet[T]) clear() {
	s.keys = nil
	s.items = nil
}

// Result is the outcome of evaluating a condition against a document.
type Result struct {
	Match bool

	matched     entrySet[MatchedCondition]
	unmatched   entrySet[UnmatchedCondition]
	unevaluated entrySet[UnevaluatedCondition]
	all         entrySet[MatchedCondition]
}

// NewResult returns an empty non-matching result.
func NewResult() *Result {
	return &Result{}
}

// MatchedConditions returns matches belonging to the final outcome.
func (r *Result) MatchedConditions() []MatchedCondition { return r.matched.values() }

// UnmatchedConditions returns conditions definitively not matched.
func (r *Result) UnmatchedConditions() []UnmatchedCondition { return r.unmatched.values() }

// UnevaluatedConditions returns conditions that could not be decided.
func (r *Result) UnevaluatedConditions() []UnevaluatedCondition { return r.unevaluated.values() }

// AllConditionMatches returns every match observed in the sub-tree.
func (r *Result) AllConditionMatches() []MatchedCondition { return r.all.values() }

// Undetermined reports whether any condition in the sub-tree was unevaluated.
func (r *Result) Undetermined() bool { return r.unevaluated.len() > 0 }

// HasMatched reports whether condition id matched document doc.
func (r *Result) HasMatched(doc types.DocumentID, id types.ConditionID) bool {
	_, ok := r.matched.get(entryKey{doc, id})
	return ok
}

// HasUnmatched reports whether condition id was recorded unmatched for doc.
func (r *Result) HasUnmatched(doc types.DocumentID, id types.ConditionID) bool {
	_, ok := r.unmatched.get(entryKey{doc, id})
	return ok
}

// HasUnevaluated reports whether condition id was recorded unevaluated for doc.
func (r *Result) HasUnevaluated(doc types.DocumentID, id types.ConditionID) bool {
	_, ok := r.unevaluated.get(entryKey{doc, id})
	return ok
}

// MarshalJSON encodes the result as a report with all four sets.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Match                 bool                   `json:"match"`
		Undetermined          bool                   `json:"undetermined"`
		MatchedConditions     []MatchedCondition     `json:"matched_conditions"`
		UnmatchedConditions   []UnmatchedCondition   `json:"unmatched_conditions"`
		UnevaluatedConditions []UnevaluatedCondition `json:"unevaluated_conditions"`
		AllConditionMatches   []MatchedCondition     `json:"all_condition_matches"`
	}{
		Match:                 r.Match,
		Undetermined:          r.Undetermined(),
		MatchedConditions:     r.MatchedConditions(),
		UnmatchedConditions:   r.UnmatchedConditions(),
		UnevaluatedConditions: r.UnevaluatedConditions(),
		AllConditionMatches:   r.AllConditionMatches(),
	})
}

// addMatched inserts m into all and matched.
func (r *Result) addMatched(m MatchedCondition) {
	r.addObserved(m)
	r.matched.add(entryKey{m.DocumentID, m.ConditionID}, m, mergeMatched)
}

// addObserved inserts m into all only.
func (r *Result) addObserved(m MatchedCondition) {
	r.all.add(entryKey{m.DocumentID, m.ConditionID}, m, mergeMatched)
}

func (r *Result) addUnmatched(u UnmatchedCondition) {
	r.unmatched.add(entryKey{u.DocumentID, u.ConditionID}, u, nil)
}

func (r *Result) addUnevaluated(u UnevaluatedCondition) {
	r.unevaluated.add(entryKey{u.DocumentID, u.ConditionID}, u, nil)
}

// mergeDiagnostics unions the unmatched, unevaluated and all-match sets of
// other into r. These sets survive every short-circuit.
func (r *Result) mergeDiagnostics(other *Result) {
	for _, k := range other.unmatched.keys {
		r.unmatched.add(k, other.unmatched.items[k], nil)
	}
	r.mergeUnevaluated(other)
	r.mergeObserved(other)
}

func (r *Result) mergeUnevaluated(other *Result) {
	for _, k := range other.unevaluated.keys {
		r.unevaluated.add(k, other.unevaluated.items[k], nil)
	}
}

func (r *Result) mergeObserved(other *Result) {
	for _, k := range other.all.keys {
		r.all.add(k, other.all.items[k], mergeMatched)
	}
}

// mergeMatches appends the matched set of other into r.
func (r *Result) mergeMatches(other *Result) {
	for _, k := range other.matched.keys {
		r.matched.add(k, other.matched.items[k], mergeMatched)
	}
}

// mergeItem folds the result of one target item into an aggregate: the
// aggregate matches when any item matched, and diagnostics always union.
// Matched entries are kept only while the aggregate matches (see finishItems).
func (r *Result) mergeItem(item *Result) {
	r.mergeDiagnostics(item)
	if item.Match {
		r.Match = true
		r.mergeMatches(item)
	}
}

// finishItems drops matched entries collected from items when the
// aggregate did not match.
func (r *Result) finishItems() {
	if !r.Match {
		r.matched.clear()
	}
}

func mergeMatched(prev, next MatchedCondition) MatchedCondition {
	prev.Terms = unionTerms(prev.Terms, next.Terms)
	if len(next.MatchedLexiconExpressions) > 0 {
		seen := make(map[types.ExpressionID]int, len(prev.MatchedLexiconExpressions))
		exprs := append([]MatchedLexiconExpression(nil), prev.MatchedLexiconExpressions...)
		for i, e := range exprs {
			seen[e.ExpressionID] = i
		}
		for _, e := range next.MatchedLexiconExpressions {
			if i, ok := seen[e.ExpressionID]; ok {
				exprs[i].Terms = unionTerms(exprs[i].Terms, e.Terms)
				continue
			}
			seen[e.ExpressionID] = len(exprs)
			exprs = append(exprs, e)
		}
		prev.MatchedLexiconExpressions = exprs
	}
	return prev
}

// unionTerms returns the sorted, deduplicated union of a and b.
func unionTerms(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a)+len(b))
	for _, t := range a {
		set[t] = struct{}{}
	}
	for _, t := range b {
		set[t] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
