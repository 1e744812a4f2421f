// internal/rules/properties_test.go
package rules

import (
	"fmt"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/dossier/internal/types"
)

// presenceTree builds AND/OR over eight exists leaves and a document where
// field i is present iff bit i of mask is set.
func presenceTree(operator types.BooleanOperator, mask int) (*types.BooleanCondition, *types.Document) {
	cond := &types.BooleanCondition{ConditionBase: base("root"), Operator: operator}
	metadata := make(map[string][]string)
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("f%d", i)
		cond.Children = append(cond.Children, existsCond(name, name))
		if mask&(1<<i) != 0 {
			metadata[name] = []string{"v"}
		}
	}
	return cond, sourceDoc("doc-1", metadata)
}

// Property-based test: boolean outcome with complete metadata
func TestEvaluate_PropertyBooleanSemantics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("AND matches iff every field is present", prop.ForAll(
		func(mask int) bool {
			cond, src := presenceTree(types.OpAnd, mask)
			res := evaluate(t, NewEngine(), NewDocument(src, true), cond, newTestSnapshot())
			if res.Match != (mask == 0xff) {
				return false
			}
			// Self entry on exactly one side.
			return res.HasMatched("doc-1", "root") != res.HasUnmatched("doc-1", "root")
		},
		gen.IntRange(0, 0xff),
	))

	properties.Property("OR matches iff some field is present", prop.ForAll(
		func(mask int, full bool) bool {
			cond, src := presenceTree(types.OpOr, mask)
			res, err := NewEngine().Evaluate(t.Context(), CollectionContext{FullEvaluation: full}, NewDocument(src, true), cond, newTestSnapshot())
			if err != nil || res.Match != (mask != 0) {
				return false
			}
			if full {
				// Every present field is reported as matched.
				for i := 0; i < 8; i++ {
					id := types.ConditionID(fmt.Sprintf("f%d", i))
					if (mask&(1<<i) != 0) != res.HasMatched("doc-1", id) {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(0, 0xff),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property-based test: incomplete metadata never yields a false negative
func TestEvaluate_PropertyUndetermined(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("missing fields before extraction are undetermined, never unmatched", prop.ForAll(
		func(mask int, useOr bool) bool {
			op := types.OpAnd
			if useOr {
				op = types.OpOr
			}
			cond, src := presenceTree(op, mask)
			res := evaluate(t, NewEngine(), NewDocument(src, false), cond, newTestSnapshot())

			if len(res.UnmatchedConditions()) != 0 {
				return false
			}
			if res.Match {
				return !res.HasUnevaluated("doc-1", "root")
			}
			return res.Undetermined()
		},
		gen.IntRange(0, 0xfe),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property-based test: matched entries are always observed
func TestEvaluate_PropertyMatchedSubsetOfAll(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("matchedConditions is a subset of allConditionMatches", prop.ForAll(
		func(mask int, useOr bool, negate bool) bool {
			op := types.OpAnd
			if useOr {
				op = types.OpOr
			}
			cond, src := presenceTree(op, mask)
			var root types.Condition = cond
			if negate {
				root = not("not", cond)
			}
			res := evaluate(t, NewEngine(), NewDocument(src, true), root, newTestSnapshot())

			all := make(map[types.ConditionID]bool)
			for _, m := range res.AllConditionMatches() {
				all[m.ConditionID] = true
			}
			for _, m := range res.MatchedConditions() {
				if !all[m.ConditionID] {
					return false
				}
			}
			if !res.Match && len(res.MatchedConditions()) != 0 {
				return false
			}
			return true
		},
		gen.IntRange(0, 0xff),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property-based test: double negation
func TestEvaluate_PropertyDoubleNegation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("not(not(x)) matches iff x matches", prop.ForAll(
		func(mask int) bool {
			cond, src := presenceTree(types.OpAnd, mask)
			doc := NewDocument(src, true)
			plain := evaluate(t, NewEngine(), doc, cond, newTestSnapshot())
			double := evaluate(t, NewEngine(), doc, not("n1", not("n2", cond)), newTestSnapshot())
			return plain.Match == double.Match
		},
		gen.IntRange(0, 0xff),
	))

	properties.TestingRun(t)
}

// Property-based test: term union
func TestUnionTerms_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("union is sorted, deduplicated and commutative", prop.ForAll(
		func(a, b []string) bool {
			ab := unionTerms(a, b)
			ba := unionTerms(b, a)
			if fmt.Sprint(ab) != fmt.Sprint(ba) {
				return false
			}
			if !sort.StringsAreSorted(ab) {
				return false
			}
			for i := 1; i < len(ab); i++ {
				if ab[i] == ab[i-1] {
					return false
				}
			}
			return fmt.Sprint(unionTerms(ab, ab)) == fmt.Sprint(ab)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
