// internal/rules/evaluate_test.go
package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/solatis/dossier/internal/types"
)

func TestEvaluate_EmptyBooleanIsVacuouslyTrue(t *testing.T) {
	for _, cond := range []*types.BooleanCondition{and("empty-and"), or("empty-or")} {
		t.Run(string(cond.Operator), func(t *testing.T) {
			doc := NewDocument(sourceDoc("doc-1", nil), true)
			res := evaluate(t, NewEngine(), doc, cond, newTestSnapshot())

			if !res.Match {
				t.Errorf("Match = false, want true")
			}
			if len(res.MatchedConditions()) != 0 {
				t.Errorf("len(MatchedConditions) = %v, want 0", len(res.MatchedConditions()))
			}
			if len(res.AllConditionMatches()) != 0 {
				t.Errorf("len(AllConditionMatches) = %v, want 0", len(res.AllConditionMatches()))
			}
			if len(res.UnmatchedConditions()) != 0 {
				t.Errorf("len(UnmatchedConditions) = %v, want 0", len(res.UnmatchedConditions()))
			}
		})
	}
}

func TestEvaluate_AndDiscardsMatchesOnFailure(t *testing.T) {
	cond := and("and", existsCond("a", "a"), existsCond("b", "b"))
	doc := NewDocument(sourceDoc("doc-1", map[string][]string{"a": {"x"}}), true)

	res := evaluate(t, NewEngine(), doc, cond, newTestSnapshot())

	if res.Match {
		t.Errorf("Match = true, want false")
	}
	if res.HasMatched("doc-1", "a") {
		t.Errorf("MatchedConditions contains a, want discarded")
	}
	if !res.HasUnmatched("doc-1", "and") {
		t.Errorf("UnmatchedConditions missing and")
	}
	if !res.HasUnmatched("doc-1", "b") {
		t.Errorf("UnmatchedConditions missing b")
	}
	if res.Undetermined() {
		t.Errorf("Undetermined() = true, want false")
	}

	// The discarded match is still observed.
	found := false
	for _, m := range res.AllConditionMatches() {
		if m.ConditionID == "a" {
			found = true
		}
	}
	if !found {
		t.Errorf("AllConditionMatches missing a")
	}
}

func TestEvaluate_UndeterminedPropagation(t *testing.T) {
	cond := and("and", existsCond("a", "a"), existsCond("b", "b"))
	doc := NewDocument(sourceDoc("doc-1", map[string][]string{"a": {"x"}}), false)

	res := evaluate(t, NewEngine(), doc, cond, newTestSnapshot())

	if res.Match {
		t.Errorf("Match = true, want false")
	}
	if !res.HasUnevaluated("doc-1", "b") {
		t.Errorf("UnevaluatedConditions missing b")
	}
	if res.HasUnmatched("doc-1", "and") {
		t.Errorf("UnmatchedConditions contains and, want absent while undetermined")
	}
	got := res.UnevaluatedConditions()
	if len(got) != 1 || got[0].Reason != ReasonMissingField {
		t.Errorf("UnevaluatedConditions = %+v, want one MISSING_FIELD entry", got)
	}
}

func TestEvaluate_NotOfUndetermined(t *testing.T) {
	cond := not("not", existsCond("missing", "missing"))
	doc := NewDocument(sourceDoc("doc-1", nil), false)

	res := evaluate(t, NewEngine(), doc, cond, newTestSnapshot())

	if res.Match {
		t.Errorf("Match = true, want false")
	}
	if !res.Undetermined() {
		t.Errorf("Undetermined() = false, want true")
	}
	if res.HasUnmatched("doc-1", "not") || res.HasMatched("doc-1", "not") {
		t.Errorf("not recorded as a definitive outcome")
	}
}

func TestEvaluate_NotNegates(t *testing.T) {
	tests := []struct {
		name      string
		metadata  map[string][]string
		wantMatch bool
	}{
		{"inner matches", map[string][]string{"a": {"x"}}, false},
		{"inner does not match", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := not("not", existsCond("a", "a"))
			doc := NewDocument(sourceDoc("doc-1", tt.metadata), true)

			res := evaluate(t, NewEngine(), doc, cond, newTestSnapshot())

			if res.Match != tt.wantMatch {
				t.Errorf("Match = %v, want %v", res.Match, tt.wantMatch)
			}
			if tt.wantMatch && !res.HasMatched("doc-1", "not") {
				t.Errorf("MatchedConditions missing not")
			}
			if !tt.wantMatch && !res.HasUnmatched("doc-1", "not") {
				t.Errorf("UnmatchedConditions missing not")
			}
			if res.HasMatched("doc-1", "a") || res.HasUnmatched("doc-1", "a") {
				t.Errorf("inner condition's own entry leaked into the negation")
			}
		})
	}
}

func TestEvaluate_Memoization(t *testing.T) {
	agent := &fakeAgent{available: true, result: types.AgentResult{"text": {"secret"}}}
	e := NewEngine(WithAgent(agent))
	cond := textCond("text", "body", "mentions a secret")
	doc := NewDocument(&types.Document{ID: "doc-1", Streams: map[string]string{"body": "top secret"}}, true)

	run := e.NewRun(CollectionContext{ID: "coll"}, newTestSnapshot())
	first, err := run.Evaluate(context.Background(), doc, cond)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	second, err := run.Evaluate(context.Background(), doc, cond)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}

	if agent.availableCalls != 1 {
		t.Errorf("Available calls = %v, want 1", agent.availableCalls)
	}
	if agent.queries != 1 {
		t.Errorf("Query calls = %v, want 1", agent.queries)
	}
	if first.Match != second.Match || !second.Match {
		t.Errorf("Match = %v then %v, want true both times", first.Match, second.Match)
	}
	if len(first.MatchedConditions()) != len(second.MatchedConditions()) {
		t.Errorf("MatchedConditions differ: %+v vs %+v", first.MatchedConditions(), second.MatchedConditions())
	}
	if got := second.MatchedConditions()[0].Terms; len(got) != 1 || got[0] != "secret" {
		t.Errorf("cached Terms = %v, want [secret]", got)
	}

	// A reset run evaluates again.
	run.Reset()
	if _, err := run.Evaluate(context.Background(), doc, cond); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if agent.queries != 2 {
		t.Errorf("Query calls after Reset = %v, want 2", agent.queries)
	}
}

func TestEvaluate_UndeterminedIsNotCached(t *testing.T) {
	cond := existsCond("a", "a")
	src := sourceDoc("doc-1", nil)
	doc := NewDocument(src, false)
	run := NewEngine().NewRun(CollectionContext{}, newTestSnapshot())

	res, err := run.Evaluate(context.Background(), doc, cond)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if !res.Undetermined() {
		t.Fatalf("Undetermined() = false, want true")
	}

	// Extraction completes within the same run.
	src.Metadata = map[string][]string{"a": {"x"}}
	doc.FullMetadata = true

	res, err = run.Evaluate(context.Background(), doc, cond)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if !res.Match {
		t.Errorf("Match = false, want true after extraction")
	}
}

func TestEvaluate_MatchedButUndeterminedIsNotCached(t *testing.T) {
	snap := lexiconSnapshot(
		types.LexiconExpression{ID: "re", Kind: types.ExpressionRegex, Value: "secret"},
		types.LexiconExpression{ID: "ag", Kind: types.ExpressionAgent, Value: "mentions a secret"},
	)
	agent := &fakeAgent{available: false}
	leaf := lexiconCond("l", "body", "lex")
	doc := NewDocument(sourceDoc("doc-1", map[string][]string{"body": {"top secret"}}), true)
	run := NewEngine(WithAgent(agent)).NewRun(CollectionContext{ID: "coll"}, snap)

	for i := 0; i < 2; i++ {
		res, err := run.Evaluate(context.Background(), doc, leaf)
		if err != nil {
			t.Fatalf("Evaluate() error = %v, want nil", err)
		}
		if !res.Match || !res.Undetermined() {
			t.Fatalf("evaluation %d: Match = %v, Undetermined() = %v; want true, true", i, res.Match, res.Undetermined())
		}
	}
	if agent.availableCalls != 2 {
		t.Errorf("Available calls = %v, want 2", agent.availableCalls)
	}

	res, err := run.Evaluate(context.Background(), doc, not("n", leaf))
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if res.Match {
		t.Errorf("Match = true, want false")
	}
	if !res.Undetermined() {
		t.Errorf("Undetermined() = false, want true")
	}
	if res.HasUnmatched("doc-1", "n") {
		t.Errorf("UnmatchedConditions contains n, want absent while undetermined")
	}
}

func TestEvaluate_CombinatorMemoization(t *testing.T) {
	agent := &fakeAgent{available: true, result: types.AgentResult{"t": {"secret"}}}
	cond := and("root", textCond("t", "body", "mentions a secret"), existsCond("e", "title"))
	doc := NewDocument(sourceDoc("doc-1", map[string][]string{"body": {"top secret"}, "title": {"memo"}}), true)
	run := NewEngine(WithAgent(agent)).NewRun(CollectionContext{ID: "coll"}, newTestSnapshot())

	first, err := run.Evaluate(context.Background(), doc, cond)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	second, err := run.Evaluate(context.Background(), doc, cond)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}

	if agent.queries != 1 {
		t.Errorf("Query calls = %v, want 1", agent.queries)
	}
	if !first.Match || !second.Match {
		t.Fatalf("Match = %v then %v, want true both times", first.Match, second.Match)
	}
	for _, id := range []types.ConditionID{"root", "t", "e"} {
		if !second.HasMatched("doc-1", id) {
			t.Errorf("cached MatchedConditions missing %s", id)
		}
	}
	if len(first.MatchedConditions()) != len(second.MatchedConditions()) {
		t.Errorf("MatchedConditions differ: %+v vs %+v", first.MatchedConditions(), second.MatchedConditions())
	}

	// A non-match is restored with its unmatched entry.
	miss := or("miss", existsCond("x", "absent"))
	for i := 0; i < 2; i++ {
		res, err := run.Evaluate(context.Background(), doc, miss)
		if err != nil {
			t.Fatalf("Evaluate() error = %v, want nil", err)
		}
		if res.Match || !res.HasUnmatched("doc-1", "miss") {
			t.Errorf("evaluation %d: Match = %v, unmatched miss = %v; want false, true", i, res.Match, res.HasUnmatched("doc-1", "miss"))
		}
	}
}

func TestEvaluate_FragmentSharesTargetCache(t *testing.T) {
	agent := &fakeAgent{available: true, result: types.AgentResult{"shared": {"secret"}}}
	snap := newTestSnapshot()
	snap.conditions["shared"] = textCond("shared", "body", "mentions a secret")
	doc := NewDocument(sourceDoc("doc-1", map[string][]string{"body": {"top secret"}}), true)
	run := NewEngine(WithAgent(agent)).NewRun(CollectionContext{ID: "coll"}, snap)

	for _, cond := range []types.Condition{
		fragment("f1", "shared"),
		snap.conditions["shared"],
		and("root", fragment("f2", "shared")),
	} {
		res, err := run.Evaluate(context.Background(), doc, cond)
		if err != nil {
			t.Fatalf("Evaluate(%s) error = %v, want nil", cond.Common().ID, err)
		}
		if !res.Match || !res.HasMatched("doc-1", "shared") {
			t.Errorf("Evaluate(%s): Match = %v, want true with shared matched", cond.Common().ID, res.Match)
		}
	}
	if agent.queries != 1 {
		t.Errorf("Query calls = %v, want 1", agent.queries)
	}
}

func TestEvaluate_MissingID(t *testing.T) {
	doc := NewDocument(sourceDoc("doc-1", map[string][]string{"a": {"x"}}), true)
	run := NewEngine().NewRun(CollectionContext{}, newTestSnapshot())

	_, err := run.Evaluate(context.Background(), doc, and("root", existsCond("", "a"), existsCond("", "b")))
	if !errors.Is(err, types.ErrMissingID) {
		t.Fatalf("Evaluate() error = %v, want %v", err, types.ErrMissingID)
	}
	if !types.IsConfigurationError(err) {
		t.Errorf("IsConfigurationError(%v) = false, want true", err)
	}

	// Fragments are transparent and need no id of their own.
	snap := newTestSnapshot()
	snap.conditions["shared"] = existsCond("shared", "a")
	res, err := NewEngine().Evaluate(context.Background(), CollectionContext{}, doc, fragment("", "shared"), snap)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if !res.Match {
		t.Errorf("Match = false, want true")
	}
}

func TestEvaluate_OrShortCircuit(t *testing.T) {
	tests := []struct {
		name           string
		fullEvaluation bool
		wantCalls      int
	}{
		{"short circuit", false, 0},
		{"full evaluation", true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := &fakeAgent{available: true, result: types.AgentResult{}}
			e := NewEngine(WithAgent(agent))
			cond := or("or", existsCond("a", "a"), textCond("b", "body", "anything"))
			doc := NewDocument(&types.Document{
				ID:       "doc-1",
				Metadata: map[string][]string{"a": {"x"}},
				Streams:  map[string]string{"body": "text"},
			}, true)

			res, err := e.Evaluate(context.Background(), CollectionContext{FullEvaluation: tt.fullEvaluation}, doc, cond, newTestSnapshot())
			if err != nil {
				t.Fatalf("Evaluate() error = %v, want nil", err)
			}
			if !res.Match {
				t.Errorf("Match = false, want true")
			}
			if agent.availableCalls != tt.wantCalls {
				t.Errorf("second branch evaluations = %v, want %v", agent.availableCalls, tt.wantCalls)
			}
			if tt.fullEvaluation && !res.HasUnmatched("doc-1", "b") {
				t.Errorf("UnmatchedConditions missing b under full evaluation")
			}
		})
	}
}

func TestEvaluate_OrMatchCommitsAccumulator(t *testing.T) {
	cond := or("or", existsCond("a", "a"), existsCond("b", "b"))
	doc := NewDocument(sourceDoc("doc-1", map[string][]string{"b": {"x"}}), true)

	res := evaluate(t, NewEngine(), doc, cond, newTestSnapshot())

	if !res.Match {
		t.Fatalf("Match = false, want true")
	}
	if !res.HasMatched("doc-1", "or") || !res.HasMatched("doc-1", "b") {
		t.Errorf("MatchedConditions = %+v, want or and b", res.MatchedConditions())
	}
	if !res.HasUnmatched("doc-1", "a") {
		t.Errorf("UnmatchedConditions missing a")
	}
}

func TestEvaluate_NumberAnyMatch(t *testing.T) {
	cond := numberCond("age", "age", types.OpGt, 18)
	doc := NewDocument(sourceDoc("doc-1", map[string][]string{"age": {"20", "abc"}}), true)

	res := evaluate(t, NewEngine(), doc, cond, newTestSnapshot())

	if !res.Match {
		t.Fatalf("Match = false, want true")
	}
	terms := res.MatchedConditions()[0].Terms
	if len(terms) != 1 || terms[0] != "20" {
		t.Errorf("Terms = %v, want [20]", terms)
	}
}

func TestEvaluate_Fragment(t *testing.T) {
	snap := newTestSnapshot()
	snap.conditions["shared"] = existsCond("shared", "a")
	cond := fragment("frag", "shared")
	doc := NewDocument(sourceDoc("doc-1", map[string][]string{"a": {"x"}}), true)

	res := evaluate(t, NewEngine(), doc, cond, snap)

	if !res.Match {
		t.Fatalf("Match = false, want true")
	}
	if res.HasMatched("doc-1", "frag") {
		t.Errorf("fragment recorded itself, want transparent")
	}
	if !res.HasMatched("doc-1", "shared") {
		t.Errorf("MatchedConditions missing shared")
	}
}

func TestEvaluate_FieldLabel(t *testing.T) {
	snap := newTestSnapshot()
	snap.labels["author"] = &types.FieldLabel{Name: "author", Fields: []string{"dc:creator", "meta:author"}}
	cond := stringCond("s", "author", types.OpIs, "alice")
	doc := NewDocument(sourceDoc("doc-1", map[string][]string{"meta:author": {"Alice"}}), false)

	res := evaluate(t, NewEngine(), doc, cond, snap)

	if !res.Match {
		t.Errorf("Match = false, want true")
	}
}

func TestEvaluate_Targets(t *testing.T) {
	// doc-1 > (child-1 > grandchild-1), (child-2 excluded > grandchild-2)
	src := &types.Document{ID: "doc-1", Children: []*types.Document{
		{ID: "child-1", Children: []*types.Document{
			{ID: "grandchild-1", Metadata: map[string][]string{"a": {"x"}}},
		}},
		{ID: "child-2", Excluded: true, Children: []*types.Document{
			{ID: "grandchild-2", Metadata: map[string][]string{"a": {"x"}}},
		}},
	}}

	tests := []struct {
		name        string
		target      types.Target
		descendants bool
		wantMatch   bool
		wantEntries []types.DocumentID
	}{
		{"self", types.TargetSelf, false, false, []types.DocumentID{"doc-1"}},
		{"children", types.TargetChildren, false, false, []types.DocumentID{"child-1"}},
		{"descendants", types.TargetChildren, true, true, []types.DocumentID{"child-1", "grandchild-1"}},
		{"all with descendants", types.TargetAll, true, true, []types.DocumentID{"doc-1", "child-1", "grandchild-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := existsCond("a", "a")
			cond.Target = tt.target
			cond.IncludeDescendants = tt.descendants

			res := evaluate(t, NewEngine(), NewDocument(src, true), cond, newTestSnapshot())

			if res.Match != tt.wantMatch {
				t.Errorf("Match = %v, want %v", res.Match, tt.wantMatch)
			}
			var seen []types.DocumentID
			for _, u := range res.UnmatchedConditions() {
				seen = append(seen, u.DocumentID)
			}
			for _, m := range res.AllConditionMatches() {
				seen = append(seen, m.DocumentID)
			}
			if len(seen) != len(tt.wantEntries) {
				t.Fatalf("entries for %v, want %v", seen, tt.wantEntries)
			}
			want := make(map[types.DocumentID]bool)
			for _, id := range tt.wantEntries {
				want[id] = true
			}
			for _, id := range seen {
				if !want[id] {
					t.Errorf("unexpected entry for %s", id)
				}
			}
		})
	}
}

func TestEvaluate_ContainerSkipsExcluded(t *testing.T) {
	cond := existsCond("a", "a")
	cond.Target = types.TargetContainer
	src := sourceDoc("doc-1", map[string][]string{"a": {"x"}})
	src.Excluded = true

	res := evaluate(t, NewEngine(), NewDocument(src, true), cond, newTestSnapshot())

	if res.Match {
		t.Errorf("Match = true, want false for excluded container")
	}
}

func TestEvaluate_ConfigurationErrors(t *testing.T) {
	snap := newTestSnapshot()
	tests := []struct {
		name    string
		cond    types.Condition
		wantErr error
	}{
		{"missing field", existsCond("e", ""), types.ErrMissingField},
		{"not without inner", not("n", nil), types.ErrMissingTarget},
		{"fragment without target", fragment("f", ""), types.ErrMissingTarget},
		{"unknown fragment target", fragment("f", "nope"), types.ErrConditionNotFound},
		{"unknown boolean operator", &types.BooleanCondition{ConditionBase: base("b"), Operator: "XOR"}, types.ErrNotImplemented},
		{"unknown string operator", stringCond("s", "a", "LIKE", "x"), types.ErrNotImplemented},
		{"unknown number operator", numberCond("n", "a", "GTE", 1), types.ErrNotImplemented},
		{"unknown date operator", dateCond("d", "a", "DURING", "2024-01-01"), types.ErrNotImplemented},
		{"invalid date value", dateCond("d", "a", types.OpOn, "someday"), types.ErrInvalidDateValue},
		{"invalid regex", regexCond("r", "a", "(unclosed"), types.ErrInvalidPattern},
		{"unknown lexicon", lexiconCond("l", "a", "nope"), types.ErrLexiconNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := NewDocument(sourceDoc("doc-1", map[string][]string{"a": {"x"}}), true)
			_, err := NewEngine().Evaluate(context.Background(), CollectionContext{}, doc, tt.cond, snap)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Evaluate() error = %v, want %v", err, tt.wantErr)
			}
			if !types.IsConfigurationError(err) {
				t.Errorf("IsConfigurationError(%v) = false, want true", err)
			}
		})
	}
}

func TestEvaluate_UnknownOperatorOnEmptyField(t *testing.T) {
	cond := stringCond("s", "a", "LIKE", "x")
	doc := NewDocument(sourceDoc("doc-1", nil), true)

	_, err := NewEngine().Evaluate(context.Background(), CollectionContext{}, doc, cond, newTestSnapshot())
	if !errors.Is(err, types.ErrNotImplemented) {
		t.Errorf("Evaluate() error = %v, want %v", err, types.ErrNotImplemented)
	}
}

func TestEvaluate_FragmentCycleHitsDepthLimit(t *testing.T) {
	snap := newTestSnapshot()
	snap.conditions["loop"] = fragment("loop", "loop")
	doc := NewDocument(sourceDoc("doc-1", nil), true)

	_, err := NewEngine(WithMaxDepth(8)).Evaluate(context.Background(), CollectionContext{}, doc, snap.conditions["loop"], snap)
	if !errors.Is(err, types.ErrMaxDepthExceeded) {
		t.Errorf("Evaluate() error = %v, want %v", err, types.ErrMaxDepthExceeded)
	}
}

func TestEvaluate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	doc := NewDocument(sourceDoc("doc-1", nil), true)

	_, err := NewEngine().Evaluate(ctx, CollectionContext{}, doc, existsCond("a", "a"), newTestSnapshot())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Evaluate() error = %v, want %v", err, context.Canceled)
	}
}

func TestEvaluate_TextRequiresService(t *testing.T) {
	tests := []struct {
		name      string
		agent     *fakeAgent
		wantMatch bool
		wantUneval bool
	}{
		{"no agent", nil, false, true},
		{"agent down", &fakeAgent{available: false}, false, true},
		{"query fails", &fakeAgent{available: true, err: errors.New("connection reset")}, false, true},
		{"satisfied", &fakeAgent{available: true, result: types.AgentResult{"text": {"merger"}}}, true, false},
		{"not satisfied", &fakeAgent{available: true, result: types.AgentResult{"other": {"x"}}}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.agent != nil {
				opts = append(opts, WithAgent(tt.agent))
			}
			doc := NewDocument(&types.Document{ID: "doc-1", Streams: map[string]string{"body": "merger talks"}}, true)

			res := evaluate(t, NewEngine(opts...), doc, textCond("text", "body", "discusses a merger"), newTestSnapshot())

			if res.Match != tt.wantMatch {
				t.Errorf("Match = %v, want %v", res.Match, tt.wantMatch)
			}
			if res.Undetermined() != tt.wantUneval {
				t.Errorf("Undetermined() = %v, want %v", res.Undetermined(), tt.wantUneval)
			}
			if tt.wantUneval && res.UnevaluatedConditions()[0].Reason != ReasonMissingService {
				t.Errorf("Reason = %v, want %v", res.UnevaluatedConditions()[0].Reason, ReasonMissingService)
			}
		})
	}
}

func TestEvaluate_ScopeForwardedToService(t *testing.T) {
	agent := &fakeAgent{available: true, result: types.AgentResult{}}
	doc := NewDocument(&types.Document{ID: "doc-1", Streams: map[string]string{"body": "hello"}}, true)

	_, err := NewEngine(WithAgent(agent)).Evaluate(context.Background(),
		CollectionContext{ID: "coll", ScopeID: "scope-7"}, doc, textCond("t", "body", "x"), newTestSnapshot())
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if agent.lastScope != "scope-7" {
		t.Errorf("scope = %q, want %q", agent.lastScope, "scope-7")
	}
}

func TestEvaluateAll(t *testing.T) {
	docs := []*Document{
		NewDocument(sourceDoc("doc-1", map[string][]string{"a": {"x"}}), true),
		NewDocument(sourceDoc("doc-2", nil), true),
		NewDocument(sourceDoc("doc-3", map[string][]string{"a": {"y"}}), true),
	}

	results, err := NewEngine(WithWorkers(2)).EvaluateAll(context.Background(), CollectionContext{}, docs, existsCond("a", "a"), newTestSnapshot())
	if err != nil {
		t.Fatalf("EvaluateAll() error = %v, want nil", err)
	}

	want := []bool{true, false, true}
	for i, res := range results {
		if res.Match != want[i] {
			t.Errorf("results[%d].Match = %v, want %v", i, res.Match, want[i])
		}
	}
}

func TestResult_MarshalJSON(t *testing.T) {
	doc := NewDocument(sourceDoc("doc-1", map[string][]string{"a": {"x"}}), true)
	res := evaluate(t, NewEngine(), doc, existsCond("a", "a"), newTestSnapshot())

	data, err := res.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v, want nil", err)
	}
	want := `{"match":true,"undetermined":false,"matched_conditions":[{"document_id":"doc-1","condition_id":"a","name":"a"}],` +
		`"unmatched_conditions":[],"unevaluated_conditions":[],"all_condition_matches":[{"document_id":"doc-1","condition_id":"a","name":"a"}]}`
	if string(data) != want {
		t.Errorf("MarshalJSON() = %s, want %s", data, want)
	}
}
