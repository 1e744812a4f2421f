// internal/rules/helpers_test.go
package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/solatis/dossier/internal/types"
)

// testSnapshot is an in-memory Snapshot for engine tests.
type testSnapshot struct {
	conditions map[types.ConditionID]types.Condition
	lexicons   map[types.LexiconID]*types.Lexicon
	labels     map[string]*types.FieldLabel
}

func newTestSnapshot() *testSnapshot {
	return &testSnapshot{
		conditions: make(map[types.ConditionID]types.Condition),
		lexicons:   make(map[types.LexiconID]*types.Lexicon),
		labels:     make(map[string]*types.FieldLabel),
	}
}

func (s *testSnapshot) Condition(id types.ConditionID) (types.Condition, error) {
	c, ok := s.conditions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrConditionNotFound, id)
	}
	return c, nil
}

func (s *testSnapshot) Lexicon(id types.LexiconID) (*types.Lexicon, error) {
	l, ok := s.lexicons[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrLexiconNotFound, id)
	}
	return l, nil
}

func (s *testSnapshot) FieldLabel(name string) (*types.FieldLabel, bool) {
	l, ok := s.labels[name]
	return l, ok
}

// fakeAgent is a scripted external service that counts its calls.
type fakeAgent struct {
	mu             sync.Mutex
	available      bool
	result         types.AgentResult
	err            error
	availableCalls int
	queries        int
	lastScope      string
	lastValues     []string
}

func (a *fakeAgent) Available(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.availableCalls++
	return a.available
}

func (a *fakeAgent) Query(ctx context.Context, scopeID string, values []string) (types.AgentResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queries++
	a.lastScope = scopeID
	a.lastValues = append([]string(nil), values...)
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func base(id string) types.ConditionBase {
	return types.ConditionBase{ID: types.ConditionID(id), Name: id}
}

func field(id, name string) types.FieldBase {
	return types.FieldBase{ConditionBase: base(id), Field: name}
}

func existsCond(id, name string) *types.ExistsCondition {
	return &types.ExistsCondition{FieldBase: field(id, name)}
}

func stringCond(id, name string, op types.StringOperator, value string) *types.StringCondition {
	return &types.StringCondition{FieldBase: field(id, name), Operator: op, Value: value}
}

func numberCond(id, name string, op types.NumberOperator, value int64) *types.NumberCondition {
	return &types.NumberCondition{FieldBase: field(id, name), Operator: op, Value: value}
}

func dateCond(id, name string, op types.DateOperator, value string) *types.DateCondition {
	return &types.DateCondition{FieldBase: field(id, name), Operator: op, Value: value}
}

func regexCond(id, name, pattern string) *types.RegexCondition {
	return &types.RegexCondition{FieldBase: field(id, name), Value: pattern}
}

func lexiconCond(id, name string, lexicon types.LexiconID) *types.LexiconCondition {
	return &types.LexiconCondition{FieldBase: field(id, name), Value: lexicon}
}

func textCond(id, name, expression string) *types.TextCondition {
	return &types.TextCondition{FieldBase: field(id, name), Value: expression}
}

func and(id string, children ...types.Condition) *types.BooleanCondition {
	return &types.BooleanCondition{ConditionBase: base(id), Operator: types.OpAnd, Children: children}
}

func or(id string, children ...types.Condition) *types.BooleanCondition {
	return &types.BooleanCondition{ConditionBase: base(id), Operator: types.OpOr, Children: children}
}

func not(id string, inner types.Condition) *types.NotCondition {
	return &types.NotCondition{ConditionBase: base(id), Inner: inner}
}

func fragment(id, target string) *types.FragmentCondition {
	return &types.FragmentCondition{ConditionBase: base(id), TargetID: types.ConditionID(target)}
}

func sourceDoc(id string, metadata map[string][]string) *types.Document {
	return &types.Document{ID: types.DocumentID(id), Metadata: metadata}
}

func evaluate(t interface{ Fatalf(string, ...any) }, e *Engine, doc *Document, cond types.Condition, snap Snapshot) *Result {
	res, err := e.Evaluate(context.Background(), CollectionContext{ID: "coll"}, doc, cond, snap)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	return res
}
