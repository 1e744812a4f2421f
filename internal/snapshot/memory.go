// Package snapshot provides read-only, point-in-time views of authored
// conditions, lexicons and field labels for the evaluation engine.
//
// Memory is the one implementation; the YAML and SQL loaders both build one.
package snapshot

import (
	"fmt"
	"sort"

	"github.com/solatis/dossier/internal/types"
)

// Memory is an in-memory snapshot. It is safe for concurrent reads once
// loading has finished.
type Memory struct {
	conditions map[types.ConditionID]types.Condition
	roots      []types.Condition
	lexicons   map[types.LexiconID]*types.Lexicon
	labels     map[string]*types.FieldLabel
}

// NewMemory returns an empty snapshot.
func NewMemory() *Memory {
	return &Memory{
		conditions: make(map[types.ConditionID]types.Condition),
		lexicons:   make(map[types.LexiconID]*types.Lexicon),
		labels:     make(map[string]*types.FieldLabel),
	}
}

// AddCondition registers a root condition and indexes every nested
// condition by id so fragments can point into shared sub-trees.
func (m *Memory) AddCondition(cond types.Condition) error {
	if cond == nil {
		return fmt.Errorf("%w: nil condition", types.ErrMissingTarget)
	}

	seen := make(map[types.ConditionID]types.Condition)
	var ids []types.ConditionID
	err := types.Walk(cond, func(c types.Condition) error {
		id := c.Common().ID
		if id == "" {
			return nil
		}
		if _, exists := m.conditions[id]; exists {
			return fmt.Errorf("%w: %s", types.ErrDuplicateID, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s", types.ErrDuplicateID, id)
		}
		seen[id] = c
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		m.conditions[id] = seen[id]
	}
	m.roots = append(m.roots, cond)
	return nil
}

// AddLexicon registers a lexicon.
func (m *Memory) AddLexicon(lex *types.Lexicon) error {
	if _, exists := m.lexicons[lex.ID]; exists {
		return fmt.Errorf("%w: lexicon %s", types.ErrDuplicateID, lex.ID)
	}
	if len(lex.Expressions) > types.MaxLexiconExpressions {
		return fmt.Errorf("%w: lexicon %s has %d", types.ErrTooManyExpressions, lex.ID, len(lex.Expressions))
	}
	m.lexicons[lex.ID] = lex
	return nil
}

// AddFieldLabel registers or replaces a field label.
func (m *Memory) AddFieldLabel(label *types.FieldLabel) {
	m.labels[label.Name] = label
}

// Condition returns the condition with the given id, root or nested.
func (m *Memory) Condition(id types.ConditionID) (types.Condition, error) {
	c, ok := m.conditions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrConditionNotFound, id)
	}
	return c, nil
}

// Lexicon returns the lexicon with the given id.
func (m *Memory) Lexicon(id types.LexiconID) (*types.Lexicon, error) {
	l, ok := m.lexicons[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrLexiconNotFound, id)
	}
	return l, nil
}

// FieldLabel returns the field label registered under name.
func (m *Memory) FieldLabel(name string) (*types.FieldLabel, bool) {
	l, ok := m.labels[name]
	return l, ok
}

// Roots returns the root conditions in registration order.
func (m *Memory) Roots() []types.Condition {
	return m.roots
}

// Lexicons returns every lexicon ordered by id.
func (m *Memory) Lexicons() []*types.Lexicon {
	out := make([]*types.Lexicon, 0, len(m.lexicons))
	for _, l := range m.lexicons {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FieldLabels returns every field label ordered by name.
func (m *Memory) FieldLabels() []*types.FieldLabel {
	out := make([]*types.FieldLabel, 0, len(m.labels))
	for _, l := range m.labels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
