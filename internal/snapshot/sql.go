// internal/snapshot/sql.go
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/solatis/dossier/internal/core/db"
	"github.com/solatis/dossier/internal/types"
)

type conditionRow struct {
	ID   string `db:"condition_id"`
	Name string `db:"name"`
	Body string `db:"body"`
}

type lexiconRow struct {
	ID   string `db:"lexicon_id"`
	Name string `db:"name"`
}

type expressionRow struct {
	ID        string `db:"expression_id"`
	LexiconID string `db:"lexicon_id"`
	Kind      string `db:"kind"`
	Value     string `db:"value"`
}

type fieldLabelRow struct {
	Name  string `db:"name"`
	Field string `db:"field"`
}

// LoadSQL reads every condition, lexicon and field label of a project into a
// Memory snapshot. Condition trees are stored as JSON bodies in the map form
// DecodeCondition reads.
func LoadSQL(ctx context.Context, q *db.Queries, projectID string) (*Memory, error) {
	m := NewMemory()

	var conditions []conditionRow
	if err := q.Select(ctx, "list-conditions", &conditions, projectID); err != nil {
		return nil, fmt.Errorf("list conditions: %w", err)
	}
	for _, row := range conditions {
		var raw map[string]any
		if err := json.Unmarshal([]byte(row.Body), &raw); err != nil {
			return nil, fmt.Errorf("condition %s: invalid body: %w", row.ID, err)
		}
		cond, err := DecodeCondition(raw)
		if err != nil {
			return nil, fmt.Errorf("condition %s: %w", row.ID, err)
		}
		if err := m.AddCondition(cond); err != nil {
			return nil, fmt.Errorf("condition %s: %w", row.ID, err)
		}
	}

	var lexicons []lexiconRow
	if err := q.Select(ctx, "list-lexicons", &lexicons, projectID); err != nil {
		return nil, fmt.Errorf("list lexicons: %w", err)
	}
	var expressions []expressionRow
	if err := q.Select(ctx, "list-lexicon-expressions", &expressions, projectID); err != nil {
		return nil, fmt.Errorf("list lexicon expressions: %w", err)
	}
	byLexicon := make(map[string][]types.LexiconExpression)
	for _, e := range expressions {
		byLexicon[e.LexiconID] = append(byLexicon[e.LexiconID], types.LexiconExpression{
			ID:    types.ExpressionID(e.ID),
			Kind:  types.ExpressionKind(e.Kind),
			Value: e.Value,
		})
	}
	for _, row := range lexicons {
		lex := &types.Lexicon{
			ID:          types.LexiconID(row.ID),
			Name:        row.Name,
			Expressions: byLexicon[row.ID],
		}
		if err := m.AddLexicon(lex); err != nil {
			return nil, err
		}
	}

	var labels []fieldLabelRow
	if err := q.Select(ctx, "list-field-labels", &labels, projectID); err != nil {
		return nil, fmt.Errorf("list field labels: %w", err)
	}
	grouped := make(map[string]*types.FieldLabel)
	for _, row := range labels {
		fl, ok := grouped[row.Name]
		if !ok {
			fl = &types.FieldLabel{Name: row.Name}
			grouped[row.Name] = fl
			m.AddFieldLabel(fl)
		}
		fl.Fields = append(fl.Fields, row.Field)
	}

	return m, nil
}

// StoreSQL replaces a project's conditions, lexicons and field labels with
// the contents of m in one transaction.
func StoreSQL(ctx context.Context, q *db.Queries, projectID string, m *Memory) error {
	return q.InTx(ctx, func(tq *db.Queries) error {
		for _, name := range []string{
			"delete-project-conditions",
			"delete-project-lexicon-expressions",
			"delete-project-lexicons",
			"delete-project-field-labels",
		} {
			if _, err := tq.Exec(ctx, name, projectID); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}

		createdAt := time.Now().UTC()
		for _, cond := range m.Roots() {
			body, err := json.Marshal(EncodeCondition(cond))
			if err != nil {
				return fmt.Errorf("encode condition %s: %w", cond.Common().ID, err)
			}
			cb := cond.Common()
			if _, err := tq.Exec(ctx, "insert-condition", string(cb.ID), projectID, cb.Name, string(body), createdAt); err != nil {
				return fmt.Errorf("insert condition %s: %w", cb.ID, err)
			}
		}

		for _, lex := range m.Lexicons() {
			if _, err := tq.Exec(ctx, "insert-lexicon", string(lex.ID), projectID, lex.Name); err != nil {
				return fmt.Errorf("insert lexicon %s: %w", lex.ID, err)
			}
			for i, e := range lex.Expressions {
				if _, err := tq.Exec(ctx, "insert-lexicon-expression", string(e.ID), string(lex.ID), i, string(e.Kind), e.Value); err != nil {
					return fmt.Errorf("insert expression %s: %w", e.ID, err)
				}
			}
		}

		for _, fl := range m.FieldLabels() {
			for i, f := range fl.Fields {
				if _, err := tq.Exec(ctx, "insert-field-label", projectID, fl.Name, i, f); err != nil {
					return fmt.Errorf("insert field label %s: %w", fl.Name, err)
				}
			}
		}
		return nil
	})
}
