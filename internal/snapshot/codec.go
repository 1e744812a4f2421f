// internal/snapshot/codec.go
package snapshot

import (
	"fmt"
	"strconv"

	"github.com/mitchellh/mapstructure"

	"github.com/solatis/dossier/internal/types"
)

/*
 * Generic map codec for conditions and lexicons.
 *
 * YAML files and SQL JSON bodies both decode to map[string]any first; this
 * file turns those maps into the condition sum type keyed on "type":
 *
 *   boolean   operator, children
 *   not       condition
 *   fragment  target_id
 *   exists    field
 *   string    field, operator, value
 *   number    field, operator, value (integer)
 *   date      field, operator, value
 *   regex     field, value
 *   lexicon   field, value (lexicon id)
 *   text      field, value
 *
 * Every node also accepts id, name, target, include_descendants,
 * is_fragment, and field nodes accept language. Unknown keys are errors.
 * Nodes without an id get a fresh UUIDv7.
 */

type conditionDoc struct {
	Type               string           `mapstructure:"type"`
	ID                 string           `mapstructure:"id"`
	Name               string           `mapstructure:"name"`
	Target             string           `mapstructure:"target"`
	IncludeDescendants bool             `mapstructure:"include_descendants"`
	IsFragment         bool             `mapstructure:"is_fragment"`
	Field              string           `mapstructure:"field"`
	Language           string           `mapstructure:"language"`
	Operator           string           `mapstructure:"operator"`
	Value              string           `mapstructure:"value"`
	Children           []map[string]any `mapstructure:"children"`
	Condition          map[string]any   `mapstructure:"condition"`
	TargetID           string           `mapstructure:"target_id"`
}

type lexiconDoc struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Expressions []struct {
		ID    string `mapstructure:"id"`
		Kind  string `mapstructure:"kind"`
		Value string `mapstructure:"value"`
	} `mapstructure:"expressions"`
}

func decodeMap(src any, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           dst,
	})
	if err != nil {
		return err
	}
	return dec.Decode(src)
}

// DecodeCondition builds a condition tree from its generic map form.
func DecodeCondition(raw map[string]any) (types.Condition, error) {
	var doc conditionDoc
	if err := decodeMap(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode condition: %w", err)
	}

	cb := types.ConditionBase{
		ID:                 types.ConditionID(doc.ID),
		Name:               doc.Name,
		Target:             types.Target(doc.Target),
		IncludeDescendants: doc.IncludeDescendants,
		IsFragment:         doc.IsFragment,
	}
	if cb.ID == "" {
		cb.ID = types.NewConditionID()
	}
	fb := types.FieldBase{ConditionBase: cb, Field: doc.Field, Language: doc.Language}

	switch types.ConditionKind(doc.Type) {
	case types.KindBoolean:
		c := &types.BooleanCondition{ConditionBase: cb, Operator: types.BooleanOperator(doc.Operator)}
		for i, childRaw := range doc.Children {
			child, err := DecodeCondition(childRaw)
			if err != nil {
				return nil, fmt.Errorf("%s child %d: %w", cb.ID, i, err)
			}
			c.Children = append(c.Children, child)
		}
		return c, nil
	case types.KindNot:
		c := &types.NotCondition{ConditionBase: cb}
		if doc.Condition != nil {
			inner, err := DecodeCondition(doc.Condition)
			if err != nil {
				return nil, fmt.Errorf("%s inner: %w", cb.ID, err)
			}
			c.Inner = inner
		}
		return c, nil
	case types.KindFragment:
		return &types.FragmentCondition{ConditionBase: cb, TargetID: types.ConditionID(doc.TargetID)}, nil
	case types.KindExists:
		return &types.ExistsCondition{FieldBase: fb}, nil
	case types.KindString:
		return &types.StringCondition{FieldBase: fb, Operator: types.StringOperator(doc.Operator), Value: doc.Value}, nil
	case types.KindNumber:
		n, err := strconv.ParseInt(doc.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: number value %q: %w", cb.ID, doc.Value, err)
		}
		return &types.NumberCondition{FieldBase: fb, Operator: types.NumberOperator(doc.Operator), Value: n}, nil
	case types.KindDate:
		return &types.DateCondition{FieldBase: fb, Operator: types.DateOperator(doc.Operator), Value: doc.Value}, nil
	case types.KindRegex:
		return &types.RegexCondition{FieldBase: fb, Value: doc.Value}, nil
	case types.KindLexicon:
		return &types.LexiconCondition{FieldBase: fb, Value: types.LexiconID(doc.Value)}, nil
	case types.KindText:
		return &types.TextCondition{FieldBase: fb, Value: doc.Value}, nil
	default:
		return nil, fmt.Errorf("%w: condition type %q", types.ErrNotImplemented, doc.Type)
	}
}

// EncodeCondition is the inverse of DecodeCondition. Zero-valued keys are
// omitted.
func EncodeCondition(cond types.Condition) map[string]any {
	if cond == nil {
		return nil
	}
	cb := cond.Common()
	out := map[string]any{
		"type": string(cond.Kind()),
		"id":   string(cb.ID),
	}
	setString(out, "name", cb.Name)
	setString(out, "target", string(cb.Target))
	if cb.IncludeDescendants {
		out["include_descendants"] = true
	}
	if cb.IsFragment {
		out["is_fragment"] = true
	}
	if fc, ok := cond.(types.FieldCondition); ok {
		fb := fc.FieldParams()
		setString(out, "field", fb.Field)
		setString(out, "language", fb.Language)
	}

	switch c := cond.(type) {
	case *types.BooleanCondition:
		out["operator"] = string(c.Operator)
		children := make([]any, 0, len(c.Children))
		for _, child := range c.Children {
			children = append(children, EncodeCondition(child))
		}
		out["children"] = children
	case *types.NotCondition:
		if c.Inner != nil {
			out["condition"] = EncodeCondition(c.Inner)
		}
	case *types.FragmentCondition:
		setString(out, "target_id", string(c.TargetID))
	case *types.StringCondition:
		out["operator"] = string(c.Operator)
		out["value"] = c.Value
	case *types.NumberCondition:
		out["operator"] = string(c.Operator)
		out["value"] = strconv.FormatInt(c.Value, 10)
	case *types.DateCondition:
		out["operator"] = string(c.Operator)
		out["value"] = c.Value
	case *types.RegexCondition:
		out["value"] = c.Value
	case *types.LexiconCondition:
		out["value"] = string(c.Value)
	case *types.TextCondition:
		out["value"] = c.Value
	}
	return out
}

func setString(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// DecodeLexicon builds a lexicon from its generic map form. Expressions
// without an id get a fresh UUIDv7.
func DecodeLexicon(raw map[string]any) (*types.Lexicon, error) {
	var doc lexiconDoc
	if err := decodeMap(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode lexicon: %w", err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("decode lexicon %q: %w", doc.Name, types.ErrMissingTarget)
	}

	lex := &types.Lexicon{ID: types.LexiconID(doc.ID), Name: doc.Name}
	for _, e := range doc.Expressions {
		id := types.ExpressionID(e.ID)
		if id == "" {
			id = types.NewExpressionID()
		}
		lex.Expressions = append(lex.Expressions, types.LexiconExpression{
			ID:    id,
			Kind:  types.ExpressionKind(e.Kind),
			Value: e.Value,
		})
	}
	return lex, nil
}
