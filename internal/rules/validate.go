// internal/rules/validate.go
package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/solatis/dossier/internal/types"
)

/*
 * Condition tree validation.
 *
 * Validate walks a tree the way evaluation would, following fragments
 * through the snapshot, and reports every configuration error it finds
 * instead of stopping at the first one. Evaluation only trips over the
 * branches it actually visits; validation checks all of them, so a
 * short-circuited OR cannot hide a broken sibling.
 *
 * Checks:
 *   - missing field, missing not/fragment target, unknown target
 *   - unknown boolean/string/number/date operator
 *   - regex patterns (condition and lexicon) that fail to compile
 *   - date values with no recognized shape
 *   - unknown lexicons, oversized lexicons, unknown expression kinds
 *   - fragment cycles and nesting beyond the depth limit
 *   - text and agent expressions rejected by the external service, when a
 *     validator is supplied
 */

// ExpressionValidator checks free-text expressions against the external
// service's grammar.
type ExpressionValidator interface {
	ValidateExpression(ctx context.Context, expression string) (bool, error)
}

// Validate checks cond with a default engine. validator may be nil.
func Validate(ctx context.Context, cond types.Condition, snapshot Snapshot, validator ExpressionValidator) error {
	return NewEngine().Validate(ctx, cond, snapshot, validator)
}

// Validate checks cond using the engine's pattern cache, clock and depth
// limit. All problems are joined into the returned error; each is a
// *types.ConfigurationError unless the validator itself failed.
func (e *Engine) Validate(ctx context.Context, cond types.Condition, snapshot Snapshot, validator ExpressionValidator) error {
	v := &validation{
		ctx:       ctx,
		engine:    e,
		snapshot:  snapshot,
		validator: validator,
		onPath:    make(map[types.ConditionID]bool),
		done:      make(map[types.ConditionID]bool),
	}
	if cond == nil {
		return types.NewConfigurationError("", types.ErrMissingTarget)
	}
	v.visit(cond, 0)
	return errors.Join(v.errs...)
}

type validation struct {
	ctx       context.Context
	engine    *Engine
	snapshot  Snapshot
	validator ExpressionValidator
	onPath    map[types.ConditionID]bool // fragment targets on the current path
	done      map[types.ConditionID]bool // fragment targets fully validated
	errs      []error
}

func (v *validation) fail(id types.ConditionID, err error) {
	v.errs = append(v.errs, types.NewConfigurationError(id, err))
}

func (v *validation) visit(cond types.Condition, depth int) {
	base := cond.Common()
	if depth > v.engine.maxDepth {
		v.fail(base.ID, types.ErrMaxDepthExceeded)
		return
	}
	if !base.Target.Valid() {
		v.fail(base.ID, fmt.Errorf("%w: target %q", types.ErrNotImplemented, base.Target))
	}
	if _, ok := cond.(*types.FragmentCondition); !ok && base.ID == "" {
		v.fail(base.ID, types.ErrMissingID)
	}

	switch c := cond.(type) {
	case *types.BooleanCondition:
		if c.Operator != types.OpAnd && c.Operator != types.OpOr {
			v.fail(c.ID, fmt.Errorf("%w: boolean operator %q", types.ErrNotImplemented, c.Operator))
		}
		for _, child := range c.Children {
			if child == nil {
				v.fail(c.ID, types.ErrMissingTarget)
				continue
			}
			v.visit(child, depth+1)
		}
	case *types.NotCondition:
		if c.Inner == nil {
			v.fail(c.ID, types.ErrMissingTarget)
			return
		}
		v.visit(c.Inner, depth+1)
	case *types.FragmentCondition:
		v.visitFragment(c, depth)
	case types.FieldCondition:
		v.visitField(c)
	default:
		v.fail(base.ID, types.ErrNotImplemented)
	}
}

func (v *validation) visitFragment(c *types.FragmentCondition, depth int) {
	if c.TargetID == "" {
		v.fail(c.ID, types.ErrMissingTarget)
		return
	}
	if v.onPath[c.TargetID] {
		v.fail(c.ID, fmt.Errorf("%w: via %s", types.ErrFragmentCycle, c.TargetID))
		return
	}
	if v.done[c.TargetID] {
		return
	}
	if v.snapshot == nil {
		v.fail(c.ID, fmt.Errorf("%w: %s", types.ErrConditionNotFound, c.TargetID))
		return
	}
	target, err := v.snapshot.Condition(c.TargetID)
	if err != nil {
		v.fail(c.ID, fmt.Errorf("fragment target %s: %w", c.TargetID, err))
		return
	}

	v.onPath[c.TargetID] = true
	v.visit(target, depth+1)
	delete(v.onPath, c.TargetID)
	v.done[c.TargetID] = true
}

func (v *validation) visitField(c types.FieldCondition) {
	fb := c.FieldParams()
	if fb.Field == "" {
		v.fail(fb.ID, types.ErrMissingField)
	}

	var err error
	switch leaf := c.(type) {
	case *types.ExistsCondition:
	case *types.StringCondition:
		_, err = stringComparator(leaf.Operator)
	case *types.NumberCondition:
		_, err = numberComparator(leaf.Operator)
	case *types.DateCondition:
		if _, err = dateOperatorTest(leaf.Operator); err == nil {
			_, err = buildDateComparator(leaf.Value, v.engine.now().In(v.engine.location), v.engine.location)
		}
	case *types.RegexCondition:
		_, _, err = v.engine.patterns.Compile(leaf.Value, false)
	case *types.LexiconCondition:
		v.visitLexicon(leaf)
	case *types.TextCondition:
		if leaf.Value == "" {
			err = types.ErrMissingTarget
			break
		}
		err = v.checkExpression(leaf.ID, leaf.Value)
	default:
		err = types.ErrNotImplemented
	}
	if err != nil {
		v.fail(fb.ID, err)
	}
}

func (v *validation) visitLexicon(c *types.LexiconCondition) {
	if c.Value == "" {
		v.fail(c.ID, types.ErrMissingTarget)
		return
	}
	if v.snapshot == nil {
		v.fail(c.ID, fmt.Errorf("%w: %s", types.ErrLexiconNotFound, c.Value))
		return
	}
	lex, err := v.snapshot.Lexicon(c.Value)
	if err != nil {
		v.fail(c.ID, err)
		return
	}
	if len(lex.Expressions) > types.MaxLexiconExpressions {
		v.fail(c.ID, fmt.Errorf("%w: lexicon %s has %d", types.ErrTooManyExpressions, lex.ID, len(lex.Expressions)))
		return
	}
	for _, expr := range lex.Expressions {
		switch expr.Kind {
		case types.ExpressionRegex:
			if _, _, err := v.engine.patterns.Compile(expr.Value, true); err != nil {
				v.fail(c.ID, fmt.Errorf("expression %s: %w", expr.ID, err))
			}
		case types.ExpressionAgent:
			if err := v.checkExpression(c.ID, expr.Value); err != nil {
				v.fail(c.ID, fmt.Errorf("expression %s: %w", expr.ID, err))
			}
		default:
			v.fail(c.ID, fmt.Errorf("%w: expression kind %q", types.ErrNotImplemented, expr.Kind))
		}
	}
}

// checkExpression asks the validator about a free-text expression. Validator
// failures are recorded as-is; only a rejection is a configuration error.
func (v *validation) checkExpression(id types.ConditionID, expression string) error {
	if v.validator == nil {
		return nil
	}
	ok, err := v.validator.ValidateExpression(v.ctx, expression)
	if err != nil {
		v.errs = append(v.errs, fmt.Errorf("validate expression for %s: %w", id, err))
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: %q", types.ErrInvalidExpression, expression)
	}
	return nil
}
