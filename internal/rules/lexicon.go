// internal/rules/lexicon.go
package rules

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/iter"

	"github.com/solatis/dossier/internal/types"
)

/*
 * Lexicon matcher.
 *
 * A lexicon's expressions split into two kinds:
 *   - REGEX: compiled through the pattern cache (case-insensitive) and
 *     scanned concurrently, one goroutine per expression up to the engine's
 *     worker bound; joined before the outcome is built
 *   - AGENT: batched into one external query per (field, language) per
 *     document, shared with text conditions on the same field
 *
 * The lexicon matches if any expression produced terms. When AGENT
 * expressions exist and the service is down, the regex half still runs and
 * the leaf is additionally recorded as UNEVALUATED(MISSING_SERVICE).
 */

func (r *Run) matchLexicon(ctx context.Context, item *Document, c *types.LexiconCondition, values []string) (leafOutcome, error) {
	if c.Value == "" {
		return leafOutcome{}, types.ErrMissingTarget
	}
	if r.snapshot == nil {
		return leafOutcome{}, fmt.Errorf("%w: %s", types.ErrLexiconNotFound, c.Value)
	}
	lex, err := r.snapshot.Lexicon(c.Value)
	if err != nil {
		return leafOutcome{}, err
	}
	if len(lex.Expressions) > types.MaxLexiconExpressions {
		return leafOutcome{}, fmt.Errorf("%w: lexicon %s has %d", types.ErrTooManyExpressions, lex.ID, len(lex.Expressions))
	}

	var regexExprs, agentExprs []types.LexiconExpression
	for _, expr := range lex.Expressions {
		switch expr.Kind {
		case types.ExpressionRegex:
			regexExprs = append(regexExprs, expr)
		case types.ExpressionAgent:
			agentExprs = append(agentExprs, expr)
		default:
			return leafOutcome{}, fmt.Errorf("%w: expression kind %q", types.ErrNotImplemented, expr.Kind)
		}
	}

	var out leafOutcome

	matched, err := r.engine.matchRegexExpressions(regexExprs, values)
	if err != nil {
		return leafOutcome{}, err
	}
	out.expressions = append(out.expressions, matched...)

	if len(agentExprs) > 0 {
		if !r.agentAvailable(ctx) {
			out.unevaluated = ReasonMissingService
		} else if len(values) > 0 {
			result, ok := r.agentQuery(ctx, item, c.Field, c.Language, values)
			if !ok {
				out.unevaluated = ReasonMissingService
			}
			for _, expr := range agentExprs {
				if terms, hit := result[string(expr.ID)]; hit {
					out.expressions = append(out.expressions, MatchedLexiconExpression{
						ExpressionID: expr.ID,
						Terms:        unionTerms(terms, nil),
					})
				}
			}
		}
	}

	for _, m := range out.expressions {
		out.terms = unionTerms(out.terms, m.Terms)
	}
	out.match = len(out.expressions) > 0
	return out, nil
}

// matchRegexExpressions scans values with every expression concurrently and
// returns the expressions that matched, in declared order.
func (e *Engine) matchRegexExpressions(exprs []types.LexiconExpression, values []string) ([]MatchedLexiconExpression, error) {
	if len(exprs) == 0 || len(values) == 0 {
		return nil, nil
	}

	mapper := iter.Mapper[types.LexiconExpression, []string]{MaxGoroutines: e.workers}
	hits, err := mapper.MapErr(exprs, func(expr *types.LexiconExpression) ([]string, error) {
		re, err := e.compile(expr.Value, true)
		if err != nil {
			return nil, fmt.Errorf("expression %s: %w", expr.ID, err)
		}
		var terms []string
		for _, v := range values {
			found, err := e.scan(re, v)
			if err != nil {
				continue
			}
			terms = append(terms, found...)
		}
		return terms, nil
	})
	if err != nil {
		return nil, err
	}

	var out []MatchedLexiconExpression
	for i, terms := range hits {
		if len(terms) == 0 {
			continue
		}
		out = append(out, MatchedLexiconExpression{
			ExpressionID: exprs[i].ID,
			Terms:        unionTerms(terms, nil),
		})
	}
	return out, nil
}
