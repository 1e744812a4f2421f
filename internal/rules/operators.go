// internal/rules/operators.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/dossier/internal/types"
)

/*
 * Exists, string and number matchers.
 *
 * Every matcher is ANY-semantics over the field's values: one satisfying
 * value is a match, and every satisfying value is recorded as a term.
 *
 * Operators:
 *   - exists: at least one non-empty value
 *   - string CONTAINS/STARTS_WITH/ENDS_WITH/IS: case-insensitive
 *   - number EQ/GT/LT: values parsed as integers, unparsable values skipped
 *
 * Unknown operators are configuration errors, reported before any value is
 * inspected so an empty field cannot hide them.
 */

func matchExists(values []string) leafOutcome {
	var out leafOutcome
	for _, v := range values {
		if v != "" {
			out.match = true
			break
		}
	}
	return out
}

func matchString(c *types.StringCondition, values []string) (leafOutcome, error) {
	cmp, err := stringComparator(c.Operator)
	if err != nil {
		return leafOutcome{}, err
	}

	target := strings.ToLower(c.Value)
	var out leafOutcome
	for _, v := range values {
		if cmp(strings.ToLower(v), target) {
			out.match = true
			out.terms = append(out.terms, v)
		}
	}
	return out, nil
}

// stringComparator returns the comparison for op over lowercased operands.
func stringComparator(op types.StringOperator) (func(value, target string) bool, error) {
	switch op {
	case types.OpContains:
		return strings.Contains, nil
	case types.OpStartsWith:
		return strings.HasPrefix, nil
	case types.OpEndsWith:
		return strings.HasSuffix, nil
	case types.OpIs:
		return func(value, target string) bool { return value == target }, nil
	default:
		return nil, fmt.Errorf("%w: string operator %q", types.ErrNotImplemented, op)
	}
}

func matchNumber(c *types.NumberCondition, values []string) (leafOutcome, error) {
	cmp, err := numberComparator(c.Operator)
	if err != nil {
		return leafOutcome{}, err
	}

	var out leafOutcome
	for _, v := range values {
		n, ok := coerceInteger(v)
		if !ok {
			continue
		}
		if cmp(n, c.Value) {
			out.match = true
			out.terms = append(out.terms, v)
		}
	}
	return out, nil
}

func numberComparator(op types.NumberOperator) (func(value, target int64) bool, error) {
	switch op {
	case types.OpEq:
		return func(value, target int64) bool { return value == target }, nil
	case types.OpGt:
		return func(value, target int64) bool { return value > target }, nil
	case types.OpLt:
		return func(value, target int64) bool { return value < target }, nil
	default:
		return nil, fmt.Errorf("%w: number operator %q", types.ErrNotImplemented, op)
	}
}
