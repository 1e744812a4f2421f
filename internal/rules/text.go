// internal/rules/text.go
package rules

import (
	"context"

	"github.com/solatis/dossier/internal/types"
)

// matchText asks the external service whether the condition's expression is
// satisfied by values. The service reports satisfied text conditions under
// their condition id.
func (r *Run) matchText(ctx context.Context, item *Document, c *types.TextCondition, values []string) leafOutcome {
	if len(values) == 0 {
		return leafOutcome{}
	}
	result, ok := r.agentQuery(ctx, item, c.Field, c.Language, values)
	if !ok {
		return leafOutcome{unevaluated: ReasonMissingService}
	}
	terms, hit := result[string(c.ID)]
	if !hit {
		return leafOutcome{}
	}
	return leafOutcome{match: true, terms: unionTerms(terms, nil)}
}

// agentQuery returns the external service's answer for one (field, language)
// of item, querying at most once per run. A failed query is logged, reported
// as not ok and left uncached.
func (r *Run) agentQuery(ctx context.Context, item *Document, field, language string, values []string) (types.AgentResult, bool) {
	cache := r.cache(item)
	key := agentKey{field: field, language: language}
	if result, ok := cache.agentResults[key]; ok {
		return result, true
	}

	result, err := r.engine.agent.Query(ctx, r.collection.ScopeID, values)
	if err != nil {
		r.engine.logger.Warn("external service query failed",
			"document_id", item.ID(),
			"field", field,
			"language", language,
			"scope_id", r.collection.ScopeID,
			"error", err)
		r.engine.metrics.RecordAgentQuery("error")
		return nil, false
	}
	r.engine.metrics.RecordAgentQuery("ok")

	if result == nil {
		result = types.AgentResult{}
	}
	cache.agentResults[key] = result
	return result, true
}
