package rules

import (
	"github.com/solatis/dossier/internal/types"
)

// Document is a DocumentUnderEvaluation: a read-only wrapper around a source
// document and its container hierarchy. Per-run caches are kept by Run, keyed
// by *Document, so one Document may be evaluated by successive runs.
type Document struct {
	Source   *types.Document
	Children []*Document
	// FullMetadata reports that metadata extraction has completed. While false,
	// a missing field makes a leaf unevaluated instead of unmatched.
	FullMetadata bool
}

// NewDocument wraps src and its children. fullMetadata applies to the whole
// hierarchy.
func NewDocument(src *types.Document, fullMetadata bool) *Document {
	d := &Document{
		Source:       src,
		FullMetadata: fullMetadata,
	}
	for _, child := range src.Children {
		d.Children = append(d.Children, NewDocument(child, fullMetadata))
	}
	return d
}

// ID returns the source document id.
func (d *Document) ID() types.DocumentID {
	return d.Source.ID
}

// Excluded reports whether the source document is excluded.
func (d *Document) Excluded() bool {
	return d.Source.Excluded
}

// includedChildren returns direct children that are not excluded.
func (d *Document) includedChildren() []*Document {
	out := make([]*Document, 0, len(d.Children))
	for _, c := range d.Children {
		if !c.Excluded() {
			out = append(out, c)
		}
	}
	return out
}

// descendants returns every non-excluded descendant, depth first. An
// excluded node hides its own subtree.
func (d *Document) descendants() []*Document {
	var out []*Document
	for _, c := range d.includedChildren() {
		out = append(out, c)
		out = append(out, c.descendants()...)
	}
	return out
}

// cachedResult is the tri-state slot written once per condition id.
type cachedResult struct {
	isMatch   bool
	matched   *MatchedCondition
	unmatched *UnmatchedCondition
}

type agentKey struct {
	field    string
	language string
}

// documentCache holds the state one run keeps for one document.
type documentCache struct {
	results      map[types.ConditionID]cachedResult
	evaluated    map[types.ConditionID]struct{}
	labelValues  map[string][]string
	agentResults map[agentKey]types.AgentResult
}

func newDocumentCache() *documentCache {
	return &documentCache{
		results:      make(map[types.ConditionID]cachedResult),
		evaluated:    make(map[types.ConditionID]struct{}),
		labelValues:  make(map[string][]string),
		agentResults: make(map[agentKey]types.AgentResult),
	}
}

// lookup returns the cached slot for id. ok is false when id was not
// evaluated this run or when it was evaluated without a determinate slot.
func (c *documentCache) lookup(id types.ConditionID) (cachedResult, bool) {
	if _, seen := c.evaluated[id]; !seen {
		return cachedResult{}, false
	}
	slot, ok := c.results[id]
	return slot, ok
}

// store marks id evaluated and writes its slot unless the slot is nil.
func (c *documentCache) store(id types.ConditionID, slot *cachedResult) {
	c.evaluated[id] = struct{}{}
	if slot == nil {
		return
	}
	if _, exists := c.results[id]; exists {
		return
	}
	c.results[id] = *slot
}

// restore rebuilds a result from a cached slot.
func (s cachedResult) restore() *Result {
	r := NewResult()
	r.Match = s.isMatch
	if s.isMatch {
		if s.matched != nil {
			r.addMatched(*s.matched)
		}
		return r
	}
	if s.unmatched != nil {
		r.addUnmatched(*s.unmatched)
	}
	return r
}
