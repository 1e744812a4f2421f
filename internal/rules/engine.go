package rules

import (
	"context"
	"log/slog"
	"time"

	"github.com/solatis/dossier/internal/core/metrics"
	"github.com/solatis/dossier/internal/types"
)

// Snapshot is the read-only, point-in-time view of authored conditions,
// lexicons and field labels an evaluation run resolves references through.
type Snapshot interface {
	Condition(id types.ConditionID) (types.Condition, error)
	Lexicon(id types.LexiconID) (*types.Lexicon, error)
	FieldLabel(name string) (*types.FieldLabel, bool)
}

// Agent is the external text-classification service. Query returns, for the
// expressions and text conditions registered under scopeID, the terms each
// one matched in values.
type Agent interface {
	Available(ctx context.Context) bool
	Query(ctx context.Context, scopeID string, values []string) (types.AgentResult, error)
}

// CollectionContext describes the collection a condition tree belongs to.
type CollectionContext struct {
	ID string
	// ScopeID is forwarded to the external service to select its expressions.
	ScopeID string
	// FullEvaluation forces every OR branch to be evaluated for complete
	// diagnostic output.
	FullEvaluation bool
}

// Engine evaluates condition trees. An Engine is safe for concurrent use;
// per-document state lives in Run.
type Engine struct {
	patterns *PatternCache
	agent    Agent
	logger   *slog.Logger
	metrics  *metrics.EvaluationMetrics
	now      func() time.Time
	location *time.Location
	maxDepth int
	workers  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithPatternCache sets the compiled pattern cache shared by runs.
func WithPatternCache(pc *PatternCache) Option {
	return func(e *Engine) { e.patterns = pc }
}

// WithAgent sets the external text-classification service.
func WithAgent(a Agent) Option {
	return func(e *Engine) { e.agent = a }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the evaluation metrics.
func WithMetrics(m *metrics.EvaluationMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock sets the clock used by relative date conditions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the time zone for date-only and time-of-day values.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.location = loc }
}

// WithMaxDepth bounds combinator and fragment nesting.
func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// WithWorkers bounds the goroutines EvaluateAll uses.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// NewEngine creates a new rules engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:   slog.Default(),
		now:      time.Now,
		location: time.Local,
		maxDepth: types.DefaultMaxDepth,
		workers:  4,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.patterns == nil {
		e.patterns = NewPatternCache(DefaultPatternCacheSize, DefaultPatternCacheTTL, DefaultRegexTimeout)
	}
	return e
}

// Run holds the state of one evaluation run: the snapshot, the collection
// context and every document's caches. A Run is not safe for concurrent use;
// evaluate independent documents in separate runs.
type Run struct {
	engine     *Engine
	collection CollectionContext
	snapshot   Snapshot
	caches     map[*Document]*documentCache
}

// NewRun starts an evaluation run.
func (e *Engine) NewRun(collection CollectionContext, snapshot Snapshot) *Run {
	return &Run{
		engine:     e,
		collection: collection,
		snapshot:   snapshot,
		caches:     make(map[*Document]*documentCache),
	}
}

// Reset discards every document cache so the next evaluation starts fresh,
// for example after more metadata has been extracted.
func (r *Run) Reset() {
	r.caches = make(map[*Document]*documentCache)
}

func (r *Run) cache(d *Document) *documentCache {
	c, ok := r.caches[d]
	if !ok {
		c = newDocumentCache()
		r.caches[d] = c
	}
	return c
}

// Evaluate evaluates cond against doc within the run. Configuration errors
// are returned as *types.ConfigurationError; every other outcome is encoded
// in the Result.
func (r *Run) Evaluate(ctx context.Context, doc *Document, cond types.Condition) (*Result, error) {
	start := time.Now()
	res, err := r.dispatch(ctx, doc, cond, 0)
	r.engine.metrics.RecordEvaluation(outcome(res, err), time.Since(start))
	return res, err
}

// Evaluate evaluates cond against doc in a fresh run.
func (e *Engine) Evaluate(ctx context.Context, collection CollectionContext, doc *Document, cond types.Condition, snapshot Snapshot) (*Result, error) {
	return e.NewRun(collection, snapshot).Evaluate(ctx, doc, cond)
}

// dispatch looks up the evaluator for cond's kind and delegates. It holds no
// cache of its own.
func (r *Run) dispatch(ctx context.Context, doc *Document, cond types.Condition, depth int) (*Result, error) {
	if cond == nil {
		return nil, types.NewConfigurationError("", types.ErrMissingTarget)
	}
	if depth > r.engine.maxDepth {
		return nil, types.NewConfigurationError(cond.Common().ID, types.ErrMaxDepthExceeded)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch c := cond.(type) {
	case *types.FragmentCondition:
		return r.evaluateFragment(ctx, doc, c, depth)
	case *types.BooleanCondition:
		return r.evaluateTargets(ctx, doc, c, func(res *Result, item *Document) error {
			return r.evaluateBoolean(ctx, res, item, c, depth)
		})
	case *types.NotCondition:
		return r.evaluateTargets(ctx, doc, c, func(res *Result, item *Document) error {
			return r.evaluateNot(ctx, res, item, c, depth)
		})
	case types.FieldCondition:
		return r.evaluateTargets(ctx, doc, c, func(res *Result, item *Document) error {
			return r.evaluateField(ctx, res, item, c)
		})
	default:
		return nil, types.NewConfigurationError(cond.Common().ID, types.ErrNotImplemented)
	}
}

func outcome(res *Result, err error) string {
	switch {
	case err != nil:
		return metrics.OutcomeError
	case res.Match:
		return metrics.OutcomeMatched
	case res.Undetermined():
		return metrics.OutcomeUnevaluated
	default:
		return metrics.OutcomeUnmatched
	}
}
