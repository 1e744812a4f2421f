// internal/rules/patterns.go
package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/solatis/dossier/internal/types"
)

/*
 * Compiled pattern cache and the regex matcher.
 *
 * The cache is the only state shared between runs. It is bounded by size and
 * entries expire a fixed time after insertion. Compilation is idempotent, so
 * two goroutines racing on the same miss both compile and the later Add wins.
 *
 * Every compiled pattern carries a match timeout. A value whose scan times
 * out counts as non-matching for that value only.
 */

const (
	DefaultPatternCacheSize = 1024
	DefaultPatternCacheTTL  = 10 * time.Minute
	DefaultRegexTimeout     = 100 * time.Millisecond
)

type patternKey struct {
	pattern    string
	ignoreCase bool
}

// PatternCache is a bounded, expiring cache of compiled patterns. It is safe
// for concurrent use.
type PatternCache struct {
	lru     *expirable.LRU[patternKey, *regexp2.Regexp]
	timeout time.Duration
}

// NewPatternCache creates a cache holding at most size patterns for ttl each.
// Patterns it compiles give up a single match after timeout.
func NewPatternCache(size int, ttl, timeout time.Duration) *PatternCache {
	if size <= 0 {
		size = DefaultPatternCacheSize
	}
	if timeout <= 0 {
		timeout = DefaultRegexTimeout
	}
	return &PatternCache{
		lru:     expirable.NewLRU[patternKey, *regexp2.Regexp](size, nil, ttl),
		timeout: timeout,
	}
}

// Compile returns the compiled form of pattern, compiling and caching it on a
// miss. The second result reports a cache hit.
func (pc *PatternCache) Compile(pattern string, ignoreCase bool) (*regexp2.Regexp, bool, error) {
	key := patternKey{pattern: pattern, ignoreCase: ignoreCase}
	if re, ok := pc.lru.Get(key); ok {
		return re, true, nil
	}

	opts := regexp2.None
	if ignoreCase {
		opts |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %q: %v", types.ErrInvalidPattern, pattern, err)
	}
	re.MatchTimeout = pc.timeout
	pc.lru.Add(key, re)
	return re, false, nil
}

// Len returns the number of cached patterns.
func (pc *PatternCache) Len() int {
	return pc.lru.Len()
}


// errRegexTimeout marks a scan abandoned after the match timeout.
var errRegexTimeout = errors.New("regex match timed out")

func (e *Engine) compile(pattern string, ignoreCase bool) (*regexp2.Regexp, error) {
	re, hit, err := e.patterns.Compile(pattern, ignoreCase)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordPatternCache(hit)
	return re, nil
}

func (e *Engine) matchRegex(c *types.RegexCondition, values []string) (leafOutcome, error) {
	re, err := e.compile(c.Value, false)
	if err != nil {
		return leafOutcome{}, err
	}

	var out leafOutcome
	for _, v := range values {
		terms, err := e.scan(re, v)
		if err != nil {
			continue
		}
		if len(terms) > 0 {
			out.match = true
			out.terms = append(out.terms, terms...)
		}
	}
	out.terms = unionTerms(out.terms, nil)
	return out, nil
}

// scan returns every non-empty match of re in value. A timeout discards the
// value's matches and is reported as errRegexTimeout.
func (e *Engine) scan(re *regexp2.Regexp, value string) ([]string, error) {
	var terms []string
	m, err := re.FindStringMatch(value)
	for err == nil && m != nil {
		if m.Length > 0 {
			terms = append(terms, m.String())
		}
		m, err = re.FindNextMatch(m)
	}
	if err != nil {
		e.logger.Debug("regex scan timed out",
			"pattern", re.String(),
			"value_length", len(value),
			"timeout", re.MatchTimeout)
		e.metrics.RecordRegexTimeout()
		return nil, errRegexTimeout
	}
	return terms, nil
}
