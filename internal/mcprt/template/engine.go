// Package template implements the resource URI template engine: a
// compiled matcher/extractor for the placeholder subset defined in spec
// §4.1, with a shared compiled-form cache.
//
// The C source caches one compiled-template map per OS thread. Go
// goroutines vastly outnumber OS threads, so a goroutine-local cache
// would thrash instead of amortizing; instead the Engine owns a single
// read-mostly cache guarded by one RWMutex, shared by every caller. See
// DESIGN.md for the full rationale.
package template

import (
	"sync"

	"github.com/edgecomet/mcprt/internal/mcprt/metrics"
	"github.com/edgecomet/mcprt/pkg/types"
)

// Engine compiles and matches URI templates, caching compiled forms by
// their source string.
type Engine struct {
	mu      sync.RWMutex
	cache   map[string]*compiled
	metrics *metrics.Metrics
}

// New returns a ready-to-use Engine with an empty compile cache. m may
// be nil to disable metrics recording.
func New(m *metrics.Metrics) *Engine {
	return &Engine{cache: make(map[string]*compiled), metrics: m}
}

func (e *Engine) compileFor(tpl string) (*compiled, error) {
	e.mu.RLock()
	c, ok := e.cache[tpl]
	e.mu.RUnlock()
	if ok {
		if e.metrics != nil {
			e.metrics.TemplateCacheHits.Inc()
		}
		return c, nil
	}
	if e.metrics != nil {
		e.metrics.TemplateCacheMisses.Inc()
	}

	c, err := parseTemplate(tpl)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	// Another goroutine may have compiled the same template while we
	// parsed; prefer whichever is already cached to keep a single
	// canonical *compiled per template string.
	if existing, ok := e.cache[tpl]; ok {
		e.mu.Unlock()
		return existing, nil
	}
	e.cache[tpl] = c
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.TemplateCompilesTotal.Inc()
	}
	return c, nil
}

// Matches reports whether uri matches template. It never fails: a
// malformed template simply yields false (spec §4.1 operation table).
func (e *Engine) Matches(uri, tpl string) bool {
	c, err := e.compileFor(tpl)
	if err != nil {
		return false
	}
	_, err = c.extract(uri)
	return err == nil
}

// Extract matches uri against template and returns the parameter
// binding, or ErrTemplateMismatch / ErrTypeMismatch on failure.
func (e *Engine) Extract(uri, tpl string) (types.Binding, error) {
	c, err := e.compileFor(tpl)
	if err != nil {
		return nil, types.ErrTemplateMismatch
	}
	return c.extract(uri)
}

// Expand renders a URI from template and binding, the inverse of Extract.
func (e *Engine) Expand(tpl string, binding types.Binding) (string, error) {
	c, err := e.compileFor(tpl)
	if err != nil {
		return "", err
	}
	return c.expand(binding)
}

// CacheLen reports the number of distinct templates currently compiled
// and cached. Exposed for metrics and tests.
func (e *Engine) CacheLen() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
