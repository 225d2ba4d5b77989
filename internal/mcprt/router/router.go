// Package router maps resource URIs to registered routes using the
// template engine, first-match-wins in registration order.
package router

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/mcprt/internal/mcprt/metrics"
	"github.com/edgecomet/mcprt/internal/mcprt/template"
	"github.com/edgecomet/mcprt/pkg/types"
)

// Router holds an ordered set of routes and resolves URIs against them.
type Router struct {
	mu      sync.RWMutex
	engine  *template.Engine
	routes  []types.Route
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New returns a Router backed by the given template engine. m may be
// nil to disable metrics recording.
func New(engine *template.Engine, logger *zap.Logger, m *metrics.Metrics) *Router {
	return &Router{engine: engine, logger: logger, metrics: m}
}

// Register adds a route. Routes are matched in registration order;
// registering the same template string twice keeps both, with the
// earlier one always winning (spec §4.2 first-match-wins rule).
func (r *Router) Register(route types.Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
	if r.logger != nil {
		r.logger.Debug("route registered", zap.String("template", route.Template), zap.String("name", route.Name))
	}
}

// Match resolves uri against the registered routes, returning the first
// one whose template matches along with the extracted binding. Returns
// ErrResourceNotFound when nothing matches.
func (r *Router) Match(uri string) (types.Route, types.Binding, error) {
	start := time.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, route := range r.routes {
		binding, err := r.engine.Extract(uri, route.Template)
		if err == nil {
			if r.metrics != nil {
				r.metrics.RouteMatchesTotal.WithLabelValues("hit").Inc()
				r.metrics.RouteMatchDuration.Observe(time.Since(start).Seconds())
			}
			return route, binding, nil
		}
	}
	if r.metrics != nil {
		r.metrics.RouteMatchesTotal.WithLabelValues("miss").Inc()
		r.metrics.RouteMatchDuration.Observe(time.Since(start).Seconds())
	}
	return types.Route{}, nil, types.ErrResourceNotFound
}

// Routes returns a snapshot of the currently registered routes, in
// registration order. Used by "resources/templates/list".
func (r *Router) Routes() []types.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Route, len(r.routes))
	copy(out, r.routes)
	return out
}
