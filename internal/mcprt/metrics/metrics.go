// Package metrics collects Prometheus metrics for every component of
// the runtime: the template engine, router, bounded caches, rate
// limiter, session manager, SSE streams, and each transport.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Metrics holds every metric the runtime exposes, grouped by the
// component that records it.
type Metrics struct {
	// Template Engine
	TemplateCompilesTotal prometheus.Counter
	TemplateCacheHits     prometheus.Counter
	TemplateCacheMisses   prometheus.Counter

	// Router
	RouteMatchesTotal  *prometheus.CounterVec // result: hit, miss
	RouteMatchDuration prometheus.Histogram

	// Bounded LRU Cache (per named instance: schema, session, ...)
	CacheSize     *prometheus.GaugeVec
	CacheCapacity *prometheus.GaugeVec
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec

	// Rate Limiter
	RateLimitAllowedTotal *prometheus.CounterVec
	RateLimitDeniedTotal  *prometheus.CounterVec
	RateLimitBucketCount  prometheus.Gauge

	// Session Manager
	SessionsActive    prometheus.Gauge
	SessionsCreated   prometheus.Counter
	SessionsExpired   prometheus.Counter
	SessionsTerminated prometheus.Counter

	// SSE Streams
	SSEEventsPublished prometheus.Counter
	SSEEventsReplayed  prometheus.Counter
	SSEEventsEvicted   prometheus.Counter
	SSEStreamsActive   prometheus.Gauge

	// Streamable HTTP transport
	HTTPRequestsTotal     *prometheus.CounterVec // method, status
	HTTPSSEConnections    prometheus.Gauge
	HTTPCORSCacheSize     prometheus.Gauge

	// WebSocket transport
	WSClientsActive      prometheus.Gauge
	WSConnectionsRejected prometheus.Counter
	WSPingTimeouts        prometheus.Counter

	// TCP line transport
	TCPConnectionsActive prometheus.Gauge
	TCPLinesProcessed    prometheus.Counter

	// MQTT transport
	MQTTMessagesPublished prometheus.Counter
	MQTTMessagesReceived  prometheus.Counter

	// JSON-RPC Dispatcher
	RPCRequestsTotal  *prometheus.CounterVec // method
	RPCErrorsTotal    *prometheus.CounterVec // code
	RPCBatchSize      prometheus.Histogram

	handler fasthttp.RequestHandler
}

// New creates and registers every metric against registerer, under
// namespace. Pass prometheus.NewRegistry() for an isolated registry
// in tests, or prometheus.DefaultRegisterer in production.
func New(namespace string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{}

	m.TemplateCompilesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "template", Name: "compiles_total",
		Help: "Total number of templates compiled into matcher form.",
	})
	m.TemplateCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "template", Name: "cache_hits_total",
		Help: "Total number of compiled-template cache hits.",
	})
	m.TemplateCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "template", Name: "cache_misses_total",
		Help: "Total number of compiled-template cache misses.",
	})

	m.RouteMatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "router", Name: "matches_total",
		Help: "Total number of route match attempts by result.",
	}, []string{"result"})
	m.RouteMatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "router", Name: "match_duration_seconds",
		Help:    "Time taken to match a URI against registered routes.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
	})

	m.CacheSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "cache", Name: "size",
		Help: "Current number of entries held by a named bounded cache.",
	}, []string{"cache"})
	m.CacheCapacity = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "cache", Name: "capacity",
		Help: "Configured capacity of a named bounded cache.",
	}, []string{"cache"})
	m.CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "cache", Name: "hits_total",
		Help: "Total number of hits against a named bounded cache.",
	}, []string{"cache"})
	m.CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "cache", Name: "misses_total",
		Help: "Total number of misses against a named bounded cache.",
	}, []string{"cache"})

	m.RateLimitAllowedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "ratelimit", Name: "allowed_total",
		Help: "Total number of requests allowed by the rate limiter.",
	}, []string{"client"})
	m.RateLimitDeniedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "ratelimit", Name: "denied_total",
		Help: "Total number of requests denied by the rate limiter.",
	}, []string{"client"})
	m.RateLimitBucketCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "ratelimit", Name: "buckets",
		Help: "Current number of tracked rate limit buckets.",
	})

	m.SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "session", Name: "active",
		Help: "Current number of live sessions.",
	})
	m.SessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "session", Name: "created_total",
		Help: "Total number of sessions created.",
	})
	m.SessionsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "session", Name: "expired_total",
		Help: "Total number of sessions swept for inactivity.",
	})
	m.SessionsTerminated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "session", Name: "terminated_total",
		Help: "Total number of sessions explicitly terminated.",
	})

	m.SSEEventsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sse", Name: "events_published_total",
		Help: "Total number of SSE events published.",
	})
	m.SSEEventsReplayed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sse", Name: "events_replayed_total",
		Help: "Total number of SSE events replayed via Last-Event-ID.",
	})
	m.SSEEventsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "sse", Name: "events_evicted_total",
		Help: "Total number of SSE events overwritten in the replay ring buffer.",
	})
	m.SSEStreamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "sse", Name: "streams_active",
		Help: "Current number of open SSE streams.",
	})

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http", Name: "requests_total",
		Help: "Total number of Streamable HTTP requests by method and status.",
	}, []string{"method", "status"})
	m.HTTPSSEConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "http", Name: "sse_connections_active",
		Help: "Current number of open GET (SSE) connections on the Streamable HTTP transport.",
	})
	m.HTTPCORSCacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "http", Name: "cors_cache_size",
		Help: "Current number of cached CORS header blocks.",
	})

	m.WSClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "ws", Name: "clients_active",
		Help: "Current number of connected WebSocket clients.",
	})
	m.WSConnectionsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "ws", Name: "connections_rejected_total",
		Help: "Total number of WebSocket connections rejected (at capacity).",
	})
	m.WSPingTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "ws", Name: "ping_timeouts_total",
		Help: "Total number of WebSocket clients dropped for exceeding the ping failure limit.",
	})

	m.TCPConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "tcp", Name: "connections_active",
		Help: "Current number of open TCP line connections.",
	})
	m.TCPLinesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "tcp", Name: "lines_processed_total",
		Help: "Total number of newline-delimited messages processed.",
	})

	m.MQTTMessagesPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "mqtt", Name: "messages_published_total",
		Help: "Total number of MQTT messages published.",
	})
	m.MQTTMessagesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "mqtt", Name: "messages_received_total",
		Help: "Total number of MQTT messages received.",
	})

	m.RPCRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "rpc", Name: "requests_total",
		Help: "Total number of JSON-RPC requests dispatched by method.",
	}, []string{"method"})
	m.RPCErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "rpc", Name: "errors_total",
		Help: "Total number of JSON-RPC error responses by code.",
	}, []string{"code"})
	m.RPCBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "rpc", Name: "batch_size",
		Help:    "Size of batched JSON-RPC requests.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	})

	registerer.MustRegister(
		m.TemplateCompilesTotal, m.TemplateCacheHits, m.TemplateCacheMisses,
		m.RouteMatchesTotal, m.RouteMatchDuration,
		m.CacheSize, m.CacheCapacity, m.CacheHits, m.CacheMisses,
		m.RateLimitAllowedTotal, m.RateLimitDeniedTotal, m.RateLimitBucketCount,
		m.SessionsActive, m.SessionsCreated, m.SessionsExpired, m.SessionsTerminated,
		m.SSEEventsPublished, m.SSEEventsReplayed, m.SSEEventsEvicted, m.SSEStreamsActive,
		m.HTTPRequestsTotal, m.HTTPSSEConnections, m.HTTPCORSCacheSize,
		m.WSClientsActive, m.WSConnectionsRejected, m.WSPingTimeouts,
		m.TCPConnectionsActive, m.TCPLinesProcessed,
		m.MQTTMessagesPublished, m.MQTTMessagesReceived,
		m.RPCRequestsTotal, m.RPCErrorsTotal, m.RPCBatchSize,
	)

	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	m.handler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return m
}

// ServeHTTP serves the Prometheus exposition format.
func (m *Metrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	m.handler(ctx)
}
