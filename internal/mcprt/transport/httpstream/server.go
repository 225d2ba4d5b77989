// Package httpstream implements the Streamable HTTP transport: one
// endpoint multiplexing JSON-RPC POST, long-lived SSE GET, and session
// teardown DELETE, per the same request/response contract the teacher
// applies to its single /render endpoint.
package httpstream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/mcprt/internal/common/configtypes"
	"github.com/edgecomet/mcprt/internal/common/requestid"
	"github.com/edgecomet/mcprt/internal/mcprt/metrics"
	"github.com/edgecomet/mcprt/internal/mcprt/ratelimit"
	"github.com/edgecomet/mcprt/internal/mcprt/rpc"
	"github.com/edgecomet/mcprt/internal/mcprt/session"
	"github.com/edgecomet/mcprt/internal/mcprt/sse"
	"github.com/edgecomet/mcprt/pkg/types"
)

const sessionHeader = "Mcp-Session-Id"

// Server is the fasthttp request handler for the Streamable HTTP
// transport's single MCP endpoint.
type Server struct {
	cfg        configtypes.HTTPConfig
	dispatcher *rpc.Dispatcher
	sessions   *session.Manager
	streams    *sse.Registry
	limiter    *ratelimit.Limiter
	metrics    *metrics.Metrics
	logger     *zap.Logger
	cors       *corsCache
	bufPool    bytebufferpool.Pool

	stop chan struct{}
}

// New returns a Server. limiter may be nil to disable rate limiting.
// Per-stream heartbeats are owned by streams itself; the Server only
// needs to be stopped with Close.
func New(cfg configtypes.HTTPConfig, dispatcher *rpc.Dispatcher, sessions *session.Manager, streams *sse.Registry, limiter *ratelimit.Limiter, m *metrics.Metrics, logger *zap.Logger) *Server {
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		sessions:   sessions,
		streams:    streams,
		limiter:    limiter,
		metrics:    m,
		logger:     logger,
		cors:       newCORSCache(cfg.CORSCacheSize),
		stop:       make(chan struct{}),
	}
}

// Close ends every open SSE GET response writer. Heartbeat goroutines
// belong to the sse.Registry and stop with its own Close.
func (s *Server) Close() {
	close(s.stop)
}

// HandleRequest is the fasthttp.RequestHandler for the configured path.
func (s *Server) HandleRequest(ctx *fasthttp.RequestCtx) {
	reqID := requestid.GenerateRequestID(string(ctx.Request.Header.Peek("X-Request-ID")))
	ctx.Response.Header.Set("X-Request-ID", reqID)
	logger := s.logger.With(zap.String("request_id", reqID))

	if string(ctx.Path()) != s.cfg.Path {
		s.writeStatus(ctx, fasthttp.StatusNotFound, "not found")
		return
	}

	origin := string(ctx.Request.Header.Peek("Origin"))
	if !originAllowed(origin, s.cfg.OriginAllowlist) {
		s.writeStatus(ctx, fasthttp.StatusForbidden, "origin not allowed")
		return
	}
	if origin != "" {
		s.writeCORSHeaders(ctx, origin)
	}

	if !s.allowRequest(ctx.RemoteAddr().String()) {
		s.writeStatus(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded")
		s.recordRequest(string(ctx.Method()), fasthttp.StatusTooManyRequests)
		return
	}

	method := string(ctx.Method())
	s.recordRequest(method, func() int {
		switch method {
		case fasthttp.MethodOptions:
			ctx.SetStatusCode(fasthttp.StatusNoContent)
			return fasthttp.StatusNoContent
		case fasthttp.MethodPost:
			return s.handlePost(ctx, logger)
		case fasthttp.MethodGet:
			return s.handleGet(ctx, logger)
		case fasthttp.MethodDelete:
			return s.handleDelete(ctx, logger)
		default:
			s.writeStatus(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
			return fasthttp.StatusMethodNotAllowed
		}
	}())
}

// allowRequest enforces the per-client rate limit, keyed by remote
// address. A nil limiter disables rate limiting entirely.
func (s *Server) allowRequest(clientKey string) bool {
	if s.limiter == nil {
		return true
	}
	allowed := s.limiter.Allow(clientKey)
	if s.metrics != nil {
		if allowed {
			s.metrics.RateLimitAllowedTotal.WithLabelValues(clientKey).Inc()
		} else {
			s.metrics.RateLimitDeniedTotal.WithLabelValues(clientKey).Inc()
		}
		s.metrics.RateLimitBucketCount.Set(float64(s.limiter.Len()))
	}
	return allowed
}

func (s *Server) recordRequest(method string, status int) {
	if s.metrics == nil {
		return
	}
	s.metrics.HTTPRequestsTotal.WithLabelValues(method, fmt.Sprintf("%d", status)).Inc()
	s.metrics.HTTPCORSCacheSize.Set(float64(s.cors.Len()))
}

func (s *Server) writeCORSHeaders(ctx *fasthttp.RequestCtx, origin string) {
	h := s.cors.getOrBuild(origin)
	ctx.Response.Header.Set("Access-Control-Allow-Origin", h.allowOrigin)
	ctx.Response.Header.Set("Access-Control-Allow-Methods", h.allowMethods)
	ctx.Response.Header.Set("Access-Control-Allow-Headers", h.allowHeaders)
	ctx.Response.Header.Set("Access-Control-Max-Age", h.maxAge)
}

func (s *Server) handlePost(ctx *fasthttp.RequestCtx, logger *zap.Logger) int {
	buf := s.bufPool.Get()
	defer s.bufPool.Put(buf)
	buf.Reset()
	if cap := s.cfg.BodyInitialBufferKiB; cap > 0 {
		buf.B = make([]byte, 0, cap<<10)
	}
	buf.Write(ctx.PostBody())

	reqCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := s.dispatcher.Dispatch(reqCtx, buf.B)
	if err != nil {
		logger.Error("dispatch failed", zap.Error(err))
		s.writeStatus(ctx, fasthttp.StatusInternalServerError, "internal error")
		return fasthttp.StatusInternalServerError
	}
	if resp == nil {
		ctx.SetStatusCode(fasthttp.StatusAccepted)
		return fasthttp.StatusAccepted
	}

	if sessID := string(ctx.Response.Header.Peek(sessionHeader)); sessID == "" {
		if id := extractSessionID(resp); id != "" {
			ctx.Response.Header.Set(sessionHeader, id)
		}
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(resp)
	return fasthttp.StatusOK
}

// extractSessionID pulls "sessionId" out of an initialize response
// without a full unmarshal, so non-initialize responses pay nothing.
func extractSessionID(resp []byte) string {
	const key = `"sessionId":"`
	idx := bytes.Index(resp, []byte(key))
	if idx < 0 {
		return ""
	}
	start := idx + len(key)
	end := bytes.IndexByte(resp[start:], '"')
	if end < 0 {
		return ""
	}
	return string(resp[start : start+end])
}

func (s *Server) handleGet(ctx *fasthttp.RequestCtx, logger *zap.Logger) int {
	sessID := string(ctx.Request.Header.Peek(sessionHeader))
	if sessID == "" {
		s.writeStatus(ctx, fasthttp.StatusBadRequest, "Mcp-Session-Id header is required")
		return fasthttp.StatusBadRequest
	}
	if s.sessions != nil {
		if _, err := s.sessions.Get(sessID); err != nil {
			s.writeStatus(ctx, fasthttp.StatusNotFound, "unknown session")
			return fasthttp.StatusNotFound
		}
	}

	stream := s.streams.GetOrCreate(sessID)
	lastEventID := parseLastEventID(string(ctx.Request.Header.Peek("Last-Event-ID")))

	if s.metrics != nil {
		s.metrics.HTTPSSEConnections.Inc()
	}

	ctx.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			if s.metrics != nil {
				s.metrics.HTTPSSEConnections.Dec()
			}
		}()

		replay := stream.Since(lastEventID)
		if len(replay) > 0 && s.metrics != nil {
			s.metrics.SSEEventsReplayed.Add(float64(len(replay)))
		}
		for _, ev := range replay {
			if writeSSEEvent(w, ev) != nil {
				return
			}
		}
		_ = w.Flush()

		ch, unsubscribe := stream.Subscribe(32)
		defer unsubscribe()

		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if ev.Type == "heartbeat" {
					if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
						return
					}
				} else if writeSSEEvent(w, ev) != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-s.stop:
				return
			}
		}
	})
	return fasthttp.StatusOK
}

// writeSSEEvent renders ev in the standard SSE wire format:
// "id: <id>\nevent: <type>\ndata: <data>\n\n". A blank event type is
// omitted, matching clients that only care about the default "message"
// event.
func writeSSEEvent(w *bufio.Writer, ev types.Event) error {
	if _, err := fmt.Fprintf(w, "id: %d\n", ev.ID); err != nil {
		return err
	}
	if ev.Type != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", ev.Type); err != nil {
			return err
		}
	}
	for _, line := range splitLines(ev.Data) {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\n")
	return err
}

func splitLines(s string) []string {
	if s == "" {
		return []string{""}
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

func (s *Server) handleDelete(ctx *fasthttp.RequestCtx, logger *zap.Logger) int {
	sessID := string(ctx.Request.Header.Peek(sessionHeader))
	if sessID == "" {
		s.writeStatus(ctx, fasthttp.StatusBadRequest, "Mcp-Session-Id header is required")
		return fasthttp.StatusBadRequest
	}
	if s.sessions != nil {
		if !s.sessions.Terminate(sessID) {
			s.writeStatus(ctx, fasthttp.StatusNotFound, "unknown session")
			return fasthttp.StatusNotFound
		}
	}
	s.streams.Remove(sessID)
	logger.Info("session terminated", zap.String("session_id", sessID))
	ctx.SetStatusCode(fasthttp.StatusNoContent)
	return fasthttp.StatusNoContent
}

func (s *Server) writeStatus(ctx *fasthttp.RequestCtx, code int, msg string) {
	ctx.SetStatusCode(code)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(fmt.Sprintf(`{"error":%q}`, msg))
}

func parseLastEventID(raw string) int64 {
	var id int64
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
