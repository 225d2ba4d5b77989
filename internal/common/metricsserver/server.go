// Package metricsserver runs the Prometheus exposition endpoint on a
// dedicated listener, separate from any transport's own listener.
package metricsserver

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Handler serves a Prometheus exposition response.
type Handler interface {
	ServeHTTP(ctx *fasthttp.RequestCtx)
}

// Start creates and starts a dedicated metrics HTTP server. It
// returns (nil, nil) when enabled is false.
func Start(enabled bool, listen string, path string, handler Handler, logger *zap.Logger) (*fasthttp.Server, error) {
	if !enabled {
		logger.Info("metrics collection disabled")
		return nil, nil
	}

	logger.Debug("starting metrics server", zap.String("listen", listen), zap.String("path", path))

	server := &fasthttp.Server{
		Handler:            serveOnPath(path, handler),
		Name:               "mcprt-metrics",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		MaxRequestBodySize: 1 * 1024,
		DisableKeepalive:   false,
		TCPKeepalive:       true,
		TCPKeepalivePeriod: 30 * time.Second,
		MaxConnsPerIP:      100,
		MaxRequestsPerConn: 1000,
		Concurrency:        100,
	}

	go func() {
		logger.Info("metrics server listening", zap.String("listen", listen), zap.String("path", path))
		if err := server.ListenAndServe(listen); err != nil {
			logger.Error("metrics server stopped", zap.String("listen", listen), zap.Error(err))
		}
	}()

	time.Sleep(100 * time.Millisecond)

	return server, nil
}

func serveOnPath(path string, handler Handler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) == path {
			handler.ServeHTTP(ctx)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetBodyString("Not Found")
	}
}
