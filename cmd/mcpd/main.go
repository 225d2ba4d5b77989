package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/mcprt/internal/common/config"
	"github.com/edgecomet/mcprt/internal/common/logger"
	"github.com/edgecomet/mcprt/internal/common/metricsserver"
	"github.com/edgecomet/mcprt/internal/mcprt/handler"
	"github.com/edgecomet/mcprt/internal/mcprt/metrics"
	"github.com/edgecomet/mcprt/internal/mcprt/ratelimit"
	"github.com/edgecomet/mcprt/internal/mcprt/router"
	"github.com/edgecomet/mcprt/internal/mcprt/rpc"
	"github.com/edgecomet/mcprt/internal/mcprt/schema"
	"github.com/edgecomet/mcprt/internal/mcprt/session"
	"github.com/edgecomet/mcprt/internal/mcprt/sse"
	"github.com/edgecomet/mcprt/internal/mcprt/template"
	"github.com/edgecomet/mcprt/internal/mcprt/transport/httpstream"
	"github.com/edgecomet/mcprt/internal/mcprt/transport/mqtt"
	"github.com/edgecomet/mcprt/internal/mcprt/transport/tcp"
	"github.com/edgecomet/mcprt/internal/mcprt/transport/ws"
)

const serverName = "mcprt"
const serverVersion = "0.1.0"

func main() {
	configPath := flag.String("c", "configs/mcpd.yaml", "path to configuration file")
	flag.Parse()

	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	initialLogger.Info("starting mcprt runtime", zap.String("config_path", *configPath))

	configManager, err := config.NewManager(*configPath, initialLogger.Logger)
	if err != nil {
		initialLogger.Fatal("failed to load configuration", zap.Error(err))
	}
	cfg := configManager.GetConfig()

	dynamicLogger, err := logger.NewLoggerWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Fatal("failed to create configured logger", zap.Error(err))
	}
	defer dynamicLogger.Sync()

	rootLogger := dynamicLogger.Logger

	m := metrics.New(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)

	metricsServer, err := metricsserver.Start(cfg.Metrics.Enabled, cfg.Metrics.Listen, cfg.Metrics.Path, m, rootLogger)
	if err != nil {
		rootLogger.Fatal("failed to start metrics server", zap.Error(err))
	}

	engine := template.New(m)
	rtr := router.New(engine, rootLogger, m)
	schemaCache := schema.New(cfg.SchemaCache.Capacity, m)
	tools := handler.NewToolRegistry(schemaCache, rootLogger)

	sessions := session.New(cfg.Session.Capacity, time.Duration(cfg.Session.InactivityTimeoutMs)*time.Millisecond, rootLogger, m)
	sessions.StartSweeper(time.Duration(cfg.Session.SweepIntervalMs) * time.Millisecond)
	defer sessions.Stop()

	streams := sse.NewRegistry(cfg.HTTP.SSERingSize, time.Duration(cfg.HTTP.HeartbeatIntervalMs)*time.Millisecond, m)
	defer streams.Close()

	limiter := ratelimit.New(time.Duration(cfg.RateLimit.WindowMs)*time.Millisecond, cfg.RateLimit.Max)
	stopLimiterSweep := startLimiterSweeper(limiter, time.Duration(cfg.RateLimit.WindowMs)*time.Millisecond)
	defer close(stopLimiterSweep)

	dispatcher := rpc.New(rtr, tools, sessions, rpc.ServerInfo{Name: serverName, Version: serverVersion}, rootLogger, m)

	httpSrv := httpstream.New(cfg.HTTP, dispatcher, sessions, streams, limiter, m, rootLogger)
	wsSrv := ws.New(cfg.WebSocket, dispatcher, m, rootLogger)
	tcpSrv := tcp.New(cfg.TCP, dispatcher, m, rootLogger)

	var mqttSrv *mqtt.Server
	if cfg.MQTT.Enabled {
		mqttSrv = mqtt.New(cfg.MQTT, dispatcher, limiter, m, rootLogger)
	}

	serverErrors := make(chan error, 3)

	httpLifecycle := &serverLifecycle{
		server:  newFastHTTPServer(httpSrv.HandleRequest),
		name:    "streamable-http",
		address: cfg.HTTP.Listen,
		logger:  rootLogger,
	}
	httpLifecycle.Start(serverErrors)

	go func() {
		if err := wsSrv.ListenAndServe(); err != nil {
			rootLogger.Error("websocket server stopped", zap.Error(err))
			serverErrors <- fmt.Errorf("websocket transport: %w", err)
		}
	}()
	rootLogger.Info("websocket transport started", zap.String("address", cfg.WebSocket.Listen))

	go func() {
		if err := tcpSrv.ListenAndServe(); err != nil {
			rootLogger.Error("tcp line server stopped", zap.Error(err))
			serverErrors <- fmt.Errorf("tcp transport: %w", err)
		}
	}()
	rootLogger.Info("tcp line transport started", zap.String("address", cfg.TCP.Listen))

	if mqttSrv != nil {
		if err := mqttSrv.Start(); err != nil {
			rootLogger.Fatal("failed to start mqtt transport", zap.Error(err))
		}
		rootLogger.Info("mqtt transport started", zap.String("mode", cfg.MQTT.Mode))
	}

	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-serverErrors:
		rootLogger.Fatal("a transport failed to start", zap.Error(err))
	default:
	}

	rootLogger.Info("mcprt runtime started",
		zap.String("http_addr", cfg.HTTP.Listen),
		zap.String("ws_addr", cfg.WebSocket.Listen),
		zap.String("tcp_addr", cfg.TCP.Listen))

	dynamicLogger.SwitchToConfiguredLevel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		dynamicLogger.EnsureInfoLevelForShutdown()
		rootLogger.Info("shutting down mcprt runtime")
	case err := <-serverErrors:
		dynamicLogger.EnsureInfoLevelForShutdown()
		rootLogger.Error("transport failure triggered shutdown", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		httpLifecycle.Shutdown(shutdownCtx)
	}()

	httpSrv.Close()
	if err := wsSrv.Close(); err != nil {
		rootLogger.Error("websocket transport shutdown error", zap.Error(err))
	}
	if err := tcpSrv.Close(); err != nil {
		rootLogger.Error("tcp transport shutdown error", zap.Error(err))
	}
	if mqttSrv != nil {
		if err := mqttSrv.Close(); err != nil {
			rootLogger.Error("mqtt transport shutdown error", zap.Error(err))
		}
	}

	wg.Wait()
	rootLogger.Info("transports shut down")

	if metricsServer != nil {
		if err := metricsServer.ShutdownWithContext(shutdownCtx); err != nil {
			rootLogger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	rootLogger.Info("mcprt runtime stopped")
}

func newFastHTTPServer(handler fasthttp.RequestHandler) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:                      handler,
		Name:                         "mcprt-httpstream",
		ReadTimeout:                  30 * time.Second,
		WriteTimeout:                 30 * time.Second,
		DisablePreParseMultipartForm: true,
		NoDefaultServerHeader:        true,
		NoDefaultDate:                true,
	}
}

// serverLifecycle starts and stops a fasthttp.Server in the background,
// reporting a startup or serve-time failure on errChan.
type serverLifecycle struct {
	server  *fasthttp.Server
	name    string
	address string
	logger  *zap.Logger
}

func (s *serverLifecycle) Start(errChan chan<- error) {
	go func() {
		if err := s.server.ListenAndServe(s.address); err != nil {
			s.logger.Error("server error", zap.String("name", s.name), zap.Error(err))
			errChan <- fmt.Errorf("%s server failed: %w", s.name, err)
		}
	}()
	s.logger.Info("server started", zap.String("name", s.name), zap.String("address", s.address))
}

func (s *serverLifecycle) Shutdown(ctx context.Context) {
	s.logger.Info("shutting down server", zap.String("name", s.name))
	if err := s.server.ShutdownWithContext(ctx); err != nil {
		s.logger.Error("server shutdown error", zap.String("name", s.name), zap.Error(err))
	}
}

// startLimiterSweeper periodically drops rate-limit buckets whose window
// has fully elapsed, mirroring the teacher's ticker-driven cleanup
// workers. It sweeps at ten times the configured window so a bucket
// survives comfortably past its own window before being reclaimed.
func startLimiterSweeper(limiter *ratelimit.Limiter, window time.Duration) chan struct{} {
	stop := make(chan struct{})
	interval := window * 10
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Sweep()
			case <-stop:
				return
			}
		}
	}()
	return stop
}
