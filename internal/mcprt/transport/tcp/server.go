// Package tcp implements the newline-delimited line transport: one
// JSON-RPC message per line, request/response only, no session or SSE
// semantics.
package tcp

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/mcprt/internal/common/configtypes"
	"github.com/edgecomet/mcprt/internal/mcprt/metrics"
	"github.com/edgecomet/mcprt/internal/mcprt/rpc"
)

// Server accepts TCP connections and services one newline-delimited
// JSON-RPC message at a time on each, mirroring the per-connection
// goroutine model used elsewhere in this runtime, generalized from a
// per-request model to a long-lived one.
type Server struct {
	cfg        configtypes.TCPConfig
	dispatcher *rpc.Dispatcher
	metrics    *metrics.Metrics
	logger     *zap.Logger

	listener net.Listener
	stop     chan struct{}
}

// New returns a Server. Call ListenAndServe to start accepting.
func New(cfg configtypes.TCPConfig, dispatcher *rpc.Dispatcher, m *metrics.Metrics, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, dispatcher: dispatcher, metrics: m, logger: logger, stop: make(chan struct{})}
}

// ListenAndServe binds the configured address and accepts connections
// until Close is called. It blocks; callers run it in its own goroutine.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("tcp transport: listen %s: %w", s.cfg.Listen, err)
	}
	s.listener = ln

	s.logger.Info("tcp transport listening", zap.String("listen", s.cfg.Listen))
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return nil
			default:
				s.logger.Error("tcp accept failed", zap.Error(err))
				return err
			}
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	close(s.stop)
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.TCPConnectionsActive.Inc()
		defer s.metrics.TCPConnectionsActive.Dec()
	}

	maxLine := s.cfg.MaxLineBytes
	if maxLine <= 0 {
		maxLine = 1 << 20
	}
	idleTimeout := time.Duration(s.cfg.IdleTimeoutMs) * time.Millisecond

	reader := bufio.NewReaderSize(conn, 4096)
	for {
		if idleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
				return
			}
		}

		line, err := readLine(reader, maxLine)
		if err != nil {
			return
		}
		if len(line) == 0 {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		resp, err := s.dispatcher.Dispatch(ctx, line)
		cancel()
		if err != nil {
			s.logger.Error("tcp dispatch failed", zap.Error(err))
			return
		}
		if s.metrics != nil {
			s.metrics.TCPLinesProcessed.Inc()
		}
		if resp == nil {
			continue
		}
		resp = append(resp, '\n')
		if _, err := conn.Write(resp); err != nil {
			return
		}
	}
}

// readLine reads up to the next '\n', excluded, erroring once more than
// maxLine bytes have been read without finding one.
func readLine(r *bufio.Reader, maxLine int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > maxLine {
			return nil, fmt.Errorf("tcp transport: line exceeds %d bytes", maxLine)
		}
		if err == nil {
			return trimNewline(line), nil
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return nil, err
	}
}

func trimNewline(line []byte) []byte {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	n = len(line)
	if n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
