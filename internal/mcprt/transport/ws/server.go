// Package ws implements the WebSocket Server Transport: a bitmap-
// indexed, segment-locked client table on top of raw gobwas/ws frame
// handling, with its own ping/timeout sweep and length-prefix receive
// heuristic.
package ws

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/edgecomet/mcprt/internal/common/configtypes"
	"github.com/edgecomet/mcprt/internal/mcprt/metrics"
	"github.com/edgecomet/mcprt/internal/mcprt/rpc"
)

// Server accepts raw TCP connections, performs the WebSocket handshake
// itself (no net/http in the loop), and services each client's
// messages on the goroutine that read them, per the transport's
// single-threaded-per-connection dispatch model.
type Server struct {
	cfg        configtypes.WebSocketConfig
	dispatcher *rpc.Dispatcher
	metrics    *metrics.Metrics
	logger     *zap.Logger

	table   *table
	asmPool *recvAssemblerFactory

	listener net.Listener
	stop     chan struct{}
	done     chan struct{}
}

// New returns a Server. Call ListenAndServe to start accepting.
func New(cfg configtypes.WebSocketConfig, dispatcher *rpc.Dispatcher, m *metrics.Metrics, logger *zap.Logger) *Server {
	numSegments := cfg.NumSegments
	if numSegments <= 0 {
		numSegments = 16
	}
	maxClients := cfg.MaxClients
	if maxClients <= 0 {
		maxClients = 1024
	}
	poolBufBytes := cfg.PoolBufferSizeKiB << 10
	if poolBufBytes <= 0 {
		poolBufBytes = 4 << 10
	}
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
		table:      newTable(maxClients, numSegments),
		asmPool:    newRecvAssemblerFactory(poolBufBytes),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// ListenAndServe binds the configured address and accepts connections
// until Close is called. It blocks; callers run it in its own goroutine.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("websocket transport: listen %s: %w", s.cfg.Listen, err)
	}
	s.listener = ln

	go s.pingSweepLoop()

	s.logger.Info("websocket transport listening", zap.String("listen", s.cfg.Listen))
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stop:
				close(s.done)
				return nil
			default:
				s.logger.Error("websocket accept failed", zap.Error(err))
				return err
			}
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections and the ping sweeper. It does
// not forcibly close already-accepted connections.
func (s *Server) Close() error {
	close(s.stop)
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConn(conn net.Conn) {
	if _, err := ws.Upgrade(conn); err != nil {
		s.logger.Debug("websocket handshake failed", zap.Error(err))
		_ = conn.Close()
		return
	}

	idx, ok := s.table.acquire(conn, s.asmPool)
	if !ok {
		if s.metrics != nil {
			s.metrics.WSConnectionsRejected.Inc()
		}
		_ = wsutil.WriteServerMessage(conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusGoingAway, "max_clients reached"))
		_ = conn.Close()
		return
	}
	s.table.withSlot(idx, func(slot *clientSlot) {
		slot.state = stateActive
	})
	if s.metrics != nil {
		s.metrics.WSClientsActive.Set(float64(s.table.activeCount()))
	}

	defer s.teardown(idx, conn)
	s.readLoop(idx, conn)
}

func (s *Server) readLoop(idx int, conn net.Conn) {
	for {
		header, err := ws.ReadHeader(conn)
		if err != nil {
			return
		}

		payload := make([]byte, header.Length)
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}
		if header.Masked {
			ws.Cipher(payload, header.Mask, 0)
		}

		var closing bool
		s.table.withSlot(idx, func(slot *clientSlot) {
			slot.lastActivity = time.Now()
			slot.outstandingPings = 0

			switch header.OpCode {
			case ws.OpPing:
				_ = wsutil.WriteServerMessage(conn, ws.OpPong, payload)
			case ws.OpPong:
				// lastActivity/outstandingPings already reset above.
			case ws.OpClose:
				slot.state = stateClosing
				closing = true
			case ws.OpText, ws.OpBinary, ws.OpContinuation:
				if len(slot.asm.buf) == 0 {
					payload = stripLengthPrefix(payload)
				}
				slot.asm.append(payload)
				if header.Fin {
					s.dispatchMessage(conn, slot)
				}
			}
		})
		if closing {
			return
		}
	}
}

// dispatchMessage runs a complete message through the JSON-RPC
// dispatcher on this same goroutine and writes the response directly,
// per the transport's same-thread dispatch contract.
func (s *Server) dispatchMessage(conn net.Conn, slot *clientSlot) {
	body := append([]byte(nil), slot.asm.buf...)
	slot.asm.reset()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := s.dispatcher.Dispatch(ctx, body)
	if err != nil {
		s.logger.Error("websocket dispatch failed", zap.Error(err))
		return
	}
	if resp == nil {
		return
	}
	if err := wsutil.WriteServerMessage(conn, ws.OpText, resp); err != nil {
		s.logger.Debug("websocket write failed", zap.Error(err))
	}
}

func (s *Server) teardown(idx int, conn net.Conn) {
	s.table.withSlot(idx, func(slot *clientSlot) {
		slot.asm.reset()
	})
	s.table.release(idx)
	_ = conn.Close()
	if s.metrics != nil {
		s.metrics.WSClientsActive.Set(float64(s.table.activeCount()))
	}
}

// pingSweepLoop is the service thread described by the transport's
// ping/timeout state machine: on PingIntervalMs it walks the client
// table and pings anyone idle past PingTimeoutMs, closing connections
// that accumulate MaxPingFailures unanswered pings.
func (s *Server) pingSweepLoop() {
	interval := time.Duration(s.cfg.PingIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 20 * time.Second
	}
	timeout := time.Duration(s.cfg.PingTimeoutMs) * time.Millisecond
	maxFailures := s.cfg.MaxPingFailures
	if maxFailures <= 0 {
		maxFailures = 3
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce(timeout, maxFailures)
		case <-s.stop:
			return
		}
	}
}

func (s *Server) sweepOnce(timeout time.Duration, maxFailures int) {
	now := time.Now()
	var toClose []net.Conn

	s.table.forEach(func(idx int, slot *clientSlot) {
		if slot.state != stateActive {
			return
		}
		if now.Sub(slot.lastActivity) < timeout {
			return
		}
		slot.outstandingPings++
		if slot.outstandingPings >= maxFailures {
			slot.state = stateClosing
			toClose = append(toClose, slot.conn)
			if s.metrics != nil {
				s.metrics.WSPingTimeouts.Inc()
			}
			return
		}
		_ = wsutil.WriteServerMessage(slot.conn, ws.OpPing, nil)
	})

	for _, conn := range toClose {
		_ = conn.Close()
	}
}
