package ws

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/edgecomet/mcprt/internal/mcprt/handler"
	"github.com/edgecomet/mcprt/internal/mcprt/rpc"
	"github.com/edgecomet/mcprt/internal/mcprt/router"
	"github.com/edgecomet/mcprt/internal/mcprt/template"
)

func newTestDispatcher() *rpc.Dispatcher {
	r := router.New(template.New(nil), zap.NewNop(), nil)
	tools := handler.NewToolRegistry(nil, nil)
	return rpc.New(r, tools, nil, rpc.ServerInfo{Name: "test", Version: "0.0.0"}, zap.NewNop(), nil)
}

func TestDispatchMessageWritesResponseFrame(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	s := &Server{dispatcher: newTestDispatcher(), logger: zap.NewNop()}
	slot := &clientSlot{asm: newRecvAssembler(nil, 4096)}
	slot.asm.buf = []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

	go s.dispatchMessage(serverConn, slot)

	header, err := ws.ReadHeader(clientConn)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if header.OpCode != ws.OpText {
		t.Fatalf("opcode = %v, want OpText", header.OpCode)
	}
	payload := make([]byte, header.Length)
	if _, err := io.ReadFull(clientConn, payload); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("expected non-empty response payload")
	}
}

func TestSweepOnceClosesAfterMaxFailures(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	tb := newTable(1, 1)
	idx, ok := tb.acquire(serverConn, newRecvAssemblerFactory(4096))
	if !ok {
		t.Fatal("acquire failed")
	}
	tb.withSlot(idx, func(slot *clientSlot) {
		slot.state = stateActive
		slot.lastActivity = time.Now().Add(-time.Hour)
	})

	s := &Server{table: tb, logger: zap.NewNop()}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		buf := make([]byte, 1024)
		for {
			if _, err := clientConn.Read(buf); err != nil {
				return
			}
		}
	}()

	s.sweepOnce(time.Minute, 2)
	s.sweepOnce(time.Minute, 2)

	var state clientState
	tb.withSlot(idx, func(slot *clientSlot) { state = slot.state })
	if state != stateClosing {
		t.Fatalf("state = %v, want stateClosing", state)
	}

	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("expected connection to be closed, unblocking the reader")
	}
}
