package tcp

import (
	"bufio"
	"bytes"
	"net"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/mcprt/internal/common/configtypes"
	"github.com/edgecomet/mcprt/internal/mcprt/handler"
	"github.com/edgecomet/mcprt/internal/mcprt/router"
	"github.com/edgecomet/mcprt/internal/mcprt/rpc"
	"github.com/edgecomet/mcprt/internal/mcprt/template"
)

func newTestDispatcher() *rpc.Dispatcher {
	r := router.New(template.New(nil), zap.NewNop(), nil)
	tools := handler.NewToolRegistry(nil, nil)
	return rpc.New(r, tools, nil, rpc.ServerInfo{Name: "test", Version: "0.0.0"}, zap.NewNop(), nil)
}

func startTestServer(t *testing.T, cfg configtypes.TCPConfig) (addr string, stop func()) {
	t.Helper()
	s := New(cfg, newTestDispatcher(), nil, zap.NewNop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s.listener = ln

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.handleConn(conn)
		}
	}()

	return ln.Addr().String(), func() {
		close(s.stop)
		ln.Close()
	}
}

func TestTCPLineRoundTrip(t *testing.T) {
	addr, stop := startTestServer(t, configtypes.TCPConfig{})
	defer stop()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if !strings.Contains(line, `"result"`) {
		t.Fatalf("response = %q, want a result object", line)
	}
}

func TestTCPNotificationGetsNoResponse(t *testing.T) {
	addr, stop := startTestServer(t, configtypes.TCPConfig{})
	defer stop()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Follow with a real request so we have something to wait on; if the
	// notification incorrectly produced output, it would arrive first.
	if _, err := conn.Write([]byte(`{"jsonrpc":"2.0","id":7,"method":"tools/list"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if !strings.Contains(line, `"id":7`) {
		t.Fatalf("first response on the wire = %q, want the id:7 response", line)
	}
}

func TestReadLineRejectsOversizedLine(t *testing.T) {
	r := bufio.NewReaderSize(bytes.NewReader(bytes.Repeat([]byte("x"), 100)), 16)
	if _, err := readLine(r, 10); err == nil {
		t.Fatal("expected an error for a line exceeding max_line_bytes")
	}
}

func TestReadLineTrimsCRLF(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("hello\r\n")))
	line, err := readLine(r, 1024)
	if err != nil {
		t.Fatalf("readLine: %v", err)
	}
	if string(line) != "hello" {
		t.Fatalf("line = %q, want %q", line, "hello")
	}
}
