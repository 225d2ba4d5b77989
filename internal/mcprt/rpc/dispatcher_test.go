package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/edgecomet/mcprt/internal/mcprt/handler"
	"github.com/edgecomet/mcprt/internal/mcprt/router"
	"github.com/edgecomet/mcprt/internal/mcprt/session"
	"github.com/edgecomet/mcprt/internal/mcprt/template"
	"github.com/edgecomet/mcprt/pkg/types"
)

type stubReader struct{}

func (stubReader) ReadResource(_ context.Context, uri string, binding types.Binding) ([]types.ContentItem, error) {
	return []types.ContentItem{{Type: "text", Text: "read:" + uri + ":" + binding["id"]}}, nil
}

type stubTool struct{}

func (stubTool) CallTool(_ context.Context, arguments json.RawMessage) ([]types.ContentItem, error) {
	return []types.ContentItem{{Type: "text", Text: "called with " + string(arguments)}}, nil
}

func newTestDispatcher() *Dispatcher {
	eng := template.New(nil)
	r := router.New(eng, nil, nil)
	r.Register(types.Route{Template: "/users/{id}", Name: "user", UserData: stubReader{}})

	tools := handler.NewToolRegistry(nil, nil)
	tools.Register(types.ToolDescriptor{Name: "echo"}, stubTool{})

	return New(r, tools, nil, ServerInfo{Name: "mcprt-test", Version: "0.0.0"}, nil, nil)
}

func TestDispatchInitialize(t *testing.T) {
	d := newTestDispatcher()

	out, err := d.Dispatch(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`))
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error response: %+v", resp.Error)
	}
}

func TestDispatchResourcesRead(t *testing.T) {
	d := newTestDispatcher()

	body := `{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"/users/42"}}`
	out, err := d.Dispatch(context.Background(), []byte(body))
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error response: %+v", resp.Error)
	}

	var result ResourcesReadResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if len(result.Contents) != 1 || result.Contents[0].Text != "read:/users/42:42" {
		t.Errorf("unexpected contents: %+v", result.Contents)
	}
}

func TestDispatchResourcesReadNotFound(t *testing.T) {
	d := newTestDispatcher()

	body := `{"jsonrpc":"2.0","id":3,"method":"resources/read","params":{"uri":"/orders/1"}}`
	out, _ := d.Dispatch(context.Background(), []byte(body))

	var resp Response
	json.Unmarshal(out, &resp)
	if resp.Error == nil || resp.Error.Code != CodeResourceNotFound {
		t.Fatalf("expected CodeResourceNotFound, got %+v", resp.Error)
	}
}

func TestDispatchToolsCall(t *testing.T) {
	d := newTestDispatcher()

	body := `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"echo","arguments":{"x":1}}}`
	out, _ := d.Dispatch(context.Background(), []byte(body))

	var resp Response
	json.Unmarshal(out, &resp)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	var result ToolsCallResult
	json.Unmarshal(resp.Result, &result)
	if len(result.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(result.Content))
	}
}

func TestDispatchUnknownToolMethodNotFound(t *testing.T) {
	d := newTestDispatcher()

	body := `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"missing"}}`
	out, _ := d.Dispatch(context.Background(), []byte(body))

	var resp Response
	json.Unmarshal(out, &resp)
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected CodeMethodNotFound, got %+v", resp.Error)
	}
}

func TestDispatchNotificationProducesNoResponse(t *testing.T) {
	d := newTestDispatcher()

	out, err := d.Dispatch(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list"}`))
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if out != nil {
		t.Errorf("expected no response for a notification, got %s", out)
	}
}

func TestDispatchBatch(t *testing.T) {
	d := newTestDispatcher()

	body := `[{"jsonrpc":"2.0","id":1,"method":"tools/list"},{"jsonrpc":"2.0","method":"tools/list"},{"jsonrpc":"2.0","id":2,"method":"tools/list"}]`
	out, err := d.Dispatch(context.Background(), []byte(body))
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	var responses []Response
	if err := json.Unmarshal(out, &responses); err != nil {
		t.Fatalf("failed to unmarshal batch response: %v", err)
	}
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses (notification omitted), got %d", len(responses))
	}
}

func TestDispatchInitializeCreatesSession(t *testing.T) {
	eng := template.New(nil)
	r := router.New(eng, nil, nil)
	tools := handler.NewToolRegistry(nil, nil)
	sessions := session.New(16, 0, nil, nil)

	d := New(r, tools, sessions, ServerInfo{Name: "mcprt-test"}, nil, nil)

	out, _ := d.Dispatch(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`))

	var resp Response
	json.Unmarshal(out, &resp)
	var result InitializeResult
	json.Unmarshal(resp.Result, &result)

	if len(result.SessionID) != 32 {
		t.Errorf("SessionID length = %d, want 32", len(result.SessionID))
	}
}
