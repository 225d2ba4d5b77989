package handler

import (
	"context"
	"encoding/json"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/edgecomet/mcprt/internal/mcprt/schema"
	"github.com/edgecomet/mcprt/pkg/types"
)

type stubTool struct{}

func (stubTool) CallTool(_ context.Context, _ json.RawMessage) ([]types.ContentItem, error) {
	return nil, nil
}

func TestToolRegistryRegisterAndLookup(t *testing.T) {
	r := NewToolRegistry(nil, nil)
	r.Register(types.ToolDescriptor{Name: "echo"}, stubTool{})

	if _, ok := r.Lookup("echo"); !ok {
		t.Fatal("expected echo tool to be registered")
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Fatal("expected missing tool to be absent")
	}
}

func TestToolRegistryListPreservesRegistrationOrder(t *testing.T) {
	r := NewToolRegistry(nil, nil)
	r.Register(types.ToolDescriptor{Name: "b"}, stubTool{})
	r.Register(types.ToolDescriptor{Name: "a"}, stubTool{})
	r.Register(types.ToolDescriptor{Name: "b"}, stubTool{}) // re-register, shouldn't move

	got := r.List()
	if len(got) != 2 || got[0].Name != "b" || got[1].Name != "a" {
		t.Fatalf("List() = %v, want [b a]", got)
	}
}

func TestToolRegisterValidatesInputSchema(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	r := NewToolRegistry(schema.New(8, nil), logger)
	r.Register(types.ToolDescriptor{Name: "bad", InputSchema: json.RawMessage(`{"type":"bogus"}`)}, stubTool{})

	if logs.Len() != 1 {
		t.Fatalf("expected one warning logged for malformed schema, got %d", logs.Len())
	}
	if _, ok := r.Lookup("bad"); !ok {
		t.Fatal("tool should still be registered despite malformed schema")
	}
}

func TestToolRegisterAcceptsWellFormedSchema(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	r := NewToolRegistry(schema.New(8, nil), logger)
	r.Register(types.ToolDescriptor{Name: "good", InputSchema: json.RawMessage(`{"type":"object"}`)}, stubTool{})

	if logs.Len() != 0 {
		t.Fatalf("expected no warnings for well-formed schema, got %d", logs.Len())
	}
}
