// Package handler defines the narrow interfaces user code implements to
// serve resource reads and tool calls, and the registries the dispatcher
// consults to find them. Handlers are polymorphic over a small,
// well-known capability set rather than one open inheritance hierarchy
// (spec §9 design notes).
package handler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/edgecomet/mcprt/internal/mcprt/schema"
	"github.com/edgecomet/mcprt/pkg/types"
)

// ResourceReader serves "resources/read" for routes it is registered
// against. binding holds the parameters the router extracted from the
// requested URI using the route's template.
type ResourceReader interface {
	ReadResource(ctx context.Context, uri string, binding types.Binding) ([]types.ContentItem, error)
}

// ToolHandler serves "tools/call" for a registered tool name.
// Implementations must be safe for concurrent use and must not retain
// arguments beyond the call (spec §6.5 external collaborator contract).
type ToolHandler interface {
	CallTool(ctx context.Context, arguments json.RawMessage) ([]types.ContentItem, error)
}

// tool pairs a descriptor with the handler that serves it.
type tool struct {
	descriptor types.ToolDescriptor
	handler    ToolHandler
}

// ToolRegistry is the user-registered table of callable tools, looked
// up by name for "tools/call" and enumerated for "tools/list".
type ToolRegistry struct {
	tools       map[string]tool
	order       []string
	schemaCache *schema.Cache
	logger      *zap.Logger
}

// NewToolRegistry returns an empty tool registry. schemaCache and
// logger may both be nil; when schemaCache is set, Register validates
// each tool's input schema for wellformedness and logs a warning for a
// malformed one.
func NewToolRegistry(schemaCache *schema.Cache, logger *zap.Logger) *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]tool), schemaCache: schemaCache, logger: logger}
}

// Register adds a tool under descriptor.Name, replacing any tool
// previously registered under that name. A malformed InputSchema is
// logged and the tool is registered anyway — the runtime never
// evaluates arguments against the schema, so a bad schema can't corrupt
// dispatch, only the advertised "tools/list" metadata.
func (r *ToolRegistry) Register(descriptor types.ToolDescriptor, h ToolHandler) {
	if r.schemaCache != nil && len(descriptor.InputSchema) > 0 {
		if err := r.schemaCache.Validate(descriptor.InputSchema); err != nil && r.logger != nil {
			r.logger.Warn("tool registered with malformed input schema",
				zap.String("tool", descriptor.Name), zap.Error(err))
		}
	}
	if _, exists := r.tools[descriptor.Name]; !exists {
		r.order = append(r.order, descriptor.Name)
	}
	r.tools[descriptor.Name] = tool{descriptor: descriptor, handler: h}
}

// Lookup returns the handler registered for name, if any.
func (r *ToolRegistry) Lookup(name string) (ToolHandler, bool) {
	t, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return t.handler, true
}

// List returns every registered tool's descriptor, in registration order.
func (r *ToolRegistry) List() []types.ToolDescriptor {
	out := make([]types.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].descriptor)
	}
	return out
}
