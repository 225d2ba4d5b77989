package rpc

import (
	"encoding/json"

	"github.com/edgecomet/mcprt/pkg/types"
)

// InitializeResult is returned from the "initialize" handshake. SessionID
// is populated when the dispatcher was constructed with a session
// manager; the owning transport is responsible for surfacing it as the
// Mcp-Session-Id response header.
type InitializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
	SessionID string `json:"sessionId,omitempty"`
}

// ResourcesReadParams is the params object for a "resources/read" request.
type ResourcesReadParams struct {
	URI string `json:"uri"`
}

// ResourcesReadResult is the result object for a "resources/read" request.
type ResourcesReadResult struct {
	Contents []types.ContentItem `json:"contents"`
}

// ResourcesTemplatesListResult is the result object for
// "resources/templates/list".
type ResourcesTemplatesListResult struct {
	ResourceTemplates []ResourceTemplateDescriptor `json:"resourceTemplates"`
}

// ResourceTemplateDescriptor describes one registered route for
// client-side discovery.
type ResourceTemplateDescriptor struct {
	Name     string `json:"name"`
	Template string `json:"uriTemplate"`
}

// ToolsCallParams is the params object for a "tools/call" request.
type ToolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolsCallResult is the result object for a "tools/call" request.
type ToolsCallResult struct {
	Content []types.ContentItem `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}

// ToolsListResult is the result object for "tools/list".
type ToolsListResult struct {
	Tools []ToolDescriptorWire `json:"tools"`
}

// ToolDescriptorWire is the wire shape of a registered tool.
type ToolDescriptorWire struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}
