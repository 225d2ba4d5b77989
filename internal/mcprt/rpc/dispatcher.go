package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edgecomet/mcprt/internal/common/requestid"
	"github.com/edgecomet/mcprt/internal/mcprt/handler"
	"github.com/edgecomet/mcprt/internal/mcprt/metrics"
	"github.com/edgecomet/mcprt/internal/mcprt/router"
	"github.com/edgecomet/mcprt/internal/mcprt/session"
	"github.com/edgecomet/mcprt/pkg/types"
)

// ServerInfo names this runtime in the "initialize" handshake result.
type ServerInfo struct {
	Name    string
	Version string
}

// Dispatcher parses JSON-RPC envelopes, routes them to the fixed
// methods spec §4.5 names or to a user-registered tool handler, and
// formats the response. It is stateless across calls: all mutable
// state lives in the router, tool registry, and session manager it
// wraps.
type Dispatcher struct {
	router   *router.Router
	tools    *handler.ToolRegistry
	sessions *session.Manager
	info     ServerInfo
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// New returns a Dispatcher. sessions may be nil for transports that
// don't carry session semantics (e.g. TCP line framing, MQTT). m may
// be nil to disable metrics recording.
func New(r *router.Router, tools *handler.ToolRegistry, sessions *session.Manager, info ServerInfo, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{router: r, tools: tools, sessions: sessions, info: info, logger: logger, metrics: m}
}

// Dispatch parses body as a single JSON-RPC request or a batch,
// processes it, and returns the formatted response bytes. It returns
// (nil, nil) when the input was pure notifications (no response due).
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) ([]byte, error) {
	requests, isBatch, parseErr := ParseEnvelope(body)
	if parseErr != nil {
		rpcErr, _ := parseErr.(*Error)
		resp := NewError(nil, rpcErr.Code, rpcErr.Message, nil)
		return json.Marshal(resp)
	}

	if d.metrics != nil {
		d.metrics.RPCBatchSize.Observe(float64(len(requests)))
	}

	responses := make([]*Response, 0, len(requests))
	for i := range requests {
		resp := d.dispatchOne(ctx, &requests[i])
		if resp != nil {
			responses = append(responses, resp)
		}
	}

	if len(responses) == 0 {
		return nil, nil
	}
	if !isBatch {
		return json.Marshal(responses[0])
	}
	return json.Marshal(responses)
}

func (d *Dispatcher) dispatchOne(ctx context.Context, req *Request) *Response {
	corrID := requestid.GenerateRequestID(req.Method)

	if d.metrics != nil {
		d.metrics.RPCRequestsTotal.WithLabelValues(req.Method).Inc()
	}

	if verr := req.Validate(); verr != nil {
		if d.metrics != nil {
			d.metrics.RPCErrorsTotal.WithLabelValues(fmt.Sprintf("%d", verr.Code)).Inc()
		}
		if req.IsNotification() {
			d.logf(zap.WarnLevel, "invalid notification", zap.String("request_id", corrID), zap.String("method", req.Method))
			return nil
		}
		return NewError(req.ID, verr.Code, verr.Message, nil)
	}

	result, rpcErr := d.route(ctx, req)

	if rpcErr != nil && d.metrics != nil {
		d.metrics.RPCErrorsTotal.WithLabelValues(fmt.Sprintf("%d", rpcErr.Code)).Inc()
	}

	if req.IsNotification() {
		if rpcErr != nil {
			d.logf(zap.WarnLevel, "notification handler error", zap.String("request_id", corrID), zap.String("method", req.Method), zap.Error(rpcErr))
		}
		return nil
	}

	if rpcErr != nil {
		d.logf(zap.WarnLevel, "request failed", zap.String("request_id", corrID), zap.String("method", req.Method), zap.Int("code", rpcErr.Code))
		return NewError(req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return NewError(req.ID, CodeInternalError, "failed to encode result", nil)
	}
	return NewResult(req.ID, raw)
}

func (d *Dispatcher) route(ctx context.Context, req *Request) (any, *Error) {
	switch req.Method {
	case "initialize":
		return d.handleInitialize(ctx, req)
	case "resources/read":
		return d.handleResourcesRead(ctx, req)
	case "resources/templates/list":
		return d.handleResourcesTemplatesList(ctx, req)
	case "tools/call":
		return d.handleToolsCall(ctx, req)
	case "tools/list":
		return d.handleToolsList(ctx, req)
	default:
		return d.handleUserMethod(ctx, req)
	}
}

func (d *Dispatcher) handleInitialize(_ context.Context, req *Request) (any, *Error) {
	result := InitializeResult{ProtocolVersion: "2024-11-05"}
	result.ServerInfo.Name = d.info.Name
	result.ServerInfo.Version = d.info.Version

	if d.sessions != nil {
		sess, err := d.sessions.Create()
		if err != nil {
			return nil, &Error{Code: CodeInternalError, Message: "failed to create session"}
		}
		result.SessionID = sess.ID
	}
	return result, nil
}

func (d *Dispatcher) handleResourcesRead(ctx context.Context, req *Request) (any, *Error) {
	var params ResourcesReadParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: "invalid params for resources/read"}
		}
	}
	if params.URI == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "uri is required"}
	}

	route, binding, err := d.router.Match(params.URI)
	if err != nil {
		return nil, mapDomainError(err)
	}

	reader, ok := route.UserData.(handler.ResourceReader)
	if !ok {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("route %q has no resource reader", route.Name)}
	}

	content, err := reader.ReadResource(ctx, params.URI, binding)
	if err != nil {
		return nil, mapDomainError(err)
	}
	return ResourcesReadResult{Contents: content}, nil
}

func (d *Dispatcher) handleResourcesTemplatesList(_ context.Context, _ *Request) (any, *Error) {
	routes := d.router.Routes()
	out := make([]ResourceTemplateDescriptor, 0, len(routes))
	for _, route := range routes {
		out = append(out, ResourceTemplateDescriptor{Name: route.Name, Template: route.Template})
	}
	return ResourcesTemplatesListResult{ResourceTemplates: out}, nil
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, req *Request) (any, *Error) {
	var params ToolsCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: "invalid params for tools/call"}
		}
	}
	if params.Name == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "name is required"}
	}

	h, ok := d.tools.Lookup(params.Name)
	if !ok {
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown tool %q", params.Name)}
	}

	content, err := h.CallTool(ctx, params.Arguments)
	if err != nil {
		return ToolsCallResult{Content: []types.ContentItem{{Type: "text", Text: err.Error()}}, IsError: true}, nil
	}
	return ToolsCallResult{Content: content}, nil
}

func (d *Dispatcher) handleToolsList(_ context.Context, _ *Request) (any, *Error) {
	descriptors := d.tools.List()
	out := make([]ToolDescriptorWire, 0, len(descriptors))
	for _, desc := range descriptors {
		out = append(out, ToolDescriptorWire{Name: desc.Name, Description: desc.Description, InputSchema: desc.InputSchema})
	}
	return ToolsListResult{Tools: out}, nil
}

// handleUserMethod delegates any method name outside the fixed set to a
// user-registered tool handler of the same name, passing params through
// unchanged as its arguments (spec §4.5 dispatch rules).
func (d *Dispatcher) handleUserMethod(ctx context.Context, req *Request) (any, *Error) {
	h, ok := d.tools.Lookup(req.Method)
	if !ok {
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}
	}
	content, err := h.CallTool(ctx, req.Params)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return ToolsCallResult{Content: content}, nil
}

func mapDomainError(err error) *Error {
	switch {
	case errors.Is(err, types.ErrResourceNotFound), errors.Is(err, types.ErrTemplateMismatch):
		return &Error{Code: CodeResourceNotFound, Message: "resource not found"}
	case errors.Is(err, types.ErrTypeMismatch), errors.Is(err, types.ErrInvalidParams), errors.Is(err, types.ErrMissingRequiredParam):
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	default:
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}
}

func (d *Dispatcher) logf(level zapcore.Level, msg string, fields ...zap.Field) {
	if d.logger == nil {
		return
	}
	switch level {
	case zapcore.WarnLevel:
		d.logger.Warn(msg, fields...)
	default:
		d.logger.Info(msg, fields...)
	}
}
