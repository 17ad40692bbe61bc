// ABOUTME: MCP-compatible HTTP server for external agents like Claude Code.
// ABOUTME: Implements Streamable HTTP transport with GitLab-backed sessions.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/glab-gateway/internal/gitlab"
	"github.com/2389/glab-gateway/internal/session"
	"github.com/2389/glab-gateway/internal/tools"
)

// Supported MCP protocol versions
var supportedProtocolVersions = map[string]bool{
	"2025-03-26": true,
	"2025-11-25": true,
}

// latestProtocolVersion is the version we advertise when the client's
// requested version is unknown.
const latestProtocolVersion = "2025-11-25"

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// JSON-RPC 2.0 types

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// MCP-specific types

// MCPToolInfo represents an MCP tool definition.
type MCPToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// MCPListToolsResult is the result for tools/list.
type MCPListToolsResult struct {
	Tools []MCPToolInfo `json:"tools"`
}

// MCPCallToolParams are the params for tools/call.
type MCPCallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// MCPCallToolResult is the result for tools/call.
type MCPCallToolResult struct {
	Content []MCPContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

// MCPContent represents content in a tool result.
type MCPContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// initializeParams is the subset of initialize params we act on.
type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

// Config holds configuration for the MCP server.
type Config struct {
	Registry *session.Registry
	Pool     *gitlab.Pool
	Tools    *tools.Registry
	Streams  *Streams
	Logger   *slog.Logger
	Version  string // reported in initialize serverInfo, "dev" when empty
}

// Server implements the MCP Streamable HTTP endpoint. Session state
// lives in the session registry; GitLab access goes through the
// session's pooled client.
type Server struct {
	registry *session.Registry
	pool     *gitlab.Pool
	tools    *tools.Registry
	streams  *Streams
	logger   *slog.Logger
	version  string
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("session registry is required")
	}
	if cfg.Pool == nil {
		return nil, errors.New("client pool is required")
	}
	if cfg.Tools == nil {
		return nil, errors.New("tool registry is required")
	}
	if cfg.Streams == nil {
		return nil, errors.New("streams bridge is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	return &Server{
		registry: cfg.Registry,
		pool:     cfg.Pool,
		tools:    cfg.Tools,
		streams:  cfg.Streams,
		logger:   logger.With("component", "mcp-server"),
		version:  version,
	}, nil
}

// RegisterRoutes registers the MCP endpoint on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleMCP)
}

// handleMCP is the single MCP endpoint supporting POST, GET, and DELETE
// per the Streamable HTTP transport spec.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		s.handleGet(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, GET, DELETE")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleDelete terminates a session: registry entry, pooled client, and
// every stream the session produced.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}

	if !s.registry.Remove(sessionID) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	s.pool.Remove(sessionID)
	s.streams.DropSession(sessionID)

	s.logger.Info("MCP session terminated", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// handlePost processes JSON-RPC messages sent via HTTP POST.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	protoVersion := r.Header.Get("Mcp-Protocol-Version")

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.sendJSONRPCError(w, nil, JSONRPCParseError, "failed to read request body", nil)
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.sendJSONRPCError(w, nil, JSONRPCInvalidRequest, "request body too large", nil)
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.sendJSONRPCError(w, nil, JSONRPCParseError, "invalid JSON", nil)
		return
	}

	if req.JSONRPC != "2.0" {
		s.sendJSONRPCError(w, req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version", nil)
		return
	}

	isInitialize := req.Method == "initialize"
	isNotification := len(req.ID) == 0 || string(req.ID) == "null"

	// Validate protocol version header (not required on initialize)
	if !isInitialize && protoVersion != "" {
		if !supportedProtocolVersions[protoVersion] {
			http.Error(w, "Bad Request: unsupported Mcp-Protocol-Version", http.StatusBadRequest)
			return
		}
	}

	// Non-initialize requests require a live session. The lookup also
	// refreshes the session's idle clock.
	var sess session.Session
	if !isInitialize {
		if sessionID == "" {
			http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
			return
		}
		var ok bool
		sess, ok = s.registry.Get(sessionID)
		if !ok {
			// Session expired or invalid - client must re-initialize
			s.sendJSONRPCErrorStatus(w, http.StatusNotFound, req.ID, JSONRPCInvalidRequest, "session not found or expired", nil)
			return
		}
	}

	s.logger.Debug("MCP request",
		"method", req.Method,
		"is_notification", isNotification,
		"session_id", sessionID,
	)

	// Handle notifications: accept and return HTTP 202 with no body
	if isNotification {
		if strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Debug("accepted MCP notification", "method", req.Method)
		} else {
			s.logger.Warn("received notification for non-notification method", "method", req.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	switch req.Method {
	case "initialize":
		s.handleInitialize(w, r, req)
	case "tools/list":
		s.handleToolsList(w, r, req, sess)
	case "tools/call":
		s.handleToolsCall(w, r, req, sess)
	case "ping":
		s.respond(w, r, sess.ID, req.ID, map[string]any{})
	default:
		s.sendJSONRPCError(w, req.ID, JSONRPCMethodNotFound, "method not found", nil)
	}
}

// handleInitialize registers a session from the request's query
// parameters and returns the negotiated protocol handshake.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, req JSONRPCRequest) {
	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "invalid params", nil)
			return
		}
	}
	negotiated := latestProtocolVersion
	if supportedProtocolVersions[params.ProtocolVersion] {
		negotiated = params.ProtocolVersion
	}

	raw := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			raw[key] = values[0]
		}
	}

	sess, err := s.registry.Create(uuid.New().String(), raw)
	if err != nil {
		var verr *session.ValidationError
		if errors.As(err, &verr) {
			s.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, verr.Error(), verr.Violations)
			return
		}
		s.logger.Error("session create failed", "error", err)
		s.sendJSONRPCError(w, req.ID, JSONRPCInternalError, "failed to create session", nil)
		return
	}

	s.logger.Info("MCP session created",
		"session_id", sess.ID,
		"protocol_version", negotiated,
	)

	// Set the session ID header so the client can use it on subsequent requests
	w.Header().Set("Mcp-Session-Id", sess.ID)

	result := map[string]any{
		"protocolVersion": negotiated,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    "glab-gateway",
			"version": s.version,
		},
	}
	s.respond(w, r, sess.ID, req.ID, result)
}

// handleToolsList handles tools/list requests, filtered by the
// session's feature toggles.
func (s *Server) handleToolsList(w http.ResponseWriter, r *http.Request, req JSONRPCRequest, sess session.Session) {
	client := s.pool.GetOrCreate(sess)
	visible := s.tools.ListFor(client)

	result := MCPListToolsResult{
		Tools: make([]MCPToolInfo, len(visible)),
	}
	for i, tool := range visible {
		result.Tools[i] = MCPToolInfo{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}
	}

	s.logger.Debug("tools/list",
		"count", len(visible),
		"session_id", sess.ID,
	)

	s.respond(w, r, sess.ID, req.ID, result)
}

// handleToolsCall handles tools/call requests.
func (s *Server) handleToolsCall(w http.ResponseWriter, r *http.Request, req JSONRPCRequest, sess session.Session) {
	var params MCPCallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "invalid params", nil)
			return
		}
	}
	if params.Name == "" {
		s.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "tool name is required", nil)
		return
	}

	client := s.pool.GetOrCreate(sess)

	s.logger.Debug("tools/call",
		"tool_name", params.Name,
		"session_id", sess.ID,
	)

	output, err := s.tools.Call(r.Context(), client, params.Name, params.Arguments)
	if err != nil {
		s.handleToolError(w, r, req.ID, sess, params.Name, err)
		return
	}

	result := MCPCallToolResult{
		Content: []MCPContent{{Type: "text", Text: string(output)}},
	}
	s.respond(w, r, sess.ID, req.ID, result)
}

// handleToolError maps tool failures onto the protocol. Unknown tools
// and transport conditions become JSON-RPC errors; everything else is
// an in-band isError result the model can read.
func (s *Server) handleToolError(w http.ResponseWriter, r *http.Request, id json.RawMessage, sess session.Session, toolName string, err error) {
	s.logger.Debug("tools/call failed",
		"tool_name", toolName,
		"session_id", sess.ID,
		"error", err,
	)

	switch {
	case errors.Is(err, tools.ErrToolNotFound):
		s.sendJSONRPCError(w, id, JSONRPCInvalidParams, "tool not found", nil)
		return
	case errors.Is(err, context.DeadlineExceeded):
		s.sendJSONRPCError(w, id, JSONRPCInternalError, "tool execution timed out", nil)
		return
	case errors.Is(err, context.Canceled):
		s.sendJSONRPCError(w, id, JSONRPCInternalError, "request cancelled", nil)
		return
	}

	result := MCPCallToolResult{
		Content: []MCPContent{{Type: "text", Text: err.Error()}},
		IsError: true,
	}
	s.respond(w, r, sess.ID, id, result)
}

// respond delivers a JSON-RPC result either as a plain JSON body or,
// when the client's Accept prefers SSE, as a one-event stream recorded
// in the event log so an interrupted client can resume it.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, sessionID string, id json.RawMessage, result any) {
	if !prefersEventStream(r) {
		s.sendJSONRPCResult(w, id, result)
		return
	}

	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
		s.sendJSONRPCError(w, id, JSONRPCInternalError, "failed to encode response", nil)
		return
	}

	f, ok := w.(http.Flusher)
	if !ok {
		s.sendJSONRPCResult(w, id, result)
		return
	}

	streamID := s.streams.OpenRequestStream(sessionID)
	eventID := s.streams.Publish(streamID, payload)

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := writeSSEEvent(w, f, eventID, payload); err != nil {
		s.logger.Debug("SSE response write failed",
			"stream_id", streamID,
			"error", err,
		)
	}
}

// sendJSONRPCResult sends a successful JSON-RPC response.
func (s *Server) sendJSONRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}

// sendJSONRPCError sends a JSON-RPC error response.
func (s *Server) sendJSONRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string, data any) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC error response", "error", err)
	}
}

// sendJSONRPCErrorStatus sends a JSON-RPC error body with a non-200
// HTTP status, for conditions the transport layer signals (expired
// sessions in particular).
func (s *Server) sendJSONRPCErrorStatus(w http.ResponseWriter, status int, id json.RawMessage, code int, message string, data any) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC error response", "error", err)
	}
}
