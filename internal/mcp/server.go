// Package mcp exposes the BugX procedural API as MCP tools and resources
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	mcp "github.com/fredcamaral/gomcp-sdk"
	"github.com/fredcamaral/gomcp-sdk/protocol"
	"github.com/fredcamaral/gomcp-sdk/server"

	bugxerrors "bugx/internal/errors"
	"bugx/internal/logging"
	"bugx/internal/workflow"
)

const (
	// ServerName is announced during the MCP handshake
	ServerName = "bugx"

	resourceTemplates = "bugx://templates"
	resourceKnowledge = "bugx://knowledge"
	resourceMetrics   = "bugx://metrics"

	maxRequestBytes = 1 << 20
)

// Server wraps the MCP server and the orchestrator its tools drive
type Server struct {
	orchestrator *workflow.Orchestrator
	mcpServer    *server.Server
	logger       logging.Logger
}

// NewServer creates the MCP server and registers every tool and resource
func NewServer(orchestrator *workflow.Orchestrator, version string, logger logging.Logger) (*Server, error) {
	if orchestrator == nil {
		return nil, errors.New("mcp: orchestrator is required")
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	mcpServer := mcp.NewServer(ServerName, version)
	if mcpServer == nil {
		return nil, errors.New("failed to create MCP server instance")
	}

	s := &Server{
		orchestrator: orchestrator,
		mcpServer:    mcpServer,
		logger:       logger.WithComponent("mcp"),
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server, used to attach a transport
func (s *Server) MCPServer() *server.Server {
	return s.mcpServer
}

// HandleRequest processes one JSON-RPC request
func (s *Server) HandleRequest(ctx context.Context, req *protocol.JSONRPCRequest) *protocol.JSONRPCResponse {
	return s.mcpServer.HandleRequest(ctx, req)
}

// ServeHTTP accepts JSON-RPC requests over POST
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeRPC(w, http.StatusMethodNotAllowed, bugxerrors.NewValidationError("method", "JSON-RPC requests must use POST", r.Method).
			WithProtocol("mcp").ToJSONRPCError(nil))
		return
	}

	var req protocol.JSONRPCRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeRPC(w, http.StatusBadRequest, bugxerrors.NewValidationError("body", "invalid JSON-RPC request", err.Error()).
			WithProtocol("mcp").ToJSONRPCError(nil))
		return
	}

	writeRPC(w, http.StatusOK, s.mcpServer.HandleRequest(r.Context(), &req))
}

func writeRPC(w http.ResponseWriter, status int, resp *protocol.JSONRPCResponse) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// registerResources registers read-only views of the toolkit state
func (s *Server) registerResources() {
	resources := []struct {
		uri         string
		name        string
		description string
	}{
		{resourceTemplates, "Fix Templates", "Registered fix templates with their usage counters"},
		{resourceKnowledge, "Team Knowledge", "Resolutions shared by the team, newest first"},
		{resourceMetrics, "Workflow Metrics", "Session totals, success rate and template usage"},
	}

	for _, res := range resources {
		resource := mcp.NewResource(res.uri, res.name, res.description, "application/json")
		s.mcpServer.AddResource(resource, mcp.ResourceHandlerFunc(s.handleResourceRead))
	}
}

func (s *Server) handleResourceRead(_ context.Context, uri string) ([]protocol.Content, error) {
	var payload interface{}
	switch strings.TrimSuffix(uri, "/") {
	case resourceTemplates:
		payload = s.orchestrator.ListTemplates()
	case resourceKnowledge:
		payload = s.orchestrator.ListKnowledge()
	case resourceMetrics:
		payload = s.orchestrator.GetMetrics(false)
	default:
		return nil, bugxerrors.NewNotFoundError("resource", uri)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, bugxerrors.NewInternalError("failed to encode resource", err)
	}
	return []protocol.Content{protocol.NewContent(string(data))}, nil
}
