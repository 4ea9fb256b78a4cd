/*
Package mcp implements the persona MCP server.

The server uses line-delimited JSON-RPC 2.0 over stdio and exposes persona
management, suggestion, chaining, analytics and knowledge search as tools.
Every persona file is also a resource (persona://<name>), as is every
knowledge base (persona://<id>/knowledge-base). Reading a resource counts as
an activation of that persona.
*/
package mcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/khanglvm/persona-mcp/internal/analytics"
	"github.com/khanglvm/persona-mcp/internal/learning"
	"github.com/khanglvm/persona-mcp/internal/logging"
	"github.com/khanglvm/persona-mcp/internal/persona"
	"github.com/khanglvm/persona-mcp/internal/search"
	"github.com/khanglvm/persona-mcp/internal/storage"
	"github.com/khanglvm/persona-mcp/internal/suggest"
)

const (
	// ProtocolVersion is the MCP revision this server speaks.
	ProtocolVersion = "2024-11-05"

	// maxLineBytes bounds one JSON-RPC message; persona content is capped
	// well below this.
	maxLineBytes = 4 * 1024 * 1024
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeNotFound       = -32002
)

// Options wires the server to its collaborators. Community, Knowledge, Index
// and History are optional.
type Options struct {
	Personas  *persona.Store
	Community *persona.Community
	Knowledge *persona.KnowledgeBase
	Analytics *analytics.Store
	Tracker   *learning.Tracker
	Engine    *suggest.Engine
	Index     *search.Indexer
	History   storage.Storage
	Logger    *zap.Logger
	Version   string
}

// Server is the persona MCP server.
type Server struct {
	personas  *persona.Store
	community *persona.Community
	knowledge *persona.KnowledgeBase
	analytics *analytics.Store
	tracker   *learning.Tracker
	engine    *suggest.Engine
	index     *search.Indexer
	history   storage.Storage
	logger    *zap.Logger
	version   string

	outMu sync.Mutex
}

// NewServer creates a new MCP server.
func NewServer(opts Options) *Server {
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	return &Server{
		personas:  opts.Personas,
		community: opts.Community,
		knowledge: opts.Knowledge,
		analytics: opts.Analytics,
		tracker:   opts.Tracker,
		engine:    opts.Engine,
		index:     opts.Index,
		history:   opts.History,
		logger:    logging.OrNop(opts.Logger),
		version:   version,
	}
}

// Run serves requests from stdin to stdout until stdin is closed.
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve processes one request per line from in and writes responses to out.
// Requests are handled sequentially. It returns when in reaches EOF.
func (s *Server) Serve(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		response, err := s.handleRequest(line)
		if err != nil {
			s.logger.Warn("rejecting malformed request", zap.Error(err))
			s.sendResponse(out, errorResponse(nil, codeParseError, err.Error()))
			continue
		}

		if response != nil {
			s.sendResponse(out, response)
		}
	}

	return scanner.Err()
}

// MCPRequest represents an incoming MCP JSON-RPC request.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing MCP JSON-RPC response.
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents an MCP error.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func errorResponse(id interface{}, code int, message string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &MCPError{Code: code, Message: message},
	}
}

func resultResponse(id interface{}, result interface{}) *MCPResponse {
	return &MCPResponse{JSONRPC: "2.0", ID: id, Result: result}
}

// handleRequest processes an incoming MCP request. Notifications yield a nil
// response.
func (s *Server) handleRequest(data []byte) (*MCPResponse, error) {
	var req MCPRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON-RPC request: %w", err)
	}

	if strings.HasPrefix(req.Method, "notifications/") {
		s.logger.Debug("notification", zap.String("method", req.Method))
		return nil, nil
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(&req), nil
	case "ping":
		return resultResponse(req.ID, map[string]interface{}{}), nil
	case "tools/list":
		return s.handleToolsList(&req), nil
	case "tools/call":
		return s.handleToolsCall(&req), nil
	case "resources/list":
		return s.handleResourcesList(&req), nil
	case "resources/read":
		return s.handleResourcesRead(&req), nil
	default:
		return errorResponse(req.ID, codeMethodNotFound, "Method not found"), nil
	}
}

// handleInitialize handles the MCP initialize request.
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return resultResponse(req.ID, map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]interface{}{
			"tools":     map[string]interface{}{},
			"resources": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    "persona-mcp",
			"version": s.version,
		},
	})
}

// sendResponse writes one JSON-RPC response line.
func (s *Server) sendResponse(out io.Writer, resp *MCPResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		data, _ = json.Marshal(errorResponse(resp.ID, codeInternalError, "failed to encode response"))
	}

	s.outMu.Lock()
	defer s.outMu.Unlock()
	if _, err := fmt.Fprintf(out, "%s\n", data); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}
