package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forgearmory/armory/internal/gateway"
	"github.com/forgearmory/armory/pkg/version"
)

const (
	serverName      = "forge-armory"
	protocolVersion = "2024-11-05"
)

// JSON-RPC error codes used on the MCP surfaces. Gateway-level failures keep
// their typed kind in the error's data object.
const (
	rpcCodeParseError     = -32700
	rpcCodeMethodNotFound = -32601
	rpcCodeServerError    = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func rpcResult(id, result any) gin.H {
	return gin.H{"jsonrpc": "2.0", "result": result, "id": id}
}

func rpcError(id any, code int, message string, kind gateway.ErrorKind) gin.H {
	errObj := gin.H{"code": code, "message": message}
	if kind != "" {
		errObj["data"] = gin.H{"kind": string(kind)}
	}
	return gin.H{"jsonrpc": "2.0", "error": errObj, "id": id}
}

// mcpHandler serves the aggregated surface: every enabled backend's tools
// under their prefixed names.
func (s *Server) mcpHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.handleRPC(c, "")
	}
}

// mountHandler serves a single backend's tools unprefixed, keyed by the
// backend's effective prefix.
func (s *Server) mountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.handleRPC(c, c.Param("prefix"))
	}
}

// handleRPC processes one MCP JSON-RPC request. An empty mount selects the
// aggregated surface.
func (s *Server) handleRPC(c *gin.Context, mount string) {
	var req rpcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, rpcError(nil, rpcCodeParseError, "Parse error", ""))
		return
	}

	switch req.Method {
	case "initialize":
		c.JSON(http.StatusOK, rpcResult(req.ID, s.handleInitialize()))
	case "ping":
		c.JSON(http.StatusOK, rpcResult(req.ID, gin.H{}))
	case "tools/list":
		s.handleListTools(c, &req, mount)
	case "tools/call":
		s.handleCallTool(c, &req, mount)
	default:
		c.JSON(http.StatusBadRequest, rpcError(req.ID, rpcCodeMethodNotFound, "Method not found: "+req.Method, ""))
	}
}

func (s *Server) handleInitialize() gin.H {
	return gin.H{
		"protocolVersion": protocolVersion,
		"capabilities": gin.H{
			"tools": gin.H{"listChanged": true},
		},
		"serverInfo": gin.H{
			"name":    serverName,
			"version": version.GetVersion(),
		},
	}
}

func (s *Server) handleListTools(c *gin.Context, req *rpcRequest, mount string) {
	var entries []*gateway.RegistryEntry
	prefixed := mount == ""

	if prefixed {
		entries = s.manager.Registry().ListAll()
	} else {
		var err error
		entries, err = s.manager.ListMountedTools(mount)
		if err != nil {
			// an unknown or disabled mount is a not-found outcome, never an empty list
			s.respondRPCError(c, req.ID, err)
			return
		}
	}

	tools := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if prefixed {
			name = e.PrefixedName
		}
		schema := json.RawMessage(e.InputSchema)
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		tools = append(tools, gin.H{
			"name":        name,
			"description": e.Description,
			"inputSchema": schema,
		})
	}
	c.JSON(http.StatusOK, rpcResult(req.ID, gin.H{"tools": tools}))
}

func (s *Server) handleCallTool(c *gin.Context, req *rpcRequest, mount string) {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		c.JSON(http.StatusBadRequest, rpcError(req.ID, rpcCodeParseError, "Parse error", ""))
		return
	}

	rc := requestContext(c)

	var result any
	var err error
	if mount == "" {
		result, err = s.manager.CallTool(c.Request.Context(), params.Name, params.Arguments, rc)
	} else {
		result, err = s.manager.CallToolOnMount(c.Request.Context(), mount, params.Name, params.Arguments, rc)
	}
	if err != nil {
		s.logger.Warn("tool call failed",
			zap.String("tool", params.Name),
			zap.String("mount", mount),
			zap.String("kind", string(gateway.KindOf(err))),
			zap.Error(err),
		)
		s.respondRPCError(c, req.ID, err)
		return
	}
	c.JSON(http.StatusOK, rpcResult(req.ID, result))
}

// respondRPCError renders a gateway error as a JSON-RPC error carrying the
// typed kind, so clients can distinguish not_found, timeout, backend_error
// and transport_error.
func (s *Server) respondRPCError(c *gin.Context, id any, err error) {
	c.JSON(http.StatusOK, rpcError(id, rpcCodeServerError, err.Error(), gateway.KindOf(err)))
}

// requestContext captures where a call originated from, for the call record.
func requestContext(c *gin.Context) *gateway.RequestContext {
	requestID := c.GetHeader("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return &gateway.RequestContext{
		ClientIP:  c.ClientIP(),
		RequestID: requestID,
		SessionID: c.GetHeader("Mcp-Session-Id"),
		Caller:    c.GetHeader("X-Caller"),
	}
}
