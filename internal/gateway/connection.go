// Package gateway implements the core of the Forge Armory gateway: backend
// connections, the tool registry, the backend manager and the call recorder.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/forgearmory/armory/internal/model"
	"github.com/forgearmory/armory/pkg/types"
)

// ConnState describes the runtime state of a backend connection.
// It is derived state, never persisted.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateReady        ConnState = "ready"
	StateErrored      ConnState = "errored"
)

// ToolInfo is one tool definition as reported by a backend during discovery.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Conn is the manager's view of one backend connection.
type Conn interface {
	// Open establishes the transport and performs the initialize handshake.
	// Failure is an ordinary recoverable outcome, reported as a typed error.
	Open(ctx context.Context) error

	// ListTools performs tool discovery, bounded by the backend's timeout.
	// A timeout or transport failure is a typed error, never an empty list.
	ListTools(ctx context.Context) ([]ToolInfo, error)

	// CallTool forwards one invocation, bounded by the backend's timeout.
	// Failures are distinguishable: timeout, backend-reported error (message
	// carried verbatim) or transport error.
	CallTool(ctx context.Context, name string, args map[string]any) (*types.ToolInvokeResult, error)

	// State returns the current connection state.
	State() ConnState

	// Timeout returns the configured bound for operations on this connection.
	// A timed-out call is recorded with a latency equal to this bound.
	Timeout() time.Duration

	// Close releases the transport. Idempotent.
	Close()
}

// Dialer produces a Conn for a backend. The manager uses it so tests can
// substitute backends without the network.
type Dialer func(backend *model.Backend, logger *zap.Logger) Conn

// httpConn is a Conn over the streamable HTTP MCP transport.
type httpConn struct {
	name    string
	url     string
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	client *client.Client
	state  ConnState
}

// NewHTTPConn returns the default streamable HTTP connection for a backend.
func NewHTTPConn(backend *model.Backend, logger *zap.Logger) Conn {
	return &httpConn{
		name:    backend.Name,
		url:     backend.URL,
		timeout: timeoutDuration(backend.TimeoutSeconds),
		logger:  logger,
		state:   StateDisconnected,
	}
}

func timeoutDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		seconds = model.TimeoutSecondsDefault
	}
	return time.Duration(seconds * float64(time.Second))
}

// Timeout returns the configured bound for operations on this connection.
func (c *httpConn) Timeout() time.Duration {
	return c.timeout
}

func (c *httpConn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *httpConn) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *httpConn) getClient() *client.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// Open creates the streamable HTTP client and runs the initialize handshake.
func (c *httpConn) Open(ctx context.Context) error {
	if c.url == "" {
		c.setState(StateErrored)
		return errValidation("backend %s has no url configured", c.name)
	}

	c.setState(StateConnecting)

	mcpClient, err := client.NewStreamableHttpClient(c.url)
	if err != nil {
		c.setState(StateErrored)
		return errTransport("failed to create streamable HTTP client for backend %s: %v", c.name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "forge-armory client for " + c.name,
		Version: "0.1",
	}
	initReq.Params.Capabilities = mcp.ClientCapabilities{}

	initCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := mcpClient.Initialize(initCtx, initReq); err != nil {
		mcpClient.Close()
		c.setState(StateErrored)
		if errors.Is(err, context.DeadlineExceeded) {
			return errTimeout("initialize request to backend %s timed out after %s", c.name, c.timeout)
		}
		if errors.Is(err, syscall.ECONNREFUSED) {
			return errTransport("connection to backend %s at %s was refused", c.name, c.url)
		}
		return errTransport("failed to initialize connection with backend %s: %v", c.name, err)
	}

	c.mu.Lock()
	c.client = mcpClient
	c.state = StateReady
	c.mu.Unlock()

	c.logger.Info("backend connection ready", zap.String("backend", c.name), zap.String("url", c.url))
	return nil
}

// ListTools fetches this backend's tool catalog.
func (c *httpConn) ListTools(ctx context.Context) ([]ToolInfo, error) {
	mcpClient := c.getClient()
	if mcpClient == nil {
		return nil, errTransport("backend %s is not connected", c.name)
	}

	listCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := mcpClient.ListTools(listCtx, mcp.ListToolsRequest{})
	if err != nil {
		c.setState(StateErrored)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errTimeout("tool discovery on backend %s timed out after %s", c.name, c.timeout)
		}
		return nil, errTransport("failed to fetch tools from backend %s: %v", c.name, err)
	}

	tools := make([]ToolInfo, 0, len(resp.Tools))
	for _, tool := range resp.Tools {
		// extracting the json schema is on a best-effort basis
		schema, _ := json.Marshal(tool.InputSchema)
		tools = append(tools, ToolInfo{
			Name:        tool.GetName(),
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return tools, nil
}

// CallTool forwards one invocation to the backend.
func (c *httpConn) CallTool(ctx context.Context, name string, args map[string]any) (*types.ToolInvokeResult, error) {
	mcpClient := c.getClient()
	if mcpClient == nil {
		return nil, errTransport("backend %s is not connected", c.name)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = name
	callReq.Params.Arguments = args

	resp, err := mcpClient.CallTool(callCtx, callReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errTimeout("call to tool %s on backend %s timed out after %s", name, c.name, c.timeout)
		}
		if isConnError(err) {
			c.setState(StateErrored)
			return nil, errTransport("failed to reach backend %s for tool %s: %v", c.name, name, err)
		}
		return nil, errBackend("backend %s failed to call tool %s: %v", c.name, name, err)
	}

	result, err := convertCallResult(resp)
	if err != nil {
		return nil, errInternal("failed to convert response from backend %s: %v", c.name, err)
	}

	if resp.IsError {
		// the backend reported an application-level failure.
		// its message is carried verbatim so callers and call records see it unchanged.
		return result, errBackend("%s", textContent(resp))
	}
	return result, nil
}

// Close releases the transport. Safe to call multiple times.
func (c *httpConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	c.state = StateDisconnected
}

// isConnError reports whether err is a connection-level failure rather than a
// failure reported by the backend's tool machinery.
func isConnError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// convertCallResult converts an MCP CallToolResult into the gateway's API shape.
func convertCallResult(resp *mcp.CallToolResult) (*types.ToolInvokeResult, error) {
	contentList := make([]map[string]any, 0, len(resp.Content))
	for i, item := range resp.Content {
		serialized, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal content item %d: %w", i, err)
		}
		var contentMap map[string]any
		if err := json.Unmarshal(serialized, &contentMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal content item %d: %w", i, err)
		}
		contentList = append(contentList, contentMap)
	}

	return &types.ToolInvokeResult{
		Meta:              convertMeta(resp.Meta),
		IsError:           resp.IsError,
		Content:           contentList,
		StructuredContent: resp.StructuredContent,
	}, nil
}

func convertMeta(meta *mcp.Meta) map[string]any {
	if meta == nil {
		return nil
	}
	metaMap := make(map[string]any)
	for k, v := range meta.AdditionalFields {
		metaMap[k] = v
	}
	if meta.ProgressToken != nil {
		metaMap["progressToken"] = meta.ProgressToken
	}
	if len(metaMap) == 0 {
		return nil
	}
	return metaMap
}

// textContent extracts the text parts of a tool result, used to surface a
// backend-reported error message verbatim.
func textContent(resp *mcp.CallToolResult) string {
	var parts []string
	for _, item := range resp.Content {
		if tc, ok := mcp.AsTextContent(item); ok {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) == 0 {
		return "tool call failed"
	}
	return strings.Join(parts, "\n")
}
