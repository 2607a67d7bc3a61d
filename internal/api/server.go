// Package api provides the HTTP surfaces of the Forge Armory gateway: the MCP
// protocol endpoints and the management REST API.
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/forgearmory/armory/internal/gateway"
	"github.com/forgearmory/armory/internal/model"
	"github.com/forgearmory/armory/internal/telemetry"
	"github.com/forgearmory/armory/pkg/types"
	"github.com/forgearmory/armory/pkg/version"
)

const V0ApiPathPrefix = "/api/v0"

// ServerOptions holds the dependencies for the HTTP server.
type ServerOptions struct {
	// Port is the TCP port to bind the server to.
	Port string

	Manager *gateway.Manager
	Logger  *zap.Logger

	OtelProviders *telemetry.Providers
}

// Server serves the MCP gateway endpoints and the management API.
type Server struct {
	port   string
	router *gin.Engine

	manager *gateway.Manager
	logger  *zap.Logger

	otelProviders *telemetry.Providers
}

// NewServer initializes the Gin server for the gateway.
func NewServer(opts *ServerOptions) (*Server, error) {
	if opts.Manager == nil {
		return nil, fmt.Errorf("server requires a backend manager")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		port:          opts.Port,
		manager:       opts.Manager,
		logger:        logger,
		otelProviders: opts.OtelProviders,
	}
	s.router = s.setupRouter()
	return s, nil
}

// Start runs the Gin server (blocking call).
func (s *Server) Start() error {
	if err := s.router.Run(":" + s.port); err != nil {
		return fmt.Errorf("failed to run the server: %w", err)
	}
	return nil
}

func (s *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	if s.otelProviders.IsEnabled() {
		r.Use(otelgin.Middleware(s.otelProviders.ServiceName()))
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// liveness only, never probes backends
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/.well-known/mcp.json", s.discoveryHandler())

	// MCP protocol surfaces
	r.POST("/mcp", s.mcpHandler())
	r.POST("/mcp/:prefix", s.mountHandler())

	// management API
	apiV0 := r.Group(V0ApiPathPrefix)
	{
		apiV0.GET("/backends", s.listBackendsHandler())
		apiV0.POST("/backends", s.createBackendHandler())
		apiV0.GET("/backends/:name", s.getBackendHandler())
		apiV0.PUT("/backends/:name", s.updateBackendHandler())
		apiV0.DELETE("/backends/:name", s.deleteBackendHandler())
		apiV0.POST("/backends/:name/refresh", s.refreshBackendHandler())
		apiV0.POST("/backends/:name/enable", s.enableBackendHandler())
		apiV0.POST("/backends/:name/disable", s.disableBackendHandler())

		apiV0.GET("/tools", s.listToolsHandler())
		apiV0.GET("/calls", s.listCallsHandler())
		apiV0.GET("/stats", s.callStatsHandler())
	}

	return r
}

// respondError maps a gateway error to the management API's envelope.
func respondError(c *gin.Context, err error) {
	kind := gateway.KindOf(err)
	c.JSON(statusForKind(kind), types.ErrorResponse{
		Error:  string(kind),
		Detail: err.Error(),
	})
}

func statusForKind(kind gateway.ErrorKind) int {
	switch kind {
	case gateway.KindValidation:
		return http.StatusBadRequest
	case gateway.KindNotFound:
		return http.StatusNotFound
	case gateway.KindConflict:
		return http.StatusConflict
	case gateway.KindTimeout:
		return http.StatusGatewayTimeout
	case gateway.KindBackendError, gateway.KindTransportError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// discoveryHandler serves the MCP discovery document: the aggregated endpoint
// plus one mount per enabled, mount-enabled backend.
func (s *Server) discoveryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		backends, err := s.manager.List()
		if err != nil {
			respondError(c, err)
			return
		}

		mounts := make(map[string]gin.H)
		for i := range backends {
			b := &backends[i]
			if b.Enabled && b.MountEnabled {
				mounts[b.EffectivePrefix()] = gin.H{
					"url":         "/mcp/" + b.EffectivePrefix(),
					"description": "Direct access to " + b.Name,
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"name":        serverName,
			"version":     version.GetVersion(),
			"description": "MCP protocol gateway - aggregates tools from multiple MCP servers",
			"endpoints": gin.H{
				"aggregated": gin.H{
					"url":         "/mcp",
					"description": "All tools from all backends with prefixed names",
				},
				"mounts": mounts,
			},
		})
	}
}

// backendResponse builds the API representation of a backend, including its
// derived runtime connection state and persisted tool count.
func (s *Server) backendResponse(b *model.Backend) (*types.Backend, error) {
	toolCount, err := s.manager.ToolCount(b.ID)
	if err != nil {
		return nil, err
	}
	return &types.Backend{
		Name:            b.Name,
		URL:             b.URL,
		Enabled:         b.Enabled,
		Timeout:         b.TimeoutSeconds,
		Prefix:          b.Prefix,
		MountEnabled:    b.MountEnabled,
		EffectivePrefix: b.EffectivePrefix(),
		ConnectionState: string(s.manager.ConnState(b.Name)),
		ToolCount:       int(toolCount),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}, nil
}
