package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forgearmory/armory/internal/gateway"
	"github.com/forgearmory/armory/pkg/types"
)

// callFilterFromQuery parses the shared filter query parameters for the call
// record endpoints: backend, tool (plain or prefixed form), success,
// since (RFC 3339), limit, offset.
func callFilterFromQuery(c *gin.Context) (*gateway.CallFilter, error) {
	f := &gateway.CallFilter{
		BackendName: c.Query("backend"),
		ToolName:    c.Query("tool"),
	}

	if v := c.Query("success"); v != "" {
		success, err := strconv.ParseBool(v)
		if err != nil {
			return nil, err
		}
		f.Success = &success
	}
	if v := c.Query("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, err
		}
		f.Since = since
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		f.Limit = limit
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		f.Offset = offset
	}
	return f, nil
}

func (s *Server) listCallsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := callFilterFromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Error:  "validation_error",
				Detail: err.Error(),
			})
			return
		}

		calls, err := s.manager.ListToolCalls(f)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, calls)
	}
}

func (s *Server) callStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := callFilterFromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Error:  "validation_error",
				Detail: err.Error(),
			})
			return
		}

		stats, err := s.manager.CallStats(f)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
