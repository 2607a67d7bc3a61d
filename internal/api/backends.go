package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forgearmory/armory/pkg/types"
)

func (s *Server) listBackendsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := s.manager.List()
		if err != nil {
			respondError(c, err)
			return
		}

		backends := make([]*types.Backend, len(records))
		for i := range records {
			resp, err := s.backendResponse(&records[i])
			if err != nil {
				respondError(c, err)
				return
			}
			backends[i] = resp
		}
		c.JSON(http.StatusOK, backends)
	}
}

func (s *Server) createBackendHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input types.CreateBackendInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Error:  "validation_error",
				Detail: err.Error(),
			})
			return
		}

		b, err := s.manager.Add(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}

		resp, err := s.backendResponse(b)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, resp)
	}
}

func (s *Server) getBackendHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := s.manager.Get(c.Param("name"))
		if err != nil {
			respondError(c, err)
			return
		}

		resp, err := s.backendResponse(b)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) updateBackendHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input types.UpdateBackendInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Error:  "validation_error",
				Detail: err.Error(),
			})
			return
		}

		b, err := s.manager.Update(c.Request.Context(), c.Param("name"), &input)
		if err != nil {
			respondError(c, err)
			return
		}

		resp, err := s.backendResponse(b)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) deleteBackendHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.manager.Remove(c.Param("name")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) refreshBackendHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")

		tools, err := s.manager.Refresh(c.Request.Context(), name)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, types.RefreshResult{
			BackendName: name,
			ToolCount:   len(tools),
			Tools:       tools,
		})
	}
}

func (s *Server) enableBackendHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := s.manager.Enable(c.Request.Context(), c.Param("name"))
		if err != nil {
			respondError(c, err)
			return
		}

		resp, err := s.backendResponse(b)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) disableBackendHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := s.manager.Disable(c.Param("name"))
		if err != nil {
			respondError(c, err)
			return
		}

		resp, err := s.backendResponse(b)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) listToolsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tools, err := s.manager.ListToolRecords(c.Query("backend"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, tools)
	}
}
