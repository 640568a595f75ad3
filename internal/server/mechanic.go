package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	mechanicdomain "github.com/smallbiznis/bengkel/internal/mechanic/domain"
)

func parseIDParam(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id == 0 {
		_ = c.Error(ErrInvalidRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) createMechanic(c *gin.Context) {
	var req mechanicdomain.CreateMechanicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(ErrInvalidRequest)
		return
	}

	mechanic, err := s.mechanicSvc.Create(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, mechanic)
}

func (s *Server) listMechanics(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	mechanics, err := s.mechanicSvc.List(c.Request.Context(), activeOnly)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mechanics": mechanics})
}

func (s *Server) getMechanic(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	mechanic, err := s.mechanicSvc.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, mechanic)
}

func (s *Server) deactivateMechanic(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := s.mechanicSvc.Deactivate(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
