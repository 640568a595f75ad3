package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	performancedomain "github.com/smallbiznis/bengkel/internal/performance/domain"
)

func (s *Server) getPerformance(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	aggregate, err := s.performanceSvc.GetAggregate(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, aggregate)
}

func (s *Server) listArchives(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	archives, err := s.performanceSvc.ListArchives(c.Request.Context(), performancedomain.ListArchivesRequest{
		MechanicID: id,
		Limit:      limit,
		Reason:     c.Query("reason"),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archives": archives})
}

func (s *Server) provisionPerformance(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	aggregate, err := s.performanceSvc.ProvisionAggregate(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, aggregate)
}

func (s *Server) recalculatePerformance(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	aggregate, err := s.performanceSvc.Recalculate(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, aggregate)
}

type resetRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) resetPerformance(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req resetRequest
	_ = c.ShouldBindJSON(&req)

	archive, err := s.performanceSvc.Reset(c.Request.Context(), id, req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archive": archive, "archived": archive != nil})
}

func (s *Server) countLegacy(c *gin.Context) {
	count, err := s.performanceSvc.CountLegacyRemaining(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"legacy_remaining": count})
}

// reconcileAll and migrateLegacy surface summary counts only; detailed
// per-mechanic errors stay in logs.
func (s *Server) reconcileAll(c *gin.Context) {
	report, err := s.performanceSvc.ReconcileAll(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"updated":   report.Updated,
		"unchanged": report.Unchanged,
		"errors":    report.ErrorCount,
	})
}

func (s *Server) migrateLegacy(c *gin.Context) {
	report, err := s.performanceSvc.MigrateLegacyRecords(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"migrated": report.Migrated,
		"created":  report.Created,
		"errors":   report.ErrorCount,
	})
}
