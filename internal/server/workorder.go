package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	performancedomain "github.com/smallbiznis/bengkel/internal/performance/domain"
	workorderdomain "github.com/smallbiznis/bengkel/internal/workorder/domain"
	"go.uber.org/zap"
)

func (s *Server) createWorkOrder(c *gin.Context) {
	var req workorderdomain.CreateWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(ErrInvalidRequest)
		return
	}

	order, err := s.workOrderSvc.Create(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// completeWorkOrder marks the order done, then refreshes the mechanic's
// aggregate. Recomputation failure does not fail the completion; the
// scheduled reconciliation heals it.
func (s *Server) completeWorkOrder(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	order, err := s.workOrderSvc.Complete(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	ctx := c.Request.Context()
	if _, err := s.performanceSvc.Recalculate(ctx, order.MechanicID); err != nil {
		if errors.Is(err, performancedomain.ErrAggregateNotFound) {
			if _, provErr := s.performanceSvc.ProvisionAggregate(ctx, order.MechanicID); provErr == nil {
				_, err = s.performanceSvc.Recalculate(ctx, order.MechanicID)
			}
		}
		if err != nil {
			s.log.Warn("post-completion recalculation failed",
				zap.String("work_order_id", order.ID.String()),
				zap.String("mechanic_id", order.MechanicID.String()),
				zap.Error(err),
			)
		}
	}

	c.JSON(http.StatusOK, order)
}

func (s *Server) listWorkOrders(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	orders, err := s.workOrderSvc.ListByMechanic(c.Request.Context(), id, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"work_orders": orders})
}
