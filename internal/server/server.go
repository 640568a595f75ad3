// Package server exposes the read API and admin triggers over HTTP. It is a
// consumer of the performance core, not part of it.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/bengkel/internal/config"
	mechanicdomain "github.com/smallbiznis/bengkel/internal/mechanic/domain"
	performancedomain "github.com/smallbiznis/bengkel/internal/performance/domain"
	workorderdomain "github.com/smallbiznis/bengkel/internal/workorder/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(Start),
)

type Params struct {
	fx.In

	Config         config.Config
	Log            *zap.Logger
	MechanicSvc    mechanicdomain.Service
	WorkOrderSvc   workorderdomain.Service
	PerformanceSvc performancedomain.Service
}

type Server struct {
	cfg            config.Config
	log            *zap.Logger
	engine         *gin.Engine
	mechanicSvc    mechanicdomain.Service
	workOrderSvc   workorderdomain.Service
	performanceSvc performancedomain.Service
}

func New(p Params) *Server {
	s := &Server{
		cfg:            p.Config,
		log:            p.Log.Named("server"),
		mechanicSvc:    p.MechanicSvc,
		workOrderSvc:   p.WorkOrderSvc,
		performanceSvc: p.PerformanceSvc,
	}

	if p.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(ErrorHandlingMiddleware())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")
	{
		api.POST("/mechanics", s.createMechanic)
		api.GET("/mechanics", s.listMechanics)
		api.GET("/mechanics/:id", s.getMechanic)
		api.DELETE("/mechanics/:id", s.deactivateMechanic)

		api.POST("/work-orders", s.createWorkOrder)
		api.POST("/work-orders/:id/complete", s.completeWorkOrder)
		api.GET("/mechanics/:id/work-orders", s.listWorkOrders)

		api.GET("/mechanics/:id/performance", s.getPerformance)
		api.GET("/mechanics/:id/performance/archives", s.listArchives)
		api.POST("/mechanics/:id/performance/provision", s.provisionPerformance)
		api.POST("/mechanics/:id/performance/recalculate", s.recalculatePerformance)
		api.POST("/mechanics/:id/performance/reset", s.resetPerformance)

		api.GET("/performance/legacy-count", s.countLegacy)
		api.POST("/performance/reconcile", s.reconcileAll)
		api.POST("/performance/migrate-legacy", s.migrateLegacy)
	}

	s.engine = engine
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func Start(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				s.log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
