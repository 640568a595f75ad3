package performance

import (
	"github.com/smallbiznis/bengkel/internal/performance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("performance.service",
	fx.Provide(service.NewReconcileConfigSource),
	fx.Provide(service.NewService),
)
