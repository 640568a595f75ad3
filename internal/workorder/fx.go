package workorder

import (
	"github.com/smallbiznis/bengkel/internal/workorder/service"
	"go.uber.org/fx"
)

var Module = fx.Module("workorder.service",
	fx.Provide(service.NewService),
	fx.Provide(service.NewLedger),
)
