package mechanic

import (
	"github.com/smallbiznis/bengkel/internal/mechanic/service"
	"go.uber.org/fx"
)

var Module = fx.Module("mechanic.service",
	fx.Provide(service.NewService),
)
