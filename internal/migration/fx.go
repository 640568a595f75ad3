package migration

import (
	"github.com/smallbiznis/bengkel/internal/config"
	mechanicdomain "github.com/smallbiznis/bengkel/internal/mechanic/domain"
	performancedomain "github.com/smallbiznis/bengkel/internal/performance/domain"
	"github.com/smallbiznis/bengkel/internal/seed"
	workorderdomain "github.com/smallbiznis/bengkel/internal/workorder/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// Non-postgres deployments (dev sqlite, mysql) take the gorm
			// schema directly.
			if err := conn.AutoMigrate(
				&mechanicdomain.Mechanic{},
				&workorderdomain.WorkOrder{},
				&performancedomain.MechanicPerformance{},
				&performancedomain.PerformanceArchive{},
			); err != nil {
				return err
			}
		}

		if cfg.SeedDemoData {
			return seed.EnsureDemoWorkshop(conn)
		}
		return nil
	}),
)
