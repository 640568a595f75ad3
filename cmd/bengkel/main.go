package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bengkel/internal/clock"
	"github.com/smallbiznis/bengkel/internal/config"
	"github.com/smallbiznis/bengkel/internal/mechanic"
	"github.com/smallbiznis/bengkel/internal/migration"
	"github.com/smallbiznis/bengkel/internal/performance"
	"github.com/smallbiznis/bengkel/internal/scheduler"
	"github.com/smallbiznis/bengkel/internal/server"
	"github.com/smallbiznis/bengkel/internal/workorder"
	"github.com/smallbiznis/bengkel/pkg/db"
	"github.com/smallbiznis/bengkel/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		mechanic.Module,
		workorder.Module,
		performance.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
