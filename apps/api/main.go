package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/garageflow/internal/clock"
	"github.com/smallbiznis/garageflow/internal/config"
	"github.com/smallbiznis/garageflow/internal/migration"
	"github.com/smallbiznis/garageflow/internal/observability"
	"github.com/smallbiznis/garageflow/internal/server"
	"github.com/smallbiznis/garageflow/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP only, sweeps run in apps/scheduler
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
