package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/garageflow/internal/clock"
	"github.com/smallbiznis/garageflow/internal/config"
	"github.com/smallbiznis/garageflow/internal/migration"
	"github.com/smallbiznis/garageflow/internal/observability"
	"github.com/smallbiznis/garageflow/internal/scheduler"
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
		server.Module,
		scheduler.Module,
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
