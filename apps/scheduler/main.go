package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/garageflow/internal/audit"
	"github.com/smallbiznis/garageflow/internal/clock"
	"github.com/smallbiznis/garageflow/internal/config"
	"github.com/smallbiznis/garageflow/internal/inventory"
	"github.com/smallbiznis/garageflow/internal/invoice"
	"github.com/smallbiznis/garageflow/internal/observability"
	"github.com/smallbiznis/garageflow/internal/ratelimit"
	"github.com/smallbiznis/garageflow/internal/scheduler"
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

		// Domain services required by the sweeps
		audit.Module,
		inventory.Module,
		invoice.Module,
		ratelimit.Module,

		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(3)
	if err != nil {
		panic(err)
	}
	return node
}
