package vhc

import (
	"github.com/smallbiznis/garageflow/internal/vhc/repository"
	"github.com/smallbiznis/garageflow/internal/vhc/service"
	"go.uber.org/fx"
)

var Module = fx.Module("vhc.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
