package garage

import (
	"github.com/smallbiznis/garageflow/internal/garage/repository"
	"github.com/smallbiznis/garageflow/internal/garage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("garage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
