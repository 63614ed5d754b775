package audit

import (
	"github.com/smallbiznis/garageflow/internal/audit/repository"
	"github.com/smallbiznis/garageflow/internal/audit/service"
	"go.uber.org/fx"
)

// Module wires the append-only audit trail shared by every domain service.
var Module = fx.Module("audit",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
