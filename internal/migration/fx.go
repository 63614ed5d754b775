package migration

import (
	"time"

	"github.com/smallbiznis/garageflow/internal/auth"
	"github.com/smallbiznis/garageflow/internal/config"
	"github.com/smallbiznis/garageflow/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const devTokenTTL = 12 * time.Hour

type Params struct {
	fx.In

	DB       *gorm.DB
	Config   config.Config
	Workshop *config.WorkshopConfigHolder
	Log      *zap.Logger
	Tokens   *auth.TokenService `optional:"true"`
}

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

// Run migrates the schema and seeds the default garage. Outside production it
// also stocks the catalogue SKUs and logs a short-lived owner token.
func Run(p Params) error {
	if err := Migrate(p.DB); err != nil {
		return err
	}

	garage, err := seed.EnsureMainGarage(p.DB, p.Config.DefaultGarageID)
	if err != nil {
		return err
	}
	if p.Config.IsProduction() {
		return nil
	}

	log := p.Log.Named("migration")
	created, err := seed.EnsureCatalogueStock(p.DB, garage.ID, p.Workshop.Get())
	if err != nil {
		return err
	}
	fields := []zap.Field{
		zap.String("garage_id", garage.ID.String()),
		zap.Int("items_created", created),
	}
	if token, err := seed.DevToken(p.Tokens, garage.ID, devTokenTTL); err == nil {
		fields = append(fields, zap.String("dev_token", token))
	}
	log.Info("seeded development data", fields...)
	return nil
}
