package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/smallbiznis/garageflow/internal/auth"
	"github.com/smallbiznis/garageflow/internal/config"
	garagedomain "github.com/smallbiznis/garageflow/internal/garage/domain"
	inventorydomain "github.com/smallbiznis/garageflow/internal/inventory/domain"
	"gorm.io/gorm"
)

const (
	defaultGarageName = "Main Workshop"
	defaultGarageSlug = "main"
	defaultGarageBays = 4

	catalogueStartingQuantity = 20
	seedActor                 = "system:seed"
)

// EnsureMainGarage seeds the default garage for startup bootstrap. A non-zero
// id pins the garage identifier so issued tokens stay valid across resets.
func EnsureMainGarage(db *gorm.DB, id int64) (garagedomain.Garage, error) {
	if db == nil {
		return garagedomain.Garage{}, errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return garagedomain.Garage{}, err
	}

	ctx := context.Background()
	var garage garagedomain.Garage
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		garage, err = ensureMainGarageTx(ctx, tx, node, snowflake.ID(id))
		return err
	})
	return garage, err
}

func ensureMainGarageTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, id snowflake.ID) (garagedomain.Garage, error) {
	var garage garagedomain.Garage
	query := tx.WithContext(ctx)
	if id != 0 {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("slug = ?", defaultGarageSlug)
	}
	err := query.First(&garage).Error
	if err == nil {
		return garage, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return garage, err
	}

	if id == 0 {
		id = node.Generate()
	}
	now := time.Now().UTC()
	garage = garagedomain.Garage{
		ID:        id,
		Name:      defaultGarageName,
		Slug:      defaultGarageSlug,
		Bays:      defaultGarageBays,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&garage).Error; err != nil {
		return garage, err
	}
	return garage, nil
}

// EnsureCatalogueStock creates one inventory item for every SKU the workshop
// catalogue consumes, each opened with a SET movement. Existing SKUs are left
// untouched. It returns the number of items created.
func EnsureCatalogueStock(db *gorm.DB, garageID snowflake.ID, workshop config.WorkshopConfig) (int, error) {
	if db == nil {
		return 0, errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return 0, err
	}
	faker := gofakeit.New(uint64(garageID))

	items := lo.UniqBy(
		lo.FlatMap(workshop.ServiceRequirements, func(req config.ServiceRequirement, _ int) []config.RequirementItem {
			return req.Items
		}),
		func(item config.RequirementItem) string { return item.SKU },
	)

	ctx := context.Background()
	created := 0
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, req := range items {
			var count int64
			if err := tx.Model(&inventorydomain.Item{}).
				Where("garage_id = ? AND sku = ?", garageID, req.SKU).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}

			now := time.Now().UTC()
			item := inventorydomain.Item{
				ID:           node.Generate(),
				GarageID:     garageID,
				Name:         displayName(req.SKU),
				SKU:          req.SKU,
				Category:     category(req.SKU),
				Quantity:     catalogueStartingQuantity,
				ReorderLevel: workshop.DefaultReorderLevel,
				Unit:         req.Unit,
				Supplier:     faker.Company(),
				Status:       inventorydomain.DeriveStatus(catalogueStartingQuantity, workshop.DefaultReorderLevel),
				Active:       true,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			movement := inventorydomain.Movement{
				ID:                node.Generate(),
				GarageID:          garageID,
				ItemID:            item.ID,
				Type:              inventorydomain.MovementSet,
				Quantity:          catalogueStartingQuantity,
				ResultingQuantity: catalogueStartingQuantity,
				ReferenceType:     inventorydomain.ReferenceSystem,
				Reason:            "initial stock",
				PerformedBy:       seedActor,
				CreatedAt:         now,
			}
			if err := tx.Create(&movement).Error; err != nil {
				return err
			}
			created++
		}
		return nil
	})
	return created, err
}

// DevToken issues an owner token for the seeded garage.
func DevToken(tokens *auth.TokenService, garageID snowflake.ID, ttl time.Duration) (string, error) {
	if tokens == nil {
		return "", auth.ErrNotConfigured
	}
	return tokens.Issue(auth.Principal{
		Subject:  "dev-owner",
		GarageID: garageID,
		Role:     auth.RoleOwner,
	}, ttl)
}

func displayName(sku string) string {
	words := strings.Fields(strings.ReplaceAll(sku, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func category(sku string) string {
	head, _, _ := strings.Cut(sku, "-")
	return head
}
