package service

import (
	"strings"

	"github.com/samber/lo"
	"github.com/smallbiznis/garageflow/internal/config"
	"github.com/smallbiznis/garageflow/internal/inventory/domain"
)

// consolidateRequirements sums the configured stock needs of the given
// services, merging items that several services share. Order follows the
// first service that mentions each SKU.
func consolidateRequirements(cfg config.WorkshopConfig, serviceIDs []string) []domain.Requirement {
	byService := lo.KeyBy(cfg.ServiceRequirements, func(req config.ServiceRequirement) string {
		return strings.TrimSpace(req.ServiceID)
	})

	items := lo.FlatMap(serviceIDs, func(serviceID string, _ int) []config.RequirementItem {
		return byService[strings.TrimSpace(serviceID)].Items
	})

	order := lo.Uniq(lo.Map(items, func(item config.RequirementItem, _ int) string {
		return strings.TrimSpace(item.SKU)
	}))
	grouped := lo.GroupBy(items, func(item config.RequirementItem) string {
		return strings.TrimSpace(item.SKU)
	})

	return lo.Map(order, func(sku string, _ int) domain.Requirement {
		group := grouped[sku]
		return domain.Requirement{
			SKU: sku,
			Quantity: lo.SumBy(group, func(item config.RequirementItem) int64 {
				return item.Quantity
			}),
			Unit: group[0].Unit,
		}
	})
}

// serviceRequirements returns the unconsolidated items for one service.
func serviceRequirements(cfg config.WorkshopConfig, serviceID string) []config.RequirementItem {
	req, ok := lo.Find(cfg.ServiceRequirements, func(req config.ServiceRequirement) bool {
		return strings.TrimSpace(req.ServiceID) == strings.TrimSpace(serviceID)
	})
	if !ok {
		return nil
	}
	return req.Items
}

// shortages compares requirements with the stock on hand. Unknown or
// deactivated items count as zero available.
func shortages(requirements []domain.Requirement, items map[string]*domain.Item) []domain.Shortage {
	return lo.FilterMap(requirements, func(req domain.Requirement, _ int) (domain.Shortage, bool) {
		shortage := domain.Shortage{SKU: req.SKU, Required: req.Quantity}
		if item, ok := items[req.SKU]; ok {
			id := item.ID
			shortage.ItemID = &id
			shortage.Name = item.Name
			if item.Active {
				shortage.Available = item.Quantity
			}
		}
		return shortage, shortage.Available < shortage.Required
	})
}
