package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultWorkshopConfigIsValid(t *testing.T) {
	assert.NoError(t, validateWorkshopConfig(DefaultWorkshopConfig()))
}

func TestValidateWorkshopConfigRejectsBadEntries(t *testing.T) {
	cases := map[string]WorkshopConfig{
		"missing service id": {ServiceRequirements: []ServiceRequirement{{ServiceID: " "}}},
		"duplicate service": {ServiceRequirements: []ServiceRequirement{
			{ServiceID: "mot"}, {ServiceID: "mot"},
		}},
		"missing sku": {ServiceRequirements: []ServiceRequirement{
			{ServiceID: "mot", Items: []RequirementItem{{Quantity: 1}}},
		}},
		"zero quantity": {ServiceRequirements: []ServiceRequirement{
			{ServiceID: "mot", Items: []RequirementItem{{SKU: "bulb", Quantity: 0}}},
		}},
		"negative reorder level": {DefaultReorderLevel: -1},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, validateWorkshopConfig(cfg))
		})
	}
}

func TestStaticHolderReturnsStoredConfig(t *testing.T) {
	cfg := WorkshopConfig{DefaultReorderLevel: 3}
	holder := NewStaticWorkshopConfigHolder(cfg)
	assert.Equal(t, int64(3), holder.Get().DefaultReorderLevel)
}
