package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// WorkshopConfig holds the static workshop catalogue that is safe to reload
// at runtime.
type WorkshopConfig struct {
	DefaultReorderLevel int64                `mapstructure:"defaultReorderLevel"`
	ServiceRequirements []ServiceRequirement `mapstructure:"serviceRequirements"`
}

// ServiceRequirement lists the stock a catalogue service consumes.
type ServiceRequirement struct {
	ServiceID string            `mapstructure:"serviceId"`
	Items     []RequirementItem `mapstructure:"items"`
}

// RequirementItem references an inventory item by SKU.
type RequirementItem struct {
	SKU      string `mapstructure:"sku"`
	Quantity int64  `mapstructure:"quantity"`
	Unit     string `mapstructure:"unit"`
}

func DefaultWorkshopConfig() WorkshopConfig {
	return WorkshopConfig{
		DefaultReorderLevel: 5,
		ServiceRequirements: []ServiceRequirement{
			{ServiceID: "oil-change", Items: []RequirementItem{
				{SKU: "engine-oil-5w30", Quantity: 5, Unit: "litre"},
				{SKU: "oil-filter", Quantity: 1, Unit: "pcs"},
			}},
			{ServiceID: "full-service", Items: []RequirementItem{
				{SKU: "engine-oil-5w30", Quantity: 5, Unit: "litre"},
				{SKU: "oil-filter", Quantity: 1, Unit: "pcs"},
				{SKU: "air-filter", Quantity: 1, Unit: "pcs"},
				{SKU: "cabin-filter", Quantity: 1, Unit: "pcs"},
			}},
			{ServiceID: "brake-pads-front", Items: []RequirementItem{
				{SKU: "brake-pad-set-front", Quantity: 1, Unit: "set"},
				{SKU: "brake-cleaner", Quantity: 1, Unit: "can"},
			}},
			{ServiceID: "brake-pads-rear", Items: []RequirementItem{
				{SKU: "brake-pad-set-rear", Quantity: 1, Unit: "set"},
				{SKU: "brake-cleaner", Quantity: 1, Unit: "can"},
			}},
			{ServiceID: "wiper-replacement", Items: []RequirementItem{
				{SKU: "wiper-blade", Quantity: 2, Unit: "pcs"},
			}},
		},
	}
}

type WorkshopConfigHolder struct {
	current atomic.Value // holds WorkshopConfig
}

// NewStaticWorkshopConfigHolder returns a holder that never reloads.
func NewStaticWorkshopConfigHolder(cfg WorkshopConfig) *WorkshopConfigHolder {
	holder := &WorkshopConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewWorkshopConfigHolder(log *zap.Logger) (*WorkshopConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("workshop")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/garageflow/config")
	v.AddConfigPath("/etc/garageflow")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GARAGEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
		defaults := DefaultWorkshopConfig()
		v.SetDefault("workshop.defaultReorderLevel", defaults.DefaultReorderLevel)
		v.SetDefault("workshop.serviceRequirements", defaults.ServiceRequirements)
	}

	cfg, err := decodeWorkshopConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticWorkshopConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	log = log.Named("workshop.config")
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeWorkshopConfig(v)
		if err != nil {
			log.Warn("invalid workshop config ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("workshop config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *WorkshopConfigHolder) Get() WorkshopConfig {
	return h.current.Load().(WorkshopConfig)
}

func decodeWorkshopConfig(v *viper.Viper) (WorkshopConfig, error) {
	var cfg WorkshopConfig
	if err := v.UnmarshalKey("workshop", &cfg); err != nil {
		return WorkshopConfig{}, err
	}
	if err := validateWorkshopConfig(cfg); err != nil {
		return WorkshopConfig{}, err
	}
	return cfg, nil
}

func validateWorkshopConfig(cfg WorkshopConfig) error {
	if cfg.DefaultReorderLevel < 0 {
		return errors.New("workshop.defaultReorderLevel cannot be negative")
	}
	seen := make(map[string]struct{}, len(cfg.ServiceRequirements))
	for _, req := range cfg.ServiceRequirements {
		id := strings.TrimSpace(req.ServiceID)
		if id == "" {
			return errors.New("workshop.serviceRequirements: serviceId is required")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("workshop.serviceRequirements: duplicate serviceId %q", id)
		}
		seen[id] = struct{}{}
		for _, item := range req.Items {
			if strings.TrimSpace(item.SKU) == "" {
				return fmt.Errorf("workshop.serviceRequirements[%s]: sku is required", id)
			}
			if item.Quantity <= 0 {
				return fmt.Errorf("workshop.serviceRequirements[%s]: quantity for %s must be positive", id, item.SKU)
			}
		}
	}
	return nil
}
