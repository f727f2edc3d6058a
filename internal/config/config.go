package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"furtrade/internal/model"
)

// ErrInvalid wraps every configuration validation failure. Configuration
// errors are fatal and abort a run before any fetch happens.
var ErrInvalid = errors.New("config: invalid configuration")

// Reporter pairs the output label with the code the provider is queried with.
type Reporter struct {
	Name string `yaml:"name" validate:"required"`
	Code string `yaml:"code" validate:"required"`
}

// Years is the inclusive year range of a run.
type Years struct {
	From int `yaml:"from" validate:"gte=2020,lte=2024"`
	To   int `yaml:"to" validate:"gte=2020,lte=2024,gtefield=From"`
}

// Config is the full static configuration of one run. It is loaded once,
// normalized and validated before the first request is issued; the core
// packages receive it as a plain value.
type Config struct {
	Products  []model.ProductCode `yaml:"products" validate:"required,min=1,dive,len=6,numeric"`
	Reporters []Reporter          `yaml:"reporters" validate:"required,min=1,dive"`
	Partners  []string            `yaml:"partners" validate:"required,min=1,dive,required"`
	Years     Years               `yaml:"years"`
	Flows     []model.Flow        `yaml:"flows" validate:"required,min=1,dive,oneof=import export"`
	EUMembers []string            `yaml:"eu_members" validate:"required,min=1"`
}

// EU member states used for the synthetic European Union partner and the
// Rest of World exclusion set. Overridable per run via eu_members.
var defaultEUMembers = []string{
	"Austria", "Belgium", "Bulgaria", "Croatia", "Cyprus", "Czech Republic",
	"Denmark", "Estonia", "Finland", "France", "Germany", "Greece", "Hungary",
	"Ireland", "Italy", "Latvia", "Lithuania", "Luxembourg", "Malta",
	"Netherlands", "Poland", "Portugal", "Romania", "Slovak Republic",
	"Slovenia", "Spain", "Sweden",
}

// Load reads, normalizes and validates a run configuration.
// The returned duplicates list names product codes that were dropped by
// deduplication, so callers can warn about them.
func Load(path string) (*Config, []model.ProductCode, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a YAML configuration document.
func Parse(raw []byte) (*Config, []model.ProductCode, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.applyDefaults()
	duplicates := cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, duplicates, nil
}

func (c *Config) applyDefaults() {
	if c.Years.From == 0 && c.Years.To == 0 {
		c.Years = Years{From: 2020, To: 2024}
	}
	if len(c.Flows) == 0 {
		c.Flows = []model.Flow{model.FlowImport, model.FlowExport}
	}
	if len(c.EUMembers) == 0 {
		c.EUMembers = append([]string(nil), defaultEUMembers...)
	}
}

// normalize trims whitespace and deduplicates the product code set in first
// occurrence order. A code listed twice must never count twice.
func (c *Config) normalize() []model.ProductCode {
	seen := make(map[model.ProductCode]struct{}, len(c.Products))
	unique := make([]model.ProductCode, 0, len(c.Products))
	duplicates := make([]model.ProductCode, 0)
	for _, product := range c.Products {
		product = model.ProductCode(strings.TrimSpace(string(product)))
		if _, ok := seen[product]; ok {
			duplicates = append(duplicates, product)
			continue
		}
		seen[product] = struct{}{}
		unique = append(unique, product)
	}
	c.Products = unique

	for i := range c.Reporters {
		c.Reporters[i].Name = strings.TrimSpace(c.Reporters[i].Name)
		c.Reporters[i].Code = strings.ToUpper(strings.TrimSpace(c.Reporters[i].Code))
	}
	for i := range c.Partners {
		c.Partners[i] = strings.TrimSpace(c.Partners[i])
	}
	for i := range c.Flows {
		c.Flows[i] = model.Flow(strings.ToLower(strings.TrimSpace(string(c.Flows[i]))))
	}
	return duplicates
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for _, partner := range c.Partners {
		switch partner {
		case model.PartnerWorld, model.PartnerEU, model.PartnerRestOfWorld:
			return fmt.Errorf("%w: partner %q is reserved", ErrInvalid, partner)
		}
	}
	return nil
}

// YearList expands the configured range into ascending years.
func (c *Config) YearList() []int {
	years := make([]int, 0, c.Years.To-c.Years.From+1)
	for year := c.Years.From; year <= c.Years.To; year++ {
		years = append(years, year)
	}
	return years
}
