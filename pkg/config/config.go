package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"kube-cost-observer/pkg/pricing"
)

// Config is the observer's startup configuration, loaded from a YAML
// file with flag/env overrides applied by the entry point.
type Config struct {
	// Cadence is the collection period: a Go duration ("1m") or a
	// five-field cron expression.
	Cadence string `yaml:"cadence" validate:"required"`

	// Namespace limits pod/workload/service tracking; "" means all.
	Namespace string `yaml:"namespace"`

	// DataDir is the partition directory for the file repository.
	DataDir string `yaml:"dataDir" validate:"required"`

	// MetricsAddr is the listen address for the Prometheus endpoint;
	// "" disables it.
	MetricsAddr string `yaml:"metricsAddr"`

	// ResyncQueueSize bounds the on-demand resync queue.
	ResyncQueueSize int `yaml:"resyncQueueSize" validate:"gte=1,lte=64"`

	// InformerResync is the shared-informer resync period, as a Go
	// duration string.
	InformerResync string `yaml:"informerResync"`

	// Debug selects the one-shot diagnostic path instead of the
	// scheduler loop.
	Debug bool `yaml:"debug"`

	// LogLevel and LogDevelopment configure the application logger.
	LogLevel       string `yaml:"logLevel"`
	LogDevelopment bool   `yaml:"logDevelopment"`

	// Pricing holds the per-scope price periods. The "default" scope is
	// the fallback for keys without their own entry.
	Pricing map[string][]PricePeriod `yaml:"pricing" validate:"required,min=1,dive,min=1"`
}

// PricePeriod is the YAML shape of one pricing period.
type PricePeriod struct {
	Start           time.Time  `yaml:"start" validate:"required"`
	End             *time.Time `yaml:"end"`
	CPUPerCoreHour  float64    `yaml:"cpuPerCoreHour" validate:"gte=0"`
	MemoryPerGBHour float64    `yaml:"memoryPerGBHour" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Cadence:         "1m",
		DataDir:         "data",
		MetricsAddr:     ":9090",
		ResyncQueueSize: 4,
		InformerResync:  "10m",
		LogLevel:        "info",
		Pricing: map[string][]PricePeriod{
			pricing.DefaultScope: {{
				Start: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
				// Approximate on-demand cloud rates.
				CPUPerCoreHour:  0.0416,
				MemoryPerGBHour: 0.0052,
			}},
		},
	}
}

// Load reads path (if non-empty) over the defaults and validates the
// result. Scalar fields the file omits keep their defaults; a pricing
// section replaces the built-in table wholesale rather than merging
// into it, so a file can redefine the "default" scope.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		cfg.Pricing = nil
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		if cfg.Pricing == nil {
			cfg.Pricing = Default().Pricing
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.InformerResyncPeriod(); err != nil {
		return err
	}
	return nil
}

// InformerResyncPeriod parses the informer resync duration.
func (c *Config) InformerResyncPeriod() (time.Duration, error) {
	if c.InformerResync == "" {
		return 10 * time.Minute, nil
	}
	d, err := time.ParseDuration(c.InformerResync)
	if err != nil {
		return 0, fmt.Errorf("invalid informerResync %q: %v", c.InformerResync, err)
	}
	return d, nil
}

// BuildResolver loads the configured price periods into a resolver.
func (c *Config) BuildResolver() (*pricing.Resolver, error) {
	resolver := pricing.NewResolver()
	for scope, periods := range c.Pricing {
		for _, p := range periods {
			err := resolver.Upsert(scope, pricing.Period{
				Start: p.Start,
				End:   p.End,
				Price: pricing.Price{
					CPUPerCoreHour:  p.CPUPerCoreHour,
					MemoryPerGBHour: p.MemoryPerGBHour,
				},
			})
			if err != nil {
				return nil, fmt.Errorf("pricing scope %q: %w", scope, err)
			}
		}
	}
	return resolver, nil
}
