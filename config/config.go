// Package config loads the experiment description of a simulation run.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/meurit/core/metrics"
)

// EnvPrefix marks environment variables overriding file values.
// MEURIT_SIMULATION__ROUNDS=5 sets simulation.rounds.
const EnvPrefix = "MEURIT_"

type Config struct {
	Simulation      SimulationConfig       `json:"simulation"`
	Zones           []ZoneConfig           `json:"zones"`
	Interconnectors []InterconnectorConfig `json:"interconnectors"`
	Metrics         metrics.Config         `json:"metrics"`
	Prometheus      PrometheusConfig       `json:"prometheus"`
	Export          ExportConfig           `json:"export"`
	Logging         LoggingConfig          `json:"logging"`
	Sentry          SentryConfig           `json:"sentry"`
}

// Load reads a yaml or json experiment file, applies environment overrides,
// fills defaults and validates every section. Relative paths are resolved
// against the directory of the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	cfg.resolve(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Simulation.SetDefaults()
	for i := range c.Interconnectors {
		c.Interconnectors[i].SetDefaults()
	}
	c.Export.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section and the references between them.
func (c Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if len(c.Zones) == 0 {
		return errors.New("zones: at least one zone is required")
	}
	names := make(map[string]bool, len(c.Zones))
	for i, z := range c.Zones {
		if err := z.Validate(); err != nil {
			return fmt.Errorf("zones[%d]: %w", i, err)
		}
		if names[z.Name] {
			return fmt.Errorf("zones[%d]: duplicate zone %s", i, z.Name)
		}
		names[z.Name] = true
	}
	for i, ic := range c.Interconnectors {
		if err := ic.Validate(); err != nil {
			return fmt.Errorf("interconnectors[%d]: %w", i, err)
		}
		for _, end := range []string{ic.From, ic.To} {
			if !names[end] {
				return fmt.Errorf("interconnectors[%d]: unknown zone %s", i, end)
			}
		}
	}
	if err := c.Export.Validate(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Sentry.Validate(); err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	return nil
}

func (c *Config) resolve(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i := range c.Zones {
		c.Zones[i].Source = abs(c.Zones[i].Source)
		c.Zones[i].ReferenceCurve = abs(c.Zones[i].ReferenceCurve)
	}
	for i := range c.Interconnectors {
		c.Interconnectors[i].ImportAvailabilityCurve = abs(c.Interconnectors[i].ImportAvailabilityCurve)
		c.Interconnectors[i].ExportAvailabilityCurve = abs(c.Interconnectors[i].ExportAvailabilityCurve)
	}
}
