package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// LoggingConfig selects the global log level.
type LoggingConfig struct {
	Level string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	c.Level = strings.ToLower(c.Level)
}

// Validate checks the level name.
func (c LoggingConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("unknown level %s", c.Level)
	}
	return nil
}

// ExportConfig selects where final price curves and round summaries go.
// An empty Dir disables export.
type ExportConfig struct {
	Dir    string `json:"dir"`
	Format string `json:"format"`
}

// SetDefaults applies sane defaults.
func (c *ExportConfig) SetDefaults() {
	if c.Format == "" {
		c.Format = "csv"
	}
	c.Format = strings.ToLower(c.Format)
}

// Validate checks the format name.
func (c ExportConfig) Validate() error {
	switch c.Format {
	case "csv", "json", "yaml", "html":
		return nil
	}
	return fmt.Errorf("unknown format %s", c.Format)
}

// PrometheusConfig enables the scrape endpoint when Listen is set.
type PrometheusConfig struct {
	Listen string `json:"listen"`
}
