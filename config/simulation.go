package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/exchange"
)

// DefaultRounds is the number of coupling rounds after the isolated one.
const DefaultRounds = 5

// DefaultStart anchors hour 0 of exported series.
var DefaultStart = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)

// SimulationConfig drives the convergence loop.
type SimulationConfig struct {
	// Rounds of exchange after the isolated calculation. Zero runs only the
	// isolated round.
	Rounds      *int      `json:"rounds"`
	MaxPasses   int       `json:"max_passes"`
	AutoRebuild bool      `json:"auto_rebuild"`
	Start       time.Time `json:"start"`
	RunID       string    `json:"run_id"`
}

// SetDefaults applies sane defaults.
func (c *SimulationConfig) SetDefaults() {
	if c.Rounds == nil {
		r := DefaultRounds
		c.Rounds = &r
	}
	if c.MaxPasses == 0 {
		c.MaxPasses = exchange.DefaultMaxPasses
	}
	if c.Start.IsZero() {
		c.Start = DefaultStart
	}
}

// RoundCount returns the configured rounds, or DefaultRounds when unset.
func (c SimulationConfig) RoundCount() int {
	if c.Rounds == nil {
		return DefaultRounds
	}
	return *c.Rounds
}

// Validate checks bounds.
func (c SimulationConfig) Validate() error {
	if c.RoundCount() < 0 {
		return fmt.Errorf("rounds %d cannot be negative", c.RoundCount())
	}
	if c.MaxPasses < 1 {
		return errors.New("max_passes must be at least 1")
	}
	return nil
}

// ZoneConfig declares a zone backed by a participant folder, a fixed price
// curve file or prices fetched from the wholesale market API.
type ZoneConfig struct {
	Name           string           `json:"name"`
	Source         string           `json:"source"`
	ReferenceCurve string           `json:"reference_curve"`
	Wholesale      *WholesaleConfig `json:"wholesale"`
}

// Reference reports whether the zone replays a fixed price curve.
func (c ZoneConfig) Reference() bool { return c.ReferenceCurve != "" || c.Wholesale != nil }

// Validate checks mandatory fields.
func (c ZoneConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	set := 0
	for _, ok := range []bool{c.Source != "", c.ReferenceCurve != "", c.Wholesale != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("zone %s needs exactly one of source, reference_curve or wholesale", c.Name)
	}
	if c.Wholesale != nil {
		if err := c.Wholesale.Validate(); err != nil {
			return fmt.Errorf("zone %s: wholesale: %w", c.Name, err)
		}
	}
	return nil
}

// WholesaleConfig fetches a reference curve of observed day-ahead prices.
// End defaults to one simulated year after Start.
type WholesaleConfig struct {
	BaseURL      string        `json:"base_url"`
	AuthURL      string        `json:"auth_url"`
	ClientID     string        `json:"client_id"`
	ClientSecret string        `json:"client_secret"`
	Start        time.Time     `json:"start"`
	End          time.Time     `json:"end"`
	Window       time.Duration `json:"window"`
}

// Period returns the requested interval.
func (c WholesaleConfig) Period() (time.Time, time.Time) {
	if c.End.IsZero() {
		return c.Start, c.Start.Add(curve.Hours * time.Hour)
	}
	return c.Start, c.End
}

// Validate checks mandatory fields.
func (c WholesaleConfig) Validate() error {
	if c.AuthURL == "" || c.ClientID == "" || c.ClientSecret == "" {
		return errors.New("auth_url, client_id and client_secret are required")
	}
	if c.Start.IsZero() {
		return errors.New("start is required")
	}
	if start, end := c.Period(); !end.After(start) {
		return errors.New("end must be after start")
	}
	return nil
}

// InterconnectorConfig declares a coupled link between two configured zones.
// Availabilities accept a fraction or a percentage; curve files override the
// scalar of the same direction.
type InterconnectorConfig struct {
	Key                     string   `json:"key"`
	From                    string   `json:"from"`
	To                      string   `json:"to"`
	CapacityMW              float64  `json:"capacity_mw"`
	Scaling                 *float64 `json:"scaling"`
	ImportAvailability      *float64 `json:"import_availability"`
	ExportAvailability      *float64 `json:"export_availability"`
	ImportAvailabilityCurve string   `json:"import_availability_curve"`
	ExportAvailabilityCurve string   `json:"export_availability_curve"`
}

// SetDefaults applies sane defaults.
func (c *InterconnectorConfig) SetDefaults() {
	if c.Key == "" && c.From != "" && c.To != "" {
		c.Key = c.From + "_" + c.To
	}
	if c.Scaling == nil {
		s := 1.0
		c.Scaling = &s
	}
}

// Validate checks mandatory fields.
func (c InterconnectorConfig) Validate() error {
	if c.From == "" || c.To == "" {
		return errors.New("from and to are required")
	}
	if c.From == c.To {
		return fmt.Errorf("interconnector %s cannot connect %s to itself", c.Key, c.From)
	}
	if c.CapacityMW < 0 {
		return fmt.Errorf("interconnector %s: capacity_mw cannot be negative", c.Key)
	}
	if c.Scaling != nil && *c.Scaling < 0 {
		return fmt.Errorf("interconnector %s: scaling cannot be negative", c.Key)
	}
	for name, v := range map[string]*float64{"import_availability": c.ImportAvailability, "export_availability": c.ExportAvailability} {
		if v != nil && (*v < 0 || *v > 100) {
			return fmt.Errorf("interconnector %s: %s must lie in [0,100]", c.Key, name)
		}
	}
	return nil
}
