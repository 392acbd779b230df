// Package interconnector models capacity-limited links between two zones and
// the virtual participants they contribute to each zone's merit order.
package interconnector

import (
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/meurit/core/curve"
)

// Direction of flow on a link.
type Direction int

const (
	// Forward flows from the From zone to the To zone.
	Forward Direction = iota
	// Backward flows from the To zone to the From zone.
	Backward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// ErrNotTerminal is returned when a zone is not an end of the link.
var ErrNotTerminal = errors.New("zone does not terminate interconnector")

// Interconnector is a link between two zones. Import and export
// availability are seen from the From zone: export bounds Forward flow,
// import bounds Backward flow.
type Interconnector struct {
	Key      string
	From     string
	To       string
	Capacity float64
	Scaling  float64

	importAvailability curve.Curve
	exportAvailability curve.Curve
	exportSet          bool
	enabled            bool
}

// Option configures an Interconnector.
type Option func(*Interconnector) error

// WithKey overrides the default "<from>_<to>" key.
func WithKey(key string) Option {
	return func(ic *Interconnector) error {
		if key == "" {
			return errors.New("interconnector key cannot be empty")
		}
		ic.Key = key
		return nil
	}
}

// WithScaling multiplies the nameplate capacity.
func WithScaling(s float64) Option {
	return func(ic *Interconnector) error {
		if s < 0 || math.IsNaN(s) {
			return fmt.Errorf("scaling %v cannot be negative", s)
		}
		ic.Scaling = s
		return nil
	}
}

// WithImportAvailability sets a constant import availability, as a fraction
// in [0,1] or a percentage in [0,100].
func WithImportAvailability(v float64) Option {
	return func(ic *Interconnector) error {
		f, err := curve.NormalizeFraction(v)
		if err != nil {
			return err
		}
		ic.importAvailability = curve.Constant(f)
		return nil
	}
}

// WithExportAvailability sets a constant export availability. Without it
// export follows import availability.
func WithExportAvailability(v float64) Option {
	return func(ic *Interconnector) error {
		f, err := curve.NormalizeFraction(v)
		if err != nil {
			return err
		}
		ic.exportAvailability = curve.Constant(f)
		ic.exportSet = true
		return nil
	}
}

// WithImportAvailabilityCurve sets an hourly import availability.
func WithImportAvailabilityCurve(c curve.Curve) Option {
	return func(ic *Interconnector) error {
		n, err := curve.NormalizeFractions(c)
		if err != nil {
			return err
		}
		ic.importAvailability = n
		return nil
	}
}

// WithExportAvailabilityCurve sets an hourly export availability.
func WithExportAvailabilityCurve(c curve.Curve) Option {
	return func(ic *Interconnector) error {
		n, err := curve.NormalizeFractions(c)
		if err != nil {
			return err
		}
		ic.exportAvailability = n
		ic.exportSet = true
		return nil
	}
}

// New creates a disabled link between two zones.
func New(from, to string, capacity float64, opts ...Option) (*Interconnector, error) {
	if from == "" || to == "" {
		return nil, errors.New("interconnector needs two zones")
	}
	if from == to {
		return nil, fmt.Errorf("interconnector cannot connect %s to itself", from)
	}
	if capacity < 0 || math.IsNaN(capacity) || math.IsInf(capacity, 0) {
		return nil, fmt.Errorf("interconnector capacity %v must be a non-negative number", capacity)
	}
	ic := &Interconnector{Key: from + "_" + to, From: from, To: to, Capacity: capacity, Scaling: 1}
	for _, opt := range opts {
		if err := opt(ic); err != nil {
			return nil, fmt.Errorf("interconnector %s: %w", ic.Key, err)
		}
	}
	if !ic.exportSet {
		ic.exportAvailability = ic.importAvailability
	}
	return ic, nil
}

// Enable restores the configured capacity.
func (ic *Interconnector) Enable() { ic.enabled = true }

// Disable sets the capacity contribution to zero. Legs keep their keys.
func (ic *Interconnector) Disable() { ic.enabled = false }

// Enabled reports whether the link carries capacity.
func (ic *Interconnector) Enabled() bool { return ic.enabled }

// Nameplate is the configured capacity times scaling, regardless of state.
func (ic *Interconnector) Nameplate() float64 { return ic.Capacity * ic.Scaling }

// Effective is the capacity contributed in the current state.
func (ic *Interconnector) Effective() float64 {
	if !ic.enabled {
		return 0
	}
	return ic.Nameplate()
}

// Availability returns the available fraction for a direction at hour h.
func (ic *Interconnector) Availability(d Direction, h int) float64 {
	if d == Forward {
		return ic.exportAvailability.At(h, 1)
	}
	return ic.importAvailability.At(h, 1)
}

// Headroom is the extra volume the link can carry in direction d at hour h
// given the signed flow already assigned (positive means Forward).
func (ic *Interconnector) Headroom(d Direction, h int, flow float64) float64 {
	limit := ic.Effective() * ic.Availability(d, h)
	var room float64
	if d == Forward {
		room = limit - flow
	} else {
		room = limit + flow
	}
	return math.Max(room, 0)
}

// Utilization is the used share of nameplate capacity for a signed flow.
func (ic *Interconnector) Utilization(flow float64) float64 {
	n := ic.Nameplate()
	if n == 0 {
		return 0
	}
	return math.Abs(flow) / n
}

// Terminates reports whether zone is one end of the link.
func (ic *Interconnector) Terminates(zone string) bool {
	return zone == ic.From || zone == ic.To
}

// Other returns the zone at the opposite end.
func (ic *Interconnector) Other(zone string) (string, error) {
	switch zone {
	case ic.From:
		return ic.To, nil
	case ic.To:
		return ic.From, nil
	}
	return "", fmt.Errorf("%w: %s on %s", ErrNotTerminal, zone, ic.Key)
}

// Outflow returns the direction in which power leaves zone.
func (ic *Interconnector) Outflow(zone string) (Direction, error) {
	switch zone {
	case ic.From:
		return Forward, nil
	case ic.To:
		return Backward, nil
	}
	return 0, fmt.Errorf("%w: %s on %s", ErrNotTerminal, zone, ic.Key)
}

// Connects reports whether the link joins a and b in either order.
func (ic *Interconnector) Connects(a, b string) bool {
	return (ic.From == a && ic.To == b) || (ic.From == b && ic.To == a)
}
