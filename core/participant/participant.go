// Package participant defines the typed records a merit order is built from.
package participant

import (
	"math"
	"regexp"
	"strings"

	"github.com/kilianp07/meurit/core/curve"
)

// Participant is one supply, demand or flexible entry of a merit order.
// Which fields matter depends on Kind; Validate enforces the required ones.
type Participant struct {
	Key  string `json:"key"`
	Kind Kind   `json:"type"`

	// MarginalCost in EUR/MWh. CostCurve overrides it hour by hour.
	MarginalCost float64     `json:"marginal_costs"`
	CostCurve    curve.Curve `json:"cost_curve,omitempty"`

	// Capacities are per unit in MW.
	OutputCapacity float64 `json:"output_capacity_per_unit"`
	InputCapacity  float64 `json:"input_capacity_per_unit"`
	Units          float64 `json:"number_of_units"`

	// Availability is a fraction in [0,1]; nil means fully available.
	// AvailabilityCurve overrides it hour by hour and reads as fully
	// available outside its defined range.
	Availability      *float64    `json:"availability,omitempty"`
	AvailabilityCurve curve.Curve `json:"availability_curve,omitempty"`

	LoadProfile curve.Curve `json:"load_profile,omitempty"`

	FullLoadHours       float64 `json:"full_load_hours"`
	FixedCostsPerUnit   float64 `json:"fixed_costs_per_unit"`
	FixedOMCostsPerUnit float64 `json:"fixed_om_costs_per_unit"`

	// TotalConsumption is annual demand in MWh.
	TotalConsumption float64 `json:"total_consumption"`
	ConsumptionShare float64 `json:"consumption_share"`

	// VolumeMWh bounds a storage reserve. Zero leaves it unbounded.
	VolumeMWh float64 `json:"volume_mwh"`
	// ConsumeFromDispatchables lets a flexible participant buy from the
	// supply stack while dispatchable cost is below its own marginal cost.
	ConsumeFromDispatchables bool `json:"consume_from_dispatchables"`

	// Link names the interconnector a leg belongs to.
	Link string `json:"link,omitempty"`
	// Committed legs carry a flow already agreed between two zones: an
	// import leg produces, and an export leg consumes, its full available
	// capacity whatever the price.
	Committed bool `json:"committed,omitempty"`
}

// Fraction returns a pointer to v, for Availability.
func Fraction(v float64) *float64 { return &v }

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// NormalizeKey trims whitespace and the symbol prefix used by participant
// tables.
func NormalizeKey(key string) string {
	return strings.TrimPrefix(strings.TrimSpace(key), ":")
}

// Clone returns a deep copy.
func (p Participant) Clone() Participant {
	p.CostCurve = p.CostCurve.Clone()
	p.AvailabilityCurve = p.AvailabilityCurve.Clone()
	p.LoadProfile = p.LoadProfile.Clone()
	if p.Availability != nil {
		p.Availability = Fraction(*p.Availability)
	}
	return p
}

// CostAt returns the marginal cost at hour h.
func (p Participant) CostAt(h int) float64 {
	return p.CostCurve.At(h, p.MarginalCost)
}

// AvailabilityAt returns the available fraction at hour h.
func (p Participant) AvailabilityAt(h int) float64 {
	if p.AvailabilityCurve.Defined() {
		return p.AvailabilityCurve.At(h, 1)
	}
	if p.Availability == nil {
		return 1
	}
	return *p.Availability
}

// OutputCapacityAt is the output capacity usable at hour h across all units.
func (p Participant) OutputCapacityAt(h int) float64 {
	return p.OutputCapacity * p.Units * p.AvailabilityAt(h)
}

// InputCapacityAt is the input capacity usable at hour h across all units.
func (p Participant) InputCapacityAt(h int) float64 {
	return p.InputCapacity * p.Units * p.AvailabilityAt(h)
}

// Validate checks the fields required by the participant's kind.
//
//gocyclo:ignore
func (p Participant) Validate() error {
	if p.Key == "" {
		return invalid("", "key", "cannot be empty")
	}
	if !keyPattern.MatchString(p.Key) {
		return invalid(p.Key, "key", "contains unsupported characters")
	}
	if !p.Kind.Known() {
		return invalid(p.Key, "type", "is not supported")
	}
	for name, v := range map[string]float64{
		"marginal_costs":           p.MarginalCost,
		"output_capacity_per_unit": p.OutputCapacity,
		"input_capacity_per_unit":  p.InputCapacity,
		"number_of_units":          p.Units,
		"total_consumption":        p.TotalConsumption,
		"volume_mwh":               p.VolumeMWh,
		"full_load_hours":          p.FullLoadHours,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid(p.Key, name, "must be a finite number")
		}
		if name != "marginal_costs" && v < 0 {
			return invalid(p.Key, name, "cannot be negative")
		}
	}
	if p.Availability != nil && !curve.IsFraction(*p.Availability) {
		return invalid(p.Key, "availability", "must lie in [0,1]")
	}
	if err := p.AvailabilityCurve.Validate(curve.IsFraction); err != nil {
		return invalid(p.Key, "availability_curve", err.Error())
	}
	if err := p.LoadProfile.Validate(func(v float64) bool { return v >= 0 && !math.IsInf(v, 0) }); err != nil {
		return invalid(p.Key, "load_profile", err.Error())
	}

	switch p.Kind {
	case CurveProducer, LoadCurveUser:
		if !p.LoadProfile.Defined() {
			return invalid(p.Key, "load_profile", "is required")
		}
	case ConsumptionShareUser:
		if !p.LoadProfile.Defined() {
			return invalid(p.Key, "load_profile", "is required")
		}
		if !curve.IsFraction(p.ConsumptionShare) {
			return invalid(p.Key, "consumption_share", "must lie in [0,1]")
		}
	case ImportLeg, ExportLeg:
		if p.Link == "" {
			return invalid(p.Key, "link", "is required for interconnector legs")
		}
	default:
		if p.Committed {
			return invalid(p.Key, "committed", "only applies to interconnector legs")
		}
	}
	return nil
}
