package market

import (
	"fmt"

	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/exchange"
	"github.com/kilianp07/meurit/core/interconnector"
	"github.com/kilianp07/meurit/core/meritorder"
	"github.com/kilianp07/meurit/core/participant"
)

// Zone is a bidding zone taking part in an Area.
type Zone interface {
	Name() string
	// Attach registers a link terminating in the zone.
	Attach(ic *interconnector.Interconnector) error
	// InterconnectorTo returns the link towards a neighbour.
	InterconnectorTo(neighbour string) (*interconnector.Interconnector, error)
	Interconnectors() []*interconnector.Interconnector
	// Calculate recomputes the zone's prices from its current inputs.
	Calculate() error
	// PriceCurve returns the prices of the last calculation.
	PriceCurve() (curve.Curve, error)
	// View snapshots the zone for an exchange round.
	View() (exchange.Zone, error)
	// Update injects the link flows and the neighbours' prices.
	Update(flows exchange.Flows, prices map[string]curve.Curve) error
}

// links is the interconnector bookkeeping shared by both zone variants.
type links struct {
	zone        string
	byNeighbour map[string]*interconnector.Interconnector
	ordered     []*interconnector.Interconnector
}

func newLinks(zone string) links {
	return links{zone: zone, byNeighbour: make(map[string]*interconnector.Interconnector)}
}

func (l *links) add(ic *interconnector.Interconnector) (string, error) {
	other, err := ic.Other(l.zone)
	if err != nil {
		return "", err
	}
	if prev, ok := l.byNeighbour[other]; ok {
		return "", fmt.Errorf("%w: %s and %s already linked by %s", ErrDuplicateInterconnector, l.zone, other, prev.Key)
	}
	l.byNeighbour[other] = ic
	l.ordered = append(l.ordered, ic)
	return other, nil
}

// InterconnectorTo returns the link towards neighbour.
func (l *links) InterconnectorTo(neighbour string) (*interconnector.Interconnector, error) {
	ic, ok := l.byNeighbour[neighbour]
	if !ok {
		return nil, fmt.Errorf("%w from %s to %s", ErrNoInterconnector, l.zone, neighbour)
	}
	return ic, nil
}

// Interconnectors returns the links in attach order.
func (l *links) Interconnectors() []*interconnector.Interconnector {
	return append([]*interconnector.Interconnector(nil), l.ordered...)
}

// ActiveZone dispatches its own merit order.
type ActiveZone struct {
	links
	name        string
	order       *meritorder.Order
	result      *meritorder.Result
	autoRebuild bool
}

// ZoneOption configures an ActiveZone.
type ZoneOption func(*ActiveZone)

// WithAutoRebuild lets Calculate rebuild a stale merit order itself instead
// of rebuilding explicitly beforehand.
func WithAutoRebuild() ZoneOption {
	return func(z *ActiveZone) { z.autoRebuild = true }
}

// NewActiveZone builds a zone from its participants.
func NewActiveZone(name string, participants []participant.Participant, opts ...ZoneOption) (*ActiveZone, error) {
	if name == "" {
		return nil, fmt.Errorf("zone name cannot be empty")
	}
	z := &ActiveZone{links: newLinks(name), name: name, order: meritorder.New()}
	for _, o := range opts {
		o(z)
	}
	for _, p := range participants {
		if err := z.order.Add(p); err != nil {
			return nil, fmt.Errorf("zone %s: %w", name, err)
		}
	}
	return z, nil
}

// Name returns the zone name.
func (z *ActiveZone) Name() string { return z.name }

// Order exposes the zone's merit order.
func (z *ActiveZone) Order() *meritorder.Order { return z.order }

// Result returns the last calculation result.
func (z *ActiveZone) Result() (*meritorder.Result, error) {
	if z.result == nil {
		return nil, fmt.Errorf("zone %s: %w", z.name, meritorder.ErrNotCalculated)
	}
	return z.result, nil
}

// Attach adds the link's legs to the merit order. The legs carry no
// capacity until flows are injected.
func (z *ActiveZone) Attach(ic *interconnector.Interconnector) error {
	if _, err := z.links.add(ic); err != nil {
		return err
	}
	imp, exp, err := ic.Legs(z.name, nil, nil)
	if err != nil {
		return err
	}
	for _, p := range []participant.Participant{imp, exp} {
		if err := z.order.Add(p); err != nil {
			return fmt.Errorf("zone %s: %w", z.name, err)
		}
	}
	z.result = nil
	return nil
}

// Calculate rebuilds the merit order and dispatches it.
func (z *ActiveZone) Calculate() error {
	var opts []meritorder.CalculateOption
	if z.autoRebuild {
		opts = append(opts, meritorder.WithAutoRebuild())
	} else if z.order.State() != meritorder.Built {
		z.order.Rebuild()
	}
	res, err := z.order.Calculate(opts...)
	if err != nil {
		return fmt.Errorf("zone %s: %w", z.name, err)
	}
	z.result = res
	return nil
}

// PriceCurve returns the prices of the last calculation.
func (z *ActiveZone) PriceCurve() (curve.Curve, error) {
	res, err := z.Result()
	if err != nil {
		return nil, err
	}
	return res.PriceCurve(), nil
}

// View snapshots prices, surplus and deficit of the last calculation. The
// result itself prices the surplus and deficit against each neighbour.
func (z *ActiveZone) View() (exchange.Zone, error) {
	res, err := z.Result()
	if err != nil {
		return exchange.Zone{}, err
	}
	return exchange.Zone{
		Name:    z.name,
		Prices:  res.PriceCurve(),
		Surplus: res.Surplus(),
		Deficit: res.Deficit(),
		Margin:  res,
	}, nil
}

// Update replaces every leg with one sized by the link's flow and priced at
// the neighbour's curve. The previous result is dropped.
func (z *ActiveZone) Update(flows exchange.Flows, prices map[string]curve.Curve) error {
	for _, ic := range z.ordered {
		other, err := ic.Other(z.name)
		if err != nil {
			return err
		}
		imp, exp, err := ic.Legs(z.name, flows[ic.Key], prices[other])
		if err != nil {
			return err
		}
		for _, p := range []participant.Participant{imp, exp} {
			if err := z.order.Replace(p); err != nil {
				return fmt.Errorf("zone %s: %w", z.name, err)
			}
		}
	}
	z.result = nil
	return nil
}

// ReferenceZone offers a fixed price curve and never dispatches. It can
// absorb or supply any volume its links carry.
type ReferenceZone struct {
	links
	name   string
	prices curve.Curve
}

// NewReferenceZone returns a zone with the given prices. Negative prices are
// clamped to zero.
func NewReferenceZone(name string, prices curve.Curve) (*ReferenceZone, error) {
	if name == "" {
		return nil, fmt.Errorf("zone name cannot be empty")
	}
	if !prices.Defined() {
		return nil, fmt.Errorf("zone %s: %w", name, curve.ErrEmpty)
	}
	p := prices.Clone()
	p.ClampNegative()
	return &ReferenceZone{links: newLinks(name), name: name, prices: p}, nil
}

// Name returns the zone name.
func (z *ReferenceZone) Name() string { return z.name }

// Attach records the link.
func (z *ReferenceZone) Attach(ic *interconnector.Interconnector) error {
	_, err := z.links.add(ic)
	return err
}

// Calculate is a no-op.
func (z *ReferenceZone) Calculate() error { return nil }

// PriceCurve returns the fixed prices.
func (z *ReferenceZone) PriceCurve() (curve.Curve, error) { return z.prices.Clone(), nil }

// View returns the prices with unbounded surplus and deficit.
func (z *ReferenceZone) View() (exchange.Zone, error) {
	return exchange.Zone{Name: z.name, Prices: z.prices.Clone()}, nil
}

// Update is a no-op.
func (z *ReferenceZone) Update(exchange.Flows, map[string]curve.Curve) error { return nil }
