package interconnector

import (
	"math"

	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/participant"
)

const (
	importSuffix = "_import"
	exportSuffix = "_export"
)

// ImportKey is the key of the leg bringing power into a zone.
func ImportKey(base string) string { return base + importSuffix }

// ExportKey is the key of the leg taking power out of a zone.
func ExportKey(base string) string { return base + exportSuffix }

// Legs returns the import producer and export consumer the link contributes
// to zone. flow is the signed hourly flow assigned so far and prices the
// neighbour's last price curve; both may be nil before the first exchange.
// A disabled link yields zero-capacity legs. Both legs are committed: the
// flow was agreed by the exchange, so each side carries it in full.
func (ic *Interconnector) Legs(zone string, flow, prices curve.Curve) (imp, exp participant.Participant, err error) {
	out, err := ic.Outflow(zone)
	if err != nil {
		return imp, exp, err
	}
	capacity := ic.Effective()
	imp = participant.Participant{
		Key:            ImportKey(ic.Key),
		Kind:           participant.ImportLeg,
		Link:           ic.Key,
		OutputCapacity: capacity,
		Units:          1,
		Committed:      true,
	}
	exp = participant.Participant{
		Key:           ExportKey(ic.Key),
		Kind:          participant.ExportLeg,
		Link:          ic.Key,
		InputCapacity: capacity,
		Units:         1,
		Committed:     true,
	}
	imp.AvailabilityCurve, exp.AvailabilityCurve = ic.flowShares(flow, out)
	if prices.Defined() {
		imp.CostCurve = prices.Clone()
		exp.CostCurve = prices.Clone()
	}
	return imp, exp, nil
}

// flowShares splits a signed flow curve into the inbound and outbound
// fractions of nameplate capacity seen from the zone whose outflow is out.
func (ic *Interconnector) flowShares(flow curve.Curve, out Direction) (in, outbound curve.Curve) {
	in, outbound = curve.New(), curve.New()
	n := ic.Nameplate()
	if n == 0 {
		return in, outbound
	}
	for h := range in {
		f := flow.At(h, 0)
		if out == Backward {
			f = -f
		}
		if f > 0 {
			outbound[h] = math.Min(f/n, 1)
		} else {
			in[h] = math.Min(-f/n, 1)
		}
	}
	return in, outbound
}

// Spec is an interconnector row of a participant source.
type Spec struct {
	Key               string
	Capacity          float64
	MarginalCost      float64
	InService         bool
	Scaling           float64
	ToRegion          string
	AvailabilityCurve curve.Curve
}

// StaticLegs turns a source row into fixed import and export legs for a
// zone whose counterpart is not simulated.
func StaticLegs(s Spec) (imp, exp participant.Participant) {
	scaling := s.Scaling
	if scaling == 0 {
		scaling = 1
	}
	capacity := s.Capacity * scaling
	imp = participant.Participant{
		Key:               ImportKey(s.Key),
		Kind:              participant.ImportLeg,
		Link:              s.Key,
		MarginalCost:      s.MarginalCost,
		OutputCapacity:    capacity,
		Units:             1,
		AvailabilityCurve: s.AvailabilityCurve.Clone(),
	}
	exp = participant.Participant{
		Key:                      ExportKey(s.Key),
		Kind:                     participant.ExportLeg,
		Link:                     s.Key,
		MarginalCost:             s.MarginalCost,
		InputCapacity:            capacity,
		Units:                    1,
		AvailabilityCurve:        s.AvailabilityCurve.Clone(),
		ConsumeFromDispatchables: true,
	}
	return imp, exp
}
