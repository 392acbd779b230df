package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/exchange"
	"github.com/kilianp07/meurit/core/interconnector"
	"github.com/kilianp07/meurit/core/metrics"
)

// Phase is the state of the convergence loop.
type Phase int

const (
	// Isolated zones are calculated with their links disabled.
	Isolated Phase = iota
	// Coupled zones exchange capacity every round.
	Coupled
	// Done is reached once the round budget is spent.
	Done
)

func (p Phase) String() string {
	switch p {
	case Isolated:
		return "isolated"
	case Coupled:
		return "coupled"
	case Done:
		return "done"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Area batches operations over a set of zones and the links between them.
type Area struct {
	zones     []Zone
	index     map[string]Zone
	links     []*interconnector.Interconnector
	flows     exchange.Flows
	maxPasses int
	phase     Phase
	round     int
	last      *RoundResult
	recorder  metrics.RoundRecorder
	runID     string
	now       func() time.Time
}

// AreaOption configures an Area.
type AreaOption func(*Area)

// WithMaxPasses sets the exchange pass budget per hour.
func WithMaxPasses(n int) AreaOption {
	return func(a *Area) { a.maxPasses = n }
}

// WithRunID tags recorded rounds with a run identifier.
func WithRunID(id string) AreaOption {
	return func(a *Area) { a.runID = id }
}

// NewArea returns an Area over zones. Names must be unique.
func NewArea(zones []Zone, opts ...AreaOption) (*Area, error) {
	a := &Area{
		index:     make(map[string]Zone, len(zones)),
		flows:     exchange.Flows{},
		maxPasses: exchange.DefaultMaxPasses,
		recorder:  metrics.NopSink{},
		now:       time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	for _, z := range zones {
		if _, ok := a.index[z.Name()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateZone, z.Name())
		}
		a.index[z.Name()] = z
		a.zones = append(a.zones, z)
	}
	return a, nil
}

// AttachRecorder sets the collaborator rounds are reported to.
func (a *Area) AttachRecorder(r metrics.RoundRecorder) {
	if r == nil {
		r = metrics.NopSink{}
	}
	a.recorder = r
}

// Phase returns the loop phase.
func (a *Area) Phase() Phase { return a.phase }

// Round returns the number of completed coupling rounds.
func (a *Area) Round() int { return a.round }

// Zone returns the zone with the given name.
func (a *Area) Zone(name string) (Zone, error) {
	z, ok := a.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownZone, name)
	}
	return z, nil
}

// Zones returns the zones in insertion order.
func (a *Area) Zones() []Zone { return append([]Zone(nil), a.zones...) }

// Interconnectors returns the links in insertion order.
func (a *Area) Interconnectors() []*interconnector.Interconnector {
	return append([]*interconnector.Interconnector(nil), a.links...)
}

// Flows returns a copy of the cumulative link flows.
func (a *Area) Flows() exchange.Flows { return a.flows.Clone() }

// Last returns the result of the latest round, if any.
func (a *Area) Last() (*RoundResult, bool) { return a.last, a.last != nil }

// Connect creates a link between two zones of the area and attaches it to
// both. The link starts disabled.
func (a *Area) Connect(from, to string, capacity float64, opts ...interconnector.Option) (*interconnector.Interconnector, error) {
	for _, z := range []string{from, to} {
		if _, err := a.Zone(z); err != nil {
			return nil, err
		}
	}
	ic, err := interconnector.New(from, to, capacity, opts...)
	if err != nil {
		return nil, err
	}
	if err := a.AddInterconnector(ic); err != nil {
		return nil, err
	}
	return ic, nil
}

// AddInterconnector attaches an existing link. A zone pair is linked at most
// once, whatever the order of its ends.
func (a *Area) AddInterconnector(ic *interconnector.Interconnector) error {
	if a.phase != Isolated {
		return fmt.Errorf("%w: links are added before coupling, area is %s", ErrPhase, a.phase)
	}
	from, err := a.Zone(ic.From)
	if err != nil {
		return err
	}
	to, err := a.Zone(ic.To)
	if err != nil {
		return err
	}
	for _, l := range a.links {
		if l.Key == ic.Key || l.Connects(ic.From, ic.To) {
			return fmt.Errorf("%w: %s conflicts with %s", ErrDuplicateInterconnector, ic.Key, l.Key)
		}
	}
	if err := from.Attach(ic); err != nil {
		return err
	}
	if err := to.Attach(ic); err != nil {
		return err
	}
	a.links = append(a.links, ic)
	a.flows[ic.Key] = curve.New()
	return nil
}

// CalculateAll calculates every zone.
func (a *Area) CalculateAll() error {
	for _, z := range a.zones {
		if err := z.Calculate(); err != nil {
			return err
		}
	}
	return nil
}

// EnableAll enables every link, pushes the current state into the zones and
// moves the area to the coupled phase.
func (a *Area) EnableAll() error {
	if a.phase == Done {
		return fmt.Errorf("%w: area is %s", ErrPhase, a.phase)
	}
	for _, l := range a.links {
		l.Enable()
	}
	if err := a.UpdateAll(); err != nil {
		return err
	}
	a.phase = Coupled
	return nil
}

// UpdateAll injects the current flows and every zone's latest prices into
// all zones. Prices are collected before any zone is touched.
func (a *Area) UpdateAll() error {
	prices := make(map[string]curve.Curve, len(a.zones))
	for _, z := range a.zones {
		p, err := z.PriceCurve()
		if err != nil {
			continue
		}
		prices[z.Name()] = p
	}
	return a.update(prices)
}

func (a *Area) update(prices map[string]curve.Curve) error {
	for _, z := range a.zones {
		if err := z.Update(a.flows, prices); err != nil {
			return err
		}
	}
	return nil
}

func (a *Area) views() (map[string]exchange.Zone, error) {
	out := make(map[string]exchange.Zone, len(a.zones))
	for _, z := range a.zones {
		v, err := z.View()
		if err != nil {
			return nil, err
		}
		out[z.Name()] = v
	}
	return out, nil
}

// Isolate calculates every zone with its links disabled and records round 0.
func (a *Area) Isolate() (*RoundResult, error) {
	if a.phase != Isolated {
		return nil, fmt.Errorf("%w: area is %s", ErrPhase, a.phase)
	}
	if err := a.CalculateAll(); err != nil {
		return nil, err
	}
	rr, err := a.collect(0, Isolated, nil)
	if err != nil {
		return nil, err
	}
	return rr, a.record(rr)
}

// Couple runs one exchange round: capacity is allocated on a snapshot of
// the previous round, then flows and prices are injected and every zone is
// recalculated.
func (a *Area) Couple() (*RoundResult, error) {
	if a.phase != Coupled {
		return nil, fmt.Errorf("%w: area is %s", ErrPhase, a.phase)
	}
	views, err := a.views()
	if err != nil {
		return nil, err
	}
	model, err := exchange.NewModel(a.links, exchange.WithMaxPasses(a.maxPasses))
	if err != nil {
		return nil, err
	}
	out, err := model.Exchange(views, a.flows)
	if err != nil {
		return nil, err
	}
	a.flows = out.Flows

	prices := make(map[string]curve.Curve, len(views))
	for name, v := range views {
		prices[name] = v.Prices
	}
	if err := a.update(prices); err != nil {
		return nil, err
	}
	if err := a.CalculateAll(); err != nil {
		return nil, err
	}
	a.round++
	rr, err := a.collect(a.round, Coupled, out)
	if err != nil {
		return nil, err
	}
	return rr, a.record(rr)
}

// Run calculates the zones in isolation, enables the links and runs the
// given number of coupling rounds. It returns every round, isolated first.
func (a *Area) Run(rounds int) ([]RoundResult, error) {
	return a.RunContext(context.Background(), rounds)
}

// RunContext is Run with cancellation checked between rounds. On
// cancellation the rounds completed so far are returned with ctx.Err().
func (a *Area) RunContext(ctx context.Context, rounds int) ([]RoundResult, error) {
	if rounds < 0 {
		return nil, fmt.Errorf("rounds must be >= 0, got %d", rounds)
	}
	var results []RoundResult
	if a.phase == Isolated {
		rr, err := a.Isolate()
		if err != nil {
			return results, err
		}
		results = append(results, *rr)
		if err := a.EnableAll(); err != nil {
			return results, err
		}
		// recalculate so the enabled legs are part of the next snapshot
		if err := a.CalculateAll(); err != nil {
			return results, err
		}
	}
	if a.phase != Coupled {
		return nil, fmt.Errorf("%w: area is %s", ErrPhase, a.phase)
	}
	for i := 0; i < rounds; i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		rr, err := a.Couple()
		if err != nil {
			return results, err
		}
		results = append(results, *rr)
	}
	a.phase = Done
	return results, nil
}

func (a *Area) record(rr *RoundResult) error {
	a.last = rr
	if err := a.recorder.RecordRound(rr.Event(a.runID, a.now())); err != nil {
		return fmt.Errorf("record round %d: %w", rr.Round, err)
	}
	return nil
}

// PriceCurves returns the latest price curve of every zone.
func (a *Area) PriceCurves() (map[string]curve.Curve, error) {
	out := make(map[string]curve.Curve, len(a.zones))
	var errs []error
	for _, z := range a.zones {
		p, err := z.PriceCurve()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[z.Name()] = p
	}
	return out, errors.Join(errs...)
}
