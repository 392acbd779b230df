package exchange

import (
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/interconnector"
)

// DefaultMaxPasses bounds the allocation passes per hour.
const DefaultMaxPasses = 16

const eps = 1e-9

// ErrUnknownZone is returned when a link refers to a zone with no view.
var ErrUnknownZone = errors.New("unknown zone")

// Zone is the read-only view of one zone at the start of a round. A nil
// Surplus or Deficit leaves that side unbounded, as for reference zones.
// Margin, when set, further limits both sides to what is economic at the
// neighbour's price.
type Zone struct {
	Name    string
	Prices  curve.Curve
	Surplus curve.Curve
	Deficit curve.Curve
	Margin  Margin
}

// Margin prices a zone's spare and displaceable capacity.
type Margin interface {
	// SurplusBelow is the spare capacity cheaper than price at hour h.
	SurplusBelow(h int, price float64) float64
	// DeficitAbove is the demand served by capacity dearer than price at
	// hour h.
	DeficitAbove(h int, price float64) float64
}

// Flows maps link keys to signed hourly flows, positive meaning From to To.
type Flows map[string]curve.Curve

// Clone deep-copies the flows.
func (f Flows) Clone() Flows {
	out := make(Flows, len(f))
	for k, v := range f {
		out[k] = v.Clone()
	}
	return out
}

// Row is the selection made for one hour.
type Row struct {
	Hour               int     `json:"hour"`
	Link               string  `json:"link"`
	Delta              float64 `json:"price_delta"`
	Exporter           string  `json:"exporting_zone"`
	Importer           string  `json:"importing_zone"`
	UtilizationPercent float64 `json:"utilization_percent"`
	AvailableMW        float64 `json:"available_mw"`
	Welfare            float64 `json:"welfare_per_unit"`
	Volume             float64 `json:"volume_mw"`
}

// Selected reports whether a link was chosen for the hour.
func (r Row) Selected() bool { return r.Link != "" }

// Table holds one Row per hour of the year.
type Table []Row

// Outcome is the result of one exchange round.
type Outcome struct {
	// Flows are the cumulative flows after the round.
	Flows Flows
	// Added holds the signed volume moved during this round.
	Added Flows
	// Table records the first-pass selection per hour.
	Table Table
	// Prices holds the exchange price per link: the lower zonal price.
	Prices map[string]curve.Curve
	// Passes is the largest number of passes any hour needed.
	Passes int
}

// Model runs exchange rounds over a fixed set of links.
type Model struct {
	links     []*interconnector.Interconnector
	maxPasses int
}

// Option configures a Model.
type Option func(*Model)

// WithMaxPasses sets the pass budget per hour.
func WithMaxPasses(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.maxPasses = n
		}
	}
}

// NewModel returns a Model for the given links. Keys must be unique.
func NewModel(links []*interconnector.Interconnector, opts ...Option) (*Model, error) {
	seen := make(map[string]bool, len(links))
	for _, l := range links {
		if seen[l.Key] {
			return nil, fmt.Errorf("duplicate interconnector key %s", l.Key)
		}
		seen[l.Key] = true
	}
	m := &Model{links: links, maxPasses: DefaultMaxPasses}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

type hourState struct {
	h        int
	zones    map[string]Zone
	exported map[string]float64
	imported map[string]float64
}

func newHourState(h int, zones map[string]Zone) *hourState {
	return &hourState{h: h, zones: zones, exported: map[string]float64{}, imported: map[string]float64{}}
}

// exportRoom is what zone can still send to a neighbour priced at price.
func (s *hourState) exportRoom(zone string, price float64) float64 {
	z := s.zones[zone]
	room := bound(z.Surplus, s.h)
	if z.Margin != nil {
		room = math.Min(room, z.Margin.SurplusBelow(s.h, price))
	}
	return math.Max(room-s.exported[zone], 0)
}

// importRoom is what zone can still take from a neighbour priced at price.
func (s *hourState) importRoom(zone string, price float64) float64 {
	z := s.zones[zone]
	room := bound(z.Deficit, s.h)
	if z.Margin != nil {
		room = math.Min(room, z.Margin.DeficitAbove(s.h, price))
	}
	return math.Max(room-s.imported[zone], 0)
}

func bound(c curve.Curve, h int) float64 {
	if c == nil {
		return math.Inf(1)
	}
	return math.Max(c.At(h, 0), 0)
}

type candidate struct {
	link   *interconnector.Interconnector
	row    Row
	dir    interconnector.Direction
	volume float64
}

// pick returns the link with the greatest absolute price delta among those
// that can still move a non-zero volume at this hour.
func (m *Model) pick(s *hourState, flows Flows) (candidate, bool) {
	var best candidate
	found := false
	for _, l := range m.links {
		from, to := s.zones[l.From], s.zones[l.To]
		if s.h >= len(from.Prices) || s.h >= len(to.Prices) {
			continue
		}
		low, high := from.Prices[s.h], to.Prices[s.h]
		delta := low - high
		if delta == 0 {
			continue
		}
		// power moves from the cheaper zone to the dearer one
		dir, exporter, importer := interconnector.Forward, l.From, l.To
		if delta > 0 {
			dir, exporter, importer = interconnector.Backward, l.To, l.From
			low, high = high, low
		}
		flow := flows[l.Key].At(s.h, 0)
		headroom := l.Headroom(dir, s.h, flow)
		volume := math.Min(headroom, math.Min(s.exportRoom(exporter, high), s.importRoom(importer, low)))
		if headroom <= eps || volume <= eps {
			continue
		}
		welfare := math.Abs(delta)
		if found && welfare <= best.row.Welfare {
			continue
		}
		found = true
		best = candidate{
			link:   l,
			dir:    dir,
			volume: volume,
			row: Row{
				Hour:               s.h,
				Link:               l.Key,
				Delta:              delta,
				Exporter:           exporter,
				Importer:           importer,
				UtilizationPercent: l.Utilization(flow) * 100,
				AvailableMW:        headroom,
				Welfare:            welfare,
				Volume:             volume,
			},
		}
	}
	return best, found
}

func (m *Model) check(zones map[string]Zone) error {
	for _, l := range m.links {
		for _, z := range []string{l.From, l.To} {
			if _, ok := zones[z]; !ok {
				return fmt.Errorf("%w %s on interconnector %s", ErrUnknownZone, z, l.Key)
			}
		}
	}
	return nil
}

// Table returns the first-pass selection for every hour without moving any
// volume.
func (m *Model) Table(zones map[string]Zone, flows Flows) (Table, error) {
	if err := m.check(zones); err != nil {
		return nil, err
	}
	t := make(Table, curve.Hours)
	for h := range t {
		t[h] = Row{Hour: h}
		if c, ok := m.pick(newHourState(h, zones), flows); ok {
			t[h] = c.row
		}
	}
	return t, nil
}

// Exchange runs one round. The input flows are not modified.
func (m *Model) Exchange(zones map[string]Zone, flows Flows) (*Outcome, error) {
	if err := m.check(zones); err != nil {
		return nil, err
	}
	out := &Outcome{
		Flows:  flows.Clone(),
		Added:  make(Flows, len(m.links)),
		Table:  make(Table, curve.Hours),
		Prices: make(map[string]curve.Curve, len(m.links)),
	}
	for _, l := range m.links {
		if out.Flows[l.Key] == nil {
			out.Flows[l.Key] = curve.New()
		}
		out.Added[l.Key] = curve.New()
		out.Prices[l.Key] = exchangePrices(zones[l.From].Prices, zones[l.To].Prices)
	}

	for h := 0; h < curve.Hours; h++ {
		out.Table[h] = Row{Hour: h}
		s := newHourState(h, zones)
		pass := 0
		for ; pass < m.maxPasses; pass++ {
			c, ok := m.pick(s, out.Flows)
			if !ok {
				break
			}
			if pass == 0 {
				out.Table[h] = c.row
			}
			signed := c.volume
			if c.dir == interconnector.Backward {
				signed = -signed
			}
			out.Flows[c.link.Key][h] += signed
			out.Added[c.link.Key][h] += signed
			s.exported[c.row.Exporter] += c.volume
			s.imported[c.row.Importer] += c.volume
		}
		if pass > out.Passes {
			out.Passes = pass
		}
	}
	return out, nil
}

func exchangePrices(a, b curve.Curve) curve.Curve {
	out := curve.New()
	for h := range out {
		out[h] = math.Min(a.At(h, 0), b.At(h, 0))
	}
	return out
}
