package meritorder

import (
	"math"
	"sort"

	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/participant"
)

// eps is the smallest volume in MW treated as non-zero.
const eps = 1e-9

// stack is the dispatch structure derived from a snapshot of records. All
// index slices point into records.
type stack struct {
	records []participant.Participant

	users    []int
	alwaysOn []int
	// supply, absorbers and buyers are kept in insertion order; ordering
	// by cost happens per hour so ties stay stable.
	supply    []int
	absorbers []int
	buyers    []int
	// committed holds import legs that produce their whole availability.
	committed []int

	profileSums []float64
	costCurves  bool

	staticSupply    []int
	staticAbsorbers []int
	staticBuyers    []int
}

func build(records []participant.Participant) *stack {
	s := &stack{records: records, profileSums: make([]float64, len(records))}
	for i, p := range records {
		s.profileSums[i] = p.LoadProfile.Sum()
		if p.CostCurve.Defined() {
			s.costCurves = true
		}
		switch {
		case p.Kind.IsUser():
			s.users = append(s.users, i)
		case p.Kind.AlwaysOn():
			s.alwaysOn = append(s.alwaysOn, i)
		}
		if p.Kind.Dispatchable() {
			s.supply = append(s.supply, i)
		}
		if p.Kind == participant.ImportLeg && p.Committed {
			s.committed = append(s.committed, i)
		}
		if p.Kind.Flexible() {
			s.absorbers = append(s.absorbers, i)
		}
		if p.Kind == participant.ExportLeg || (p.Kind.Flexible() && p.ConsumeFromDispatchables) {
			s.buyers = append(s.buyers, i)
		}
	}
	s.staticSupply = s.sortByCost(s.supply, 0, false)
	s.staticAbsorbers = s.sortByCost(s.absorbers, 0, true)
	s.staticBuyers = s.sortByCost(s.buyers, 0, true)
	return s
}

func (s *stack) sortByCost(idx []int, h int, desc bool) []int {
	out := make([]int, len(idx))
	copy(out, idx)
	sort.SliceStable(out, func(a, b int) bool {
		ca, cb := s.records[out[a]].CostAt(h), s.records[out[b]].CostAt(h)
		if desc {
			return ca > cb
		}
		return ca < cb
	})
	return out
}

// supplyOrder returns the dispatchable stack at hour h, ascending by cost.
func (s *stack) supplyOrder(h int) []int {
	if !s.costCurves {
		return s.staticSupply
	}
	return s.sortByCost(s.supply, h, false)
}

func (s *stack) absorberOrder(h int) []int {
	if !s.costCurves {
		return s.staticAbsorbers
	}
	return s.sortByCost(s.absorbers, h, true)
}

func (s *stack) buyerOrder(h int) []int {
	if !s.costCurves {
		return s.staticBuyers
	}
	return s.sortByCost(s.buyers, h, true)
}

// demandAt returns the demand of user i at hour h.
func (s *stack) demandAt(i, h int) float64 {
	p := s.records[i]
	switch p.Kind {
	case participant.TotalConsumptionUser:
		if sum := s.profileSums[i]; p.LoadProfile.Defined() && sum > 0 {
			return p.TotalConsumption * p.LoadProfile.At(h, 0) / sum
		}
		return p.TotalConsumption / curve.Hours
	case participant.LoadCurveUser:
		return p.LoadProfile.At(h, 0)
	case participant.ConsumptionShareUser:
		return p.ConsumptionShare * p.LoadProfile.At(h, 0)
	}
	return 0
}

// productionAt returns the output of always-on producer i at hour h.
func (s *stack) productionAt(i, h int) float64 {
	p := s.records[i]
	if p.Kind == participant.CurveProducer {
		return p.LoadProfile.At(h, 0)
	}
	capacity := p.OutputCapacityAt(h)
	if !p.LoadProfile.Defined() {
		return capacity
	}
	if sum := s.profileSums[i]; p.FullLoadHours > 0 && sum > 0 {
		annual := p.FullLoadHours * p.OutputCapacity * p.Units
		return math.Min(capacity, annual*p.LoadProfile.At(h, 0)/sum)
	}
	return math.Min(capacity, capacity*p.LoadProfile.At(h, 0))
}

// floor is the price used when the supply stack is empty: the cheapest
// always-on producer, or zero without producers.
func (s *stack) floor(h int) float64 {
	if len(s.alwaysOn) == 0 {
		return 0
	}
	min := math.Inf(1)
	for _, i := range s.alwaysOn {
		min = math.Min(min, s.records[i].CostAt(h))
	}
	return min
}

func (s *stack) bounded(i int) bool {
	p := s.records[i]
	return p.Kind == participant.StorageFlex && p.VolumeMWh > 0
}
