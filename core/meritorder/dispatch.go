package meritorder

import (
	"math"

	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/participant"
)

// dispatch runs economic dispatch for every hour of the year.
//
// Per hour: user demand is summed, always-on output is subtracted, excess
// always-on output is absorbed by flexible participants (highest marginal
// cost first) and curtailed beyond that, the remaining demand walks the
// supply stack in ascending cost order, and price-sensitive consumers then
// buy from the stack while its cost stays below their own marginal cost.
// Committed interconnector legs bypass the price: imports are fed in ahead
// of the stack and exports buy their full flow before any other consumer.
// Storage with a bounded volume carries its reserve from hour to hour.
func (s *stack) dispatch() *Result {
	n := len(s.records)
	r := &Result{
		stack:     s,
		prices:    curve.New(),
		demand:    curve.New(),
		curtailed: curve.New(),
		unserved:  curve.New(),
		output:    make([]curve.Curve, n),
		input:     make([]curve.Curve, n),
		available: make([]curve.Curve, n),
	}
	for i := range s.records {
		r.output[i] = curve.New()
		r.input[i] = curve.New()
	}
	for _, i := range s.supply {
		r.available[i] = curve.New()
	}
	reserve := make([]float64, n)

	for h := 0; h < curve.Hours; h++ {
		order := s.dispatchHour(h, r, reserve)
		r.prices[h] = r.priceAt(h, order)
	}
	return r
}

func (s *stack) dispatchHour(h int, r *Result, reserve []float64) []int {
	order := s.supplyOrder(h)
	for _, i := range order {
		a := s.records[i].OutputCapacityAt(h)
		if s.bounded(i) {
			a = math.Min(a, reserve[i])
		}
		r.available[i][h] = a
	}

	var demand float64
	for _, i := range s.users {
		d := s.demandAt(i, h)
		r.input[i][h] = d
		demand += d
	}
	r.demand[h] = demand

	var onSupply float64
	for _, i := range s.alwaysOn {
		v := s.productionAt(i, h)
		r.output[i][h] = v
		onSupply += v
	}

	residual := demand - onSupply
	if residual < 0 {
		if excess := s.absorb(h, -residual, r, reserve, false); excess > eps {
			r.curtailed[h] += excess
		}
		residual = 0
	}

	// committed imports arrive whatever the local price
	for _, i := range s.committed {
		v := r.available[i][h]
		r.output[i][h] = v
		residual -= v
	}
	if residual < 0 {
		if excess := s.absorb(h, -residual, r, reserve, true); excess > eps {
			r.curtailed[h] += excess
		}
		residual = 0
	}

	for _, i := range order {
		if residual <= eps {
			break
		}
		take := math.Min(residual, r.remaining(i, h))
		if take <= eps {
			continue
		}
		r.output[i][h] += take
		residual -= take
	}
	if residual > eps {
		r.unserved[h] = residual
	}

	// committed export legs are served before price-sensitive buyers
	buyers := s.buyerOrder(h)
	for _, committed := range []bool{true, false} {
		for _, b := range buyers {
			if s.records[b].Committed == committed {
				s.buy(b, h, order, r, reserve)
			}
		}
	}

	for i := range s.records {
		if s.bounded(i) {
			reserve[i] += r.input[i][h] - r.output[i][h]
		}
	}
	return order
}

// absorb hands excess output to flexible participants, highest marginal
// cost first, and returns what none of them could take. Export legs are
// skipped when noLegs is set so imports are never passed straight on.
func (s *stack) absorb(h int, excess float64, r *Result, reserve []float64, noLegs bool) float64 {
	for _, i := range s.absorberOrder(h) {
		if excess <= eps {
			break
		}
		if noLegs && s.records[i].Kind.Leg() {
			continue
		}
		take := math.Min(excess, s.room(i, h, r, reserve))
		if take <= eps {
			continue
		}
		r.input[i][h] += take
		excess -= take
	}
	return excess
}

// buy lets buyer b take from the stack while the stack is cheaper than b's
// own marginal cost. A committed buyer takes its whole room at any cost.
// Export legs never buy from another link's import leg.
func (s *stack) buy(b, h int, order []int, r *Result, reserve []float64) {
	if r.output[b][h] > eps {
		return
	}
	buyer := s.records[b]
	want := s.room(b, h, r, reserve)
	willing := buyer.CostAt(h)
	if buyer.Committed {
		willing = math.Inf(1)
	}
	for _, i := range order {
		if want <= eps {
			return
		}
		if i == b || (buyer.Kind == participant.ExportLeg && s.records[i].Kind.Leg()) {
			continue
		}
		if s.records[i].CostAt(h) >= willing {
			return
		}
		take := math.Min(want, r.remaining(i, h))
		if take <= eps {
			continue
		}
		r.output[i][h] += take
		r.input[b][h] += take
		want -= take
	}
}

// room is the input participant i can still take at hour h.
func (s *stack) room(i, h int, r *Result, reserve []float64) float64 {
	p := s.records[i]
	room := p.InputCapacityAt(h) - r.input[i][h]
	if s.bounded(i) {
		room = math.Min(room, p.VolumeMWh-reserve[i]-r.input[i][h])
	}
	return math.Max(room, 0)
}
