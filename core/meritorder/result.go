package meritorder

import (
	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/participant"
)

// Result is the immutable outcome of one Calculate call.
type Result struct {
	stack *stack

	prices    curve.Curve
	demand    curve.Curve
	curtailed curve.Curve
	unserved  curve.Curve

	// output and input are indexed like stack.records; available is only
	// set for supply entries.
	output    []curve.Curve
	input     []curve.Curve
	available []curve.Curve
}

// Ranked is one entry of the dispatch ranking at a given hour.
type Ranked struct {
	Key          string
	Kind         participant.Kind
	MarginalCost float64
	// Capacity is the output capacity available at the hour.
	Capacity float64
	// Remaining is the part of Capacity left undispatched.
	Remaining float64
}

// PriceCurve returns the hourly clearing prices.
func (r *Result) PriceCurve() curve.Curve { return r.prices.Clone() }

// Demand returns the summed user demand per hour.
func (r *Result) Demand() curve.Curve { return r.demand.Clone() }

// Curtailed returns always-on output that no participant could absorb.
func (r *Result) Curtailed() curve.Curve { return r.curtailed.Clone() }

// Unserved returns demand the supply stack could not cover.
func (r *Result) Unserved() curve.Curve { return r.unserved.Clone() }

// DispatchRanking returns the supply stack at hour h ordered by ascending
// marginal cost with the remaining capacity of each entry. Hours beyond the
// simulated year report every entry as fully available.
func (r *Result) DispatchRanking(h int) ([]Ranked, error) {
	if h < 0 {
		return nil, ErrNegativeHour
	}
	order := r.stack.supplyOrder(h)
	out := make([]Ranked, len(order))
	for n, i := range order {
		p := r.stack.records[i]
		e := Ranked{Key: p.Key, Kind: p.Kind, MarginalCost: p.CostAt(h)}
		if h >= curve.Hours {
			e.Capacity = p.OutputCapacity * p.Units
			e.Remaining = e.Capacity
		} else {
			e.Capacity = r.available[i][h]
			e.Remaining = r.remaining(i, h)
		}
		out[n] = e
	}
	return out, nil
}

// PriceSettingParticipant returns the first entry of the ranking at hour h
// with remaining capacity. When the whole stack is exhausted the most
// expensive entry is returned; callers that need to tell the two apart can
// check Remaining.
func (r *Result) PriceSettingParticipant(h int) (Ranked, error) {
	ranking, err := r.DispatchRanking(h)
	if err != nil {
		return Ranked{}, err
	}
	if len(ranking) == 0 {
		return Ranked{}, ErrNoDispatchables
	}
	for _, e := range ranking {
		if e.Remaining > eps {
			return e, nil
		}
	}
	return ranking[len(ranking)-1], nil
}

// Load returns the output curve of a producer or the input curve of a user
// or flexible participant.
func (r *Result) Load(key string) (curve.Curve, error) {
	for i, p := range r.stack.records {
		if p.Key != key {
			continue
		}
		if p.Kind.IsUser() || (p.Kind.Flexible() && !p.Kind.Dispatchable()) {
			return r.input[i].Clone(), nil
		}
		return r.output[i].Clone(), nil
	}
	return nil, &NotFoundError{Key: key}
}

// Input returns what participant key took out of the system per hour.
func (r *Result) Input(key string) (curve.Curve, error) {
	for i, p := range r.stack.records {
		if p.Key == key {
			return r.input[i].Clone(), nil
		}
	}
	return nil, &NotFoundError{Key: key}
}

// Supply returns the total output of all producers per hour.
func (r *Result) Supply() curve.Curve {
	out := curve.New()
	for i, p := range r.stack.records {
		if p.Kind.IsUser() {
			continue
		}
		for h, v := range r.output[i] {
			out[h] += v
		}
	}
	return out
}

// Surplus returns, per hour, the undispatched capacity of the zone's own
// dispatchable producers and storage. Interconnector legs are excluded so
// imports are never re-exported.
func (r *Result) Surplus() curve.Curve {
	out := curve.New()
	for _, i := range r.stack.supply {
		if r.stack.records[i].Kind.Leg() {
			continue
		}
		for h := range out {
			out[h] += r.remaining(i, h)
		}
	}
	return out
}

// Deficit returns, per hour, the output of the zone's own dispatchable
// producers and storage: the volume imports could displace.
func (r *Result) Deficit() curve.Curve {
	out := curve.New()
	for _, i := range r.stack.supply {
		if r.stack.records[i].Kind.Leg() {
			continue
		}
		for h := range out {
			out[h] += r.output[i][h]
		}
	}
	return out
}

// SurplusBelow returns the undispatched capacity of the zone's own supply
// priced below price at hour h: what the zone could export to a neighbour
// clearing at that price.
func (r *Result) SurplusBelow(h int, price float64) float64 {
	if h < 0 || h >= curve.Hours {
		return 0
	}
	var v float64
	for _, i := range r.stack.supply {
		p := r.stack.records[i]
		if p.Kind.Leg() || p.CostAt(h) >= price {
			continue
		}
		v += r.remaining(i, h)
	}
	return v
}

// DeficitAbove returns the output of the zone's own supply priced above
// price at hour h plus any unserved demand: what imports at that price
// would displace.
func (r *Result) DeficitAbove(h int, price float64) float64 {
	if h < 0 || h >= curve.Hours {
		return 0
	}
	v := r.unserved[h]
	for _, i := range r.stack.supply {
		p := r.stack.records[i]
		if p.Kind.Leg() || p.CostAt(h) <= price {
			continue
		}
		v += r.output[i][h]
	}
	return v
}

func (r *Result) remaining(i, h int) float64 {
	if r.input[i][h] > eps {
		// a storage that charged this hour cannot also discharge
		return 0
	}
	rem := r.available[i][h] - r.output[i][h]
	if rem < 0 {
		return 0
	}
	return rem
}

func (r *Result) priceAt(h int, order []int) float64 {
	if len(order) == 0 {
		return r.stack.floor(h)
	}
	for _, i := range order {
		if r.remaining(i, h) > eps {
			return r.stack.records[i].CostAt(h)
		}
	}
	return r.stack.records[order[len(order)-1]].CostAt(h)
}
