package meritorder

import (
	"fmt"
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/participant"
)

// drawOrder returns a random order, the lowest marginal cost in it and the
// keys of plants that are offline.
func drawOrder(t *rapid.T) (*Order, float64, []string) {
	o := New()
	floor := math.Inf(1)
	var offline []string
	n := rapid.IntRange(1, 6).Draw(t, "plants")
	for i := 0; i < n; i++ {
		p := participant.Participant{
			Key:            fmt.Sprintf("plant_%d", i),
			Kind:           participant.DispatchableProducer,
			MarginalCost:   rapid.Float64Range(0, 150).Draw(t, "cost"),
			OutputCapacity: rapid.Float64Range(0, 500).Draw(t, "capacity"),
			Units:          float64(rapid.IntRange(1, 3).Draw(t, "units")),
		}
		switch rapid.IntRange(0, 2).Draw(t, "availability_mode") {
		case 0:
			p.Availability = participant.Fraction(rapid.Float64Range(0, 1).Draw(t, "availability"))
		case 1:
			p.Availability = participant.Fraction(0)
			offline = append(offline, p.Key)
		}
		floor = math.Min(floor, p.MarginalCost)
		if err := o.Add(p); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if rapid.Bool().Draw(t, "must_run") {
		p := participant.Participant{
			Key:            "must_run",
			Kind:           participant.MustRunProducer,
			MarginalCost:   rapid.Float64Range(0, 150).Draw(t, "must_run_cost"),
			OutputCapacity: rapid.Float64Range(0, 300).Draw(t, "must_run_capacity"),
			Units:          1,
		}
		floor = math.Min(floor, p.MarginalCost)
		if err := o.Add(p); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	demand := participant.Participant{
		Key:         "demand",
		Kind:        participant.LoadCurveUser,
		LoadProfile: curve.Constant(rapid.Float64Range(0, 2000).Draw(t, "demand")),
	}
	if err := o.Add(demand); err != nil {
		t.Fatalf("add: %v", err)
	}
	return o, floor, offline
}

func TestDispatchProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		o, floor, offline := drawOrder(t)
		res, err := o.Calculate()
		if err != nil {
			t.Fatalf("calculate: %v", err)
		}
		prices := res.PriceCurve()
		if len(prices) != curve.Hours {
			t.Fatalf("price curve has %d entries", len(prices))
		}
		supply, demand := res.Supply(), res.Demand()
		curtailed, unserved := res.Curtailed(), res.Unserved()
		for _, h := range []int{0, 300, curve.Hours - 1} {
			if prices[h] < floor {
				t.Fatalf("hour %d: price %v below floor %v", h, prices[h], floor)
			}
			served := supply[h] - curtailed[h]
			if math.Abs(served-(demand[h]-unserved[h])) > 1e-6 {
				t.Fatalf("hour %d: served %v, demand %v, unserved %v", h, served, demand[h], unserved[h])
			}
			ranking, err := res.DispatchRanking(h)
			if err != nil {
				t.Fatalf("ranking: %v", err)
			}
			for _, key := range offline {
				load, err := res.Load(key)
				if err != nil {
					t.Fatalf("load: %v", err)
				}
				if load[h] != 0 {
					t.Fatalf("hour %d: offline %s produced %v", h, key, load[h])
				}
			}
			for _, e := range ranking {
				if e.Remaining < 0 || e.Remaining > e.Capacity+1e-9 {
					t.Fatalf("hour %d: %s over-allocated (%v of %v left)", h, e.Key, e.Remaining, e.Capacity)
				}
			}
		}
	})
}

func TestAutoRebuildIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		o, _, _ := drawOrder(t)
		first, err := o.Calculate()
		if err != nil {
			t.Fatalf("calculate: %v", err)
		}
		second, err := o.Calculate(WithAutoRebuild())
		if err != nil {
			t.Fatalf("recalculate: %v", err)
		}
		if !first.PriceCurve().Equal(second.PriceCurve()) {
			t.Fatalf("price curves differ after rebuild")
		}
	})
}
