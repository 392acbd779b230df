package participant

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/meurit/core/curve"
)

func dispatchable(key string) Participant {
	return Participant{Key: key, Kind: DispatchableProducer, MarginalCost: 40, OutputCapacity: 100, Units: 2}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		p     Participant
		field string
	}{
		{"empty key", Participant{Kind: DispatchableProducer}, "key"},
		{"bad key", Participant{Key: "a b", Kind: DispatchableProducer}, "key"},
		{"unknown kind", Participant{Key: "x", Kind: Kind(99)}, "type"},
		{"negative units", Participant{Key: "x", Kind: DispatchableProducer, Units: -1}, "number_of_units"},
		{"nan cost", Participant{Key: "x", Kind: DispatchableProducer, MarginalCost: math.NaN()}, "marginal_costs"},
		{"availability", Participant{Key: "x", Kind: DispatchableProducer, Availability: Fraction(1.2)}, "availability"},
		{"availability curve", Participant{Key: "x", Kind: DispatchableProducer, AvailabilityCurve: curve.Curve{0.5, 2}}, "availability_curve"},
		{"curve producer", Participant{Key: "x", Kind: CurveProducer}, "load_profile"},
		{"load curve user", Participant{Key: "x", Kind: LoadCurveUser}, "load_profile"},
		{"share", Participant{Key: "x", Kind: ConsumptionShareUser, LoadProfile: curve.Curve{1}, ConsumptionShare: 2}, "consumption_share"},
		{"leg link", Participant{Key: "x", Kind: ImportLeg}, "link"},
		{"committed producer", Participant{Key: "x", Kind: DispatchableProducer, Committed: true}, "committed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	assert.NoError(t, dispatchable("ok").Validate())
	assert.NoError(t, Participant{Key: "cost", Kind: DispatchableProducer, MarginalCost: -5}.Validate())
}

func TestAvailabilityAt(t *testing.T) {
	p := dispatchable("p")
	assert.Equal(t, 1.0, p.AvailabilityAt(0))
	p.Availability = Fraction(0.5)
	assert.Equal(t, 100.0, p.OutputCapacityAt(3))
	p.Availability = Fraction(0)
	assert.Zero(t, p.AvailabilityAt(3), "zero availability is offline")
	assert.Zero(t, p.OutputCapacityAt(3))
	p.AvailabilityCurve = curve.Curve{0.25}
	assert.Equal(t, 0.25, p.AvailabilityAt(0))
	assert.Equal(t, 1.0, p.AvailabilityAt(1), "outside the curve counts as fully available")
}

func TestCloneCopiesAvailability(t *testing.T) {
	p := dispatchable("p")
	p.Availability = Fraction(0.5)
	c := p.Clone()
	*c.Availability = 0
	assert.Equal(t, 0.5, *p.Availability)
}

func TestCostAt(t *testing.T) {
	p := dispatchable("p")
	p.CostCurve = curve.Curve{10, 20}
	assert.Equal(t, 20.0, p.CostAt(1))
	assert.Equal(t, 40.0, p.CostAt(2))
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "total_demand", NormalizeKey(" :total_demand "))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("VolatileProducer")
	require.NoError(t, err)
	assert.Equal(t, VolatileProducer, k)
	assert.True(t, k.AlwaysOn())

	_, err = ParseKind("Nuclear")
	assert.Error(t, err)
	assert.Equal(t, "unknown", Kind(-1).String())
}

func TestSet(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Add(dispatchable("a")))
	require.NoError(t, s.Add(dispatchable("b")))

	err := s.Add(dispatchable("a"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "key", verr.Field)

	repl := dispatchable("a")
	repl.MarginalCost = 99
	found, err := s.Replace(repl)
	require.NoError(t, err)
	assert.True(t, found)

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 99.0, got.MarginalCost)
	assert.Equal(t, "a", s.All()[0].Key, "replace keeps position")

	found, err = s.Replace(dispatchable("zzz"))
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 2, s.Len())
}

func TestSetCopiesCurves(t *testing.T) {
	s := NewSet()
	p := dispatchable("a")
	p.AvailabilityCurve = curve.Curve{0.5}
	require.NoError(t, s.Add(p))
	p.AvailabilityCurve[0] = 0.1

	got, _ := s.Get("a")
	assert.Equal(t, 0.5, got.AvailabilityCurve[0])
}
