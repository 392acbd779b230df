package meritorder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/participant"
)

func plant(key string, cost, mw float64) participant.Participant {
	return participant.Participant{Key: key, Kind: participant.DispatchableProducer, MarginalCost: cost, OutputCapacity: mw, Units: 1}
}

func flatDemand(key string, mw float64) participant.Participant {
	return participant.Participant{Key: key, Kind: participant.LoadCurveUser, LoadProfile: curve.Constant(mw)}
}

func newOrder(t *testing.T, ps ...participant.Participant) *Order {
	t.Helper()
	o := New()
	for _, p := range ps {
		require.NoError(t, o.Add(p))
	}
	return o
}

func calculate(t *testing.T, o *Order) *Result {
	t.Helper()
	res, err := o.Calculate()
	require.NoError(t, err)
	return res
}

func TestCalculatePriceCurve(t *testing.T) {
	o := newOrder(t, flatDemand("demand", 150), plant("cheap", 10, 100), plant("dear", 20, 100))
	res := calculate(t, o)

	prices := res.PriceCurve()
	require.Len(t, prices, curve.Hours)
	assert.Equal(t, 20.0, prices[0])
	assert.Equal(t, 20.0, prices[curve.Hours-1])

	cheap, err := res.Load("cheap")
	require.NoError(t, err)
	dear, err := res.Load("dear")
	require.NoError(t, err)
	assert.Equal(t, 100.0, cheap[42])
	assert.Equal(t, 50.0, dear[42])
	assert.Equal(t, 150.0, res.Demand()[42])
}

func TestPriceSetterIsFirstWithRemainingCapacity(t *testing.T) {
	o := newOrder(t, flatDemand("demand", 100), plant("cheap", 10, 100), plant("dear", 20, 100))
	res := calculate(t, o)

	setter, err := res.PriceSettingParticipant(7)
	require.NoError(t, err)
	assert.Equal(t, "dear", setter.Key)
	assert.Equal(t, 100.0, setter.Remaining)
	assert.Equal(t, 20.0, res.PriceCurve()[7])
}

func TestExhaustedStackReturnsMostExpensive(t *testing.T) {
	o := newOrder(t, flatDemand("demand", 500), plant("cheap", 10, 100), plant("dear", 20, 100))
	res := calculate(t, o)

	setter, err := res.PriceSettingParticipant(0)
	require.NoError(t, err)
	assert.Equal(t, "dear", setter.Key)
	assert.Zero(t, setter.Remaining)
	assert.Equal(t, 300.0, res.Unserved()[0])
	assert.Equal(t, 20.0, res.PriceCurve()[0])
}

func TestMustRunDoesNotSetPrice(t *testing.T) {
	mustRun := participant.Participant{Key: "chp", Kind: participant.MustRunProducer, MarginalCost: 5, OutputCapacity: 80, Units: 1}
	o := newOrder(t, flatDemand("demand", 100), mustRun, plant("gas", 30, 100))
	res := calculate(t, o)

	ranking, err := res.DispatchRanking(0)
	require.NoError(t, err)
	require.Len(t, ranking, 1)
	assert.Equal(t, "gas", ranking[0].Key)
	assert.Equal(t, 80.0, ranking[0].Remaining)

	gas, _ := res.Load("gas")
	assert.Equal(t, 20.0, gas[0])
	assert.Equal(t, 30.0, res.PriceCurve()[0])
}

func TestNoDispatchablesUsesCheapestAlwaysOnCost(t *testing.T) {
	a := participant.Participant{Key: "a", Kind: participant.MustRunProducer, MarginalCost: 12, OutputCapacity: 50, Units: 1}
	b := participant.Participant{Key: "b", Kind: participant.VolatileProducer, MarginalCost: 3, OutputCapacity: 50, Units: 1}
	res := calculate(t, newOrder(t, flatDemand("demand", 60), a, b))

	assert.Equal(t, 3.0, res.PriceCurve()[0])
	_, err := res.PriceSettingParticipant(0)
	assert.ErrorIs(t, err, ErrNoDispatchables)
}

func TestExcessAbsorbedByFlexThenCurtailed(t *testing.T) {
	mustRun := participant.Participant{Key: "wind", Kind: participant.VolatileProducer, OutputCapacity: 150, Units: 1}
	flex := participant.Participant{Key: "p2h", Kind: participant.GenericFlex, MarginalCost: 1, InputCapacity: 30, Units: 1}
	res := calculate(t, newOrder(t, flatDemand("demand", 100), mustRun, flex))

	in, err := res.Load("p2h")
	require.NoError(t, err)
	assert.Equal(t, 30.0, in[0])
	assert.Equal(t, 20.0, res.Curtailed()[0])
}

func TestExportLegBuysBelowItsCost(t *testing.T) {
	export := participant.Participant{Key: "nl_be_export", Kind: participant.ExportLeg, Link: "nl_be", MarginalCost: 50, InputCapacity: 40, Units: 1}
	res := calculate(t, newOrder(t, flatDemand("demand", 50), plant("coal", 10, 100), export))

	in, err := res.Load("nl_be_export")
	require.NoError(t, err)
	assert.Equal(t, 40.0, in[0])
	coal, _ := res.Load("coal")
	assert.Equal(t, 90.0, coal[0])
	assert.Equal(t, 10.0, res.PriceCurve()[0])

	export.MarginalCost = 5
	res = calculate(t, newOrder(t, flatDemand("demand", 50), plant("coal", 10, 100), export))
	in, _ = res.Load("nl_be_export")
	assert.Zero(t, in[0])
}

func TestOfflineUnitDoesNotProduce(t *testing.T) {
	off := plant("off", 5, 100)
	off.Availability = participant.Fraction(0)
	res := calculate(t, newOrder(t, flatDemand("demand", 50), off, plant("gas", 40, 100)))

	load, _ := res.Load("off")
	gas, _ := res.Load("gas")
	assert.Zero(t, load[0])
	assert.Equal(t, 50.0, gas[0])
	assert.Equal(t, 40.0, res.PriceCurve()[0])
}

func TestCommittedLegsIgnorePrice(t *testing.T) {
	imp := participant.Participant{Key: "de_nl_import", Kind: participant.ImportLeg, Link: "de_nl", MarginalCost: 90, OutputCapacity: 60, Units: 1, Committed: true}
	res := calculate(t, newOrder(t, flatDemand("demand", 100), plant("gas", 30, 100), imp))

	in, _ := res.Load("de_nl_import")
	gas, _ := res.Load("gas")
	assert.Equal(t, 60.0, in[0])
	assert.Equal(t, 40.0, gas[0])
	assert.Equal(t, 30.0, res.PriceCurve()[0])

	export := participant.Participant{Key: "nl_be_export", Kind: participant.ExportLeg, Link: "nl_be", MarginalCost: 5, InputCapacity: 40, Units: 1, Committed: true}
	res = calculate(t, newOrder(t, flatDemand("demand", 50), plant("coal", 10, 100), export))

	out, _ := res.Load("nl_be_export")
	coal, _ := res.Load("coal")
	assert.Equal(t, 40.0, out[0])
	assert.Equal(t, 90.0, coal[0])
}

func TestCommittedImportExcessIsNotReexported(t *testing.T) {
	imp := participant.Participant{Key: "de_nl_import", Kind: participant.ImportLeg, Link: "de_nl", OutputCapacity: 80, Units: 1, Committed: true}
	export := participant.Participant{Key: "nl_be_export", Kind: participant.ExportLeg, Link: "nl_be", MarginalCost: 200, InputCapacity: 30, Units: 1, Committed: true}
	flex := participant.Participant{Key: "p2h", Kind: participant.GenericFlex, MarginalCost: 1, InputCapacity: 20, Units: 1}
	res := calculate(t, newOrder(t, flatDemand("demand", 50), imp, export, flex))

	out, _ := res.Load("nl_be_export")
	p2h, _ := res.Load("p2h")
	assert.Zero(t, out[0])
	assert.Equal(t, 20.0, p2h[0])
	assert.Equal(t, 10.0, res.Curtailed()[0])
}

func TestExportLegSkipsImportLegs(t *testing.T) {
	imp := participant.Participant{Key: "de_nl_import", Kind: participant.ImportLeg, Link: "de_nl", MarginalCost: 1, OutputCapacity: 100, Units: 1}
	export := participant.Participant{Key: "nl_be_export", Kind: participant.ExportLeg, Link: "nl_be", MarginalCost: 50, InputCapacity: 40, Units: 1}
	res := calculate(t, newOrder(t, flatDemand("demand", 50), plant("coal", 10, 100), imp, export))

	in, _ := res.Load("de_nl_import")
	out, _ := res.Load("nl_be_export")
	coal, _ := res.Load("coal")
	assert.Equal(t, 50.0, in[0], "imports only serve local demand")
	assert.Equal(t, 40.0, out[0])
	assert.Equal(t, 40.0, coal[0])
}

func TestPricedSurplusAndDeficit(t *testing.T) {
	res := calculate(t, newOrder(t, flatDemand("demand", 150), plant("cheap", 10, 100), plant("dear", 20, 100)))

	assert.Equal(t, 50.0, res.SurplusBelow(0, 25))
	assert.Zero(t, res.SurplusBelow(0, 15), "the cheap plant is fully dispatched")
	assert.Equal(t, 50.0, res.DeficitAbove(0, 15))
	assert.Equal(t, 150.0, res.DeficitAbove(0, 5))
	assert.Zero(t, res.SurplusBelow(curve.Hours, 25))

	res = calculate(t, newOrder(t, flatDemand("demand", 300), plant("cheap", 10, 100), plant("dear", 20, 100)))
	assert.Equal(t, 100.0, res.DeficitAbove(0, 25), "unserved demand can always be displaced")
}

func TestBoundedStorageCarriesReserve(t *testing.T) {
	demand := curve.Constant(100)
	demand[0] = 0
	solar := participant.Participant{Key: "solar", Kind: participant.CurveProducer, LoadProfile: curve.Constant(50)}
	storage := participant.Participant{
		Key: "battery", Kind: participant.StorageFlex,
		InputCapacity: 50, OutputCapacity: 50, Units: 1, VolumeMWh: 100,
	}
	o := newOrder(t,
		participant.Participant{Key: "demand", Kind: participant.LoadCurveUser, LoadProfile: demand},
		solar, storage, plant("gas", 40, 100),
	)
	res := calculate(t, o)

	in, err := res.Input("battery")
	require.NoError(t, err)
	out, err := res.Load("battery")
	require.NoError(t, err)
	assert.Equal(t, 50.0, in[0])
	assert.Equal(t, 50.0, out[1])
	assert.Zero(t, out[2])

	gas, _ := res.Load("gas")
	assert.Zero(t, gas[1])
	assert.Equal(t, 50.0, gas[2])
	assert.Equal(t, 40.0, res.PriceCurve()[1])
}

func TestTotalConsumptionUser(t *testing.T) {
	user := participant.Participant{Key: "demand", Kind: participant.TotalConsumptionUser, TotalConsumption: 2 * curve.Hours}
	res := calculate(t, newOrder(t, user, plant("gas", 40, 100)))
	assert.InDelta(t, 2.0, res.Demand()[100], 1e-9)

	profile := curve.New()
	profile[3] = 1
	user.LoadProfile = profile
	res = calculate(t, newOrder(t, user, plant("gas", 40, 100)))
	assert.Zero(t, res.Demand()[2])
	assert.InDelta(t, 2*curve.Hours, res.Demand()[3], 1e-6)
}

func TestLifecycle(t *testing.T) {
	o := newOrder(t, flatDemand("demand", 150), plant("cheap", 10, 100), plant("dear", 20, 100))
	assert.Equal(t, Built, o.State())
	_, err := o.Result()
	assert.ErrorIs(t, err, ErrNotCalculated)

	first := calculate(t, o)
	assert.Equal(t, Calculated, o.State())

	_, err = o.Calculate()
	assert.ErrorIs(t, err, ErrStaleState)

	second, err := o.Calculate(WithAutoRebuild())
	require.NoError(t, err)
	assert.True(t, first.PriceCurve().Equal(second.PriceCurve()))

	require.NoError(t, o.AddParticipant(plant("peaker", 90, 50)))
	assert.Equal(t, Stale, o.State())
	_, err = o.Calculate()
	assert.ErrorIs(t, err, ErrStaleState)
	_, err = o.Result()
	assert.ErrorIs(t, err, ErrNotCalculated)

	o.Rebuild()
	assert.Equal(t, Built, o.State())
	res := calculate(t, o)
	ranking, err := res.DispatchRanking(0)
	require.NoError(t, err)
	assert.Len(t, ranking, 3)

	// results handed out earlier are unaffected
	oldRanking, err := first.DispatchRanking(0)
	require.NoError(t, err)
	assert.Len(t, oldRanking, 2)
}

func TestAddValidation(t *testing.T) {
	o := New()
	var verr *participant.ValidationError

	assert.ErrorAs(t, o.AddUser(plant("gas", 1, 1)), &verr)
	assert.ErrorAs(t, o.AddParticipant(flatDemand("d", 1)), &verr)
	require.NoError(t, o.AddParticipant(plant("gas", 1, 1)))
	assert.ErrorAs(t, o.AddParticipant(plant("gas", 2, 2)), &verr)
	assert.ErrorAs(t, o.AddParticipant(participant.Participant{Kind: participant.DispatchableProducer}), &verr)
	assert.Equal(t, 1, o.Len())
}

func TestInjectCurve(t *testing.T) {
	o := newOrder(t, flatDemand("demand", 150), plant("a", 10, 100), plant("b", 20, 100), plant("c", 30, 100))
	base := calculate(t, o)

	err := o.InjectCurve("missing", curve.Constant(1), AvailabilityCurve)
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing", nf.Key)
	assert.Equal(t, Calculated, o.State(), "failed injection leaves the order untouched")

	require.NoError(t, o.InjectCurve("c", curve.Constant(0.5), AvailabilityCurve))
	assert.Equal(t, Stale, o.State())
	o.Rebuild()
	res := calculate(t, o)
	assert.True(t, base.PriceCurve().Equal(res.PriceCurve()))
	aBase, _ := base.Load("a")
	aNow, _ := res.Load("a")
	assert.True(t, aBase.Equal(aNow))

	require.NoError(t, o.InjectCurve("b", curve.Constant(0.2), AvailabilityCurve))
	res, err = o.Calculate(WithAutoRebuild())
	require.NoError(t, err)
	assert.Equal(t, 30.0, res.PriceCurve()[10])
	aNow, _ = res.Load("a")
	assert.True(t, aBase.Equal(aNow))

	p, err := o.Participant("b")
	require.NoError(t, err)
	assert.Equal(t, 0.2, p.AvailabilityCurve[5])

	var verr *participant.ValidationError
	assert.ErrorAs(t, o.InjectCurve("b", nil, CostCurve), &verr)
	assert.ErrorAs(t, o.InjectCurve("b", curve.Constant(3), AvailabilityCurve), &verr)
}

func TestDispatchRanking(t *testing.T) {
	o := newOrder(t, flatDemand("demand", 50), plant("first", 10, 100), plant("second", 10, 100), plant("cheapest", 5, 20))
	res := calculate(t, o)

	_, err := res.DispatchRanking(-1)
	assert.ErrorIs(t, err, ErrNegativeHour)

	ranking, err := res.DispatchRanking(0)
	require.NoError(t, err)
	keys := []string{ranking[0].Key, ranking[1].Key, ranking[2].Key}
	assert.Equal(t, []string{"cheapest", "first", "second"}, keys)
	assert.Zero(t, ranking[0].Remaining)
	assert.Equal(t, 70.0, ranking[1].Remaining)

	beyond, err := res.DispatchRanking(curve.Hours + 5)
	require.NoError(t, err)
	for _, e := range beyond {
		assert.Equal(t, e.Capacity, e.Remaining)
	}
	assert.Equal(t, 100.0, beyond[1].Remaining)
}

func TestCostCurveReordersStackPerHour(t *testing.T) {
	imp := participant.Participant{Key: "de_nl_import", Kind: participant.ImportLeg, Link: "de_nl", OutputCapacity: 100, Units: 1, MarginalCost: 50}
	imp.CostCurve = curve.Constant(50)
	imp.CostCurve[1] = 5
	res := calculate(t, newOrder(t, flatDemand("demand", 100), plant("gas", 30, 100), imp))

	r0, _ := res.DispatchRanking(0)
	r1, _ := res.DispatchRanking(1)
	assert.Equal(t, "gas", r0[0].Key)
	assert.Equal(t, "de_nl_import", r1[0].Key)

	assert.Equal(t, 50.0, res.PriceCurve()[0])
	assert.Equal(t, 30.0, res.PriceCurve()[1])
	assert.Zero(t, res.Surplus()[0])
	assert.Equal(t, 100.0, res.Surplus()[1], "legs are not part of the surplus")
	assert.Equal(t, 100.0, res.Deficit()[0])
	assert.Zero(t, res.Deficit()[1])
}
