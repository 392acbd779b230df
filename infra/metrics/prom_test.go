package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/meurit/core/curve"
	coremetrics "github.com/kilianp07/meurit/core/metrics"
)

func TestPromSink_RecordRound(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	ev := coremetrics.RoundEvent{
		Round: 1,
		Phase: "coupled",
		Zones: []coremetrics.ZoneSummary{{Zone: "nl", Price: curve.Summary{Mean: 45, Min: 20, Max: 80}}},
		Links: []coremetrics.LinkSummary{{Link: "nl_be", Volume: curve.Summary{Mean: 100, Min: -50, Max: 700}, Selected: 12}},
	}
	if err := sink.RecordRound(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}

	expected := `
# HELP meurit_zone_price_eur_per_mwh Zonal price summary after the latest round
# TYPE meurit_zone_price_eur_per_mwh gauge
meurit_zone_price_eur_per_mwh{measure="max",zone="nl"} 80
meurit_zone_price_eur_per_mwh{measure="mean",zone="nl"} 45
meurit_zone_price_eur_per_mwh{measure="min",zone="nl"} 20
`
	if err := testutil.CollectAndCompare(sink.price, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if v := testutil.ToFloat64(sink.volume.WithLabelValues("nl_be", "min")); v != -50 {
		t.Errorf("volume min = %v", v)
	}
	if v := testutil.ToFloat64(sink.selected.WithLabelValues("nl_be")); v != 12 {
		t.Errorf("selected = %v", v)
	}
	if v := testutil.ToFloat64(sink.rounds.WithLabelValues("coupled")); v != 1 {
		t.Errorf("rounds = %v", v)
	}
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first sink: %v", err)
	}
	second, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second sink: %v", err)
	}
	if first.rounds != second.rounds {
		t.Fatalf("expected shared collectors")
	}
	_ = second.RecordRound(coremetrics.RoundEvent{Phase: "isolated"})
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "meurit_rounds_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("rounds counter not gathered")
	}
}
