package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/meurit/core/metrics"
)

const namespace = "meurit"

// PromSink exposes the latest round summaries as Prometheus gauges.
type PromSink struct {
	price    *prometheus.GaugeVec
	volume   *prometheus.GaugeVec
	selected *prometheus.GaugeVec
	rounds   *prometheus.CounterVec
}

// NewPromSink registers the simulation metrics on the default registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	price, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "zone_price_eur_per_mwh",
		Help:      "Zonal price summary after the latest round",
	}, []string{"zone", "measure"}))
	if err != nil {
		return nil, err
	}
	volume, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "link_volume_mw",
		Help:      "Signed interconnector flow summary after the latest round",
	}, []string{"link", "measure"}))
	if err != nil {
		return nil, err
	}
	selected, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "link_selected_hours",
		Help:      "Hours in which the link was selected first in the latest round",
	}, []string{"link"}))
	if err != nil {
		return nil, err
	}
	rounds, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_total",
		Help:      "Completed calculation rounds",
	}, []string{"phase"}))
	if err != nil {
		return nil, err
	}
	return &PromSink{price: price, volume: volume, selected: selected, rounds: rounds}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRound sets the gauges to the round's summaries.
func (s *PromSink) RecordRound(ev coremetrics.RoundEvent) error {
	for _, z := range ev.Zones {
		s.price.WithLabelValues(z.Zone, "mean").Set(z.Price.Mean)
		s.price.WithLabelValues(z.Zone, "min").Set(z.Price.Min)
		s.price.WithLabelValues(z.Zone, "max").Set(z.Price.Max)
	}
	for _, l := range ev.Links {
		s.volume.WithLabelValues(l.Link, "mean").Set(l.Volume.Mean)
		s.volume.WithLabelValues(l.Link, "min").Set(l.Volume.Min)
		s.volume.WithLabelValues(l.Link, "max").Set(l.Volume.Max)
		s.selected.WithLabelValues(l.Link).Set(float64(l.Selected))
	}
	s.rounds.WithLabelValues(ev.Phase).Inc()
	return nil
}
