// Package app wires configuration, participant sources, the market area and
// the metrics sinks into a single simulation run.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/meurit/config"
	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/market"
	coremetrics "github.com/kilianp07/meurit/core/metrics"
	"github.com/kilianp07/meurit/infra/logger"
	"github.com/kilianp07/meurit/infra/metrics"
	"github.com/kilianp07/meurit/pkg/export"

	// sink registrations
	_ "github.com/kilianp07/meurit/infra/mqtt"
)

// Runner executes one simulation described by a configuration.
type Runner struct {
	cfg    *config.Config
	log    logger.Logger
	runID  string
	area   *market.Area
	sink   coremetrics.MetricsSink
	rounds []coremetrics.RoundEvent
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger overrides the runner logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithSink replaces the sinks declared in the configuration.
func WithSink(s coremetrics.MetricsSink) Option {
	return func(r *Runner) { r.sink = s }
}

// New builds the area described by cfg. The run identifier comes from
// simulation.run_id or a fresh UUID. ctx bounds the loading of remote
// reference prices.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runner, error) {
	r := &Runner{cfg: cfg, log: logger.New("runner"), runID: cfg.Simulation.RunID}
	for _, o := range opts {
		o(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	if r.sink == nil {
		s, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
		if err != nil {
			return nil, fmt.Errorf("metrics sinks: %w", err)
		}
		r.sink = s
	}
	area, err := buildArea(ctx, cfg, r.runID, r.log)
	if err != nil {
		return nil, errors.Join(err, r.Close())
	}
	area.AttachRecorder(r)
	r.area = area
	return r, nil
}

// RunID identifies the run in metrics, topics and exports.
func (r *Runner) RunID() string { return r.runID }

// Area exposes the simulated area.
func (r *Runner) Area() *market.Area { return r.area }

// Rounds returns the events recorded so far.
func (r *Runner) Rounds() []coremetrics.RoundEvent {
	return append([]coremetrics.RoundEvent(nil), r.rounds...)
}

// RecordRound logs progress and forwards the round to the sinks. Sink
// failures are logged and do not stop the run.
func (r *Runner) RecordRound(ev coremetrics.RoundEvent) error {
	r.rounds = append(r.rounds, ev)
	r.log.Infof("round %d (%s): %d passes", ev.Round, ev.Phase, ev.Passes)
	for _, z := range ev.Zones {
		r.log.Debugw("zone price", map[string]any{"round": ev.Round, "zone": z.Zone, "mean": z.Price.Mean, "min": z.Price.Min, "max": z.Price.Max})
	}
	for _, l := range ev.Links {
		r.log.Debugw("link volume", map[string]any{"round": ev.Round, "link": l.Link, "mean": l.Volume.Mean, "selected_hours": l.Selected})
	}
	if err := r.sink.RecordRound(ev); err != nil {
		r.log.Warnf("record round %d: %v", ev.Round, err)
	}
	return nil
}

// Run executes the isolated round and the configured coupling rounds, hands
// the final price curves to the sinks and writes the export. The scrape
// endpoint, when configured, lives until ctx is canceled.
func (r *Runner) Run(ctx context.Context) (*export.Report, error) {
	if addr := r.cfg.Prometheus.Listen; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, nil); err != nil {
				r.log.Errorf("prom server: %v", err)
			}
		}()
	}
	began := time.Now()
	r.log.Infof("run %s: %d zones, %d interconnectors, %d rounds", r.runID, len(r.area.Zones()), len(r.area.Interconnectors()), r.cfg.Simulation.RoundCount())
	if _, err := r.area.RunContext(ctx, r.cfg.Simulation.RoundCount()); err != nil {
		return nil, fmt.Errorf("run %s: %w", r.runID, err)
	}
	prices, err := r.area.PriceCurves()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", r.runID, err)
	}
	r.recordPrices(prices)

	report := &export.Report{RunID: r.runID, Start: r.cfg.Simulation.Start, Prices: prices, Rounds: r.Rounds()}
	if dir := r.cfg.Export.Dir; dir != "" {
		files, err := export.WriteDir(dir, r.cfg.Export.Format, *report)
		if err != nil {
			return report, fmt.Errorf("export: %w", err)
		}
		for _, f := range files {
			r.log.Infof("wrote %s", f)
		}
	}
	r.log.Infof("run %s finished in %s", r.runID, time.Since(began).Round(time.Millisecond))
	return report, nil
}

func (r *Runner) recordPrices(prices map[string]curve.Curve) {
	rec, ok := r.sink.(coremetrics.PriceCurveRecorder)
	if !ok {
		return
	}
	zones := make([]string, 0, len(prices))
	for z := range prices {
		zones = append(zones, z)
	}
	sort.Strings(zones)
	for _, z := range zones {
		ev := coremetrics.PriceCurveEvent{RunID: r.runID, Zone: z, Prices: prices[z], Start: r.cfg.Simulation.Start}
		if err := rec.RecordPriceCurve(ev); err != nil {
			r.log.Warnf("record price curve %s: %v", z, err)
		}
	}
}

// Close releases the sinks.
func (r *Runner) Close() error {
	if c, ok := r.sink.(coremetrics.Closer); ok {
		return c.Close()
	}
	return nil
}
