package metrics

import (
	"time"

	"github.com/kilianp07/meurit/core/curve"
)

// ZoneSummary is the price summary of one zone after a round.
type ZoneSummary struct {
	Zone  string        `json:"zone" yaml:"zone"`
	Price curve.Summary `json:"price" yaml:"price"`
}

// LinkSummary is the signed flow summary of one interconnector after a round.
type LinkSummary struct {
	Link     string        `json:"link" yaml:"link"`
	Volume   curve.Summary `json:"volume" yaml:"volume"`
	Selected int           `json:"selected_hours" yaml:"selected_hours"`
}

// RoundEvent describes one completed calculation round. Round 0 is the
// isolated calculation.
type RoundEvent struct {
	RunID  string        `json:"run_id" yaml:"run_id"`
	Round  int           `json:"round" yaml:"round"`
	Phase  string        `json:"phase" yaml:"phase"`
	Passes int           `json:"passes" yaml:"passes"`
	Zones  []ZoneSummary `json:"zones" yaml:"zones"`
	Links  []LinkSummary `json:"links" yaml:"links"`
	Time   time.Time     `json:"time" yaml:"time"`
}

// MetricsSink records round summaries.
type MetricsSink interface {
	RecordRound(ev RoundEvent) error
}

// RoundRecorder is the collaborator an Area reports rounds to.
type RoundRecorder = MetricsSink

// PriceCurveEvent carries the final hourly price curve of a zone.
type PriceCurveEvent struct {
	RunID  string
	Zone   string
	Prices curve.Curve
	Start  time.Time
}

// PriceCurveRecorder is implemented by sinks able to store hourly series.
type PriceCurveRecorder interface {
	RecordPriceCurve(ev PriceCurveEvent) error
}

// Closer is implemented by sinks holding connections.
type Closer interface {
	Close() error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRound(RoundEvent) error           { return nil }
func (NopSink) RecordPriceCurve(PriceCurveEvent) error { return nil }
