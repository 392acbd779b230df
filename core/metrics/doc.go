// Package metrics defines the events emitted while a simulation runs and the
// sinks that record them. Every sink records round summaries; sinks able to
// store full hourly series also implement PriceCurveRecorder. Several sinks
// are combined with NewMultiSink, which the factory helpers return when more
// than one sink is configured.
package metrics
