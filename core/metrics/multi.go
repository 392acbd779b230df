package metrics

import "errors"

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRound forwards the event to all sinks, returning the first error.
func (m *MultiSink) RecordRound(ev RoundEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordRound(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordPriceCurve forwards the curve to the sinks that store series.
func (m *MultiSink) RecordPriceCurve(ev PriceCurveEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PriceCurveRecorder); ok {
			if err := rec.RecordPriceCurve(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink holding a connection.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
