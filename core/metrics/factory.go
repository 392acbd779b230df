package metrics

import (
	"errors"
	"fmt"

	"github.com/kilianp07/meurit/core/factory"
)

var sinkRegistry = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink adds a sink factory under the type name used in
// metrics.sinks[].type.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// SinkTypes lists the registered sink types.
func SinkTypes() []string { return sinkRegistry.Types() }

// NewMetricsSink builds the configured sinks. No config yields a NopSink and
// several configs a MultiSink. When one sink fails, those already opened are
// closed.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	switch len(cfgs) {
	case 0:
		return NopSink{}, nil
	case 1:
		return sinkRegistry.Create(cfgs[0])
	}
	sinks := make([]MetricsSink, 0, len(cfgs))
	for i, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			err = fmt.Errorf("sink %d: %w", i, err)
			return nil, errors.Join(err, NewMultiSink(sinks...).Close())
		}
		sinks = append(sinks, s)
	}
	return NewMultiSink(sinks...), nil
}
