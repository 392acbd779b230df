package metrics_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/meurit/core/factory"
	metrics "github.com/kilianp07/meurit/core/metrics"
	_ "github.com/kilianp07/meurit/infra/metrics"
	_ "github.com/kilianp07/meurit/infra/mqtt"
)

type closingSink struct{ closed *int }

func (closingSink) RecordRound(metrics.RoundEvent) error { return nil }
func (s closingSink) Close() error {
	*s.closed++
	return nil
}

var closedSinks int

func init() {
	_ = metrics.RegisterMetricsSink("test-closing", func(map[string]any) (metrics.MetricsSink, error) {
		return closingSink{closed: &closedSinks}, nil
	})
	_ = metrics.RegisterMetricsSink("test-broken", func(map[string]any) (metrics.MetricsSink, error) {
		return nil, errors.New("broken")
	})
}

func TestMetricsFactoryBuiltins(t *testing.T) {
	assert.Subset(t, metrics.SinkTypes(), []string{"influx", "mqtt", "nop", "prometheus"})

	s, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	_, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.ErrorIs(t, err, factory.ErrUnknownModule)
}

func TestNewMetricsSinkMulti(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	require.NoError(t, err)
	m, ok := s.(*metrics.MultiSink)
	require.True(t, ok, "got %T", s)
	assert.Len(t, m.Sinks, 2)
}

func TestNewMetricsSinkClosesOnFailure(t *testing.T) {
	closedSinks = 0
	_, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "test-closing"}, {Type: "test-broken"}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "sink 1")
	assert.Equal(t, 1, closedSinks)
}

func TestMetricsConfigDecodeYAML(t *testing.T) {
	data := `sinks:
  - type: nop
  - type: nop
    conf:
      note: second
`
	var cfg metrics.Config
	require.NoError(t, yaml.Unmarshal([]byte(data), &cfg))
	require.Len(t, cfg.Sinks, 2)
	assert.Equal(t, "second", cfg.Sinks[1].Conf["note"])

	s, err := metrics.NewMetricsSink(cfg.Sinks)
	require.NoError(t, err)
	assert.IsType(t, &metrics.MultiSink{}, s)
}
