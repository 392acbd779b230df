package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/meurit/core/curve"
	coremetrics "github.com/kilianp07/meurit/core/metrics"
	"github.com/kilianp07/meurit/infra/logger"
)

// InfluxSink writes round summaries and hourly price curves to InfluxDB
// using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRound writes one zone_price point per zone and one link_volume
// point per link.
func (s *InfluxSink) RecordRound(ev coremetrics.RoundEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(ev.Zones)+len(ev.Links))
	for _, z := range ev.Zones {
		points = append(points, zonePoint(ev, z))
	}
	for _, l := range ev.Links {
		points = append(points, linkPoint(ev, l))
	}
	if len(points) == 0 {
		return nil
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordPriceCurve writes one zone_price_hourly point per hour, starting at
// ev.Start.
func (s *InfluxSink) RecordPriceCurve(ev coremetrics.PriceCurveEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	points := hourlyPoints(ev)
	if len(points) == 0 {
		return nil
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// Close releases the client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func zonePoint(ev coremetrics.RoundEvent, z coremetrics.ZoneSummary) *write.Point {
	return write.NewPointWithMeasurement("zone_price").
		AddTag("run_id", ev.RunID).
		AddTag("zone", z.Zone).
		AddTag("phase", ev.Phase).
		AddField("round", ev.Round).
		AddField("mean", round3(z.Price.Mean)).
		AddField("min", round3(z.Price.Min)).
		AddField("max", round3(z.Price.Max)).
		SetTime(ev.Time)
}

func linkPoint(ev coremetrics.RoundEvent, l coremetrics.LinkSummary) *write.Point {
	return write.NewPointWithMeasurement("link_volume").
		AddTag("run_id", ev.RunID).
		AddTag("link", l.Link).
		AddTag("phase", ev.Phase).
		AddField("round", ev.Round).
		AddField("mean", round3(l.Volume.Mean)).
		AddField("min", round3(l.Volume.Min)).
		AddField("max", round3(l.Volume.Max)).
		AddField("selected_hours", l.Selected).
		SetTime(ev.Time)
}

func hourlyPoints(ev coremetrics.PriceCurveEvent) []*write.Point {
	points := make([]*write.Point, 0, len(ev.Prices))
	for h := 0; h < len(ev.Prices) && h < curve.Hours; h++ {
		points = append(points, write.NewPointWithMeasurement("zone_price_hourly").
			AddTag("run_id", ev.RunID).
			AddTag("zone", ev.Zone).
			AddField("price", round3(ev.Prices[h])).
			SetTime(ev.Start.Add(time.Duration(h)*time.Hour)))
	}
	return points
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
