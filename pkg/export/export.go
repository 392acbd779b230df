// Package export writes simulation results to csv, json, yaml or an html
// price chart.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/metrics"
)

// Report is everything a run leaves behind.
type Report struct {
	RunID  string                 `json:"run_id" yaml:"run_id"`
	Start  time.Time              `json:"start" yaml:"start"`
	Prices map[string]curve.Curve `json:"prices" yaml:"prices"`
	Rounds []metrics.RoundEvent   `json:"rounds" yaml:"rounds"`
}

// WriteJSON writes the report to w in JSON format.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	return enc.Encode(r)
}

// WriteYAML writes the report to w in YAML format.
func WriteYAML(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// WritePricesCSV writes one row per hour and one column per zone, zones in
// name order.
func WritePricesCSV(w io.Writer, start time.Time, prices map[string]curve.Curve) error {
	zones := make([]string, 0, len(prices))
	hours := 0
	for z, c := range prices {
		zones = append(zones, z)
		hours = max(hours, len(c))
	}
	sort.Strings(zones)

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"hour", "timeslot"}, zones...)); err != nil {
		return err
	}
	for h := 0; h < hours; h++ {
		rec := []string{strconv.Itoa(h), start.Add(time.Duration(h) * time.Hour).Format(time.RFC3339)}
		for _, z := range zones {
			rec = append(rec, formatFloat(prices[z].At(h, 0)))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRoundsCSV writes the per-round price and volume summaries, one row per
// zone or link.
func WriteRoundsCSV(w io.Writer, rounds []metrics.RoundEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"round", "phase", "passes", "kind", "name", "mean", "min", "max", "selected_hours"}); err != nil {
		return err
	}
	for _, ev := range rounds {
		head := []string{strconv.Itoa(ev.Round), ev.Phase, strconv.Itoa(ev.Passes)}
		for _, z := range ev.Zones {
			rec := append(append([]string{}, head...), "price", z.Zone,
				formatFloat(z.Price.Mean), formatFloat(z.Price.Min), formatFloat(z.Price.Max), "")
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		for _, l := range ev.Links {
			rec := append(append([]string{}, head...), "volume", l.Link,
				formatFloat(l.Volume.Mean), formatFloat(l.Volume.Min), formatFloat(l.Volume.Max), strconv.Itoa(l.Selected))
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDir writes the report into dir. csv produces prices.csv and
// rounds.csv; json and yaml produce a single report file; html produces
// prices.html. It returns the paths written.
func WriteDir(dir, format string, r Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	var files []string
	write := func(name string, fn func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		files = append(files, path)
		return nil
	}
	var err error
	switch format {
	case "csv":
		err = write("prices.csv", func(w io.Writer) error { return WritePricesCSV(w, r.Start, r.Prices) })
		if err == nil {
			err = write("rounds.csv", func(w io.Writer) error { return WriteRoundsCSV(w, r.Rounds) })
		}
	case "json":
		err = write("report.json", func(w io.Writer) error { return WriteJSON(w, r) })
	case "yaml":
		err = write("report.yaml", func(w io.Writer) error { return WriteYAML(w, r) })
	case "html":
		err = write("prices.html", func(w io.Writer) error {
			return WritePriceChartHTML(w, "Prices "+r.RunID, r.Start, r.Prices)
		})
	default:
		err = fmt.Errorf("unknown export format %s", format)
	}
	return files, err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
