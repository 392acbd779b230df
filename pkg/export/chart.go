package export

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/meurit/core/curve"
)

// WritePriceChartHTML renders one line per zone over the simulated hours as a
// standalone html page.
func WritePriceChartHTML(w io.Writer, title string, start time.Time, prices map[string]curve.Curve) error {
	zones := make([]string, 0, len(prices))
	hours := 0
	for z, c := range prices {
		zones = append(zones, z)
		hours = max(hours, len(c))
	}
	sort.Strings(zones)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Date & Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Price (EUR/MWh)"}),
	)

	xAxis := make([]string, hours)
	for h := range xAxis {
		xAxis[h] = start.Add(time.Duration(h) * time.Hour).Format("2006-01-02 15:04")
	}
	line.SetXAxis(xAxis)
	for _, z := range zones {
		data := make([]opts.LineData, hours)
		for h := range data {
			data[h] = opts.LineData{Value: prices[z].At(h, 0)}
		}
		line.AddSeries(z, data)
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
