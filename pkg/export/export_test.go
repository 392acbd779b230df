package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/metrics"
)

var start = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

func sampleReport() Report {
	return Report{
		RunID:  "run-1",
		Start:  start,
		Prices: map[string]curve.Curve{"nl": {20, 30.5}, "be": {80, 80}},
		Rounds: []metrics.RoundEvent{{
			RunID: "run-1",
			Round: 1,
			Phase: "coupled",
			Zones: []metrics.ZoneSummary{{Zone: "nl", Price: curve.Summary{Mean: 25.25, Min: 20, Max: 30.5}}},
			Links: []metrics.LinkSummary{{Link: "nl_be", Volume: curve.Summary{Mean: 350, Max: 700}, Selected: 2}},
		}},
	}
}

func TestWritePricesCSV(t *testing.T) {
	var buf bytes.Buffer
	r := sampleReport()
	require.NoError(t, WritePricesCSV(&buf, r.Start, r.Prices))
	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"hour", "timeslot", "be", "nl"}, recs[0])
	assert.Equal(t, []string{"1", "2019-01-01T01:00:00Z", "80", "30.5"}, recs[2])
}

func TestWriteRoundsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRoundsCSV(&buf, sampleReport().Rounds))
	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"1", "coupled", "0", "price", "nl", "25.25", "20", "30.5", ""}, recs[1])
	assert.Equal(t, []string{"1", "coupled", "0", "volume", "nl_be", "350", "0", "700", "2"}, recs[2])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))
	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got["run_id"])
	assert.Len(t, got["rounds"], 1)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, sampleReport()))
	var got struct {
		RunID  string `yaml:"run_id"`
		Rounds []struct {
			Links []struct {
				Selected int `yaml:"selected_hours"`
			} `yaml:"links"`
		} `yaml:"rounds"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 2, got.Rounds[0].Links[0].Selected)
}

func TestWriteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	files, err := WriteDir(dir, "csv", sampleReport())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "prices.csv"), filepath.Join(dir, "rounds.csv")}, files)
	for _, f := range files {
		_, err := os.Stat(f)
		assert.NoError(t, err)
	}

	files, err = WriteDir(dir, "yaml", sampleReport())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "report.yaml")}, files)

	files, err = WriteDir(dir, "html", sampleReport())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "prices.html")}, files)

	_, err = WriteDir(dir, "xml", sampleReport())
	assert.Error(t, err)
}

func TestWritePriceChartHTML(t *testing.T) {
	var buf bytes.Buffer
	r := sampleReport()
	require.NoError(t, WritePriceChartHTML(&buf, "Prices run-1", r.Start, r.Prices))
	out := buf.String()
	assert.True(t, strings.Contains(out, "<html"), "a full page is rendered")
	assert.Contains(t, out, "Prices run-1")
	assert.Contains(t, out, "2019-01-01 01:00")
}
