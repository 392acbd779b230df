//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/meurit/app"
	"github.com/kilianp07/meurit/config"
	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/core/factory"
	coremetrics "github.com/kilianp07/meurit/core/metrics"
)

const (
	org    = "e2e_org"
	bucket = "e2e_bucket"
	token  = "e2e-token"
)

// junitReport is a minimal representation of a JUnit XML report. The E2E
// suite writes such a report so CI systems can display the results.
type junitReport struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string  `xml:"name,attr"`
	Failure *string `xml:"failure,omitempty"`
	Time    float64 `xml:"time,attr"`
}

// writeJUnit writes the provided report to the given path.
func writeJUnit(path string, rep junitReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	return enc.Encode(rep)
}

// startInflux starts an InfluxDB 2.7 container initialised with the test
// organisation, bucket and token, and returns it with its base URL.
func startInflux(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         org,
			"DOCKER_INFLUXDB_INIT_BUCKET":      bucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": token,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	return cont, fmt.Sprintf("http://%s:%s", host, port.Port())
}

// startMosquitto spins up a Mosquitto broker accepting anonymous clients.
func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "1883")
	return cont, fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

func zoneFolder(t *testing.T, supply string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"supply.csv":          "key,type,marginal_costs,output_capacity_per_unit,number_of_units\n" + supply,
		"demand.csv":          "key,load_profile\n:demand,profile.csv\n",
		"profile.csv":         strings.Repeat("1000\n", curve.Hours),
		"flex.csv":            "key,type\n",
		"interconnectors.csv": "key,p_mw,marginal_costs,in_service,to_region\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

// Test_E2E_RunPublishesToSinks runs a two zone simulation with the influx
// and mqtt sinks enabled and checks both backends received the run.
func Test_E2E_RunPublishesToSinks(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	influxCont, influxURL := startInflux(ctx, t)
	defer influxCont.Terminate(ctx) //nolint:errcheck
	mqttCont, mqttURL := startMosquitto(ctx, t)
	defer mqttCont.Terminate(ctx) //nolint:errcheck
	t.Logf("InfluxDB started at %s", influxURL)
	t.Logf("Mosquitto started at %s", mqttURL)

	cli := NewInfluxClient(influxURL, org, bucket, token)
	defer cli.Close()
	require.NoError(t, cli.SetupBucket(ctx))

	received := make(chan paho.Message, 64)
	sub := paho.NewClient(paho.NewClientOptions().AddBroker(mqttURL).SetClientID("e2e-subscriber"))
	tok := sub.Connect()
	require.True(t, tok.WaitTimeout(10*time.Second))
	require.NoError(t, tok.Error())
	defer sub.Disconnect(250)
	tok = sub.Subscribe("meurit/e2e/#", 1, func(_ paho.Client, m paho.Message) { received <- m })
	require.True(t, tok.WaitTimeout(10*time.Second))
	require.NoError(t, tok.Error())

	rounds := 2
	cfg := &config.Config{
		Zones: []config.ZoneConfig{
			{Name: "a", Source: zoneFolder(t, ":coal,DispatchableProducer,20,2000,1\n")},
			{Name: "b", Source: zoneFolder(t, ":gas,DispatchableProducer,60,2000,1\n")},
		},
		Interconnectors: []config.InterconnectorConfig{{From: "a", To: "b", CapacityMW: 500}},
		Metrics: coremetrics.Config{Sinks: []factory.ModuleConfig{
			{Type: "influx", Conf: map[string]any{"url": influxURL, "token": token, "org": org, "bucket": bucket}},
			{Type: "mqtt", Conf: map[string]any{"broker": mqttURL, "client_id": "e2e-runner", "qos": 1}},
		}},
	}
	cfg.Simulation.Rounds = &rounds
	cfg.Simulation.RunID = "e2e"
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	start := time.Now()
	r, err := app.New(ctx, cfg)
	require.NoError(t, err)
	report, err := r.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, 20.0, report.Prices["a"][0])

	// three round summaries, then one price curve per zone
	var roundMsgs, priceMsgs int
	timeout := time.After(10 * time.Second)
	for roundMsgs < rounds+1 || priceMsgs < 2 {
		select {
		case m := <-received:
			switch {
			case m.Topic() == "meurit/e2e/round":
				var ev coremetrics.RoundEvent
				require.NoError(t, json.Unmarshal(m.Payload(), &ev))
				assert.Equal(t, "e2e", ev.RunID)
				roundMsgs++
			case strings.HasPrefix(m.Topic(), "meurit/e2e/prices/"):
				priceMsgs++
			}
		case <-timeout:
			t.Fatalf("received %d round and %d price messages", roundMsgs, priceMsgs)
		}
	}

	for _, m := range []string{"zone_price", "link_volume", "zone_price_hourly"} {
		n, err := cli.Count(ctx, m, "e2e")
		require.NoError(t, err)
		assert.Positive(t, n, m)
	}

	dir := t.TempDir()
	rep := junitReport{Name: "e2e", Tests: 1, Cases: []junitTestCase{{Name: "Test_E2E_RunPublishesToSinks", Time: time.Since(start).Seconds()}}}
	if err := writeJUnit(filepath.Join(dir, "e2e.xml"), rep); err != nil {
		t.Logf("write junit: %v", err)
	}
}
