// Package wholesale fetches observed day-ahead prices from the RTE wholesale
// market API and turns them into hourly reference curves.
package wholesale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/infra/logger"
)

// DefaultBaseURL is the France power exchanges endpoint.
const DefaultBaseURL = "https://digital.iservices.rte-france.com/open_api/wholesale_market/v2/france_power_exchanges"

// DefaultWindow bounds the period requested in one call.
const DefaultWindow = 7 * 24 * time.Hour

// ErrNoPrices is returned when the requested period holds no value.
var ErrNoPrices = errors.New("no wholesale prices in period")

// Response is the payload of the France power exchanges endpoint.
type Response struct {
	FrancePowerExchanges []struct {
		StartDate   string `json:"start_date"`
		EndDate     string `json:"end_date"`
		UpdatedDate string `json:"updated_date"`
		Values      []struct {
			StartDate string  `json:"start_date"`
			EndDate   string  `json:"end_date"`
			Value     float64 `json:"value"`
			Price     float64 `json:"price"`
		} `json:"values"`
	} `json:"france_power_exchanges"`
}

// Client reads prices for a period.
type Client struct {
	baseURL string
	window  time.Duration
	auth    *ClientCred
	http    *http.Client
	log     logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithWindow sets the longest period requested per call.
func WithWindow(d time.Duration) Option {
	return func(c *Client) { c.window = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger used for gap warnings.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient returns a client authenticating with auth.
func NewClient(auth AuthConfig, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		window:  DefaultWindow,
		auth:    NewClientCred(auth),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logger.NopLogger{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.window <= 0 {
		c.window = DefaultWindow
	}
	return c
}

// Fetch requests [start, end) in windows and returns the raw responses.
func (c *Client) Fetch(ctx context.Context, start, end time.Time) ([]Response, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("end %s must be after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	var out []Response
	for from := start; from.Before(end); from = from.Add(c.window) {
		to := from.Add(c.window)
		if to.After(end) {
			to = end
		}
		r, err := c.fetch(ctx, from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, start, end time.Time) (*Response, error) {
	q := url.Values{}
	q.Set("start_date", start.Format(time.RFC3339))
	q.Set("end_date", end.Format(time.RFC3339))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if err := c.auth.SetAuthHeader(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to set auth header: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}
	var r Response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &r, nil
}

// Prices fetches [start, end) and returns one price per hour from start.
// Sub-hourly values are averaged; hours without a value take the previous
// hour's price, or the next known price at the beginning of the period.
func (c *Client) Prices(ctx context.Context, start, end time.Time) (curve.Curve, error) {
	rs, err := c.Fetch(ctx, start, end)
	if err != nil {
		return nil, err
	}
	prices, missing, err := Hourly(rs, start, end)
	if err != nil {
		return nil, err
	}
	if missing > 0 {
		c.log.Warnf("wholesale prices: filled %d hours without value", missing)
	}
	return prices, nil
}

// Hourly buckets response values into hours of [start, end). It returns the
// number of hours that had to be filled.
func Hourly(rs []Response, start, end time.Time) (curve.Curve, int, error) {
	hours := int(end.Sub(start) / time.Hour)
	sum := make([]float64, hours)
	n := make([]int, hours)
	for _, r := range rs {
		for _, ex := range r.FrancePowerExchanges {
			for _, v := range ex.Values {
				at, err := time.Parse(time.RFC3339, v.StartDate)
				if err != nil {
					return nil, 0, fmt.Errorf("failed to parse time: %w", err)
				}
				h := int(at.Sub(start) / time.Hour)
				if at.Before(start) || h >= hours {
					continue
				}
				sum[h] += v.Price
				n[h]++
			}
		}
	}

	out := make(curve.Curve, hours)
	first := -1
	for h := range out {
		if n[h] > 0 {
			out[h] = sum[h] / float64(n[h])
			if first < 0 {
				first = h
			}
		}
	}
	if first < 0 {
		return nil, 0, ErrNoPrices
	}
	missing := 0
	for h := range out {
		switch {
		case n[h] > 0:
		case h < first:
			out[h] = out[first]
			missing++
		default:
			out[h] = out[h-1]
			missing++
		}
	}
	return out, missing, nil
}
