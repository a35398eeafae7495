// Package thl fetches daily confirmed case counts from the processed THL
// (Finnish Institute for Health and Welfare) open data API.
//
// The API returns every hospital district at once; the client selects one
// region, orders its days and drops the most recent days, which are still
// being back-filled and would bias the estimate downwards.
package thl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rewired-gh/rtestimate/internal/logger"
	"github.com/rewired-gh/rtestimate/internal/models"
)

// Client provides access to the THL case data API
type Client struct {
	apiURL     string
	httpClient *http.Client
	config     ClientConfig
	now        func() time.Time
}

// ClientConfig holds retry and filtering parameters for the client
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
	SkipLastDays   int
}

// Record is one day of one region as returned by the API
type Record struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Response is the top level API payload
type Response struct {
	Confirmed map[string][]Record `json:"confirmed"`
}

// NewClient creates a new THL client
func NewClient(apiURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	return &Client{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
		now:        time.Now,
	}
}

// FetchCases retrieves the daily confirmed cases of region, oldest first,
// excluding the last SkipLastDays days before today.
func (c *Client) FetchCases(ctx context.Context, region string) (models.CaseSeries, error) {
	resp, err := c.doRequest(ctx, c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cases: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var payload Response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode cases: %w", err)
	}

	records, ok := payload.Confirmed[region]
	if !ok {
		return nil, fmt.Errorf("region not found in response: %s", region)
	}

	cases, err := toSeries(records)
	if err != nil {
		return nil, err
	}

	lastDay := truncateDay(c.now()).AddDate(0, 0, -c.config.SkipLastDays)
	logger.Info("Using %s data before %s (%d records)", region, lastDay.Format(time.DateOnly), len(records))
	return cases.Before(lastDay), nil
}

// toSeries converts API records into a date-ordered series. Records sharing
// a day are summed.
func toSeries(records []Record) (models.CaseSeries, error) {
	byDay := make(map[time.Time]float64, len(records))
	for _, r := range records {
		d, err := parseDate(r.Date)
		if err != nil {
			return nil, err
		}
		if _, dup := byDay[d]; dup {
			logger.Debug("Duplicate record for %s, summing", d.Format(time.DateOnly))
		}
		byDay[d] += r.Value
	}

	cases := make(models.CaseSeries, 0, len(byDay))
	for d, v := range byDay {
		cases = append(cases, models.Observation{Date: d, Count: v})
	}
	sort.Slice(cases, func(i, j int) bool {
		return cases[i].Date.Before(cases[j].Date)
	})
	return cases, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t.UTC()), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid record date: %q", s)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.config.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelayBase * time.Duration(i)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			logger.Warn("Case data request failed (attempt %d/%d): %v", i+1, c.config.MaxRetries, err)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			logger.Warn("Case data request failed (attempt %d/%d): %v", i+1, c.config.MaxRetries, lastErr)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
