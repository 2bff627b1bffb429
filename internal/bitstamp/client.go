// Package bitstamp provides the Bitstamp HTTP API client used to fetch
// minute-resolution OHLC data.
//
// The client paces requests with a rate limiter, decodes the ohlc payload
// tolerantly (fields may arrive as JSON strings or bare numbers), validates
// every row, and filters the response down to the requested half-open window.
package bitstamp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mczielinski/kaggle-bitcoin/internal/config"
	"github.com/mczielinski/kaggle-bitcoin/internal/models"
)

const (
	// Bitstamp public API base URL
	defaultBaseURL = "https://www.bitstamp.net"

	// OHLC endpoint, parameterized by currency pair
	ohlcEndpoint = "/api/v2/ohlc/%s/"

	// Candle resolution in seconds. The dataset is minute bars only.
	barStep = 60

	// Hard API cap on rows per request.
	maxRowsPerRequest = 1000

	// Request configuration defaults, used when the config leaves them unset.
	defaultRequestTimeout = 60 * time.Second
	defaultRequestPause   = time.Second
)

// Client fetches OHLC candles from the Bitstamp public API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Bitstamp client from configuration. Unset config
// fields fall back to the package defaults; a pause of exactly zero disables
// request pacing rather than reverting to the default.
func NewClient(cfg config.BitstampConfig, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	// rate.Every treats a zero pause as an unlimited rate.
	pause := cfg.RequestPause
	if pause < 0 {
		pause = defaultRequestPause
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Every(pause), 1),
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// FetchOHLC retrieves the minute bars for pair covering the half-open window
// [r.Start, r.End). The window must span at most maxRowsPerRequest bars; the
// caller is expected to chunk larger gaps.
//
// Start and end are passed to the API verbatim. Bitstamp treats both bounds as
// inclusive, so the response may carry one extra bar at r.End; rows outside
// the window are filtered out before returning.
func (c *Client) FetchOHLC(ctx context.Context, pair string, r models.TimeRange) ([]models.Bar, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fetch range: %w", err)
	}
	if r.Seconds() > maxRowsPerRequest*barStep {
		return nil, fmt.Errorf("fetch range %s spans %d bars, maximum is %d", r, r.Bars(), maxRowsPerRequest)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	requestURL := fmt.Sprintf(c.baseURL+ohlcEndpoint, url.PathEscape(pair))

	params := url.Values{}
	params.Add("step", strconv.Itoa(barStep))
	params.Add("limit", strconv.Itoa(maxRowsPerRequest))
	params.Add("start", strconv.FormatInt(r.Start, 10))
	params.Add("end", strconv.FormatInt(r.End, 10))

	c.logger.Debug("fetching ohlc chunk",
		"pair", pair,
		"start", r.Start,
		"end", r.End)

	body, err := c.makeRequest(ctx, requestURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var apiResponse struct {
		Data struct {
			Pair string    `json:"pair"`
			OHLC []ohlcRow `json:"ohlc"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to parse ohlc response: %w", err)
	}

	bars := make([]models.Bar, 0, len(apiResponse.Data.OHLC))
	for _, row := range apiResponse.Data.OHLC {
		bar, err := c.convertRow(row)
		if err != nil {
			c.logger.Warn("skipping malformed ohlc row",
				"error", err,
				"pair", pair)
			continue
		}
		if !r.Contains(bar.Timestamp) {
			continue
		}
		bars = append(bars, *bar)
	}

	c.logger.Debug("fetched ohlc chunk",
		"pair", pair,
		"rows", len(apiResponse.Data.OHLC),
		"bars", len(bars))

	return bars, nil
}

func (c *Client) makeRequest(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "kaggle-bitcoin/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}

func (c *Client) convertRow(row ohlcRow) (*models.Bar, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(string(row.Timestamp)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", string(row.Timestamp), err)
	}

	return models.NewBar(ts,
		string(row.Open),
		string(row.High),
		string(row.Low),
		string(row.Close),
		string(row.Volume),
	)
}

// API response structures

type ohlcRow struct {
	Timestamp flexString `json:"timestamp"`
	Open      flexString `json:"open"`
	High      flexString `json:"high"`
	Low       flexString `json:"low"`
	Close     flexString `json:"close"`
	Volume    flexString `json:"volume"`
}

// flexString accepts a JSON string or a bare number token. Bitstamp usually
// quotes OHLC fields but is not consistent about it across endpoints.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
