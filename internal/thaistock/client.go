// Package thaistock provides a client for the SET-derived 2D feed. It fetches the
// live SET reading and the published daily session results, and derives the 2D
// number locally from the raw SET index and value strings.
package thaistock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/twodoracle/internal/models"
)

var (
	// ErrEmptyResponse is returned when the feed answers with an empty body.
	ErrEmptyResponse = errors.New("feed returned an empty response")
	// ErrUnexpectedFormat is returned when the body is not the expected JSON document.
	ErrUnexpectedFormat = errors.New("feed response is not in the expected format")
)

// Client provides access to the 2D feed API
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// ClientConfig holds retry configuration for the client
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
}

// liveResponse is the /live payload
type liveResponse struct {
	Live *struct {
		Set   string `json:"set"`
		Value string `json:"value"`
		Time  string `json:"time"`
	} `json:"live"`
}

// apiResult is one session entry of the /2d_result payload
type apiResult struct {
	Set   string `json:"set"`
	Value string `json:"value"`
	TwoD  string `json:"twoD"`
}

// apiDailyResult is one day of the /2d_result payload
type apiDailyResult struct {
	Date  string     `json:"date"`
	S1100 *apiResult `json:"s11_00"`
	S1201 *apiResult `json:"s12_01"`
	S1500 *apiResult `json:"s15_00"`
	S1630 *apiResult `json:"s16_30"`
}

// NewClient creates a new feed client
func NewClient(baseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// FetchLive retrieves the current live SET reading. The 2D number is derived
// from the raw SET index and value, never taken from the feed.
func (c *Client) FetchLive(ctx context.Context) (*models.LiveReading, error) {
	body, err := c.get(ctx, "/live")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch live data: %w", err)
	}

	var resp liveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrUnexpectedFormat, err)
	}
	if resp.Live == nil || resp.Live.Set == "" || resp.Live.Value == "" {
		return nil, fmt.Errorf("%w: missing live reading", ErrUnexpectedFormat)
	}

	reading := &models.LiveReading{
		SetIndex:  resp.Live.Set,
		Value:     resp.Live.Value,
		TwoD:      Derive2D(resp.Live.Set, resp.Live.Value),
		UpdatedAt: resp.Live.Time,
		FetchedAt: time.Now(),
	}
	if err := reading.Validate(); err != nil {
		return nil, fmt.Errorf("invalid live reading: %w", err)
	}
	return reading, nil
}

// FetchDailyResults retrieves the published daily results, most recent day first.
func (c *Client) FetchDailyResults(ctx context.Context) ([]models.DailyResult, error) {
	body, err := c.get(ctx, "/2d_result")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daily results: %w", err)
	}

	return DecodeDailyResults(body)
}

// DecodeDailyResults decodes a /2d_result document. Days that fail validation
// are skipped.
func DecodeDailyResults(body []byte) ([]models.DailyResult, error) {
	var days []apiDailyResult
	if err := json.Unmarshal(body, &days); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrUnexpectedFormat, err)
	}

	now := time.Now()
	results := make([]models.DailyResult, 0, len(days))
	for _, d := range days {
		r := models.DailyResult{
			Date:      d.Date,
			S1100:     convertResult(d.S1100),
			S1201:     convertResult(d.S1201),
			S1500:     convertResult(d.S1500),
			S1630:     convertResult(d.S1630),
			UpdatedAt: now,
		}
		if err := r.Validate(); err != nil {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

func convertResult(r *apiResult) *models.SessionResult {
	if r == nil || r.Set == "" || r.Value == "" {
		return nil
	}
	twoD := models.TwoD(r.TwoD)
	if !twoD.Valid() {
		twoD = Derive2D(r.Set, r.Value)
	}
	return &models.SessionResult{Set: r.Set, Value: r.Value, TwoD: twoD}
}

// Derive2D computes the 2D number from a SET reading: the first digit is the
// last decimal digit of the index, the second digit is the last integer digit
// of the value. Missing parts fall back to "0".
func Derive2D(setIndex, value string) models.TwoD {
	cleanSet := strings.ReplaceAll(setIndex, ",", "")
	cleanValue := strings.ReplaceAll(value, ",", "")

	first := byte('0')
	if _, frac, ok := strings.Cut(cleanSet, "."); ok && frac != "" {
		first = frac[len(frac)-1]
	}

	second := byte('0')
	integer, _, _ := strings.Cut(cleanValue, ".")
	if integer != "" {
		second = integer[len(integer)-1]
	}

	return models.FromDigits(first, second)
}

// ParseReading parses the comma-grouped SET index and value into decimals.
func ParseReading(setIndex, value string) (decimal.Decimal, decimal.Decimal, error) {
	set, err := decimal.NewFromString(strings.ReplaceAll(setIndex, ",", ""))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid set index %q: %w", setIndex, err)
	}
	val, err := decimal.NewFromString(strings.ReplaceAll(value, ",", ""))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid set value %q: %w", value, err)
	}
	return set, val, nil
}

// get performs a GET request with retry logic and returns the body
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Cache-Control", "no-store")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return nil, ErrEmptyResponse
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
