package cesa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/paulmach/orb/geojson"

	"github.com/cesa-global/disaster-reports-etl/internal/domain"
)

// Source produces one FeatureCollection of reports per disaster type.
type Source interface {
	GetReports(ctx context.Context, disasterType string) (*geojson.FeatureCollection, error)
}

// Client fetches disaster reports from the CESA / PetaBencana API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an API client. Transport-level retries are handled by
// retryablehttp; anything that still fails after retries propagates to the
// caller and is fatal for the run.
func NewClient(baseURL, userAgent string, timeout time.Duration, retries int, logger *slog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil

	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: rc.StandardClient(),
		logger:     logger,
	}
}

// GetReports fetches the trailing-week reports for one disaster type.
func (c *Client) GetReports(ctx context.Context, disasterType string) (*geojson.FeatureCollection, error) {
	params := url.Values{
		"timeperiod": {strconv.Itoa(int(domain.ReportWindow.Seconds()))},
		"geoformat":  {"geojson"},
		"disaster":   {disasterType},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// CESA asks that clients identify themselves.
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s reports: %w", disasterType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cesa API error: status %d: %s", resp.StatusCode, body)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", disasterType, err)
	}
	if env.Result == nil {
		return nil, fmt.Errorf("cesa API response for %s has no result", disasterType)
	}
	return env.Result, nil
}

// envelope is the upstream response wrapper around the feature collection.
type envelope struct {
	Result *geojson.FeatureCollection `json:"result"`
}
