// Package finnhub is a price source backed by the Finnhub quote endpoint.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/simaogato/wealthflow-portfolio/internal/domain"
)

// DefaultBaseURL is the public Finnhub REST API
const DefaultBaseURL = "https://finnhub.io/api/v1"

// Config holds client configuration
type Config struct {
	APIKey     string
	BaseURL    string       // defaults to DefaultBaseURL
	HTTPClient *http.Client // defaults to a client with a 30s timeout
	Log        zerolog.Logger
}

// Client implements domain.PriceSource
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Finnhub client
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: finnhub API key is required", domain.ErrConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.HTTPClient,
		log:     cfg.Log.With().Str("client", "finnhub").Logger(),
	}, nil
}

// Name returns the provider name
func (c *Client) Name() string {
	return "finnhub"
}

// quoteResponse is the body of GET /quote
type quoteResponse struct {
	Current       float64 `json:"c"`
	PreviousClose float64 `json:"pc"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	Timestamp     int64   `json:"t"`
}

// Fetch returns the current price of symbol.
// Finnhub answers unknown symbols with 200 and a zero price; that zero is passed
// through and rejected as an invalid quote.
func (c *Client) Fetch(ctx context.Context, symbol string) (domain.PriceSnapshot, error) {
	endpoint := c.baseURL + "/quote?symbol=" + url.QueryEscape(symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.PriceSnapshot{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-Finnhub-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.PriceSnapshot{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Debug().
			Int("status", resp.StatusCode).
			Str("symbol", symbol).
			Msg("Non-success response")
		return domain.PriceSnapshot{}, fmt.Errorf("%w: HTTP %d %s", domain.ErrUpstreamStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var body quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.PriceSnapshot{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return domain.PriceSnapshot{
		Price:         body.Current,
		PreviousClose: body.PreviousClose,
	}, nil
}
