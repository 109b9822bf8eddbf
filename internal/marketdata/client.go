// Package marketdata fetches live asset prices from the Alpha Vantage API.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrNoQuote is returned when the API answers without quote data, usually
// an unknown ticker or an exhausted rate limit.
var ErrNoQuote = errors.New("no quote data returned")

// Client communicates with the Alpha Vantage quote endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new market data client.
func NewClient(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("component", "marketdata").Logger(),
	}
}

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
}

// FetchPrice returns the latest quoted price for a ticker.
func (c *Client) FetchPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", ticker)
	q.Set("apikey", c.apiKey)
	reqURL := fmt.Sprintf("%s/query?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return decimal.Zero, fmt.Errorf("market data API returned status %d: %s", resp.StatusCode, string(body))
	}

	var quote globalQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode response: %w", err)
	}
	if quote.GlobalQuote.Price == "" {
		c.log.Warn().Str("ticker", ticker).Msg("empty quote response, rate limit or unknown ticker")
		return decimal.Zero, fmt.Errorf("%s: %w", ticker, ErrNoQuote)
	}

	price, err := decimal.NewFromString(quote.GlobalQuote.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse price %q: %w", quote.GlobalQuote.Price, err)
	}

	c.log.Debug().Str("ticker", ticker).Str("price", price.String()).Msg("price fetched")
	return price, nil
}

// Available reports whether the API answers with usable quote data.
func (c *Client) Available(ctx context.Context) bool {
	_, err := c.FetchPrice(ctx, "AAPL")
	return err == nil
}
