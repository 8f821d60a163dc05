package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliostat/folio/internal/money"
)

// symbolMapping maps currency codes to price API asset IDs.
var symbolMapping = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"XLM":  "stellar",
	"USDT": "tether",
}

// Client fetches exchange rates from a CoinGecko-compatible price API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	delay      time.Duration
	maxRetries int
}

// NewClient creates a new rate API client. delay is the base backoff between
// retry attempts.
func NewClient(baseURL string, delay time.Duration, maxRetries int) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		delay:      delay,
		maxRetries: maxRetries,
	}
}

// FetchRate fetches the price of 1 unit of base in quote. A base equal to
// the quote short-circuits to an identity rate without a network call.
// Amounts are decoded as decimal strings so no float drift enters the
// money path.
func (c *Client) FetchRate(ctx context.Context, base, quote money.Currency) (money.Value, error) {
	if base.Code == quote.Code {
		return money.NewFromMajor(decimal.NewFromInt(1), quote), nil
	}

	id, ok := symbolMapping[base.Code]
	if !ok {
		return money.Value{}, fmt.Errorf("%w: no asset mapping for %s", ErrNoRate, base.Code)
	}
	vs := strings.ToLower(quote.Code)

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s", c.baseURL, id, vs)
	body, err := c.fetchWithRetry(ctx, url)
	if err != nil {
		return money.Value{}, err
	}

	// Parse: {"bitcoin":{"usd":50000.12}}
	var raw map[string]map[string]json.Number
	if err := json.Unmarshal(body, &raw); err != nil {
		return money.Value{}, fmt.Errorf("parsing rate response: %w", err)
	}

	prices, ok := raw[id]
	if !ok {
		return money.Value{}, fmt.Errorf("%w: %s/%s missing from response", ErrNoRate, base.Code, quote.Code)
	}
	price, ok := prices[vs]
	if !ok {
		return money.Value{}, fmt.Errorf("%w: %s/%s missing quote currency", ErrNoRate, base.Code, quote.Code)
	}

	d, err := decimal.NewFromString(price.String())
	if err != nil {
		return money.Value{}, fmt.Errorf("parsing rate %q for %s/%s: %w", price, base.Code, quote.Code, err)
	}

	return money.NewFromMajor(d, quote), nil
}

func (c *Client) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries + 1 {
		if attempt > 0 {
			baseDelay := c.delay
			if baseDelay == 0 {
				baseDelay = 10 * time.Second
			}
			delay := baseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating rate request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("rate request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading rate response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("HTTP 429 from rate API (attempt %d/%d)", attempt+1, c.maxRetries+1)
			continue
		}

		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, string(body))
	}

	return nil, lastErr
}
