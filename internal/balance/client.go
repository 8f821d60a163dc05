package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliostat/folio/internal/money"
)

// Client is an HTTP client for the wallet balance API with retry on 429.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// NewClient creates a new balance API client.
func NewClient(baseURL string, maxRetries int, baseDelay time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// balanceResponse is the wire form of one account's balance. Amounts are
// minor-unit decimal strings.
type balanceResponse struct {
	Currency     string `json:"currency"`
	Available    string `json:"available"`
	Pending      string `json:"pending"`
	Withdrawable string `json:"withdrawable"`
}

// FetchBalance fetches the balance split for an account. The response
// currency must match the account's currency.
func (c *Client) FetchBalance(ctx context.Context, account Account) (Snapshot, error) {
	var resp balanceResponse
	path := fmt.Sprintf("/v1/accounts/%s/balance", account.ID)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return Snapshot{}, fmt.Errorf("fetching balance for %s: %w", account.ID, err)
	}

	if resp.Currency != account.Currency.Code {
		return Snapshot{}, fmt.Errorf("balance for %s reported currency %s, account is %s",
			account.ID, resp.Currency, account.Currency.Code)
	}

	available, err := parseMinor(resp.Available, account.Currency)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parsing available for %s: %w", account.ID, err)
	}
	pending, err := parseMinor(resp.Pending, account.Currency)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parsing pending for %s: %w", account.ID, err)
	}
	withdrawable, err := parseMinor(resp.Withdrawable, account.Currency)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parsing withdrawable for %s: %w", account.ID, err)
	}

	return Snapshot{
		Available:    available,
		Pending:      pending,
		Withdrawable: withdrawable,
	}, nil
}

func parseMinor(s string, currency money.Currency) (money.Value, error) {
	if s == "" {
		return money.Zero(currency), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return money.Value{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return money.NewFromDecimal(d, currency), nil
}

// get performs a GET request with retry on 429.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path

	var lastErr error
	for attempt := range c.maxRetries + 1 {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("HTTP 429 at %s (attempt %d/%d)", url, attempt+1, c.maxRetries+1)
			if attempt < c.maxRetries {
				delay := c.baseDelay * time.Duration(1<<uint(attempt))
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return nil, lastErr
		}

		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, string(body))
	}

	return nil, lastErr
}

// getJSON performs a GET request and unmarshals the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parsing JSON from %s: %w", path, err)
	}
	return nil
}
