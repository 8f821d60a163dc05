package balance

import (
	"context"
)

// Source exposes the asynchronous balance of one account. Implementations
// wrap whatever backend actually holds the number; the aggregation layer
// treats any fetch error uniformly as "fetch failed".
type Source interface {
	Account() Account
	FetchBalance(ctx context.Context) (Snapshot, error)
}

// ClientSource is a Source backed by the balance API client.
type ClientSource struct {
	account Account
	client  *Client
}

// NewClientSource binds an account to the balance API client.
func NewClientSource(account Account, client *Client) *ClientSource {
	return &ClientSource{account: account, client: client}
}

// Account returns the bound account.
func (s *ClientSource) Account() Account {
	return s.account
}

// FetchBalance fetches the account's balance split from the backend.
func (s *ClientSource) FetchBalance(ctx context.Context) (Snapshot, error) {
	return s.client.FetchBalance(ctx, s.account)
}
