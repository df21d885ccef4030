package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashokbharathi-s/gkehackathon/internal/circuitbreaker"
	"github.com/ashokbharathi-s/gkehackathon/internal/metrics"
	"github.com/ashokbharathi-s/gkehackathon/internal/roster"
)

// Breaker keys, one per downstream service.
const (
	serviceBalance = "balance"
	serviceHistory = "history"
)

// TokenIssuer signs bearer tokens for bank API calls. A nil implementation
// result (empty token) means the call goes out unauthenticated.
type TokenIssuer interface {
	Issue(username, accountID string) (string, error)
}

// Client reads balances and transaction history for accounts.
type Client struct {
	balanceURL string
	historyURL string
	issuer     TokenIssuer
	http       *http.Client
	breaker    *circuitbreaker.Breaker
	logger     *slog.Logger
}

// NewClient creates a bank API client. issuer may be nil.
func NewClient(balanceURL, historyURL string, issuer TokenIssuer, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		balanceURL: balanceURL,
		historyURL: historyURL,
		issuer:     issuer,
		http:       &http.Client{Timeout: timeout},
		breaker:    circuitbreaker.New(5, 30*time.Second),
		logger:     logger,
	}
}

// Snapshot fetches balance and transactions for one account. It never
// returns an error: whatever could not be read is absent from the result.
func (c *Client) Snapshot(ctx context.Context, account roster.Account) *Snapshot {
	return &Snapshot{
		Balance:      c.Balance(ctx, account),
		Transactions: c.Transactions(ctx, account),
	}
}

// Balance returns the current balance for the account, or nil when the
// balance service is unreachable, rejects the call, or answers with a shape
// we cannot read.
func (c *Client) Balance(ctx context.Context, account roster.Account) *float64 {
	if !c.breaker.Allow(serviceBalance) {
		c.logger.Debug("balance circuit open, skipping call", "account", account.ID)
		return nil
	}

	body, err := c.get(ctx, serviceBalance, fmt.Sprintf("%s/balances/%s", c.balanceURL, account.ID), account)
	if err != nil {
		c.logger.Info("balance unavailable", "account", account.ID, "error", err)
		return nil
	}

	// The service returns either a bare number or an object holding one.
	var direct float64
	if err := json.Unmarshal(body, &direct); err == nil {
		return &direct
	}
	var wrapped struct {
		Balance float64 `json:"balance"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		return &wrapped.Balance
	}

	metrics.BankAPIErrorsTotal.WithLabelValues(serviceBalance).Inc()
	c.logger.Warn("unexpected balance response shape", "account", account.ID)
	return nil
}

// Transactions returns recent transactions for the account, newest first.
// Any failure yields an empty list.
func (c *Client) Transactions(ctx context.Context, account roster.Account) []Transaction {
	if !c.breaker.Allow(serviceHistory) {
		c.logger.Debug("history circuit open, skipping call", "account", account.ID)
		return nil
	}

	body, err := c.get(ctx, serviceHistory, fmt.Sprintf("%s/transactions/%s", c.historyURL, account.ID), account)
	if err != nil {
		c.logger.Info("transactions unavailable", "account", account.ID, "error", err)
		return nil
	}

	var txs []Transaction
	if err := json.Unmarshal(body, &txs); err != nil {
		metrics.BankAPIErrorsTotal.WithLabelValues(serviceHistory).Inc()
		c.logger.Warn("unexpected transaction response shape", "account", account.ID)
		return nil
	}
	return txs
}

// get performs an authenticated GET and returns the body for 2xx responses.
// Non-2xx statuses and transport errors are reported as errors and recorded
// against the service's breaker.
func (c *Client) get(ctx context.Context, service, url string, account roster.Account) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if c.issuer != nil {
		tok, err := c.issuer.Issue(account.Username, account.ID)
		if err != nil {
			c.logger.Warn("token issuance failed, calling unauthenticated", "error", err)
		} else if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure(service)
		metrics.BankAPIErrorsTotal.WithLabelValues(service).Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Rejections (401 without a token, 404 for unknown accounts) count
		// as missing data, not as breaker failures: the service is up.
		c.breaker.RecordSuccess(service)
		return nil, fmt.Errorf("%s returned %d", service, resp.StatusCode)
	}

	c.breaker.RecordSuccess(service)
	return io.ReadAll(resp.Body)
}
