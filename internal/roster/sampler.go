package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashokbharathi-s/gkehackathon/internal/metrics"
	"github.com/ashokbharathi-s/gkehackathon/internal/retry"
)

// maxDirectoryAccounts caps how many directory users go on one cycle's roster.
const maxDirectoryAccounts = 15

// Sampler builds the per-cycle account roster.
type Sampler struct {
	baseURL    string
	routingNum string
	client     *http.Client
	logger     *slog.Logger
}

// NewSampler creates a sampler that queries the userservice directory at
// baseURL. An empty baseURL disables the lookup and always yields the demo
// roster.
func NewSampler(baseURL, routingNum string, timeout time.Duration, logger *slog.Logger) *Sampler {
	return &Sampler{
		baseURL:    baseURL,
		routingNum: routingNum,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// directoryUser is the subset of the userservice response we read.
// The field name varies across userservice versions.
type directoryUser struct {
	AccountID  string `json:"accountid"`
	AccountID2 string `json:"account_id"`
	Username   string `json:"username"`
	UserID     string `json:"user_id"`
}

func (u directoryUser) accountID() string {
	if u.AccountID != "" {
		return u.AccountID
	}
	return u.AccountID2
}

func (u directoryUser) username() string {
	if u.Username != "" {
		return u.Username
	}
	return u.UserID
}

// Sample returns the ordered, non-empty roster for the current cycle.
// Directory failures never fail the cycle: the demo roster is substituted.
func (s *Sampler) Sample(ctx context.Context) []Account {
	if s.baseURL != "" {
		accounts, err := s.fromDirectory(ctx)
		if err == nil && len(accounts) > 0 {
			s.logger.Info("roster loaded from userservice", "accounts", len(accounts))
			return accounts
		}
		if err != nil {
			metrics.BankAPIErrorsTotal.WithLabelValues("userservice").Inc()
			s.logger.Warn("userservice unavailable, using demo roster", "error", err)
		} else {
			s.logger.Warn("userservice returned no usable accounts, using demo roster")
		}
	}
	return DemoRoster(s.routingNum)
}

func (s *Sampler) fromDirectory(ctx context.Context) ([]Account, error) {
	var users []directoryUser

	err := retry.Do(ctx, 2, 500*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/users", nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			// Auth or routing problems will not heal within a cycle.
			return retry.Permanent(fmt.Errorf("userservice returned %d", resp.StatusCode))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &users); err != nil {
			return retry.Permanent(fmt.Errorf("decode users: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	accounts := make([]Account, 0, len(users))
	for _, u := range users {
		if len(accounts) >= maxDirectoryAccounts {
			break
		}
		id, username := u.accountID(), u.username()
		if id == "" || username == "" {
			continue
		}
		source := SourceRealUser
		if id == PrimaryTestAccountID {
			source = SourcePrimaryTest
		}
		accounts = append(accounts, Account{
			ID:         id,
			Username:   username,
			RoutingNum: s.routingNum,
			Source:     source,
		})
	}
	return accounts, nil
}
