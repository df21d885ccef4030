// Package alert renders human-readable fraud alerts for verdicts at or
// above the configured risk level.
//
// The alert counter lives on the Notifier, which is owned by one monitor
// session. It is display numbering only: resets on restart and carries no
// correctness weight.
package alert

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashokbharathi-s/gkehackathon/internal/metrics"
	"github.com/ashokbharathi-s/gkehackathon/internal/risk"
	"github.com/ashokbharathi-s/gkehackathon/internal/roster"
)

// recentCapacity bounds the in-memory alert history served by the API.
const recentCapacity = 100

// Alert is one rendered fraud alert.
type Alert struct {
	ID        string        `json:"id"`
	Seq       int           `json:"seq"` // session-scoped display number
	AccountID string        `json:"accountId"`
	Username  string        `json:"username"`
	Priority  bool          `json:"priority"` // primary test account
	Verdict   *risk.Verdict `json:"verdict"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Header returns the alert's banner line.
func (a *Alert) Header() string {
	if a.Priority {
		return fmt.Sprintf("PRIORITY FRAUD ALERT #%d - %s RISK - PRIMARY TEST ACCOUNT", a.Seq, a.Verdict.Level)
	}
	return fmt.Sprintf("FRAUD ALERT #%d - %s RISK", a.Seq, a.Verdict.Level)
}

// Render returns the full multi-line alert record.
func (a *Alert) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "============ %s ============\n", a.Header())
	fmt.Fprintf(&b, "Account: %s (%s)\n", a.Username, a.AccountID)
	fmt.Fprintf(&b, "Risk score: %.2f\n", a.Verdict.Score)
	if len(a.Verdict.Indicators) > 0 {
		b.WriteString("Indicators:\n")
		for _, ind := range a.Verdict.Indicators {
			fmt.Fprintf(&b, "  - %s\n", ind)
		}
	}
	fmt.Fprintf(&b, "Analysis: %s\n", a.Verdict.Analysis)
	if len(a.Verdict.Actions) > 0 {
		b.WriteString("Recommended actions:\n")
		for _, act := range a.Verdict.Actions {
			fmt.Fprintf(&b, "  - %s\n", act)
		}
	}
	return b.String()
}

// Notifier renders alerts for qualifying verdicts and keeps session state:
// the display counter and a bounded recent-alert history.
type Notifier struct {
	cutoff  risk.Level
	out     io.Writer
	logger  *slog.Logger
	onAlert func(*Alert) // optional fan-out, e.g. the websocket hub

	mu     sync.Mutex
	sent   int
	recent []*Alert
}

// NewNotifier creates a notifier that emits alerts for verdicts at or above
// cutoff, writing rendered records to out.
func NewNotifier(cutoff risk.Level, out io.Writer, logger *slog.Logger) *Notifier {
	return &Notifier{cutoff: cutoff, out: out, logger: logger}
}

// OnAlert registers a callback invoked for every emitted alert.
func (n *Notifier) OnAlert(fn func(*Alert)) {
	n.onAlert = fn
}

// Notify emits an alert if the verdict qualifies. Returns the alert, or nil
// when the verdict is below the cutoff.
func (n *Notifier) Notify(account roster.Account, verdict *risk.Verdict) *Alert {
	if verdict.Level < n.cutoff {
		return nil
	}

	n.mu.Lock()
	n.sent++
	a := &Alert{
		ID:        uuid.NewString(),
		Seq:       n.sent,
		AccountID: account.ID,
		Username:  account.Username,
		Priority:  account.IsPrimaryTest(),
		Verdict:   verdict,
		CreatedAt: time.Now().UTC(),
	}
	n.recent = append(n.recent, a)
	if len(n.recent) > recentCapacity {
		n.recent = n.recent[len(n.recent)-recentCapacity:]
	}
	n.mu.Unlock()

	metrics.AlertsTotal.WithLabelValues(verdict.Level.String()).Inc()

	if n.out != nil {
		fmt.Fprintln(n.out, a.Render())
	}
	n.logger.Warn("fraud alert",
		"seq", a.Seq,
		"account", account.ID,
		"username", account.Username,
		"level", verdict.Level.String(),
		"score", verdict.Score,
		"indicators", len(verdict.Indicators),
	)

	if n.onAlert != nil {
		n.onAlert(a)
	}
	return a
}

// Sent returns how many alerts this session has emitted.
func (n *Notifier) Sent() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent
}

// Recent returns up to limit of the most recent alerts, newest first.
func (n *Notifier) Recent(limit int) []*Alert {
	n.mu.Lock()
	defer n.mu.Unlock()

	if limit <= 0 || limit > len(n.recent) {
		limit = len(n.recent)
	}
	out := make([]*Alert, limit)
	for i := 0; i < limit; i++ {
		out[i] = n.recent[len(n.recent)-1-i]
	}
	return out
}
