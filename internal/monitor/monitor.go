// Package monitor drives the periodic fraud scan: sample the account
// roster, evaluate each account in turn, and raise alerts for risky
// verdicts. One monitor owns one loop; accounts are always scanned
// sequentially so the bank services never see a burst of traffic.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashokbharathi-s/gkehackathon/internal/alert"
	"github.com/ashokbharathi-s/gkehackathon/internal/bank"
	"github.com/ashokbharathi-s/gkehackathon/internal/metrics"
	"github.com/ashokbharathi-s/gkehackathon/internal/risk"
	"github.com/ashokbharathi-s/gkehackathon/internal/roster"
	"github.com/ashokbharathi-s/gkehackathon/internal/traces"
)

// Sampler supplies the accounts to scan.
type Sampler interface {
	Sample(ctx context.Context) []roster.Account
}

// Snapshotter fetches an account's current bank data.
type Snapshotter interface {
	Snapshot(ctx context.Context, account roster.Account) *bank.Snapshot
}

// CycleSummary describes one completed scan.
type CycleSummary struct {
	Number    int64         `json:"number"`
	Accounts  int           `json:"accounts"`
	Alerts    int           `json:"alerts"`
	Duration  time.Duration `json:"-"`
	Elapsed   string        `json:"elapsed"`
	StartedAt time.Time     `json:"startedAt"`
}

// Monitor runs the scan loop.
type Monitor struct {
	sampler   Sampler
	snapshots Snapshotter
	evaluator *risk.Evaluator
	notifier  *alert.Notifier
	logger    *slog.Logger

	interval     time.Duration
	accountDelay time.Duration
	cycleBackoff time.Duration

	onCycle func(CycleSummary) // optional fan-out, e.g. the websocket hub

	mu        sync.Mutex
	cycles    int64
	failures  int64
	lastCycle time.Time
	lastCount int
}

// Config carries the loop timings.
type Config struct {
	Interval     time.Duration
	AccountDelay time.Duration
	CycleBackoff time.Duration
}

// New creates a monitor. All collaborators are required except the logger,
// which defaults to slog.Default when nil.
func New(sampler Sampler, snapshots Snapshotter, evaluator *risk.Evaluator, notifier *alert.Notifier, cfg Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		sampler:      sampler,
		snapshots:    snapshots,
		evaluator:    evaluator,
		notifier:     notifier,
		logger:       logger,
		interval:     cfg.Interval,
		accountDelay: cfg.AccountDelay,
		cycleBackoff: cfg.CycleBackoff,
	}
}

// OnCycle registers a callback invoked after every completed scan.
func (m *Monitor) OnCycle(fn func(CycleSummary)) {
	m.onCycle = fn
}

// Start begins the scan loop. Call in a goroutine; returns when ctx is done.
// The first scan runs immediately rather than waiting a full interval.
func (m *Monitor) Start(ctx context.Context) {
	m.logger.Info("monitoring started",
		"interval", m.interval,
		"accountDelay", m.accountDelay,
		"mode", m.evaluator.Mode(),
	)

	m.runCycle(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitoring stopped", "cycles", m.Cycles())
			return
		case <-ticker.C:
			m.runCycle(ctx)
		}
	}
}

// runCycle executes one full roster scan. A panic anywhere in the cycle is
// contained here: the loop backs off and the next tick starts fresh.
func (m *Monitor) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("monitoring cycle panicked", "panic", r)
			metrics.CyclesTotal.WithLabelValues("error").Inc()
			m.mu.Lock()
			m.failures++
			m.mu.Unlock()
			m.sleep(ctx, m.cycleBackoff)
		}
	}()

	ctx, span := traces.StartSpan(ctx, "monitor.cycle")
	defer span.End()

	start := time.Now()
	sentBefore := m.notifier.Sent()

	accounts := m.sampler.Sample(ctx)
	m.logger.Info("scan cycle starting", "accounts", len(accounts))

	for i, account := range accounts {
		if ctx.Err() != nil {
			return
		}
		m.scanAccount(ctx, account)
		// Spread load on the bank services between accounts
		if i < len(accounts)-1 {
			m.sleep(ctx, m.accountDelay)
		}
	}

	m.mu.Lock()
	m.cycles++
	m.lastCycle = time.Now().UTC()
	m.lastCount = len(accounts)
	n := m.cycles
	m.mu.Unlock()

	span.SetAttributes(traces.Cycle(n))
	metrics.CyclesTotal.WithLabelValues("ok").Inc()

	summary := CycleSummary{
		Number:    n,
		Accounts:  len(accounts),
		Alerts:    m.notifier.Sent() - sentBefore,
		Duration:  time.Since(start),
		Elapsed:   time.Since(start).Round(time.Millisecond).String(),
		StartedAt: start.UTC(),
	}
	m.logger.Info("scan cycle complete",
		"cycle", summary.Number,
		"accounts", summary.Accounts,
		"alerts", summary.Alerts,
		"elapsed", summary.Elapsed,
	)
	if m.onCycle != nil {
		m.onCycle(summary)
	}
}

// scanAccount evaluates a single account. A panic here is contained so one
// bad account never takes down the rest of the cycle.
func (m *Monitor) scanAccount(ctx context.Context, account roster.Account) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("account scan panicked",
				"account", account.ID,
				"panic", r,
			)
		}
	}()

	ctx, span := traces.StartSpan(ctx, "monitor.scan_account",
		traces.AccountID(account.ID),
		traces.Username(account.Username),
	)
	defer span.End()

	snap := m.snapshots.Snapshot(ctx, account)
	verdict := m.evaluator.Evaluate(ctx, account, snap)
	span.SetAttributes(
		traces.RiskLevel(verdict.Level.String()),
		traces.VerdictSource(verdict.Source),
	)

	metrics.AccountsScannedTotal.Inc()
	m.notifier.Notify(account, verdict)
}

// sleep waits for d or until ctx is cancelled.
func (m *Monitor) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Cycles returns how many scans have completed.
func (m *Monitor) Cycles() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycles
}

// Stats reports loop state for the status API.
func (m *Monitor) Stats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := map[string]interface{}{
		"cyclesCompleted":   m.cycles,
		"cyclesFailed":      m.failures,
		"accountsLastCycle": m.lastCount,
		"intervalSeconds":   int(m.interval.Seconds()),
		"mode":              m.evaluator.Mode(),
	}
	if !m.lastCycle.IsZero() {
		stats["lastCycleAt"] = m.lastCycle
	}
	return stats
}
