package risk

import (
	"fmt"
	"math"

	"github.com/ashokbharathi-s/gkehackathon/internal/bank"
	"github.com/ashokbharathi-s/gkehackathon/internal/roster"
)

// Thresholds configure the deterministic rule checks.
type Thresholds struct {
	LargeTx     float64 // single-transaction absolute amount
	Velocity    float64 // gross volume across the window
	Frequency   int     // transaction count
	HighBalance float64 // unusually large balance
}

// DefaultThresholds are the values the rules shipped with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LargeTx:     5000,
		Velocity:    50000,
		Frequency:   15,
		HighBalance: 100000,
	}
}

// Rules is the deterministic scoring path. It is pure over its inputs:
// no I/O, no shared state, safe to call concurrently.
type Rules struct {
	t Thresholds
}

// NewRules creates a rule engine with the given thresholds.
func NewRules(t Thresholds) *Rules {
	return &Rules{t: t}
}

// Evaluate runs every check against the snapshot. Checks are independent
// and may only raise the running level and score, so their order cannot
// downgrade a verdict. With no triggers the verdict is LOW / 0.1.
func (r *Rules) Evaluate(account roster.Account, snap *bank.Snapshot) *Verdict {
	level := LevelLow
	score := 0.1
	var indicators []string

	// Balance checks. Exactly one of the three branches applies: the
	// balance is present-negative, present-nonnegative, or absent.
	switch {
	case snap.HasBalance() && *snap.Balance < 0:
		indicators = append(indicators, fmt.Sprintf("NEGATIVE BALANCE: $%.2f", *snap.Balance))
		level = level.max(LevelCritical)
		score = math.Max(score, 0.9)
	case snap.HasBalance() && r.t.HighBalance > 0 && *snap.Balance > r.t.HighBalance:
		indicators = append(indicators, fmt.Sprintf("UNUSUALLY HIGH BALANCE: $%.2f", *snap.Balance))
		level = level.max(LevelHigh)
		score = math.Max(score, 0.7)
	case !snap.HasBalance():
		indicators = append(indicators, "BALANCE UNAVAILABLE - potential service disruption")
		level = level.max(LevelMedium)
		score = math.Max(score, 0.5)
	}

	// High frequency.
	if len(snap.Transactions) > r.t.Frequency {
		indicators = append(indicators, fmt.Sprintf("HIGH FREQUENCY: %d recent transactions", len(snap.Transactions)))
		level = level.max(LevelHigh)
		score = math.Max(score, 0.8)
	}

	// Large transactions.
	large := 0
	for _, tx := range snap.Transactions {
		if math.Abs(tx.Amount) > r.t.LargeTx {
			large++
		}
	}
	if large > 0 {
		indicators = append(indicators, fmt.Sprintf("LARGE TRANSACTIONS: %d transactions > $%.0f", large, r.t.LargeTx))
		level = level.max(LevelHigh)
		score = math.Max(score, 0.8)
	}

	// High velocity: gross volume over the window.
	sent, received := snap.Volumes(account.ID)
	if sent+received > r.t.Velocity {
		indicators = append(indicators, fmt.Sprintf("HIGH VELOCITY: $%.2f total transaction volume", sent+received))
		level = level.max(LevelHigh)
		score = math.Max(score, 0.7)
	}

	return &Verdict{
		Level:      level,
		Score:      score,
		Indicators: indicators,
		Analysis:   r.narrative(account, snap, sent, received, len(indicators)),
		Actions:    ActionsForLevel(level),
		Source:     "rules",
	}
}

// narrative summarizes what was examined, in the alert's prose style.
func (r *Rules) narrative(account roster.Account, snap *bank.Snapshot, sent, received float64, triggered int) string {
	s := fmt.Sprintf("Analyzed account %q (ID: %s)", account.Username, account.ID)
	if snap.HasBalance() {
		s += fmt.Sprintf(" with $%.2f balance", *snap.Balance)
	} else {
		s += " (balance unavailable)"
	}
	if n := len(snap.Transactions); n > 0 {
		s += fmt.Sprintf(" and %d recent transactions ($%.2f out, $%.2f in). ", n, sent, received)
	} else {
		s += " with no recent transaction history. "
	}
	if triggered > 0 {
		s += fmt.Sprintf("Rule analysis found %d risk indicators requiring investigation.", triggered)
	} else {
		s += "Rule analysis shows normal banking patterns."
	}
	return s
}
