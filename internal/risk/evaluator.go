package risk

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ashokbharathi-s/gkehackathon/internal/bank"
	"github.com/ashokbharathi-s/gkehackathon/internal/metrics"
	"github.com/ashokbharathi-s/gkehackathon/internal/roster"
)

// Evaluator is the two-path scorer: AI preferred, rules as fallback and as
// the sole path when no analyzer is configured.
type Evaluator struct {
	analyzer  Analyzer // nil = rules only
	rules     *Rules
	aiTimeout time.Duration
	logger    *slog.Logger
}

// NewEvaluator wires the two paths together. analyzer may be nil.
func NewEvaluator(analyzer Analyzer, rules *Rules, aiTimeout time.Duration, logger *slog.Logger) *Evaluator {
	if aiTimeout <= 0 {
		aiTimeout = 30 * time.Second
	}
	return &Evaluator{analyzer: analyzer, rules: rules, aiTimeout: aiTimeout, logger: logger}
}

// Mode reports which path scores by default.
func (e *Evaluator) Mode() string {
	if e.analyzer != nil {
		return "gemini"
	}
	return "rules"
}

// Evaluate produces a verdict for one snapshot. It never returns an error:
// any AI failure is logged and the rule path answers instead. The evaluator
// holds no mutable state, so concurrent calls are safe.
func (e *Evaluator) Evaluate(ctx context.Context, account roster.Account, snap *bank.Snapshot) *Verdict {
	timer := prometheus.NewTimer(metrics.EvaluationDuration)
	defer timer.ObserveDuration()

	if e.analyzer != nil {
		aiCtx, cancel := context.WithTimeout(ctx, e.aiTimeout)
		verdict, err := e.analyzer.Analyze(aiCtx, account, snap)
		cancel()

		if err == nil {
			metrics.AIRequestsTotal.WithLabelValues("ok").Inc()
			return verdict
		}

		result := "error"
		if errors.Is(err, ErrBadVerdict) {
			result = "parse_error"
		}
		metrics.AIRequestsTotal.WithLabelValues(result).Inc()
		e.logger.Warn("AI analysis failed, using rule fallback",
			"account", account.ID,
			"error", err,
		)
	}

	metrics.RuleFallbacksTotal.Inc()
	return e.rules.Evaluate(account, snap)
}
