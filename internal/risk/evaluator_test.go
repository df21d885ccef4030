package risk

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashokbharathi-s/gkehackathon/internal/bank"
	"github.com/ashokbharathi-s/gkehackathon/internal/roster"
)

// fakeAnalyzer returns a canned verdict or error, recording calls.
type fakeAnalyzer struct {
	verdict *Verdict
	err     error
	calls   int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ roster.Account, _ *bank.Snapshot) (*Verdict, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.verdict, nil
}

func testEvaluator(a Analyzer) *Evaluator {
	return NewEvaluator(a, NewRules(DefaultThresholds()), time.Second, slog.New(slog.DiscardHandler))
}

func TestEvaluate_AIPathPreferred(t *testing.T) {
	want := &Verdict{
		Level:    LevelHigh,
		Score:    0.85,
		Analysis: "model saw something",
		Source:   "gemini",
	}
	fake := &fakeAnalyzer{verdict: want}
	e := testEvaluator(fake)

	got := e.Evaluate(context.Background(), ruleAccount(), &bank.Snapshot{Balance: balance(100)})
	assert.Equal(t, want, got)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, "gemini", e.Mode())
}

func TestEvaluate_FallbackEqualsRulePath(t *testing.T) {
	snap := &bank.Snapshot{Balance: balance(-150.00)}
	fake := &fakeAnalyzer{err: errors.New("backend unreachable")}
	e := testEvaluator(fake)

	got := e.Evaluate(context.Background(), ruleAccount(), snap)
	want := NewRules(DefaultThresholds()).Evaluate(ruleAccount(), snap)
	require.Equal(t, want, got)
	assert.Equal(t, "rules", got.Source)
}

func TestEvaluate_ParseFailureFallsBack(t *testing.T) {
	fake := &fakeAnalyzer{err: ErrBadVerdict}
	e := testEvaluator(fake)

	got := e.Evaluate(context.Background(), ruleAccount(), &bank.Snapshot{Balance: balance(2000)})
	assert.Equal(t, LevelLow, got.Level)
	assert.Equal(t, "rules", got.Source)
}

func TestEvaluate_NoAnalyzerUsesRules(t *testing.T) {
	e := testEvaluator(nil)
	assert.Equal(t, "rules", e.Mode())

	got := e.Evaluate(context.Background(), ruleAccount(), &bank.Snapshot{})
	assert.Equal(t, LevelMedium, got.Level)
	assert.Equal(t, "rules", got.Source)
}

// ---------------------------------------------------------------------------
// AI response parsing
// ---------------------------------------------------------------------------

func TestParseVerdict_PlainJSON(t *testing.T) {
	v, err := ParseVerdict(`{
		"risk_level": "HIGH",
		"risk_score": 0.8,
		"fraud_indicators": ["LARGE TRANSACTIONS: 2 > $5,000"],
		"ai_analysis": "two large outgoing transfers",
		"recommended_actions": ["Verify large transactions"]
	}`)
	require.NoError(t, err)
	assert.Equal(t, LevelHigh, v.Level)
	assert.Equal(t, 0.8, v.Score)
	assert.Equal(t, "gemini", v.Source)
	assert.Len(t, v.Indicators, 1)
}

func TestParseVerdict_FencedJSON(t *testing.T) {
	v, err := ParseVerdict("```json\n{\"risk_level\":\"LOW\",\"risk_score\":0.1,\"fraud_indicators\":[],\"ai_analysis\":\"normal activity\",\"recommended_actions\":[]}\n```")
	require.NoError(t, err)
	assert.Equal(t, LevelLow, v.Level)
}

func TestParseVerdict_ProseAroundJSON(t *testing.T) {
	v, err := ParseVerdict(`Here is my assessment:
{"risk_level":"MEDIUM","risk_score":0.5,"fraud_indicators":["BALANCE UNAVAILABLE"],"ai_analysis":"cannot read balance","recommended_actions":["Monitor closely"]}
Let me know if you need more detail.`)
	require.NoError(t, err)
	assert.Equal(t, LevelMedium, v.Level)
}

func TestParseVerdict_Rejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", "the account looks fine to me"},
		{"empty", ""},
		{"unknown level", `{"risk_level":"SEVERE","risk_score":0.5,"ai_analysis":"x"}`},
		{"score above one", `{"risk_level":"LOW","risk_score":1.5,"ai_analysis":"x"}`},
		{"negative score", `{"risk_level":"LOW","risk_score":-0.1,"ai_analysis":"x"}`},
		{"missing analysis", `{"risk_level":"LOW","risk_score":0.1}`},
		{"wrong types", `{"risk_level":0.3,"risk_score":"LOW","ai_analysis":"x"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseVerdict(tc.raw)
			assert.ErrorIs(t, err, ErrBadVerdict)
		})
	}
}

func TestBuildPrompt_TruncatesTransactions(t *testing.T) {
	snap := &bank.Snapshot{
		Balance:      balance(100),
		Transactions: flatTransactions(25, 10),
	}
	prompt := BuildPrompt(ruleAccount(), snap)
	assert.Contains(t, prompt, "Recent Transactions: 25 transactions")
	// Only the first 10 are embedded
	assert.Contains(t, prompt, "2000000009")
	assert.NotContains(t, prompt, "2000000010")
}

func TestBuildPrompt_MissingBalance(t *testing.T) {
	prompt := BuildPrompt(ruleAccount(), &bank.Snapshot{})
	assert.Contains(t, prompt, "Current Balance: unavailable")
}
