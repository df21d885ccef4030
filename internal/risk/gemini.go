package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/ashokbharathi-s/gkehackathon/internal/bank"
	"github.com/ashokbharathi-s/gkehackathon/internal/roster"
)

// maxPromptTransactions caps how many transactions are embedded in the prompt.
const maxPromptTransactions = 10

// ErrBadVerdict marks an AI response that failed schema validation.
// Callers distinguish it from transport errors for metrics only; both
// fall through to the rule path.
var ErrBadVerdict = errors.New("risk: unparsable AI verdict")

// Analyzer produces a verdict for one snapshot, or an error to signal that
// the caller should fall back to the rule path.
type Analyzer interface {
	Analyze(ctx context.Context, account roster.Account, snap *bank.Snapshot) (*Verdict, error)
}

// GeminiAnalyzer scores snapshots with a Gemini model. The genai client
// reads GOOGLE_API_KEY / GEMINI_API_KEY from the environment.
type GeminiAnalyzer struct {
	client *genai.Client
	model  string
}

// NewGeminiAnalyzer creates the AI path against the given model name.
func NewGeminiAnalyzer(ctx context.Context, model string) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("risk: create genai client: %w", err)
	}
	return &GeminiAnalyzer{client: client, model: model}, nil
}

// Analyze sends the snapshot to Gemini and parses the structured verdict.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, account roster.Account, snap *bank.Snapshot) (*Verdict, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: BuildPrompt(account, snap)}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("risk: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("%w: empty response", ErrBadVerdict)
	}

	return ParseVerdict(rawText)
}

// BuildPrompt renders the analysis request for one snapshot. The model is
// instructed to answer with strict JSON so ParseVerdict can validate it.
func BuildPrompt(account roster.Account, snap *bank.Snapshot) string {
	balance := "unavailable"
	if snap.HasBalance() {
		balance = fmt.Sprintf("$%.2f", *snap.Balance)
	}

	sample := snap.Transactions
	if len(sample) > maxPromptTransactions {
		sample = sample[:maxPromptTransactions]
	}
	txDetails, _ := json.MarshalIndent(sample, "", "  ")

	return fmt.Sprintf(`You are an expert fraud detection AI for Bank of Anthos. Analyze this account data:

Account ID: %s
Current Balance: %s
Recent Transactions: %d transactions
Transaction Details: %s

Analyze for fraud patterns:
1. Unusual large amounts (>$5000)
2. Negative balances
3. High transaction velocity
4. Suspicious patterns

Respond with ONLY a JSON object, no code fences, no extra text:
{
  "risk_level": "LOW|MEDIUM|HIGH|CRITICAL",
  "risk_score": 0.0-1.0,
  "fraud_indicators": ["specific indicators"],
  "ai_analysis": "detailed analysis",
  "recommended_actions": ["actions to take"]
}`,
		account.ID, balance, len(snap.Transactions), txDetails)
}

// verdictWire is the JSON schema the model must produce.
type verdictWire struct {
	RiskLevel          string   `json:"risk_level"`
	RiskScore          float64  `json:"risk_score"`
	FraudIndicators    []string `json:"fraud_indicators"`
	AIAnalysis         string   `json:"ai_analysis"`
	RecommendedActions []string `json:"recommended_actions"`
}

// ParseVerdict validates untrusted model output against the verdict schema.
// It either yields a fully-typed Verdict or ErrBadVerdict; a partially
// valid object is never accepted.
func ParseVerdict(raw string) (*Verdict, error) {
	clean := cleanModelJSON(raw)

	var wire verdictWire
	if err := json.Unmarshal([]byte(clean), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadVerdict, err)
	}

	level, err := ParseLevel(wire.RiskLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadVerdict, err)
	}
	if wire.RiskScore < 0 || wire.RiskScore > 1 {
		return nil, fmt.Errorf("%w: risk_score %v out of range", ErrBadVerdict, wire.RiskScore)
	}
	if wire.AIAnalysis == "" {
		return nil, fmt.Errorf("%w: missing ai_analysis", ErrBadVerdict)
	}

	return &Verdict{
		Level:      level,
		Score:      wire.RiskScore,
		Indicators: wire.FraudIndicators,
		Analysis:   wire.AIAnalysis,
		Actions:    wire.RecommendedActions,
		Source:     "gemini",
	}, nil
}

// cleanModelJSON strips Markdown fences and surrounding prose if the model
// ignored the formatting instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only the outermost JSON object if prose surrounds it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
