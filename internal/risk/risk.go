// Package risk scores one account snapshot for fraud.
//
// Two paths produce a Verdict: a Gemini-backed analyzer (preferred when an
// API key is configured) and a deterministic rule engine. Any AI failure
// (backend down, timeout, unparsable output) falls through to the rules for
// that call only, so Evaluate always returns a well-formed Verdict and never
// an error.
package risk

import (
	"encoding/json"
	"fmt"
)

// Level is the ordered risk classification for an account snapshot.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

// String returns the wire form used in prompts, alerts, and JSON.
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "LOW"
	case LevelMedium:
		return "MEDIUM"
	case LevelHigh:
		return "HIGH"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts the wire form back to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "LOW":
		return LevelLow, nil
	case "MEDIUM":
		return LevelMedium, nil
	case "HIGH":
		return LevelHigh, nil
	case "CRITICAL":
		return LevelCritical, nil
	default:
		return LevelLow, fmt.Errorf("unknown risk level %q", s)
	}
}

// MarshalJSON encodes the level as its string form.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes the string form, rejecting unknown values.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// max returns the higher of two levels. Rule checks may only escalate.
func (l Level) max(other Level) Level {
	if other > l {
		return other
	}
	return l
}

// Verdict is the structured result of scoring one snapshot.
type Verdict struct {
	Level      Level    `json:"riskLevel"`
	Score      float64  `json:"riskScore"` // in [0, 1], consistent with Level on the rule path
	Indicators []string `json:"fraudIndicators"`
	Analysis   string   `json:"analysis"`
	Actions    []string `json:"recommendedActions"`
	Source     string   `json:"source"` // "gemini" or "rules"
}

// ActionsForLevel maps a final risk level to its recommended actions.
func ActionsForLevel(l Level) []string {
	switch l {
	case LevelCritical:
		return []string{"IMMEDIATE: Freeze account", "Contact customer urgently", "Escalate to fraud team"}
	case LevelHigh:
		return []string{"Review account activity", "Enhanced monitoring", "Verify large transactions"}
	case LevelMedium:
		return []string{"Monitor closely", "Flag for next review cycle"}
	default:
		return []string{"Continue normal monitoring"}
	}
}
