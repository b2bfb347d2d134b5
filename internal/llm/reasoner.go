package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Decision is the delegated verdict.
type Decision string

const (
	Leave Decision = "LEAVE"
	Stay  Decision = "STAY"
)

// Verdict is a parsed reply from the external service.
type Verdict struct {
	Decision   Decision
	Confidence float64 // in [0, 1]; meaningful only when Scored
	Scored     bool
	Text       string
	KeyPoints  []string
}

// Reasoner is the external decision capability: a prompt in, a verdict out,
// within timeout.
type Reasoner interface {
	Reason(ctx context.Context, prompt string, timeout time.Duration) (Verdict, error)
}

// OpenAIReasoner implements Reasoner over the chat client.
type OpenAIReasoner struct {
	Client      *Client
	Style       Style
	Align       bool
	Temperature float64
	MaxTokens   int
}

// Reason asks the model for a decision and parses the reply.
func (r *OpenAIReasoner) Reason(ctx context.Context, prompt string, timeout time.Duration) (Verdict, error) {
	if r == nil || !r.Client.Enabled() {
		return Verdict{}, fmt.Errorf("LLM client not configured")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	maxTokens := r.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 220
	}

	started := time.Now()
	text, err := r.Client.Complete(ctx, SystemPrompt(r.Style, r.Align), prompt, r.Style.Temperature(r.Temperature), maxTokens)
	if err != nil {
		return Verdict{}, err
	}
	slog.Debug("delegated reasoning reply", "style", r.Style, "elapsed", time.Since(started))

	return ParseVerdict(text)
}

// reply accepts both the current contract and the older
// {"leave": bool, "confidence_red": x, "public_reason": s} shape.
type reply struct {
	Decision      string   `json:"decision"`
	Leave         *bool    `json:"leave"`
	Confidence    *float64 `json:"confidence"`
	ConfidenceRed *float64 `json:"confidence_red"`
	Reason        string   `json:"reason"`
	PublicReason  string   `json:"public_reason"`
	KeyPoints     []string `json:"key_points"`
}

// ParseVerdict extracts the first JSON object from the model output (the
// model may wrap it in prose or markdown fences) and classifies it.
func ParseVerdict(response string) (Verdict, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return Verdict{}, fmt.Errorf("no JSON object found in response")
	}

	var rp reply
	if err := json.Unmarshal([]byte(response[start:end+1]), &rp); err != nil {
		return Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}

	var v Verdict
	switch strings.ToLower(strings.TrimSpace(rp.Decision)) {
	case "leave":
		v.Decision = Leave
	case "stay":
		v.Decision = Stay
	case "":
		if rp.Leave == nil {
			return Verdict{}, fmt.Errorf("verdict has no decision")
		}
		v.Decision = Stay
		if *rp.Leave {
			v.Decision = Leave
		}
	default:
		return Verdict{}, fmt.Errorf("invalid decision %q", rp.Decision)
	}

	conf := rp.Confidence
	if conf == nil {
		conf = rp.ConfidenceRed
	}
	if conf != nil {
		v.Scored = true
		v.Confidence = min(max(*conf, 0), 1)
	}

	v.Text = strings.Join(strings.Fields(rp.Reason), " ")
	if v.Text == "" {
		v.Text = strings.Join(strings.Fields(rp.PublicReason), " ")
	}
	for _, kp := range rp.KeyPoints {
		if kp = strings.TrimSpace(kp); kp != "" {
			v.KeyPoints = append(v.KeyPoints, kp)
		}
		if len(v.KeyPoints) == 3 {
			break
		}
	}
	return v, nil
}
