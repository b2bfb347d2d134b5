package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/talgya/red-eyes/internal/llm"
)

// Delegated hands the decision to an external text-generation service. Any
// transport failure, timeout, unparsable reply or confidence below Threshold
// falls back to the perfect-induction decision for that villager and day.
type Delegated struct {
	Reasoner  llm.Reasoner
	Label     string        // e.g. the style name, for logs
	Timeout   time.Duration // per call
	Threshold float64       // minimum confidence to accept a scored verdict
	Align     bool          // force agreement with the induction proof
	Window    int           // prior reasoning entries included in the prompt
}

func (d *Delegated) Name() string {
	if d.Label == "" {
		return "delegated"
	}
	return "delegated(" + d.Label + ")"
}

// Decide implements Strategy. It never returns an error: external failures
// are recovered here and recorded in the justification.
func (d *Delegated) Decide(ctx context.Context, in Input) (Decision, error) {
	prior := in.PriorLog
	if d.Window >= 0 && len(prior) > d.Window {
		prior = prior[len(prior)-d.Window:]
	}
	prompt := llm.BuildPrompt(llm.Situation{
		Name:            in.Name,
		Day:             in.Day,
		Announced:       in.Announced,
		ObservedRedEyes: in.ObservedRedEyes,
		LeftYesterday:   in.LeftYesterday,
		LeftTotal:       in.LeftTotal,
		PriorLog:        prior,
		AlignHint:       d.Align,
	})

	verdict, err := d.call(ctx, prompt)
	if err != nil {
		return d.fallback(in, err.Error()), nil
	}
	if verdict.Scored && verdict.Confidence < d.Threshold {
		return d.fallback(in, fmt.Sprintf("low confidence %.2f < %.2f", verdict.Confidence, d.Threshold)), nil
	}

	leave := verdict.Decision == llm.Leave
	var notes []string
	if d.Align {
		if expected := induce(in); expected.Leave != leave {
			leave = expected.Leave
			notes = append(notes, "aligned with the induction proof")
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Day %d: [delegated] decision=%s", in.Day, decisionWord(leave))
	if verdict.Scored {
		fmt.Fprintf(&b, " confidence=%.2f", verdict.Confidence)
	}
	for _, n := range notes {
		fmt.Fprintf(&b, " (%s)", n)
	}
	text := verdict.Text
	if text == "" {
		text = "(no reason given)"
	}
	fmt.Fprintf(&b, "; reason: %s", text)
	if len(verdict.KeyPoints) > 0 {
		fmt.Fprintf(&b, "; key points: %s", strings.Join(verdict.KeyPoints, " | "))
	}
	return Decision{Leave: leave, Justification: b.String()}, nil
}

func (d *Delegated) call(ctx context.Context, prompt string) (llm.Verdict, error) {
	if d.Reasoner == nil {
		return llm.Verdict{}, fmt.Errorf("%w: no reasoner configured", ErrExternalReasoningUnavailable)
	}
	v, err := d.Reasoner.Reason(ctx, prompt, d.Timeout)
	if err != nil {
		return llm.Verdict{}, fmt.Errorf("%w: %v", ErrExternalReasoningUnavailable, err)
	}
	return v, nil
}

func (d *Delegated) fallback(in Input, reason string) Decision {
	slog.Warn("delegated reasoning fell back to induction",
		"villager", in.ID, "day", in.Day, "reason", reason)
	fb := induce(in)
	fb.Justification = fmt.Sprintf("%s [fallback to perfect induction: %s]", fb.Justification, reason)
	fb.Fallback = reason
	return fb
}

func decisionWord(leave bool) string {
	if leave {
		return "leave"
	}
	return "stay"
}
