package reasoning

import (
	"context"
	"fmt"

	"github.com/talgya/red-eyes/internal/agents"
	"github.com/talgya/red-eyes/internal/entropy"
	"github.com/talgya/red-eyes/internal/proof"
)

// RequiredDepth is the epistemic depth a red-eyed villager who sees k red
// eyes needs to finish the induction.
func RequiredDepth(observed int) int {
	return observed + 1
}

// induce is the perfect-induction decision. A red-eyed villager who sees k
// red eyes leaves from day k+1 on, once the announcement has been made.
func induce(in Input) Decision {
	if !in.Announced {
		return Decision{Justification: proof.Unannounced(in.Day)}
	}
	if in.Eyes != agents.Red {
		return Decision{Justification: proof.NotRed(in.Day, in.ObservedRedEyes)}
	}

	k := in.ObservedRedEyes
	if in.Day >= k+1 {
		if k == 0 {
			return Decision{Leave: true, Justification: proof.BaseCase(in.Day)}
		}
		return Decision{Leave: true, Justification: proof.Departing(in.Day, k)}
	}
	return Decision{Justification: proof.Waiting(in.Day, k)}
}

// PerfectInduction reproduces the induction proof exactly.
type PerfectInduction struct{}

func (PerfectInduction) Name() string { return "perfect-induction" }

func (PerfectInduction) Decide(_ context.Context, in Input) (Decision, error) {
	return induce(in), nil
}

// NoReasoning never infers anything and always stays.
type NoReasoning struct{}

func (NoReasoning) Name() string { return "no-reasoning" }

func (NoReasoning) Decide(_ context.Context, in Input) (Decision, error) {
	if !in.Announced {
		return Decision{Justification: fmt.Sprintf(
			"Day %d: no public announcement, and I do not reason about eye colors anyway. I stay.", in.Day)}, nil
	}
	return Decision{Justification: fmt.Sprintf(
		"Day %d: I see %d red-eyed villagers but I perform no inference, so I cannot tell my own color. I stay.",
		in.Day, in.ObservedRedEyes)}, nil
}

// Bounded is perfect induction for villagers whose reasoning reaches at
// most MaxDepth levels. A villager needing more is stuck for good.
type Bounded struct {
	MaxDepth int
}

func (b Bounded) Name() string { return fmt.Sprintf("bounded(%d)", b.MaxDepth) }

func (b Bounded) Decide(_ context.Context, in Input) (Decision, error) {
	if !in.Announced || in.Eyes != agents.Red {
		return induce(in), nil
	}
	need := RequiredDepth(in.ObservedRedEyes)
	if need > b.MaxDepth {
		return Decision{Justification: fmt.Sprintf(
			"Day %d: [bounded] I see %d red-eyed villagers. Closing the induction needs depth %d "+
				"but I can only reason %d levels deep. I cannot conclude anything and stay.",
			in.Day, in.ObservedRedEyes, need, b.MaxDepth)}, nil
	}
	return induce(in), nil
}

// MaxDay is perfect induction with an impatience cutoff: from CutoffDay on
// the villager leaves even if the induction has not concluded.
type MaxDay struct {
	CutoffDay int
}

func (m MaxDay) Name() string { return fmt.Sprintf("max-day(%d)", m.CutoffDay) }

func (m MaxDay) Decide(_ context.Context, in Input) (Decision, error) {
	d := induce(in)
	if d.Leave || in.Day < m.CutoffDay {
		return d, nil
	}
	justified := "the induction cannot close without an announcement"
	if in.Announced && in.Eyes == agents.Red {
		justified = fmt.Sprintf("the induction would only conclude on day %d",
			RequiredDepth(in.ObservedRedEyes))
	} else if in.Announced {
		justified = "nothing shows that I am red-eyed"
	}
	return Decision{Leave: true, Justification: fmt.Sprintf(
		"Day %d: [premature] My patience ends on day %d, so I leave now, although %s. "+
			"This departure is not logically justified.", in.Day, m.CutoffDay, justified)}, nil
}

// Fallible wraps perfect induction and inverts the decision with probability
// ErrorRate. Draws come from Source keyed by (villager, day), so replays with
// the same seed make the same mistakes.
type Fallible struct {
	ErrorRate float64
	Source    *entropy.Source
}

func (f Fallible) Name() string { return fmt.Sprintf("fallible(%.2f)", f.ErrorRate) }

func (f Fallible) Decide(_ context.Context, in Input) (Decision, error) {
	d := induce(in)
	draw := f.Source.Float(int(in.ID), in.Day)
	if draw >= f.ErrorRate {
		return d, nil
	}
	d.Leave = !d.Leave
	verb := "stay"
	if d.Leave {
		verb = "leave"
	}
	d.Justification += fmt.Sprintf(" [error injected: seed %d drew %.3f < rate %.2f, I %s instead]",
		f.Source.Seed(), draw, f.ErrorRate, verb)
	return d, nil
}
