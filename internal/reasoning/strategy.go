// Package reasoning holds the villager decision policies. Every policy sees
// one villager's observation for one day and answers leave or stay with a
// justification; none of them mutates village state.
package reasoning

import (
	"context"
	"errors"
	"fmt"

	"github.com/talgya/red-eyes/internal/agents"
)

var (
	// ErrUnknownVillagerType is returned when no strategy is mapped for a
	// villager's type and no default is configured.
	ErrUnknownVillagerType = errors.New("unknown villager type")

	// ErrExternalReasoningUnavailable marks a failed delegated call. It is
	// always recovered by falling back to perfect induction.
	ErrExternalReasoningUnavailable = errors.New("external reasoning unavailable")
)

// Input is one villager's view on the day being evaluated.
type Input struct {
	ID   agents.VillagerID
	Name string
	Eyes agents.EyeColor
	Type agents.VillagerType

	Day       int // simulation day being evaluated
	Announced bool

	ObservedRedEyes int
	LeftYesterday   int
	LeftTotal       int

	PriorLog []string // copy of the villager's reasoning log so far
}

// Decision is a strategy's answer for one villager on one day.
type Decision struct {
	Leave         bool
	Justification string

	Strategy string // name of the strategy that decided
	Fallback string // non-empty when a delegated call fell back
}

// Strategy is a villager decision policy. Implementations must be safe for
// concurrent use: the engine may evaluate villagers in parallel.
type Strategy interface {
	Name() string
	Decide(ctx context.Context, in Input) (Decision, error)
}

// Policy dispatches on the villager's type.
type Policy struct {
	Mapping map[agents.VillagerType]Strategy
	Default Strategy
}

// Name implements Strategy.
func (p *Policy) Name() string { return "policy-by-villager-type" }

// Resolve returns the strategy for a villager type.
func (p *Policy) Resolve(typ agents.VillagerType) (Strategy, error) {
	if s, ok := p.Mapping[typ]; ok && s != nil {
		return s, nil
	}
	if p.Default != nil {
		return p.Default, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownVillagerType, typ)
}

// Decide implements Strategy.
func (p *Policy) Decide(ctx context.Context, in Input) (Decision, error) {
	s, err := p.Resolve(in.Type)
	if err != nil {
		return Decision{}, fmt.Errorf("villager %d on day %d: %w", in.ID, in.Day, err)
	}
	d, err := s.Decide(ctx, in)
	if err != nil {
		return Decision{}, err
	}
	if d.Strategy == "" {
		d.Strategy = s.Name()
	}
	return d, nil
}
