package config

import (
	"log/slog"

	"github.com/talgya/red-eyes/internal/agents"
	"github.com/talgya/red-eyes/internal/engine"
	"github.com/talgya/red-eyes/internal/entropy"
	"github.com/talgya/red-eyes/internal/llm"
	"github.com/talgya/red-eyes/internal/reasoning"
)

// Policy maps every villager type to its configured strategy. Without an API
// key the delegated type still resolves, and every call falls back.
func (c Config) Policy() (*reasoning.Policy, error) {
	style, err := llm.ParseStyle(c.OpenAI.Style)
	if err != nil {
		return nil, err
	}

	delegated := &reasoning.Delegated{
		Label:     string(style),
		Timeout:   c.OpenAI.Timeout,
		Threshold: c.OpenAI.Threshold,
		Align:     c.OpenAI.Align,
		Window:    c.OpenAI.Window,
	}
	client := llm.NewClient(llm.ClientConfig{
		APIKey:    c.OpenAI.APIKey,
		BaseURL:   c.OpenAI.BaseURL,
		Model:     c.OpenAI.Model,
		MaxPerMin: c.OpenAI.PerMinute,
	})
	if client.Enabled() {
		delegated.Reasoner = &llm.OpenAIReasoner{
			Client:      client,
			Style:       style,
			Align:       c.OpenAI.Align,
			Temperature: c.OpenAI.Temperature,
			MaxTokens:   c.OpenAI.MaxTokens,
		}
		slog.Info("delegated reasoning enabled", "model", client.Model(), "style", style)
	} else {
		slog.Info("delegated reasoning disabled (no API key), delegated villagers fall back to induction")
	}

	return &reasoning.Policy{
		Mapping: map[agents.VillagerType]reasoning.Strategy{
			agents.TypePerfect:   reasoning.PerfectInduction{},
			agents.TypeNone:      reasoning.NoReasoning{},
			agents.TypeBounded:   reasoning.Bounded{MaxDepth: c.Strategies.BoundedMaxDepth},
			agents.TypeImpatient: reasoning.MaxDay{CutoffDay: c.Strategies.MaxDayCutoff},
			agents.TypeFallible: reasoning.Fallible{
				ErrorRate: c.Strategies.ErrorRate,
				Source:    entropy.NewSource(c.Strategies.Seed),
			},
			agents.TypeDelegated: delegated,
		},
	}, nil
}

// Assignment builds the villager-type assignment for a population from the
// simulation defaults.
func (c Config) Assignment(total int) (agents.Assignment, error) {
	return agents.AssignmentForMode(c.Simulation.AssignmentMode, total, c.Simulation.DefaultType)
}

// EngineOptions returns engine options with the configured policy.
func (c Config) EngineOptions(metrics *engine.Metrics) (engine.Options, error) {
	policy, err := c.Policy()
	if err != nil {
		return engine.Options{}, err
	}
	return engine.Options{
		Strategy:      policy,
		MaxDays:       c.Simulation.MaxDays,
		MaxPopulation: c.Simulation.MaxPopulation,
		Parallelism:   c.Simulation.Parallelism,
		Metrics:       metrics,
	}, nil
}
