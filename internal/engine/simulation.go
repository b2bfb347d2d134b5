// Package engine owns the single mutable village and advances it one
// simulated day at a time. Every public operation is serialized by one mutex
// and either commits completely or leaves the village untouched.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/red-eyes/internal/agents"
	"github.com/talgya/red-eyes/internal/knowledge"
	"github.com/talgya/red-eyes/internal/proof"
	"github.com/talgya/red-eyes/internal/reasoning"
)

// Defaults for Options fields left at zero.
const (
	DefaultMaxDays       = 250
	DefaultMaxPopulation = 200
	DefaultParallelism   = 8
)

// Options configures an Engine.
type Options struct {
	Strategy      reasoning.Strategy // usually a *reasoning.Policy
	MaxDays       int                // safety cap for RunToCompletion
	MaxPopulation int                // upper bound on numRed+numBlue
	Parallelism   int                // concurrent strategy evaluations per day
	Metrics       *Metrics

	// OnFinished is called, with the lock held, once per puzzle when it
	// reaches the finished state. It must not call back into the Engine.
	OnFinished func(Snapshot, proof.Verification)
}

// resolver is implemented by strategies that can check a villager type up front.
type resolver interface {
	Resolve(agents.VillagerType) (reasoning.Strategy, error)
}

// Engine is the simulation. The zero value is not usable; call New.
type Engine struct {
	mu sync.Mutex

	opts         Options
	village      *agents.Village
	knowledge    knowledge.State
	verification *proof.Verification
}

// New creates an engine with no active simulation.
func New(opts Options) *Engine {
	if opts.Strategy == nil {
		opts.Strategy = reasoning.PerfectInduction{}
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = DefaultMaxDays
	}
	if opts.MaxPopulation <= 0 {
		opts.MaxPopulation = DefaultMaxPopulation
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	return &Engine{opts: opts}
}

// Initialize replaces any existing simulation with a fresh village.
func (e *Engine) Initialize(numRed, numBlue int, assign agents.Assignment) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if total := numRed + numBlue; total > e.opts.MaxPopulation {
		return Snapshot{}, fmt.Errorf("%w: population %d exceeds the limit of %d",
			agents.ErrInvalidConfiguration, total, e.opts.MaxPopulation)
	}
	v, err := agents.NewVillage(numRed, numBlue, assign)
	if err != nil {
		return Snapshot{}, err
	}
	if r, ok := e.opts.Strategy.(resolver); ok {
		for _, vi := range v.Villagers {
			if _, err := r.Resolve(vi.Type); err != nil {
				return Snapshot{}, fmt.Errorf("villager %d: %w", vi.ID, err)
			}
		}
	}

	ks := knowledge.Initial(numRed)
	v.KnowledgeLevel = int(ks.Level)

	v.Logf("Initialized: %d red-eyed and %d blue-eyed villagers.", numRed, numBlue)
	for _, vi := range v.Villagers {
		v.Logf("  %s [%s] sees %d red-eyed villagers; observation alone gives %s.",
			vi.Name, vi.Type, vi.ObservedRedEyes, knowledge.MaxLevelFor(vi.ObservedRedEyes))
	}
	v.Logf("Pre-announcement knowledge: %s.", knowledge.Level(v.KnowledgeLevel))
	for _, line := range knowledge.Narrative(numRed) {
		v.Logf("  %s", line)
	}
	for _, line := range proof.Derive(numRed, false).Steps {
		v.Logf("  %s", line)
	}

	e.village = v
	e.knowledge = ks
	e.verification = nil
	e.opts.Metrics.initialized()

	slog.Info("village initialized", "red", numRed, "blue", numBlue)

	if v.Finished() {
		e.finishLocked()
	}
	return snapshotOf(e.village, e.verification), nil
}

// Announce makes "at least one villager has red eyes" common knowledge from
// the current day on.
func (e *Engine) Announce() (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.village
	if v == nil {
		return Snapshot{}, ErrNoActiveSimulation
	}
	if !e.knowledge.Announce() {
		return snapshotOf(v, e.verification), fmt.Errorf("%w on day %d", ErrAlreadyAnnounced, v.AnnouncedOnDay)
	}
	v.AnnouncementMade = true
	v.AnnouncedOnDay = v.CurrentDay
	v.KnowledgeLevel = int(knowledge.Common)

	v.Logf("Day %d: a visitor announces publicly: \"At least one of you has red eyes.\"", v.CurrentDay)
	v.Logf("Knowledge is now %s.", knowledge.Common)
	p := proof.Derive(v.NumRed, true)
	for _, line := range p.Steps {
		v.Logf("  %s", line)
	}

	slog.Info("announcement made", "day", v.CurrentDay, "expected_day", p.ExpectedDay)
	return snapshotOf(v, e.verification), nil
}

// decided pairs a strategy decision with the villager it belongs to.
type decided struct {
	reasoning.Decision
	villager *agents.Villager
}

// AdvanceDay evaluates every present villager on the next day and applies all
// departures at once. On error nothing is committed and the snapshot shows
// the unchanged village, if any.
func (e *Engine) AdvanceDay(ctx context.Context) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.advanceLocked(ctx); err != nil {
		if e.village == nil {
			return Snapshot{}, err
		}
		return snapshotOf(e.village, e.verification), err
	}
	return snapshotOf(e.village, e.verification), nil
}

func (e *Engine) advanceLocked(ctx context.Context) error {
	v := e.village
	if v == nil {
		return ErrNoActiveSimulation
	}
	if v.Finished() {
		return fmt.Errorf("%w on day %d", ErrAlreadyFinished, v.CurrentDay)
	}

	day := v.CurrentDay + 1

	obs := agents.Observe(v.Villagers, v.LeftYesterday)
	var inputs []reasoning.Input
	var present []*agents.Villager
	for i, vi := range v.Villagers {
		if vi.HasLeft {
			continue
		}
		present = append(present, vi)
		inputs = append(inputs, reasoning.Input{
			ID:              vi.ID,
			Name:            vi.Name,
			Eyes:            vi.Eyes,
			Type:            vi.Type,
			Day:             day,
			Announced:       v.AnnouncementMade,
			ObservedRedEyes: obs[i].RedEyes,
			LeftYesterday:   obs[i].LeftYesterday,
			LeftTotal:       obs[i].LeftTotal,
			PriorLog:        agents.RecentReasoning(vi, len(vi.ReasoningLog)),
		})
	}

	results, err := e.evaluate(ctx, inputs)
	if err != nil {
		return fmt.Errorf("advance to day %d: %w", day, err)
	}

	// Commit.
	v.CurrentDay = day
	v.ApplyObservations(obs)
	v.Logf("=== Day %d ===", day)

	decisions := make([]decided, len(present))
	var leaving []*agents.Villager
	for i, vi := range present {
		d := results[i]
		decisions[i] = decided{Decision: d, villager: vi}
		agents.AppendReasoning(vi, d.Justification)
		if d.Leave {
			leaving = append(leaving, vi)
		}
	}
	for _, vi := range leaving {
		vi.Leave(day)
		v.Logf("  %s (%s eyes) leaves the village.", vi.Name, vi.Eyes)
	}
	if len(leaving) == 0 {
		v.Logf("  Nobody left today.")
	}
	v.LeftYesterday = len(leaving)
	v.ApplyObservations(agents.Observe(v.Villagers, v.LeftYesterday))

	e.opts.Metrics.day(decisions)
	slog.Info("day advanced", "day", day, "departures", len(leaving), "remaining_red", v.RemainingRed())

	if v.Finished() {
		e.finishLocked()
	}
	return nil
}

// evaluate runs the strategy for every input, in parallel up to the
// configured limit. Results are indexed like inputs.
func (e *Engine) evaluate(ctx context.Context, inputs []reasoning.Input) ([]reasoning.Decision, error) {
	results := make([]reasoning.Decision, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Parallelism)
	for i, in := range inputs {
		g.Go(func() error {
			d, err := e.opts.Strategy.Decide(gctx, in)
			if err != nil {
				return err
			}
			if d.Strategy == "" {
				d.Strategy = e.opts.Strategy.Name()
			}
			results[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// finishLocked appends the verification block exactly once per puzzle.
func (e *Engine) finishLocked() {
	if e.verification != nil {
		return
	}
	v := e.village

	first, last := 0, 0
	for _, vi := range v.Villagers {
		if vi.Eyes != agents.Red || vi.LeftOnDay == nil {
			continue
		}
		d := *vi.LeftOnDay
		if first == 0 || d < first {
			first = d
		}
		if d > last {
			last = d
		}
	}

	ver := proof.Verify(proof.Derive(v.NumRed, v.AnnouncementMade), first, last)
	for _, line := range ver.Lines {
		v.Logf("%s", line)
	}
	e.verification = &ver
	e.opts.Metrics.finished(ver.Passed)

	slog.Info("puzzle finished", "day", v.CurrentDay, "expected_day", ver.ExpectedDay,
		"actual_day", ver.ActualDay, "passed", ver.Passed)

	if e.opts.OnFinished != nil {
		e.opts.OnFinished(snapshotOf(v, e.verification), ver)
	}
}

// RunToCompletion advances until the puzzle finishes or maxDays days have
// passed in this call. maxDays <= 0 uses the configured cap. Days already
// advanced stay committed when the cap is hit or a day fails.
func (e *Engine) RunToCompletion(ctx context.Context, maxDays int) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.village
	if v == nil {
		return Snapshot{}, ErrNoActiveSimulation
	}
	if maxDays <= 0 {
		maxDays = e.opts.MaxDays
	}

	for steps := 0; !v.Finished(); steps++ {
		if steps == maxDays {
			v.Logf("Stopped after %d days without every red-eyed villager leaving.", maxDays)
			slog.Warn("simulation did not converge", "days", maxDays, "day", v.CurrentDay)
			return snapshotOf(v, e.verification), fmt.Errorf("%w after %d days (day %d)",
				ErrSimulationDidNotConverge, maxDays, v.CurrentDay)
		}
		if err := ctx.Err(); err != nil {
			return snapshotOf(v, e.verification), err
		}
		if err := e.advanceLocked(ctx); err != nil {
			return snapshotOf(v, e.verification), err
		}
	}
	return snapshotOf(v, e.verification), nil
}

// Reset discards the active simulation.
func (e *Engine) Reset() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.village = nil
	e.knowledge = knowledge.State{}
	e.verification = nil
	slog.Info("simulation reset")
	return snapshotOf(nil, nil)
}

// State returns a deep copy of the current village.
func (e *Engine) State() (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.village == nil {
		return Snapshot{}, ErrNoActiveSimulation
	}
	return snapshotOf(e.village, e.verification), nil
}

// Finished reports whether the active puzzle is over. It is false when there
// is no active simulation.
func (e *Engine) Finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.village != nil && e.village.Finished()
}

// Idle reports whether err only means there is nothing to advance.
func Idle(err error) bool {
	return errors.Is(err, ErrNoActiveSimulation) || errors.Is(err, ErrAlreadyFinished)
}
