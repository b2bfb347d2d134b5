package agents

import "fmt"

// Village is the complete puzzle state. The engine is its only mutator.
type Village struct {
	NumRed  int `json:"numRed"`
	NumBlue int `json:"numBlue"`

	AnnouncementMade bool `json:"announcementMade"`
	AnnouncedOnDay   int  `json:"announcedOnDay"`
	CurrentDay       int  `json:"currentDay"`
	KnowledgeLevel   int  `json:"knowledgeLevel"` // -1 = common knowledge

	DailyLog  []string    `json:"dailyLog"`
	Villagers []*Villager `json:"villagers"`

	// Departures on the most recent day, publicly visible the next morning.
	LeftYesterday int `json:"-"`
}

// Assignment decides each villager's type. Types, when set, lists one type
// per villager in id order (all RED first, then BLUE); otherwise every
// villager gets Default.
type Assignment struct {
	Default VillagerType
	Types   []VillagerType
}

// Assignment modes for building a type list.
const (
	ModeAllPerfect   = "all_perfect"
	ModeAllDelegated = "all_delegated"
	ModeMixedEnds    = "mixed_ends"
)

// AssignmentForMode builds an assignment for total villagers. mixed_ends
// delegates the first and last villager and gives the rest base.
func AssignmentForMode(mode string, total int, base VillagerType) (Assignment, error) {
	switch mode {
	case "", ModeAllPerfect:
		return Assignment{Default: base}, nil
	case ModeAllDelegated:
		return Assignment{Default: TypeDelegated}, nil
	case ModeMixedEnds:
		types := make([]VillagerType, total)
		for i := range types {
			types[i] = base
		}
		if total > 0 {
			types[0] = TypeDelegated
			types[total-1] = TypeDelegated
		}
		return Assignment{Default: base, Types: types}, nil
	default:
		return Assignment{}, fmt.Errorf("%w: unknown assignment mode %q", ErrInvalidConfiguration, mode)
	}
}

// NewVillage creates numRed RED villagers followed by numBlue BLUE villagers
// with sequential ids and computes their initial observations. Zero red
// villagers is a valid puzzle with the trivial outcome.
func NewVillage(numRed, numBlue int, assign Assignment) (*Village, error) {
	if numRed < 0 || numBlue < 0 {
		return nil, fmt.Errorf("%w: counts must be non-negative (red=%d, blue=%d)",
			ErrInvalidConfiguration, numRed, numBlue)
	}
	total := numRed + numBlue
	if assign.Types != nil && len(assign.Types) != total {
		return nil, fmt.Errorf("%w: %d villager types for %d villagers",
			ErrInvalidConfiguration, len(assign.Types), total)
	}
	if assign.Default == "" {
		assign.Default = TypePerfect
	}

	typeAt := func(i int) VillagerType {
		if assign.Types != nil && assign.Types[i] != "" {
			return assign.Types[i]
		}
		return assign.Default
	}

	sp := NewSpawner()
	villagers := make([]*Villager, 0, total)
	for i := 0; i < numRed; i++ {
		villagers = append(villagers, sp.Spawn(Red, typeAt(len(villagers))))
	}
	for i := 0; i < numBlue; i++ {
		villagers = append(villagers, sp.Spawn(Blue, typeAt(len(villagers))))
	}

	v := &Village{
		NumRed:    numRed,
		NumBlue:   numBlue,
		Villagers: villagers,
		DailyLog:  []string{},
	}
	v.ApplyObservations(Observe(v.Villagers, 0))
	return v, nil
}

// Observe computes every villager's view without mutating anything. Present
// villagers count the other present RED villagers; departed villagers see nothing.
func Observe(villagers []*Villager, leftYesterday int) []Observation {
	presentRed, left := 0, 0
	for _, v := range villagers {
		if v.HasLeft {
			left++
			continue
		}
		if v.Eyes == Red {
			presentRed++
		}
	}

	obs := make([]Observation, len(villagers))
	for i, v := range villagers {
		if v.HasLeft {
			continue
		}
		red := presentRed
		if v.Eyes == Red {
			red-- // cannot see own eyes
		}
		obs[i] = Observation{RedEyes: red, LeftYesterday: leftYesterday, LeftTotal: left}
	}
	return obs
}

// ApplyObservations stores observations computed by Observe, by position.
func (v *Village) ApplyObservations(obs []Observation) {
	for i, vi := range v.Villagers {
		if vi.HasLeft {
			vi.ObservedRedEyes = 0
			vi.ObservedLeftYesterday = 0
			vi.ObservedLeftTotal = 0
			continue
		}
		vi.ObservedRedEyes = obs[i].RedEyes
		vi.ObservedLeftYesterday = obs[i].LeftYesterday
		vi.ObservedLeftTotal = obs[i].LeftTotal
	}
}

// RemainingRed counts RED villagers still present.
func (v *Village) RemainingRed() int {
	n := 0
	for _, vi := range v.Villagers {
		if vi.Eyes == Red && !vi.HasLeft {
			n++
		}
	}
	return n
}

// Finished reports whether the puzzle is over: no red villagers at all, or
// every red villager has left.
func (v *Village) Finished() bool {
	return v.NumRed == 0 || v.RemainingRed() == 0
}

// Logf appends a line to the daily log.
func (v *Village) Logf(format string, args ...any) {
	v.DailyLog = append(v.DailyLog, fmt.Sprintf(format, args...))
}

// Clone returns a deep copy safe to hand to readers.
func (v *Village) Clone() *Village {
	c := *v
	c.DailyLog = append([]string{}, v.DailyLog...)
	c.Villagers = make([]*Villager, len(v.Villagers))
	for i, vi := range v.Villagers {
		cv := *vi
		if vi.LeftOnDay != nil {
			d := *vi.LeftOnDay
			cv.LeftOnDay = &d
		}
		cv.ReasoningLog = append([]string{}, vi.ReasoningLog...)
		c.Villagers[i] = &cv
	}
	return &c
}
