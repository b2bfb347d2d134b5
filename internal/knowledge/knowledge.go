// Package knowledge models epistemic depth for the proposition "at least one
// villager has red eyes": a finite nesting of "everyone knows" before the
// public announcement, common knowledge after it.
package knowledge

import (
	"fmt"
	"strings"
)

// Proposition is the base fact p0.
const Proposition = "at least one villager has red eyes"

// Level is the number of nested "everyone knows" layers that hold for p0.
// Level 0 is the proposition itself.
type Level int

// Common is the sentinel for common knowledge (unbounded depth).
const Common Level = -1

// None marks an observer who cannot establish p0 at all.
const None Level = -2

// IsCommon reports whether l is the common-knowledge sentinel.
func (l Level) IsCommon() bool { return l == Common }

// String describes the level in words.
func (l Level) String() string {
	switch {
	case l.IsCommon():
		return "common knowledge (unbounded depth)"
	case l == None:
		return "no knowledge of the proposition"
	case l == 0:
		return "order 0: the proposition itself"
	case l == 1:
		return "order 1: everyone knows the proposition"
	default:
		return fmt.Sprintf("order %d: %d nested layers of 'everyone knows'", int(l), int(l))
	}
}

// State is the village-wide knowledge of p0.
type State struct {
	Level     Level `json:"level"`
	Announced bool  `json:"announced"`
}

// Initial returns the pre-announcement state for numRed red villagers. With
// k red villagers each red villager sees k-1 others, so mutual observation
// supports depth at most k-1 and never closes into common knowledge.
func Initial(numRed int) State {
	return State{Level: PreAnnouncementDepth(numRed)}
}

// PreAnnouncementDepth is the deepest level reachable by observation alone.
func PreAnnouncementDepth(numRed int) Level {
	if numRed <= 1 {
		return 0
	}
	return Level(numRed - 1)
}

// Announce is the only transition: the public announcement makes p0 common
// knowledge. It reports false if the announcement had already been made.
func (s *State) Announce() bool {
	if s.Announced {
		return false
	}
	s.Announced = true
	s.Level = Common
	return true
}

// MaxLevelFor returns the deepest level an observer who sees observed red
// villagers can be certain of, or None when they see no red eyes.
func MaxLevelFor(observed int) Level {
	if observed <= 0 {
		return None
	}
	return Level(observed - 1)
}

// Nested renders p0 wrapped in level layers of "everyone knows (...)".
func Nested(level Level) string {
	if level <= 0 {
		return Proposition
	}
	var b strings.Builder
	for i := 0; i < int(level); i++ {
		b.WriteString("everyone knows (")
	}
	b.WriteString(Proposition)
	b.WriteString(strings.Repeat(")", int(level)))
	return b.String()
}

// Narrative explains the pre-announcement knowledge of a village with numRed
// red villagers, one line per fact.
func Narrative(numRed int) []string {
	switch {
	case numRed == 0:
		return []string{
			fmt.Sprintf("Knowledge: the proposition '%s' is false; nobody can learn it.", Proposition),
		}
	case numRed == 1:
		return []string{
			"Knowledge: the only red-eyed villager sees no red eyes and does not know the proposition.",
			"Knowledge: everyone else knows it, but it is not common knowledge.",
		}
	default:
		depth := PreAnnouncementDepth(numRed)
		return []string{
			fmt.Sprintf("Knowledge: every villager already knows '%s'.", Proposition),
			fmt.Sprintf("Knowledge: deepest level reached by observation is %s.", depth),
			fmt.Sprintf("Knowledge: %s.", Nested(depth)),
			fmt.Sprintf("Knowledge: level %d cannot be reached: a red-eyed villager sees only %d red eyes.",
				int(depth)+1, numRed-1),
		}
	}
}
