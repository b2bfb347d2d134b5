// Package agents provides the villager data model shared by the knowledge,
// proof, reasoning and engine packages.
package agents

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is returned for village parameters that cannot
// describe a puzzle instance (negative counts, mismatched type lists).
var ErrInvalidConfiguration = errors.New("invalid configuration")

// VillagerID is a stable identity, unique within a village, assigned in sequence from 1.
type VillagerID int

// EyeColor is fixed at creation.
type EyeColor uint8

const (
	Red EyeColor = iota
	Blue
)

// String returns "RED" or "BLUE".
func (c EyeColor) String() string {
	switch c {
	case Red:
		return "RED"
	case Blue:
		return "BLUE"
	default:
		return fmt.Sprintf("EyeColor(%d)", uint8(c))
	}
}

// MarshalText renders the color by name in snapshots.
func (c EyeColor) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses "RED" or "BLUE".
func (c *EyeColor) UnmarshalText(b []byte) error {
	switch string(b) {
	case "RED":
		*c = Red
	case "BLUE":
		*c = Blue
	default:
		return fmt.Errorf("unknown eye color %q", string(b))
	}
	return nil
}

// VillagerType selects which reasoning strategy governs a villager.
type VillagerType string

const (
	TypePerfect   VillagerType = "perfect"   // Perfect induction reasoner
	TypeNone      VillagerType = "none"      // Performs no inference
	TypeBounded   VillagerType = "bounded"   // Finite epistemic depth
	TypeImpatient VillagerType = "impatient" // Forced decision by a cutoff day
	TypeFallible  VillagerType = "fallible"  // Perfect induction with injected errors
	TypeDelegated VillagerType = "openai"    // External text-generation service
)

// Villager is one agent of the puzzle.
type Villager struct {
	ID   VillagerID   `json:"id"`
	Name string       `json:"name"`
	Eyes EyeColor     `json:"eyeColor"`
	Type VillagerType `json:"villagerType"`

	// Departure is monotonic. LeftOnDay is non-nil iff HasLeft.
	HasLeft   bool `json:"hasLeft"`
	LeftOnDay *int `json:"leftOnDay"`

	// Observation, recomputed every day while present; zero once gone.
	ObservedRedEyes       int `json:"observedRedEyes"`
	ObservedLeftYesterday int `json:"observedLeftYesterday"`
	ObservedLeftTotal     int `json:"observedLeftTotal"`

	// One justification per evaluated day.
	ReasoningLog []string `json:"reasoningLog"`
}

// String returns e.g. "Red 2 (RED)".
func (v *Villager) String() string {
	return fmt.Sprintf("%s (%s)", v.Name, v.Eyes)
}

// Leave marks the villager as departed on day. It reports false if the
// villager had already left; the original departure day is kept.
func (v *Villager) Leave(day int) bool {
	if v.HasLeft {
		return false
	}
	d := day
	v.HasLeft = true
	v.LeftOnDay = &d
	v.ObservedRedEyes = 0
	v.ObservedLeftYesterday = 0
	v.ObservedLeftTotal = 0
	return true
}

// Observation is what a present villager can see on a given day.
type Observation struct {
	RedEyes       int
	LeftYesterday int
	LeftTotal     int
}
