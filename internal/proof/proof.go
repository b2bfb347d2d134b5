// Package proof derives the induction argument for the red-eyes puzzle: the
// day on which the red-eyed villagers must leave and the base-case /
// inductive-step narrative that justifies it. Everything here is a pure
// function of the puzzle parameters.
package proof

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/talgya/red-eyes/internal/knowledge"
)

// Case classifies which part of the induction applies.
type Case uint8

const (
	CaseVacuous   Case = iota // no red-eyed villagers; the proposition is false
	CaseBase                  // exactly one red-eyed villager
	CaseInductive             // k > 1 red-eyed villagers
)

func (c Case) String() string {
	switch c {
	case CaseVacuous:
		return "vacuous"
	case CaseBase:
		return "base case"
	case CaseInductive:
		return "inductive step"
	}
	return "unknown"
}

func (c Case) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Proof is the expected outcome for a puzzle instance.
type Proof struct {
	NumRed    int  `json:"numRed"`
	Announced bool `json:"announced"`
	Case      Case `json:"case"`

	// Day on which every red-eyed villager leaves; 0 when no departure is
	// expected.
	ExpectedDay int      `json:"expectedDay"`
	Steps       []string `json:"steps"`
}

// ExpectsDepartures reports whether anyone must ever leave.
func (p Proof) ExpectsDepartures() bool {
	return p.ExpectedDay > 0
}

// Derive builds the proof for numRed red-eyed villagers.
func Derive(numRed int, announced bool) Proof {
	p := Proof{NumRed: numRed, Announced: announced}

	switch {
	case numRed <= 0:
		p.Case = CaseVacuous
		p.Steps = []string{
			fmt.Sprintf("The proposition '%s' is false.", knowledge.Proposition),
			"The induction does not apply: nobody is red-eyed and nobody leaves.",
		}
		return p
	case numRed == 1:
		p.Case = CaseBase
		p.Steps = []string{
			"[base case] The only red-eyed villager sees 0 red eyes among the others.",
			"[base case] Once it is announced that at least one villager is red-eyed, the only consistent explanation is themself.",
			"[base case] They leave on the 1st day.",
		}
	default:
		k := numRed
		p.Case = CaseInductive
		p.Steps = []string{
			fmt.Sprintf("[inductive step] Each red-eyed villager sees exactly %d red eyes.", k-1),
			fmt.Sprintf("[inductive step] Suppose a red-eyed villager is not red-eyed: then only %d red-eyed villagers exist.", k-1),
			fmt.Sprintf("[inductive step] By the induction hypothesis those %d would all leave on the %s day.", k-1, humanize.Ordinal(k-1)),
			fmt.Sprintf("[inductive step] When the %s day passes with no departures the supposition is refuted.", humanize.Ordinal(k-1)),
			fmt.Sprintf("[inductive step] Every red-eyed villager concludes they are red-eyed; all %d leave together on the %s day.", k, humanize.Ordinal(k)),
		}
	}

	if !announced {
		p.Steps = append(p.Steps,
			"Without a public announcement the proposition is not common knowledge.",
			"The induction chain cannot close: no departure is expected on any day.",
		)
		return p
	}

	p.ExpectedDay = numRed
	return p
}

// Unannounced is a villager's justification when no announcement has been made.
func Unannounced(day int) string {
	return fmt.Sprintf("Day %d: no public announcement. Without common knowledge that someone is red-eyed "+
		"the induction chain cannot close, so I cannot tell whether to leave.", day)
}

// NotRed is the justification of a villager who is not red-eyed.
func NotRed(day, observed int) string {
	return fmt.Sprintf("Day %d: I see %d red-eyed villagers and nothing forces me to conclude I am one of them. I stay.",
		day, observed)
}

// BaseCase is the justification for leaving after seeing no red eyes.
func BaseCase(day int) string {
	return fmt.Sprintf("Day %d: [base case] I see 0 red-eyed villagers, yet at least one exists. "+
		"It must be me: I leave tonight.", day)
}

// Waiting is the justification of a red-eyed villager who sees k red eyes
// and is still inside the induction window.
func Waiting(day, k int) string {
	return fmt.Sprintf("Day %d: [inductive step] I see %d red-eyed villagers. If I were not red-eyed there would "+
		"be only %d, and by the induction hypothesis they would all leave on the %s day. "+
		"It is only the %s day: I keep waiting.",
		day, k, k, humanize.Ordinal(k), humanize.Ordinal(day))
}

// Departing is the justification of a red-eyed villager whose induction has closed.
func Departing(day, k int) string {
	return fmt.Sprintf("Day %d: [induction complete] The %d red-eyed villagers I see did not leave on the %s day. "+
		"Had I not been red-eyed they would have, so my supposition is false: I am red-eyed and leave tonight.",
		day, k, humanize.Ordinal(k))
}

// Verification compares the proof with what the simulation produced.
type Verification struct {
	ExpectedDay  int      `json:"expectedDay"`
	ActualDay    int      `json:"actualDay"` // day the last red-eyed villager left, 0 if none
	Simultaneous bool     `json:"simultaneous"`
	Passed       bool     `json:"passed"`
	Lines        []string `json:"lines"`
}

// Verify checks departures against p. firstDay and lastDay are the earliest
// and latest days on which a red-eyed villager left (0 if none left).
func Verify(p Proof, firstDay, lastDay int) Verification {
	v := Verification{
		ExpectedDay:  p.ExpectedDay,
		ActualDay:    lastDay,
		Simultaneous: firstDay == lastDay,
	}

	v.Lines = append(v.Lines, "=== Verification ===")
	switch {
	case p.NumRed == 0:
		v.Passed = lastDay == 0
		v.Lines = append(v.Lines, "No red-eyed villagers: nobody needs to leave.")
	case !p.ExpectsDepartures():
		v.Passed = lastDay == 0
		v.Lines = append(v.Lines, "Expected: no departures without common knowledge.")
		if lastDay == 0 {
			v.Lines = append(v.Lines, "Actual: nobody left.")
		} else {
			v.Lines = append(v.Lines, fmt.Sprintf("Actual: red-eyed villagers left by day %d.", lastDay))
		}
	default:
		v.Passed = v.Simultaneous && lastDay == p.ExpectedDay
		v.Lines = append(v.Lines,
			fmt.Sprintf("Expected: all %d red-eyed villagers leave together on the %s day.",
				p.NumRed, humanize.Ordinal(p.ExpectedDay)))
		if v.Simultaneous {
			v.Lines = append(v.Lines,
				fmt.Sprintf("Actual: all %d red-eyed villagers left on the %s day.",
					p.NumRed, humanize.Ordinal(lastDay)))
		} else {
			v.Lines = append(v.Lines,
				fmt.Sprintf("Actual: red-eyed villagers left between the %s and the %s day.",
					humanize.Ordinal(firstDay), humanize.Ordinal(lastDay)))
		}
	}

	if v.Passed {
		v.Lines = append(v.Lines, "Result: verified.")
	} else {
		v.Lines = append(v.Lines, "Result: diverged from the induction proof.")
	}
	return v
}
