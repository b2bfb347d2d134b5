// Villager prompts: the situation a delegated villager reasons about.
package llm

import (
	"fmt"
	"strings"
)

// Style is a persona preset for the delegated villager.
type Style string

const (
	StyleAbsoluteRational Style = "absolute_rational"
	StyleRational         Style = "rational"
	StyleOrdinary         Style = "ordinary"
	StyleSocial           Style = "social"
)

// ParseStyle validates a style name; empty selects rational.
func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case "":
		return StyleRational, nil
	case StyleAbsoluteRational, StyleRational, StyleOrdinary, StyleSocial:
		return Style(s), nil
	}
	return "", fmt.Errorf("unknown reasoning style %q", s)
}

// Temperature adjusts the configured base temperature for the style.
func (s Style) Temperature(base float64) float64 {
	switch s {
	case StyleAbsoluteRational:
		return 0
	case StyleRational:
		return min(base, 0.3)
	case StyleOrdinary, StyleSocial:
		return max(base, 0.8)
	}
	return base
}

func (s Style) persona() string {
	switch s {
	case StyleAbsoluteRational:
		return "You are a perfect logician. You follow common knowledge and the induction chain strictly, " +
			"never act on emotion and never reinterpret the rules."
	case StyleOrdinary:
		return "You are an ordinary villager: you may be nervous, hesitate or misread the situation, " +
			"and you are not guaranteed to complete the induction."
	case StyleSocial:
		return "You are an ordinary villager strongly swayed by the crowd: you weigh whether anyone left " +
			"yesterday and how many have left so far. You still only leave when sure you are red-eyed."
	default:
		return "You are a rational villager: you reason as well as you can but your depth is limited, " +
			"and when unsure you prefer to stay."
	}
}

// SystemPrompt is the fixed instruction block for a style. align adds the
// standard-proof premises that make the outcome converge.
func SystemPrompt(style Style, align bool) string {
	var b strings.Builder
	b.WriteString("You are simulating one villager's decision for tonight. ")
	b.WriteString(style.persona())
	b.WriteString(" Do not write out step-by-step reasoning; give only a short public reason and key points.")
	if align {
		b.WriteString(" Standard premises apply: every villager is a perfect logician, this is common " +
			"knowledge, and everyone leaves on the night they become certain they are red-eyed, and only then.")
	}
	return b.String()
}

// Situation is what a villager knows on the day being decided.
type Situation struct {
	Name            string
	Day             int
	Announced       bool
	ObservedRedEyes int
	LeftYesterday   int
	LeftTotal       int
	PriorLog        []string // most recent reasoning entries, oldest first
	AlignHint       bool
}

// BuildPrompt renders the user prompt for a situation.
func BuildPrompt(s Situation) string {
	var b strings.Builder

	b.WriteString("Everyone in the village can see the others' eye colors but not their own. ")
	b.WriteString("Anyone who becomes certain they are red-eyed leaves that night; everyone decides at the same time ")
	b.WriteString("and sees the next morning who has gone.\n\n")

	announced := "no"
	if s.Announced {
		announced = "yes"
	}
	fmt.Fprintf(&b, "You are %s. Today is day %d.\n", s.Name, s.Day)
	fmt.Fprintf(&b, "Has a visitor publicly announced that at least one villager is red-eyed? %s.\n", announced)
	fmt.Fprintf(&b, "Red-eyed villagers you can see: %d.\n", s.ObservedRedEyes)
	fmt.Fprintf(&b, "Villagers who left yesterday: %d.\n", s.LeftYesterday)
	fmt.Fprintf(&b, "Villagers who have left so far: %d.\n\n", s.LeftTotal)

	if len(s.PriorLog) > 0 {
		b.WriteString("Your earlier reasoning:\n")
		for _, entry := range s.PriorLog {
			fmt.Fprintf(&b, "- %s\n", entry)
		}
		b.WriteString("\n")
	}

	b.WriteString(`Respond ONLY with a JSON object: {"decision": "leave" | "stay", "confidence": 0.0-1.0, ` +
		`"reason": string, "key_points": [string, ...]}. confidence is how sure you are of the decision; ` +
		`reason is a short public explanation; key_points lists 1-3 points.`)

	if s.AlignHint {
		b.WriteString("\n\nHint: if the announcement was made and you see k red-eyed villagers, on days 1..k after it " +
			"you cannot be certain (stay); on day k+1, if nobody has left, you must be red-eyed (leave, confidence near 1.0).")
	}
	return b.String()
}
