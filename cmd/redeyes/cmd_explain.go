package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talgya/red-eyes/internal/knowledge"
	"github.com/talgya/red-eyes/internal/proof"
	"github.com/talgya/red-eyes/internal/reasoning"
)

var explainFlags struct {
	red       int
	announced bool
}

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Explain the knowledge structure and induction proof for a village",
	RunE:  runExplain,
}

func init() {
	f := explainCmd.Flags()
	f.IntVar(&explainFlags.red, "red", 3, "number of red-eyed villagers")
	f.BoolVar(&explainFlags.announced, "announced", true, "whether the public announcement is made")
}

func runExplain(cmd *cobra.Command, _ []string) error {
	if explainFlags.red < 0 {
		return fmt.Errorf("--red must be non-negative")
	}
	out := cmd.OutOrStdout()
	n := explainFlags.red

	fmt.Fprintf(out, "Proposition: %s.\n\n", knowledge.Proposition)
	fmt.Fprintln(out, "Before the announcement:")
	for _, line := range knowledge.Narrative(n) {
		fmt.Fprintf(out, "  %s\n", line)
	}
	if n > 0 {
		fmt.Fprintf(out, "  A red-eyed villager sees %d red eyes and needs depth %d to conclude.\n",
			n-1, reasoning.RequiredDepth(n-1))
	}

	p := proof.Derive(n, explainFlags.announced)
	fmt.Fprintf(out, "\nProof (%s):\n", p.Case)
	for _, line := range p.Steps {
		fmt.Fprintf(out, "  %s\n", line)
	}
	if p.ExpectsDepartures() {
		fmt.Fprintf(out, "\nExpected: all %d red-eyed villagers leave together on day %d.\n",
			n, p.ExpectedDay)
	} else {
		fmt.Fprintln(out, "\nExpected: nobody leaves.")
	}
	return nil
}
