package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/red-eyes/internal/agents"
	"github.com/talgya/red-eyes/internal/engine"
)

var runFlags struct {
	cases      string
	noAnnounce bool
	maxDays    int
	summary    bool
	villager   string
	mode       string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a batch of puzzle instances to completion and verify them",
	RunE:  runBatch,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.cases, "cases", "1:2,2:1,3:2,4:0,0:3", "comma-separated red:blue pairs")
	f.BoolVar(&runFlags.noAnnounce, "no-announce", false, "skip the public announcement")
	f.IntVar(&runFlags.maxDays, "max-days", 0, "safety cap per case (0 uses config)")
	f.BoolVar(&runFlags.summary, "summary", false, "print only the pass/fail summary")
	f.StringVar(&runFlags.villager, "type", "", "villager type for every villager (overrides config)")
	f.StringVar(&runFlags.mode, "mode", "", "assignment mode: all_perfect, all_delegated or mixed_ends")
}

type puzzleCase struct {
	red, blue int
}

func parseCases(s string) ([]puzzleCase, error) {
	var out []puzzleCase
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, b, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("case %q: want red:blue", part)
		}
		red, err := strconv.Atoi(r)
		if err != nil {
			return nil, fmt.Errorf("case %q: %w", part, err)
		}
		blue, err := strconv.Atoi(b)
		if err != nil {
			return nil, fmt.Errorf("case %q: %w", part, err)
		}
		out = append(out, puzzleCase{red: red, blue: blue})
	}
	if len(out) == 0 {
		return nil, errors.New("no cases given")
	}
	return out, nil
}

func runBatch(cmd *cobra.Command, _ []string) error {
	cases, err := parseCases(runFlags.cases)
	if err != nil {
		return err
	}
	if runFlags.villager != "" {
		cfg.Simulation.DefaultType = agents.VillagerType(runFlags.villager)
	}
	if runFlags.mode != "" {
		cfg.Simulation.AssignmentMode = runFlags.mode
	}

	opts, err := cfg.EngineOptions(nil)
	if err != nil {
		return err
	}
	db, hook, err := openArchive()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	opts.OnFinished = hook
	sim := engine.New(opts)

	out := cmd.OutOrStdout()
	failed := 0
	for i, c := range cases {
		snap, err := runCase(cmd, sim, c)
		if !runFlags.summary {
			fmt.Fprintf(out, "##### Case %d: %d red, %d blue #####\n", i+1, c.red, c.blue)
			for _, line := range snap.DailyLog {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out)
		}
		if ok := reportCase(out, i+1, c, snap, err); !ok {
			failed++
		}
	}

	fmt.Fprintf(out, "%d of %d cases verified\n", len(cases)-failed, len(cases))
	if failed > 0 {
		return fmt.Errorf("%d cases diverged from the induction proof", failed)
	}
	return nil
}

func runCase(cmd *cobra.Command, sim *engine.Engine, c puzzleCase) (engine.Snapshot, error) {
	assign, err := cfg.Assignment(c.red + c.blue)
	if err != nil {
		return engine.Snapshot{}, err
	}
	snap, err := sim.Initialize(c.red, c.blue, assign)
	if err != nil {
		return snap, err
	}
	if !runFlags.noAnnounce {
		if snap, err = sim.Announce(); err != nil {
			return snap, err
		}
	}
	if snap.Finished {
		return snap, nil
	}
	return sim.RunToCompletion(cmd.Context(), runFlags.maxDays)
}

func reportCase(out io.Writer, n int, c puzzleCase, snap engine.Snapshot, err error) bool {
	switch {
	case errors.Is(err, engine.ErrSimulationDidNotConverge):
		// Expected without an announcement when red-eyed villagers exist.
		passed := !snap.AnnouncementMade && snap.ExpectedDay == 0
		fmt.Fprintf(out, "Case %d (%d red, %d blue): nobody left within %d days: %s\n",
			n, c.red, c.blue, snap.CurrentDay, verdict(passed))
		return passed
	case err != nil:
		fmt.Fprintf(out, "Case %d (%d red, %d blue): error: %v\n", n, c.red, c.blue, err)
		return false
	case snap.Verification == nil:
		fmt.Fprintf(out, "Case %d (%d red, %d blue): unfinished\n", n, c.red, c.blue)
		return false
	case snap.Verification.ActualDay == 0:
		fmt.Fprintf(out, "Case %d (%d red, %d blue): nobody had to leave: %s\n",
			n, c.red, c.blue, verdict(snap.Verification.Passed))
	default:
		fmt.Fprintf(out, "Case %d (%d red, %d blue): red-eyed villagers left on the %s day (expected %d): %s\n",
			n, c.red, c.blue, humanize.Ordinal(snap.Verification.ActualDay), snap.Verification.ExpectedDay,
			verdict(snap.Verification.Passed))
	}
	return snap.Verification.Passed
}

func verdict(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}
