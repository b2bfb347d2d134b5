package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/red-eyes/internal/observer"
)

var watchFlags struct {
	url      string
	interval time.Duration
	once     bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running server's daily log",
	RunE:  runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&watchFlags.url, "url", "http://localhost:8080", "server base URL")
	f.DurationVar(&watchFlags.interval, "interval", 2*time.Second, "poll interval")
	f.BoolVar(&watchFlags.once, "until-finished", false, "exit once the puzzle finishes")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	obs := observer.NewObserver(watchFlags.url)
	out := cmd.OutOrStdout()
	var cursor observer.Cursor
	lastStatus := ""

	ticker := time.NewTicker(watchFlags.interval)
	defer ticker.Stop()
	for {
		o, err := obs.Observe(ctx)
		if err != nil {
			slog.Warn("observe failed", "url", watchFlags.url, "error", err)
		} else {
			for _, line := range cursor.Next(o.State) {
				fmt.Fprintln(out, line)
			}
			if d := observer.Triage(o.State); d.Status != lastStatus {
				fmt.Fprintln(out, d)
				lastStatus = d.Status
			}
			if watchFlags.once && o.State != nil && o.State.Finished {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
