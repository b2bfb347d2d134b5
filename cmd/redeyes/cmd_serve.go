package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/talgya/red-eyes/internal/api"
	"github.com/talgya/red-eyes/internal/engine"
	"github.com/talgya/red-eyes/internal/persistence"
	"github.com/talgya/red-eyes/internal/proof"
)

var serveFlags struct {
	port     int
	autoplay time.Duration
	red      int
	blue     int
	announce bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the simulation over HTTP",
	Long: `Starts the HTTP API. POST endpoints drive the puzzle (init, announce, next,
run_all, reset); GET endpoints observe it. With --autoplay the server also
advances the active village by one day per interval.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.IntVar(&serveFlags.port, "port", 0, "HTTP port (overrides config)")
	f.DurationVar(&serveFlags.autoplay, "autoplay", 0, "advance one day per interval (0 disables)")
	f.IntVar(&serveFlags.red, "red", -1, "initialize a village with this many red-eyed villagers")
	f.IntVar(&serveFlags.blue, "blue", 0, "blue-eyed villagers for --red")
	f.BoolVar(&serveFlags.announce, "announce", false, "make the announcement right after --red initializes")
}

// openArchive opens the run archive when enabled and returns a hook that
// archives each finished puzzle.
func openArchive() (*persistence.DB, func(engine.Snapshot, proof.Verification), error) {
	if !cfg.Archive.Enabled {
		return nil, nil, nil
	}
	db, err := persistence.Open(cfg.Archive.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	slog.Info("run archive opened", "path", cfg.Archive.Path)
	// Archived fallible runs only replay under the seed they were made with.
	if err := db.SaveMeta("strategy_seed", strconv.FormatInt(cfg.Strategies.Seed, 10)); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("record seed: %w", err)
	}
	hook := func(snap engine.Snapshot, ver proof.Verification) {
		if _, err := db.SaveRun(snap, ver); err != nil {
			slog.Error("archive run failed", "error", err)
		}
	}
	return db, hook, nil
}

// newServer builds the API server from the loaded config and flags.
func newServer(sim *engine.Engine, db *persistence.DB, reg prometheus.Gatherer) *api.Server {
	port := cfg.Server.Port
	if serveFlags.port > 0 {
		port = serveFlags.port
	}
	return &api.Server{
		Sim:         sim,
		DB:          db,
		Gatherer:    reg,
		Simulation:  cfg.Simulation,
		LLMEnabled:  cfg.OpenAI.APIKey != "",
		Port:        port,
		AdminKey:    cfg.Server.AdminKey,
		CORSOrigins: cfg.Server.CORSOrigins,
		RatePerHour: cfg.Server.RatePerHour,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts, err := cfg.EngineOptions(engine.NewMetrics(reg))
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
	slog.Info("strategies configured", "error_rate", cfg.Strategies.ErrorRate, "seed", cfg.Strategies.Seed)

	if serveFlags.red >= 0 {
		assign, err := cfg.Assignment(serveFlags.red + serveFlags.blue)
		if err != nil {
			return err
		}
		if _, err := sim.Initialize(serveFlags.red, serveFlags.blue, assign); err != nil {
			return err
		}
		if serveFlags.announce {
			if _, err := sim.Announce(); err != nil {
				return err
			}
		}
	}

	srv := newServer(sim, db, reg)

	if serveFlags.autoplay > 0 {
		clock := engine.NewClock(sim)
		clock.Interval = serveFlags.autoplay
		srv.Clock = clock
		go clock.Run(ctx)
	}

	httpSrv := srv.Start()
	<-ctx.Done()

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
