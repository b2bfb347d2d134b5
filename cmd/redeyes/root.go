// redeyes simulates the red-eyes common-knowledge induction puzzle.
//
// Usage:
//
//	redeyes serve [--autoplay=1s] [--red=3 --blue=2 --announce]
//	redeyes run [--cases=1:2,3:2] [--no-announce] [--max-days=N]
//	redeyes explain --red=3 [--announced=false]
//	redeyes watch --url=http://localhost:8080
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/red-eyes/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
}

// cfg is loaded once before any subcommand runs.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "redeyes",
	Short: "Red-eyes common-knowledge puzzle simulator",
	Long: "redeyes simulates an island of perfect logicians who learn their own eye color\n" +
		"only through a public announcement and each other's departures.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "redeyes.yaml", "YAML config file (optional)")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.Version = version
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(rootFlags.configPath)
	if err != nil {
		return err
	}
	if rootFlags.logLevel != "" {
		c.LogLevel = rootFlags.logLevel
	}
	level, err := config.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	cfg = c
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
