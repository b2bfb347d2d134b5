// Package config loads red-eyes settings with priority env > file > defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/red-eyes/internal/agents"
	"github.com/talgya/red-eyes/internal/llm"
)

// Config is the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Simulation SimulationConfig `yaml:"simulation"`
	Strategies StrategyConfig   `yaml:"strategies"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Archive    ArchiveConfig    `yaml:"archive"`
	LogLevel   string           `yaml:"log_level"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	AdminKey    string   `yaml:"admin_key"`
	CORSOrigins []string `yaml:"cors_origins"`
	RatePerHour int      `yaml:"rate_per_hour"` // POST requests per client IP; 0 disables
}

// SimulationConfig configures the engine.
type SimulationConfig struct {
	MaxDays        int                 `yaml:"max_days"`
	MaxPopulation  int                 `yaml:"max_population"`
	Parallelism    int                 `yaml:"parallelism"`
	DefaultType    agents.VillagerType `yaml:"default_type"`
	AssignmentMode string              `yaml:"assignment_mode"`
}

// StrategyConfig parameterizes the non-delegated strategies.
type StrategyConfig struct {
	BoundedMaxDepth int     `yaml:"bounded_max_depth"`
	MaxDayCutoff    int     `yaml:"max_day_cutoff"`
	ErrorRate       float64 `yaml:"error_rate"`
	Seed            int64   `yaml:"seed"`
}

// OpenAIConfig configures the delegated reasoner.
type OpenAIConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Style       string        `yaml:"style"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	Threshold   float64       `yaml:"threshold"`
	Align       bool          `yaml:"align"`
	PerMinute   int           `yaml:"per_minute"`
	Window      int           `yaml:"window"`
}

// ArchiveConfig configures the SQLite run archive.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:        8080,
			RatePerHour: 600,
		},
		Simulation: SimulationConfig{
			MaxDays:        250,
			MaxPopulation:  200,
			Parallelism:    8,
			DefaultType:    agents.TypePerfect,
			AssignmentMode: agents.ModeAllPerfect,
		},
		Strategies: StrategyConfig{
			BoundedMaxDepth: 2,
			MaxDayCutoff:    3,
			ErrorRate:       0.1,
			Seed:            1,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			Style:       string(llm.StyleRational),
			Temperature: 0.2,
			MaxTokens:   220,
			Timeout:     20 * time.Second,
			Threshold:   0.6,
			PerMinute:   60,
			Window:      5,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Path:    "redeyes.db",
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults and applies the environment. An empty or
// missing path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Debug("config file not found, using defaults", "path", path)
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.OpenAI.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.OpenAI.Model = v
	}
	if v := os.Getenv("OPENAI_STYLE"); v != "" {
		c.OpenAI.Style = v
	}
	if v := os.Getenv("REDEYES_ADMIN_KEY"); v != "" {
		c.Server.AdminKey = v
	}
	if v := os.Getenv("REDEYES_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			c.Server.Port = i
		}
	}
	if v := os.Getenv("REDEYES_ARCHIVE"); v != "" {
		c.Archive.Enabled = true
		c.Archive.Path = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, o)
			}
		}
	}
	if v := os.Getenv("REDEYES_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate rejects nonsensical settings.
func (c Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.RatePerHour < 0 {
		return fmt.Errorf("server.rate_per_hour must be >= 0")
	}
	if c.Simulation.MaxDays < 1 {
		return fmt.Errorf("simulation.max_days must be >= 1")
	}
	if c.Simulation.MaxPopulation < 1 {
		return fmt.Errorf("simulation.max_population must be >= 1")
	}
	if c.Simulation.Parallelism < 1 {
		return fmt.Errorf("simulation.parallelism must be >= 1")
	}
	if _, err := agents.AssignmentForMode(c.Simulation.AssignmentMode, 0, c.Simulation.DefaultType); err != nil {
		return fmt.Errorf("simulation.assignment_mode: %w", err)
	}
	if c.Strategies.BoundedMaxDepth < 0 {
		return fmt.Errorf("strategies.bounded_max_depth must be >= 0")
	}
	if c.Strategies.MaxDayCutoff < 0 {
		return fmt.Errorf("strategies.max_day_cutoff must be >= 0")
	}
	if c.Strategies.ErrorRate < 0 || c.Strategies.ErrorRate > 1 {
		return fmt.Errorf("strategies.error_rate must be between 0 and 1")
	}
	if _, err := llm.ParseStyle(c.OpenAI.Style); err != nil {
		return fmt.Errorf("openai.style: %w", err)
	}
	if c.OpenAI.Threshold < 0 || c.OpenAI.Threshold > 1 {
		return fmt.Errorf("openai.threshold must be between 0 and 1")
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return fmt.Errorf("openai.temperature must be between 0 and 2")
	}
	if c.OpenAI.Timeout < 0 || c.OpenAI.MaxTokens < 0 || c.OpenAI.PerMinute < 0 || c.OpenAI.Window < 0 {
		return fmt.Errorf("openai timeout, max_tokens, per_minute and window must be >= 0")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log level name to slog.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
