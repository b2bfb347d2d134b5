// Package observer reads a running red-eyes server through its public API.
package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/talgya/red-eyes/internal/engine"
)

// ErrNoSimulation means the server is up but has no active village.
var ErrNoSimulation = errors.New("server has no active simulation")

// Health mirrors GET /api/v1/health.
type Health struct {
	OK       bool `json:"ok"`
	Active   bool `json:"active"`
	Finished bool `json:"finished"`
	Autoplay bool `json:"autoplay"`
	LLM      bool `json:"llm"`
	Archive  bool `json:"archive"`
}

// Observation holds everything collected in one poll.
type Observation struct {
	Health Health
	State  *engine.Snapshot // nil when no simulation is active
}

// Observer fetches state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches health and, when a village is active, its state.
func (o *Observer) Observe(ctx context.Context) (*Observation, error) {
	obs := &Observation{}
	if err := o.fetchJSON(ctx, "/api/v1/health", &obs.Health); err != nil {
		return nil, fmt.Errorf("fetch health: %w", err)
	}
	if !obs.Health.Active {
		return obs, nil
	}

	var body struct {
		State engine.Snapshot `json:"state"`
	}
	err := o.fetchJSON(ctx, "/api/v1/state", &body)
	if errors.Is(err, ErrNoSimulation) {
		return obs, nil // reset between the two calls
	}
	if err != nil {
		return nil, fmt.Errorf("fetch state: %w", err)
	}
	obs.State = &body.State
	return obs, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNoSimulation
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Cursor remembers how much of a daily log has been seen.
type Cursor struct {
	seen int
}

// Next returns the log lines added since the previous call. A shorter log
// means the village was replaced, so it is replayed from the start.
func (c *Cursor) Next(s *engine.Snapshot) []string {
	if s == nil {
		c.seen = 0
		return nil
	}
	if len(s.DailyLog) < c.seen {
		c.seen = 0
	}
	lines := s.DailyLog[c.seen:]
	c.seen = len(s.DailyLog)
	return lines
}
