package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/red-eyes/internal/agents"
	"github.com/talgya/red-eyes/internal/config"
	"github.com/talgya/red-eyes/internal/engine"
	"github.com/talgya/red-eyes/internal/persistence"
	"github.com/talgya/red-eyes/internal/proof"
	"github.com/talgya/red-eyes/internal/reasoning"
)

type response struct {
	OK    bool             `json:"ok"`
	Error string           `json:"error"`
	State *engine.Snapshot `json:"state"`
}

func newServer(t *testing.T, opts engine.Options) (*Server, *httptest.Server) {
	t.Helper()
	if opts.Strategy == nil {
		opts.Strategy = &reasoning.Policy{Mapping: map[agents.VillagerType]reasoning.Strategy{
			agents.TypePerfect: reasoning.PerfectInduction{},
			agents.TypeNone:    reasoning.NoReasoning{},
		}}
	}
	s := &Server{
		Sim:        engine.New(opts),
		Simulation: config.Default().Simulation,
	}
	return s, start(t, s)
}

func start(t *testing.T, s *Server) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, ts *httptest.Server, method, path, body string, header ...string) (int, response) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out response
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestPuzzleFlow(t *testing.T) {
	_, ts := newServer(t, engine.Options{})

	code, out := call(t, ts, http.MethodGet, "/api/v1/state", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, out.OK)
	assert.Nil(t, out.State)

	code, out = call(t, ts, http.MethodPost, "/api/v1/init", `{"numRed":3,"numBlue":2}`)
	require.Equal(t, http.StatusOK, code, out.Error)
	require.NotNil(t, out.State)
	assert.True(t, out.State.Active)
	assert.Len(t, out.State.Villagers, 5)
	assert.Equal(t, 2, out.State.KnowledgeLevel)

	code, out = call(t, ts, http.MethodPost, "/api/v1/announce", "")
	require.Equal(t, http.StatusOK, code, out.Error)
	assert.True(t, out.State.AnnouncementMade)

	code, out = call(t, ts, http.MethodPost, "/api/v1/announce", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, out.Error, "announcement already made")
	require.NotNil(t, out.State, "errors carry the current state")

	code, out = call(t, ts, http.MethodPost, "/api/v1/next", "")
	require.Equal(t, http.StatusOK, code, out.Error)
	assert.Equal(t, 1, out.State.CurrentDay)

	code, out = call(t, ts, http.MethodPost, "/api/v1/run_all", "")
	require.Equal(t, http.StatusOK, code, out.Error)
	assert.True(t, out.State.Finished)
	assert.Equal(t, 3, out.State.CurrentDay)
	require.NotNil(t, out.State.Verification)
	assert.True(t, out.State.Verification.Passed)

	code, out = call(t, ts, http.MethodPost, "/api/v1/next", "")
	assert.Equal(t, http.StatusConflict, code)

	code, out = call(t, ts, http.MethodPost, "/api/v1/reset", "")
	require.Equal(t, http.StatusOK, code)
	assert.False(t, out.State.Active)
	assert.Empty(t, out.State.Villagers)

	code, _ = call(t, ts, http.MethodPost, "/api/v1/next", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestInitValidation(t *testing.T) {
	_, ts := newServer(t, engine.Options{MaxPopulation: 10})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing counts", `{"numRed":1}`, http.StatusBadRequest},
		{"bad json", `{"numRed":`, http.StatusBadRequest},
		{"negative", `{"numRed":-1,"numBlue":0}`, http.StatusBadRequest},
		{"too many", `{"numRed":6,"numBlue":6}`, http.StatusBadRequest},
		{"unknown type", `{"numRed":1,"numBlue":0,"villagerType":"psychic"}`, http.StatusBadRequest},
		{"types length", `{"numRed":1,"numBlue":1,"types":["perfect"]}`, http.StatusBadRequest},
		{"unknown mode", `{"numRed":1,"numBlue":1,"assignmentMode":"shuffle"}`, http.StatusBadRequest},
		{"explicit types", `{"numRed":1,"numBlue":1,"types":["none","perfect"]}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := call(t, ts, http.MethodPost, "/api/v1/init", tt.body)
			assert.Equal(t, tt.code, code, out.Error)
		})
	}

	code, out := call(t, ts, http.MethodGet, "/api/v1/state", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, agents.TypeNone, out.State.Villagers[0].Type)
}

func TestRunAllDidNotConverge(t *testing.T) {
	_, ts := newServer(t, engine.Options{})

	code, _ := call(t, ts, http.MethodPost, "/api/v1/init", `{"numRed":2,"numBlue":0,"villagerType":"none"}`)
	require.Equal(t, http.StatusOK, code)
	call(t, ts, http.MethodPost, "/api/v1/announce", "")

	code, out := call(t, ts, http.MethodPost, "/api/v1/run_all", `{"maxDays":4}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, out.Error, "did not converge")
	require.NotNil(t, out.State)
	assert.Equal(t, 4, out.State.CurrentDay)
	assert.False(t, out.State.Finished)
}

func TestAdminAuth(t *testing.T) {
	s, _ := newServer(t, engine.Options{})
	s.AdminKey = "secret"
	ts := start(t, s)

	code, out := call(t, ts, http.MethodPost, "/api/v1/init", `{"numRed":1,"numBlue":0}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", out.Error)

	code, _ = call(t, ts, http.MethodPost, "/api/v1/init", `{"numRed":1,"numBlue":0}`,
		"Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = call(t, ts, http.MethodPost, "/api/v1/init", `{"numRed":1,"numBlue":0}`,
		"Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, code)

	// Reads stay public.
	code, _ = call(t, ts, http.MethodGet, "/api/v1/state", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newServer(t, engine.Options{})

	code, out := call(t, ts, http.MethodGet, "/api/v1/next", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.Equal(t, "method not allowed", out.Error)

	code, _ = call(t, ts, http.MethodPost, "/api/v1/state", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestHealth(t *testing.T) {
	_, ts := newServer(t, engine.Options{})

	var h map[string]any
	resp, err := ts.Client().Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	resp.Body.Close()
	assert.Equal(t, true, h["ok"])
	assert.Equal(t, false, h["active"])
	assert.Equal(t, false, h["archive"])
	assert.Equal(t, false, h["autoplay"])
}

func TestProof(t *testing.T) {
	_, ts := newServer(t, engine.Options{})

	get := func(path string) (int, map[string]json.RawMessage) {
		resp, err := ts.Client().Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body
	}

	code, body := get("/api/v1/proof?numRed=3")
	require.Equal(t, http.StatusOK, code)
	var p struct {
		NumRed      int      `json:"numRed"`
		Announced   bool     `json:"announced"`
		Case        string   `json:"case"`
		ExpectedDay int      `json:"expectedDay"`
		Steps       []string `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(body["proof"], &p))
	want := proof.Derive(3, true)
	assert.Equal(t, want.Case.String(), p.Case)
	assert.Equal(t, want.ExpectedDay, p.ExpectedDay)
	assert.Equal(t, want.Steps, p.Steps)
	assert.NotEmpty(t, body["knowledge"])

	code, body = get("/api/v1/proof?numRed=2&announced=false")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body["proof"], &p))
	assert.False(t, p.Announced)
	assert.Equal(t, proof.Derive(2, false).Steps, p.Steps)

	code, _ = get("/api/v1/proof?numRed=-2")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = get("/api/v1/proof?numRed=2&announced=maybe")
	assert.Equal(t, http.StatusBadRequest, code)

	// Without numRed the active village is used.
	code, _ = get("/api/v1/proof")
	assert.Equal(t, http.StatusNotFound, code)
	call(t, ts, http.MethodPost, "/api/v1/init", `{"numRed":4,"numBlue":1}`)
	code, body = get("/api/v1/proof")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body["proof"], &p))
	assert.Equal(t, 4, p.NumRed)
	assert.False(t, p.Announced)
}

func TestRunsArchive(t *testing.T) {
	s, ts := newServer(t, engine.Options{})
	code, _ := call(t, ts, http.MethodGet, "/api/v1/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	db, err := persistence.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s.DB = db
	s.Sim = engine.New(engine.Options{
		Strategy: reasoning.PerfectInduction{},
		OnFinished: func(snap engine.Snapshot, ver proof.Verification) {
			_, err := db.SaveRun(snap, ver)
			assert.NoError(t, err)
		},
	})
	ts = start(t, s)

	call(t, ts, http.MethodPost, "/api/v1/init", `{"numRed":2,"numBlue":1}`)
	call(t, ts, http.MethodPost, "/api/v1/announce", "")
	code, _ = call(t, ts, http.MethodPost, "/api/v1/run_all", "")
	require.Equal(t, http.StatusOK, code)

	var list struct {
		Runs []persistence.RunSummary `json:"runs"`
	}
	resp, err := ts.Client().Get(ts.URL + "/api/v1/runs?limit=5")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list.Runs, 1)
	assert.True(t, list.Runs[0].Passed)

	var detail struct {
		Run persistence.Run `json:"run"`
	}
	resp, err = ts.Client().Get(ts.URL + "/api/v1/runs/" + list.Runs[0].ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	resp.Body.Close()
	assert.Len(t, detail.Run.Departures, 2)

	code, _ = call(t, ts, http.MethodGet, "/api/v1/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, _ := newServer(t, engine.Options{Metrics: engine.NewMetrics(reg)})
	s.Gatherer = reg
	ts := start(t, s)

	call(t, ts, http.MethodPost, "/api/v1/init", `{"numRed":1,"numBlue":1}`)
	call(t, ts, http.MethodPost, "/api/v1/announce", "")
	call(t, ts, http.MethodPost, "/api/v1/next", "")

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "redeyes_days_advanced_total 1")
}

func TestCORS(t *testing.T) {
	s, _ := newServer(t, engine.Options{})
	s.CORSOrigins = []string{" https://puzzle.example "}
	ts := start(t, s)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/init", nil)
	req.Header.Set("Origin", "https://puzzle.example")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://puzzle.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimitedPosts(t *testing.T) {
	s, _ := newServer(t, engine.Options{})
	s.RatePerHour = 2
	ts := start(t, s)

	for i := 0; i < 2; i++ {
		code, _ := call(t, ts, http.MethodPost, "/api/v1/reset", "")
		assert.Equal(t, http.StatusOK, code)
	}
	code, out := call(t, ts, http.MethodPost, "/api/v1/reset", "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate limit exceeded", out.Error)

	// Another client has its own bucket; reads are never limited.
	code, _ = call(t, ts, http.MethodPost, "/api/v1/reset", "", "X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, http.StatusOK, code)
	code, _ = call(t, ts, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1_000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }
	rl.lastSweep = now

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 61, rl.RetryAfter("a"))

	now = now.Add(30 * time.Second)
	assert.False(t, rl.Allow("a"))
	assert.Equal(t, 31, rl.RetryAfter("a"))

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("a"))

	// Long idle buckets are swept.
	now = now.Add(5 * time.Minute)
	rl.Allow("c")
	rl.mu.Lock()
	_, kept := rl.buckets["b"]
	rl.mu.Unlock()
	assert.False(t, kept)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:4321"
	assert.Equal(t, "192.0.2.1", clientIP(r))

	r.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	assert.Equal(t, "198.51.100.7", clientIP(r))
}
