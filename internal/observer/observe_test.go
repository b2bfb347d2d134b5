package observer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/red-eyes/internal/agents"
	"github.com/talgya/red-eyes/internal/api"
	"github.com/talgya/red-eyes/internal/engine"
	"github.com/talgya/red-eyes/internal/reasoning"
)

func TestObserveLiveServer(t *testing.T) {
	sim := engine.New(engine.Options{Strategy: reasoning.PerfectInduction{}})
	ts := httptest.NewServer((&api.Server{Sim: sim}).Handler())
	defer ts.Close()

	o := NewObserver(ts.URL + "/")
	ctx := context.Background()

	obs, err := o.Observe(ctx)
	require.NoError(t, err)
	assert.True(t, obs.Health.OK)
	assert.False(t, obs.Health.Active)
	assert.Nil(t, obs.State)

	_, err = sim.Initialize(2, 1, agents.Assignment{})
	require.NoError(t, err)
	_, err = sim.Announce()
	require.NoError(t, err)

	obs, err = o.Observe(ctx)
	require.NoError(t, err)
	require.NotNil(t, obs.State)
	assert.Equal(t, 2, obs.State.NumRed)
	assert.True(t, obs.State.AnnouncementMade)

	var c Cursor
	first := c.Next(obs.State)
	require.NotEmpty(t, first)
	assert.Equal(t, "Initialized: 2 red-eyed and 1 blue-eyed villagers.", first[0])
	assert.Empty(t, c.Next(obs.State))

	_, err = sim.RunToCompletion(ctx, 0)
	require.NoError(t, err)
	obs, err = o.Observe(ctx)
	require.NoError(t, err)
	assert.True(t, obs.Health.Finished)
	more := c.Next(obs.State)
	assert.Contains(t, more, "=== Day 1 ===")
	assert.Equal(t, "Result: verified.", more[len(more)-1])
}

func TestCursorReplaysReplacedVillage(t *testing.T) {
	var c Cursor
	long := &engine.Snapshot{DailyLog: []string{"a", "b", "c"}}
	assert.Equal(t, []string{"a", "b", "c"}, c.Next(long))

	short := &engine.Snapshot{DailyLog: []string{"x"}}
	assert.Equal(t, []string{"x"}, c.Next(short))

	assert.Nil(t, c.Next(nil))
	assert.Equal(t, []string{"x"}, c.Next(short))
}

func TestObserveErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := NewObserver(ts.URL).Observe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 503: down for maintenance")

	ts404 := httptest.NewServer(http.NotFoundHandler())
	defer ts404.Close()
	_, err = NewObserver(ts404.URL).Observe(context.Background())
	assert.ErrorIs(t, err, ErrNoSimulation)
}

func TestTriage(t *testing.T) {
	assert.Equal(t, StatusIdle, Triage(nil).Status)

	sim := engine.New(engine.Options{Strategy: reasoning.PerfectInduction{}})
	snap, err := sim.Initialize(3, 1, agents.Assignment{})
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, Triage(&snap).Status)

	snap, err = sim.Announce()
	require.NoError(t, err)
	d := Triage(&snap)
	assert.Equal(t, StatusOnTrack, d.Status)
	assert.Equal(t, 3, d.PresentRed)
	assert.Equal(t, 3, d.ExpectedDay)

	snap, err = sim.RunToCompletion(context.Background(), 0)
	require.NoError(t, err)
	d = Triage(&snap)
	assert.Equal(t, StatusVerified, d.Status)
	assert.Equal(t, 3, d.LeftRed)
	assert.Equal(t, 1, d.PresentBlue)
	assert.Equal(t, "[VERIFIED] red 0 present / 3 left, blue 1 present / 0 left, day 3 of 3", d.String())
}

func TestTriageFlagsEarlyDepartures(t *testing.T) {
	sim := engine.New(engine.Options{Strategy: reasoning.MaxDay{CutoffDay: 1}})
	_, err := sim.Initialize(3, 1, agents.Assignment{})
	require.NoError(t, err)
	_, err = sim.Announce()
	require.NoError(t, err)
	snap, err := sim.AdvanceDay(context.Background())
	require.NoError(t, err)

	d := Triage(&snap)
	assert.Equal(t, StatusDiverged, d.Status)
	assert.Equal(t, 3, d.Early)
	assert.Equal(t, 1, d.LeftBlue)
}

func TestTriageFlagsOverdueVillage(t *testing.T) {
	snap := engine.Snapshot{
		Active: true, NumRed: 1, AnnouncementMade: true, CurrentDay: 2, ExpectedDay: 1,
		Villagers: []agents.Villager{{ID: 1, Eyes: agents.Red}},
	}
	d := Triage(&snap)
	assert.True(t, d.Overdue)
	assert.Equal(t, StatusDiverged, d.Status)
}
