package agents

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVillageLayout(t *testing.T) {
	v, err := NewVillage(3, 2, Assignment{})
	require.NoError(t, err)

	require.Len(t, v.Villagers, 5)
	for i, vi := range v.Villagers {
		assert.Equal(t, VillagerID(i+1), vi.ID)
		assert.Equal(t, TypePerfect, vi.Type)
		assert.False(t, vi.HasLeft)
		assert.Nil(t, vi.LeftOnDay)
	}
	assert.Equal(t, "Red 1", v.Villagers[0].Name)
	assert.Equal(t, "Red 3", v.Villagers[2].Name)
	assert.Equal(t, "Blue 1", v.Villagers[3].Name)
	assert.Equal(t, Red, v.Villagers[2].Eyes)
	assert.Equal(t, Blue, v.Villagers[3].Eyes)

	// Red villagers see the other two reds, blue villagers see all three.
	assert.Equal(t, 2, v.Villagers[0].ObservedRedEyes)
	assert.Equal(t, 3, v.Villagers[4].ObservedRedEyes)
	assert.Equal(t, 3, v.RemainingRed())
	assert.False(t, v.Finished())
}

func TestNewVillageRejectsBadInput(t *testing.T) {
	_, err := NewVillage(-1, 2, Assignment{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewVillage(1, -2, Assignment{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewVillage(2, 1, Assignment{Types: []VillagerType{TypePerfect}})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestZeroRedIsFinished(t *testing.T) {
	v, err := NewVillage(0, 4, Assignment{})
	require.NoError(t, err)
	assert.True(t, v.Finished())
	for _, vi := range v.Villagers {
		assert.Zero(t, vi.ObservedRedEyes)
	}
}

func TestObserveIgnoresDeparted(t *testing.T) {
	v, err := NewVillage(3, 1, Assignment{})
	require.NoError(t, err)

	require.True(t, v.Villagers[0].Leave(2))
	obs := Observe(v.Villagers, 1)

	assert.Equal(t, Observation{}, obs[0])
	assert.Equal(t, Observation{RedEyes: 1, LeftYesterday: 1, LeftTotal: 1}, obs[1])
	assert.Equal(t, Observation{RedEyes: 2, LeftYesterday: 1, LeftTotal: 1}, obs[3])

	// Observe is pure.
	assert.Equal(t, 2, v.Villagers[1].ObservedRedEyes)
}

func TestLeaveIsMonotonic(t *testing.T) {
	v := NewSpawner().Spawn(Red, TypePerfect)
	v.ObservedRedEyes = 4

	require.True(t, v.Leave(3))
	assert.False(t, v.Leave(5))
	require.NotNil(t, v.LeftOnDay)
	assert.Equal(t, 3, *v.LeftOnDay)
	assert.Zero(t, v.ObservedRedEyes)
}

func TestCloneIsDeep(t *testing.T) {
	v, err := NewVillage(2, 0, Assignment{})
	require.NoError(t, err)
	v.Villagers[0].Leave(1)
	AppendReasoning(v.Villagers[1], "day 1")
	v.Logf("line %d", 1)

	c := v.Clone()
	*c.Villagers[0].LeftOnDay = 9
	c.Villagers[1].ReasoningLog[0] = "changed"
	c.DailyLog[0] = "changed"

	assert.Equal(t, 1, *v.Villagers[0].LeftOnDay)
	assert.Equal(t, "day 1", v.Villagers[1].ReasoningLog[0])
	assert.Equal(t, "line 1", v.DailyLog[0])
}

func TestAssignmentForMode(t *testing.T) {
	a, err := AssignmentForMode(ModeMixedEnds, 4, TypeBounded)
	require.NoError(t, err)
	assert.Equal(t, []VillagerType{TypeDelegated, TypeBounded, TypeBounded, TypeDelegated}, a.Types)

	a, err = AssignmentForMode(ModeAllDelegated, 4, TypePerfect)
	require.NoError(t, err)
	assert.Equal(t, TypeDelegated, a.Default)
	assert.Nil(t, a.Types)

	_, err = AssignmentForMode("random", 4, TypePerfect)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	v, err := NewVillage(1, 2, Assignment{Default: TypeNone, Types: []VillagerType{TypeFallible, "", TypeImpatient}})
	require.NoError(t, err)
	assert.Equal(t, TypeFallible, v.Villagers[0].Type)
	assert.Equal(t, TypeNone, v.Villagers[1].Type)
	assert.Equal(t, TypeImpatient, v.Villagers[2].Type)
}

func TestRecentReasoning(t *testing.T) {
	v := NewSpawner().Spawn(Blue, TypePerfect)
	assert.Nil(t, RecentReasoning(v, 3))

	for _, s := range []string{"a", "b", "c", "d"} {
		AppendReasoning(v, s)
	}
	got := RecentReasoning(v, 2)
	assert.Equal(t, []string{"c", "d"}, got)
	got[0] = "x"
	assert.Equal(t, "c", v.ReasoningLog[2])
	assert.Equal(t, []string{"a", "b", "c", "d"}, RecentReasoning(v, 10))
}

func TestVillagerJSON(t *testing.T) {
	v := NewSpawner().Spawn(Red, TypeDelegated)
	v.Leave(2)

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 1, "name": "Red 1", "eyeColor": "RED", "villagerType": "openai",
		"hasLeft": true, "leftOnDay": 2,
		"observedRedEyes": 0, "observedLeftYesterday": 0, "observedLeftTotal": 0,
		"reasoningLog": []
	}`, string(raw))

	var back Villager
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, Red, back.Eyes)

	var c EyeColor
	assert.Error(t, c.UnmarshalText([]byte("GREEN")))
}
