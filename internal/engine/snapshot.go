package engine

import (
	"github.com/talgya/red-eyes/internal/agents"
	"github.com/talgya/red-eyes/internal/knowledge"
	"github.com/talgya/red-eyes/internal/proof"
)

// Snapshot is a read-only, serializable projection of the village.
type Snapshot struct {
	Active bool `json:"active"`

	NumRed  int `json:"numRed"`
	NumBlue int `json:"numBlue"`

	AnnouncementMade bool   `json:"announcementMade"`
	AnnouncedOnDay   int    `json:"announcedOnDay"`
	CurrentDay       int    `json:"currentDay"`
	KnowledgeLevel   int    `json:"knowledgeLevel"`
	Knowledge        string `json:"knowledge"`

	Finished     bool                `json:"finished"`
	ExpectedDay  int                 `json:"expectedDay"`
	Verification *proof.Verification `json:"verification,omitempty"`

	Villagers []agents.Villager `json:"villagers"`
	DailyLog  []string          `json:"dailyLog"`
}

func snapshotOf(v *agents.Village, verification *proof.Verification) Snapshot {
	if v == nil {
		return Snapshot{Villagers: []agents.Villager{}, DailyLog: []string{}}
	}
	c := v.Clone()
	villagers := make([]agents.Villager, len(c.Villagers))
	for i, vi := range c.Villagers {
		villagers[i] = *vi
	}

	s := Snapshot{
		Active:           true,
		NumRed:           c.NumRed,
		NumBlue:          c.NumBlue,
		AnnouncementMade: c.AnnouncementMade,
		AnnouncedOnDay:   c.AnnouncedOnDay,
		CurrentDay:       c.CurrentDay,
		KnowledgeLevel:   c.KnowledgeLevel,
		Knowledge:        knowledge.Level(c.KnowledgeLevel).String(),
		Finished:         c.Finished(),
		ExpectedDay:      proof.Derive(c.NumRed, c.AnnouncementMade).ExpectedDay,
		Villagers:        villagers,
		DailyLog:         c.DailyLog,
	}
	if verification != nil {
		vc := *verification
		vc.Lines = append([]string{}, verification.Lines...)
		s.Verification = &vc
	}
	return s
}

// Villager returns the snapshot entry for id.
func (s Snapshot) Villager(id agents.VillagerID) (agents.Villager, bool) {
	for _, v := range s.Villagers {
		if v.ID == id {
			return v, true
		}
	}
	return agents.Villager{}, false
}
