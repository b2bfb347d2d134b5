package observer

import (
	"fmt"

	"github.com/talgya/red-eyes/internal/agents"
	"github.com/talgya/red-eyes/internal/engine"
)

// Status levels reported by Triage, from best to worst.
const (
	StatusIdle     = "IDLE"     // no village
	StatusWaiting  = "WAITING"  // no announcement, nobody can ever leave
	StatusOnTrack  = "ON_TRACK" // announced, departures not yet due
	StatusVerified = "VERIFIED"
	StatusDiverged = "DIVERGED"
)

// Diagnosis holds signals derived from one snapshot. It runs on the client,
// so watch can flag a misbehaving village without the server's help.
type Diagnosis struct {
	PresentRed  int
	PresentBlue int
	LeftRed     int
	LeftBlue    int

	Day         int
	ExpectedDay int
	Early       int // red departures before the expected day
	Overdue     bool
	Status      string
}

// Triage computes a Diagnosis from a snapshot. A nil snapshot is idle.
func Triage(s *engine.Snapshot) Diagnosis {
	d := Diagnosis{Status: StatusIdle}
	if s == nil || !s.Active {
		return d
	}
	d.Day = s.CurrentDay
	d.ExpectedDay = s.ExpectedDay

	for _, v := range s.Villagers {
		switch {
		case !v.HasLeft && v.Eyes == agents.Red:
			d.PresentRed++
		case !v.HasLeft:
			d.PresentBlue++
		case v.Eyes == agents.Red:
			d.LeftRed++
			if v.LeftOnDay != nil && *v.LeftOnDay < d.ExpectedDay {
				d.Early++
			}
		default:
			d.LeftBlue++
		}
	}
	d.Overdue = s.AnnouncementMade && d.PresentRed > 0 && d.Day >= d.ExpectedDay && d.ExpectedDay > 0

	switch {
	case s.Finished && s.Verification != nil && s.Verification.Passed && d.LeftBlue == 0:
		d.Status = StatusVerified
	case s.Finished, d.LeftBlue > 0, d.Early > 0, d.Overdue:
		d.Status = StatusDiverged
	case !s.AnnouncementMade:
		d.Status = StatusWaiting
	default:
		d.Status = StatusOnTrack
	}
	return d
}

// String renders a one-line summary for the watch command.
func (d Diagnosis) String() string {
	if d.Status == StatusIdle {
		return "[" + d.Status + "]"
	}
	return fmt.Sprintf("[%s] red %d present / %d left, blue %d present / %d left, day %d of %d",
		d.Status, d.PresentRed, d.LeftRed, d.PresentBlue, d.LeftBlue, d.Day, d.ExpectedDay)
}
