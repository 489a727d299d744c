package conflict

import (
	"time"

	"github.com/google/uuid"

	"meetupStreakAPI/internal/timewindow"
	"meetupStreakAPI/internal/types/calendar"
	"meetupStreakAPI/internal/types/event"
)

type Proposal struct {
	Start time.Time
	End   time.Time
	// Location decides the calendar day and hour cells. Defaults to Start's location.
	Location *time.Location
}

type Result struct {
	Clashing []calendar.Member `json:"clashing"`
}

func (r *Result) Clear() bool {
	return len(r.Clashing) == 0
}

// DetectConflicts returns the participants who already have a personal event
// overlapping the proposal. Detection is hour-granular and limited to the
// proposal's start day, mirroring the availability grid.
func DetectConflicts(p Proposal, participants []calendar.Member, events []event.Event) (*Result, error) {
	if err := timewindow.Validate(p.Start, p.End); err != nil {
		return nil, err
	}
	loc := p.Location
	if loc == nil {
		loc = p.Start.Location()
	}
	start := p.Start.In(loc)
	s, e := timewindow.HourSpan(start, p.End.In(loc))

	byOwner := make(map[uuid.UUID][]*event.Event)
	for i := range events {
		ev := &events[i]
		if !ev.IsPersonal() {
			continue
		}
		if !timewindow.IsSameCalendarDay(ev.StartTime.In(loc), start) {
			continue
		}
		byOwner[ev.OwnerID] = append(byOwner[ev.OwnerID], ev)
	}

	result := &Result{Clashing: []calendar.Member{}}
	for _, m := range participants {
		for _, ev := range byOwner[m.ID] {
			es, ee := timewindow.HourSpan(ev.StartTime.In(loc), ev.EndTime.In(loc))
			if clashes(s, e, es, ee) {
				result.Clashing = append(result.Clashing, m)
				break
			}
		}
	}

	return result, nil
}

func clashes(s, e, es, ee int) bool {
	return (s >= es && s < ee) ||
		(e > es && e <= ee) ||
		(s <= es && e >= ee)
}
