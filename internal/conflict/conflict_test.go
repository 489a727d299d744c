package conflict

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"meetupStreakAPI/internal/timewindow"
	"meetupStreakAPI/internal/types/calendar"
	"meetupStreakAPI/internal/types/event"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.June, day, hour, minute, 0, 0, time.UTC)
}

func personal(owner uuid.UUID, start, end time.Time) event.Event {
	return event.Event{ID: uuid.New(), OwnerID: owner, Kind: event.KindPersonal, StartTime: start, EndTime: end}
}

func TestDetectConflicts(t *testing.T) {
	member := calendar.Member{ID: uuid.New(), DisplayName: "Sam", Color: "#10b981"}

	tests := []struct {
		name       string
		start, end time.Time
		existing   event.Event
		clash      bool
	}{
		{"partial overlap", at(10, 10, 0), at(10, 11, 0), personal(member.ID, at(10, 10, 30), at(10, 11, 30)), true},
		{"touching before", at(10, 9, 0), at(10, 10, 0), personal(member.ID, at(10, 10, 0), at(10, 11, 0)), false},
		{"touching after", at(10, 11, 0), at(10, 12, 0), personal(member.ID, at(10, 10, 0), at(10, 11, 0)), false},
		{"proposal ends inside", at(10, 8, 0), at(10, 10, 0), personal(member.ID, at(10, 9, 0), at(10, 12, 0)), true},
		{"proposal contains event", at(10, 8, 0), at(10, 14, 0), personal(member.ID, at(10, 9, 0), at(10, 10, 0)), true},
		{"event contains proposal", at(10, 12, 0), at(10, 13, 0), personal(member.ID, at(10, 9, 0), at(10, 17, 0)), true},
		{"other day", at(10, 10, 0), at(10, 11, 0), personal(member.ID, at(11, 10, 0), at(11, 11, 0)), false},
		{"meetups ignored", at(10, 10, 0), at(10, 11, 0), event.Event{ID: uuid.New(), OwnerID: member.ID, Kind: event.KindMeetup, StartTime: at(10, 10, 0), EndTime: at(10, 11, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := DetectConflicts(Proposal{Start: tt.start, End: tt.end}, []calendar.Member{member}, []event.Event{tt.existing})
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got := !res.Clear(); got != tt.clash {
				t.Errorf("Expected clash=%v, got %v", tt.clash, got)
			}
			if tt.clash && res.Clashing[0].Color != member.Color {
				t.Error("Expected clashing member to carry its display data")
			}
		})
	}
}

func TestDetectConflictsOnlyParticipants(t *testing.T) {
	alice := calendar.Member{ID: uuid.New(), DisplayName: "Alice"}
	bob := calendar.Member{ID: uuid.New(), DisplayName: "Bob"}
	carol := calendar.Member{ID: uuid.New(), DisplayName: "Carol"}

	events := []event.Event{
		personal(carol.ID, at(10, 10, 0), at(10, 12, 0)),
		personal(bob.ID, at(10, 10, 0), at(10, 12, 0)),
		personal(alice.ID, at(10, 9, 0), at(10, 11, 0)),
		personal(alice.ID, at(10, 10, 0), at(10, 10, 30)),
	}

	res, err := DetectConflicts(Proposal{Start: at(10, 10, 0), End: at(10, 11, 0)}, []calendar.Member{alice, bob}, events)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(res.Clashing) != 2 {
		t.Fatalf("Expected 2 clashing participants, got %d", len(res.Clashing))
	}
	if res.Clashing[0].ID != alice.ID || res.Clashing[1].ID != bob.ID {
		t.Error("Expected clashing participants in participant order, each listed once")
	}
}

func TestDetectConflictsInvalidInterval(t *testing.T) {
	_, err := DetectConflicts(Proposal{Start: at(10, 11, 0), End: at(10, 10, 0)}, nil, nil)
	if !errors.Is(err, timewindow.ErrInvalidInterval) {
		t.Errorf("Expected ErrInvalidInterval, got %v", err)
	}
}

func TestDetectConflictsUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	m := calendar.Member{ID: uuid.New()}

	// 23:00 UTC on the 9th is 08:00 on the 10th in UTC+9.
	existing := personal(m.ID, time.Date(2025, time.June, 9, 23, 0, 0, 0, time.UTC), time.Date(2025, time.June, 10, 1, 0, 0, 0, time.UTC))
	proposal := Proposal{
		Start:    time.Date(2025, time.June, 10, 9, 0, 0, 0, loc),
		End:      time.Date(2025, time.June, 10, 10, 0, 0, 0, loc),
		Location: loc,
	}

	res, err := DetectConflicts(proposal, []calendar.Member{m}, []event.Event{existing})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Clear() {
		t.Error("Expected clash when both intervals are read in the proposal's location")
	}
}
