package services

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"meetupStreakAPI/internal/streakengine"
	"meetupStreakAPI/internal/timewindow"
	"meetupStreakAPI/internal/types/event"
)

func TestCreateMeetupRejectsClash(t *testing.T) {
	env := newTestEnv(t, at(15, 12))

	if _, err := env.calendars.CreatePersonalEvent(env.ctx, env.cal.ID, env.bob, &event.CreateEventRequest{
		Title: "Gym", StartTime: at(20, 18), EndTime: at(20, 19),
	}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	req := &event.CreateMeetupRequest{
		Title:          "Drinks",
		StartTime:      at(20, 18).Add(30 * time.Minute),
		EndTime:        at(20, 19).Add(30 * time.Minute),
		ParticipantIDs: []uuid.UUID{env.alice, env.bob},
	}
	resp, err := env.meetups.CreateMeetup(env.ctx, env.cal.ID, env.alice, req)
	if !errors.Is(err, ErrMeetupClash) {
		t.Fatalf("Expected ErrMeetupClash, got %v", err)
	}
	if resp == nil || len(resp.Conflicts.Clashing) != 1 || resp.Conflicts.Clashing[0].ID != env.bob {
		t.Fatalf("Expected bob to be the only clashing member, got %+v", resp)
	}

	events, _ := env.backend.ListEventsInRange(env.ctx, env.cal.ID, at(20, 0), at(21, 0))
	for _, ev := range events {
		if ev.Kind == event.KindMeetup {
			t.Error("Expected no meetup to be stored on clash")
		}
	}

	// Without bob the slot is clear.
	req.ParticipantIDs = []uuid.UUID{env.alice}
	if _, err := env.meetups.CreateMeetup(env.ctx, env.cal.ID, env.alice, req); err != nil {
		t.Errorf("Expected meetup without bob to succeed, got %v", err)
	}
}

func TestCheckConflicts(t *testing.T) {
	env := newTestEnv(t, at(15, 12))

	if _, err := env.calendars.CreatePersonalEvent(env.ctx, env.cal.ID, env.alice, &event.CreateEventRequest{
		StartTime: at(18, 9), EndTime: at(18, 11),
	}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		req      event.CheckMeetupRequest
		clashing int
		wantErr  error
	}{
		{"overlap", event.CheckMeetupRequest{StartTime: at(18, 10), EndTime: at(18, 12)}, 1, nil},
		{"adjacent", event.CheckMeetupRequest{StartTime: at(18, 11), EndTime: at(18, 12)}, 0, nil},
		{"other day", event.CheckMeetupRequest{StartTime: at(19, 9), EndTime: at(19, 11)}, 0, nil},
		{"inverted", event.CheckMeetupRequest{StartTime: at(18, 12), EndTime: at(18, 10)}, 0, timewindow.ErrInvalidInterval},
		{"outsider", event.CheckMeetupRequest{StartTime: at(18, 10), EndTime: at(18, 12), ParticipantIDs: []uuid.UUID{uuid.New()}}, 0, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := env.meetups.CheckConflicts(env.ctx, env.cal.ID, env.bob, &tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(result.Clashing) != tt.clashing {
				t.Errorf("Expected %d clashing, got %d", tt.clashing, len(result.Clashing))
			}
		})
	}
}

func TestCreatePastMeetupsBuildStreak(t *testing.T) {
	env := newTestEnv(t, at(15, 12))

	first, err := env.meetups.CreateMeetup(env.ctx, env.cal.ID, env.alice, &event.CreateMeetupRequest{
		StartTime: at(1, 18), EndTime: at(1, 20),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if first.Streak.Outcome != streakengine.OutcomeStarted {
		t.Errorf("Expected started, got %s", first.Streak.Outcome)
	}
	if first.Event.StreakCountedAt == nil {
		t.Error("Expected meetup to be marked counted")
	}
	if len(first.Event.Participants) != 2 {
		t.Errorf("Expected all members as participants by default, got %d", len(first.Event.Participants))
	}

	second, err := env.meetups.CreateMeetup(env.ctx, env.cal.ID, env.bob, &event.CreateMeetupRequest{
		StartTime: at(10, 18), EndTime: at(10, 20),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if second.Streak.Outcome != streakengine.OutcomeExtended || second.Streak.Record.CurrentStreak != 2 {
		t.Errorf("Expected extended to 2, got %s/%d", second.Streak.Outcome, second.Streak.Record.CurrentStreak)
	}
}

func TestCreateOutOfOrderMeetupKeepsStreak(t *testing.T) {
	env := newTestEnv(t, at(15, 12))

	if _, err := env.meetups.CreateMeetup(env.ctx, env.cal.ID, env.alice, &event.CreateMeetupRequest{
		StartTime: at(10, 18), EndTime: at(10, 20),
	}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	resp, err := env.meetups.CreateMeetup(env.ctx, env.cal.ID, env.alice, &event.CreateMeetupRequest{
		StartTime: at(5, 18), EndTime: at(5, 20),
	})
	if err != nil {
		t.Fatalf("Expected the meetup to be stored, got %v", err)
	}
	if resp.StreakNote == "" || resp.Streak != nil {
		t.Errorf("Expected a streak note and no streak result, got %+v", resp)
	}

	streak, err := env.streaks.GetStreak(env.ctx, env.cal.ID, env.alice)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if streak.Record.CurrentStreak != 1 || !streak.Record.LastMeetupAt.Equal(at(10, 18)) {
		t.Errorf("Expected record untouched, got %+v", streak.Record)
	}

	counted, err := env.streaks.SweepUncounted(env.ctx)
	if err != nil || counted != 0 {
		t.Errorf("Expected the sweep to skip the rejected meetup, got %d (%v)", counted, err)
	}
}

func TestFutureMeetupIsDeferredThenSwept(t *testing.T) {
	env := newTestEnv(t, at(15, 12))

	resp, err := env.meetups.CreateMeetup(env.ctx, env.cal.ID, env.alice, &event.CreateMeetupRequest{
		StartTime: at(20, 18), EndTime: at(20, 20),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Streak.Outcome != streakengine.OutcomeDeferred {
		t.Fatalf("Expected deferred, got %s", resp.Streak.Outcome)
	}
	if resp.Event.StreakCountedAt != nil {
		t.Error("Expected deferred meetup to stay uncounted")
	}

	if len(env.queue.tasks) != 1 {
		t.Fatalf("Expected one recheck task, got %d", len(env.queue.tasks))
	}
	task := env.queue.tasks[0]
	if task.Task.Type != TaskStreakRecheck || !task.Opts.ProcessAt.Equal(at(20, 18)) {
		t.Errorf("Expected recheck at meetup start, got %s at %s", task.Task.Type, task.Opts.ProcessAt)
	}

	counted, err := env.streaks.SweepUncounted(env.ctx)
	if err != nil || counted != 0 {
		t.Errorf("Expected nothing to count before start, got %d (%v)", counted, err)
	}

	env.clock.Set(at(20, 18))
	if err := env.streaks.HandleRecheckTask(env.ctx, task.Task); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	streak, err := env.streaks.GetStreak(env.ctx, env.cal.ID, env.bob)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if streak.Record == nil || streak.Record.CurrentStreak != 1 {
		t.Fatalf("Expected the recheck to start the streak, got %+v", streak.Record)
	}

	counted, err = env.streaks.SweepUncounted(env.ctx)
	if err != nil || counted != 0 {
		t.Errorf("Expected the counted meetup not to be swept again, got %d (%v)", counted, err)
	}
}

func TestMarkAttendance(t *testing.T) {
	env := newTestEnv(t, at(15, 12))

	resp, err := env.meetups.CreateMeetup(env.ctx, env.cal.ID, env.alice, &event.CreateMeetupRequest{
		StartTime: at(20, 18), EndTime: at(20, 20),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	id := resp.Event.ID

	_, err = env.meetups.MarkAttendance(env.ctx, env.cal.ID, env.alice, id, &event.MarkAttendanceRequest{MemberID: env.bob, WasLate: true})
	if !errors.Is(err, ErrAttendanceTooEarly) {
		t.Fatalf("Expected ErrAttendanceTooEarly, got %v", err)
	}

	env.clock.Set(at(20, 20))
	ev, err := env.meetups.MarkAttendance(env.ctx, env.cal.ID, env.alice, id, &event.MarkAttendanceRequest{MemberID: env.bob, WasLate: true})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, p := range ev.Participants {
		switch p.MemberID {
		case env.bob:
			if p.WasLate == nil || !*p.WasLate || p.MarkedAt == nil {
				t.Errorf("Expected bob marked late, got %+v", p)
			}
		case env.alice:
			if p.WasLate != nil {
				t.Errorf("Expected alice unmarked, got %v", *p.WasLate)
			}
		}
	}

	_, err = env.meetups.MarkAttendance(env.ctx, env.cal.ID, env.alice, id, &event.MarkAttendanceRequest{MemberID: uuid.New()})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for non-participant, got %v", err)
	}

	_, err = env.meetups.MarkAttendance(env.ctx, env.cal.ID, uuid.New(), id, &event.MarkAttendanceRequest{MemberID: env.bob})
	if !errors.Is(err, ErrNotMember) {
		t.Errorf("Expected ErrNotMember, got %v", err)
	}
}

func TestCheckConflictsOnFallBackDay(t *testing.T) {
	env := newTestEnv(t, at(15, 12))
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("Europe/Berlin not available: %v", err)
	}
	meetups := NewMeetupService(env.backend, env.streaks, env.notifications, berlin)

	// 2026-10-25 has 25 hours in Berlin; 23:10 local is 24h10m after midnight.
	evening := func(hour, minute int) time.Time {
		return time.Date(2026, 10, 25, hour, minute, 0, 0, berlin)
	}
	if _, err := env.calendars.CreatePersonalEvent(env.ctx, env.cal.ID, env.bob, &event.CreateEventRequest{
		Title: "Night shift", StartTime: evening(23, 10), EndTime: evening(23, 50),
	}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	result, err := meetups.CheckConflicts(env.ctx, env.cal.ID, env.alice, &event.CheckMeetupRequest{
		StartTime:      evening(23, 0),
		EndTime:        evening(23, 55),
		ParticipantIDs: []uuid.UUID{env.bob},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Clashing) != 1 || result.Clashing[0].ID != env.bob {
		t.Errorf("Expected bob to clash with his 23:10 event, got %+v", result.Clashing)
	}
}
