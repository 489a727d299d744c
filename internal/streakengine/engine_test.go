package streakengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"meetupStreakAPI/internal/timewindow"
	"meetupStreakAPI/internal/types/streak"
)

type fakeStore struct {
	records map[uuid.UUID]streak.Record
	puts    int
	getErr  error
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[uuid.UUID]streak.Record)}
}

func (s *fakeStore) GetStreakRecord(ctx context.Context, calendarID uuid.UUID) (*streak.Record, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[calendarID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *fakeStore) PutStreakRecord(ctx context.Context, calendarID uuid.UUID, record *streak.Record) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.puts++
	s.records[calendarID] = *record
	return nil
}

var day0 = time.Date(2025, time.January, 1, 18, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return day0.AddDate(0, 0, n)
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func setup(now time.Time) (*Engine, *fakeStore, *fixedClock) {
	store := newFakeStore()
	clock := &fixedClock{now: now}
	return New(store, clock), store, clock
}

func TestRecordMeetupFirstMeetup(t *testing.T) {
	engine, store, _ := setup(day(1))
	cal := uuid.New()

	res, err := engine.RecordMeetup(context.Background(), cal, day0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if res.Outcome != OutcomeStarted {
		t.Errorf("Expected outcome started, got %s", res.Outcome)
	}
	rec := store.records[cal]
	if rec.CurrentStreak != 1 || rec.LongestStreak != 1 || !rec.TargetMet {
		t.Errorf("Expected current=1 longest=1 target_met=true, got %+v", rec)
	}
	if rec.Cadence != streak.CadenceMonthly {
		t.Errorf("Expected default cadence monthly, got %s", rec.Cadence)
	}
	if rec.LastMeetupAt == nil || !rec.LastMeetupAt.Equal(day0) {
		t.Errorf("Expected last meetup at %v, got %v", day0, rec.LastMeetupAt)
	}
	if res.Previous != nil {
		t.Error("Expected no previous record for a first meetup")
	}
}

func TestRecordMeetupMonthlyWindow(t *testing.T) {
	tests := []struct {
		name     string
		next     time.Time
		outcome  Outcome
		expected int
	}{
		{"within window", day(25), OutcomeExtended, 3},
		{"window edge inclusive", day(30), OutcomeExtended, 3},
		{"lapsed", day(40), OutcomeReset, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, store, _ := setup(day(100))
			cal := uuid.New()
			last := day0
			store.records[cal] = streak.Record{CalendarID: cal, Cadence: streak.CadenceMonthly, CurrentStreak: 2, LongestStreak: 5, LastMeetupAt: &last}

			res, err := engine.RecordMeetup(context.Background(), cal, tt.next)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if res.Outcome != tt.outcome {
				t.Errorf("Expected outcome %s, got %s", tt.outcome, res.Outcome)
			}
			rec := store.records[cal]
			if rec.CurrentStreak != tt.expected {
				t.Errorf("Expected current streak %d, got %d", tt.expected, rec.CurrentStreak)
			}
			if rec.LongestStreak != 5 {
				t.Errorf("Expected longest streak to stay 5, got %d", rec.LongestStreak)
			}
			if !rec.LastMeetupAt.Equal(tt.next) {
				t.Errorf("Expected last meetup to advance to %v, got %v", tt.next, rec.LastMeetupAt)
			}
		})
	}
}

func TestRecordMeetupCadences(t *testing.T) {
	tests := []struct {
		cadence   streak.Cadence
		extendsAt int
		resetsAt  int
	}{
		{streak.CadenceWeekly, 7, 8},
		{streak.CadenceMonthly, 30, 31},
		{streak.CadenceYearly, 365, 366},
	}

	for _, tt := range tests {
		t.Run(string(tt.cadence), func(t *testing.T) {
			for _, c := range []struct {
				offset   int
				expected int
			}{{tt.extendsAt, 2}, {tt.resetsAt, 1}} {
				engine, store, _ := setup(day(1000))
				cal := uuid.New()
				last := day0
				store.records[cal] = streak.Record{Cadence: tt.cadence, CurrentStreak: 1, LongestStreak: 1, LastMeetupAt: &last}

				if _, err := engine.RecordMeetup(context.Background(), cal, day(c.offset)); err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if got := store.records[cal].CurrentStreak; got != c.expected {
					t.Errorf("Day %d: expected current streak %d, got %d", c.offset, c.expected, got)
				}
			}
		})
	}
}

func TestRecordMeetupIdempotentByInstant(t *testing.T) {
	engine, store, _ := setup(day(10))
	cal := uuid.New()
	ctx := context.Background()

	if _, err := engine.RecordMeetup(ctx, cal, day(2)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	res, err := engine.RecordMeetup(ctx, cal, day(2))
	if err != nil {
		t.Fatalf("Unexpected error on repeat: %v", err)
	}

	if res.Outcome != OutcomeDuplicate {
		t.Errorf("Expected duplicate outcome, got %s", res.Outcome)
	}
	if got := store.records[cal].CurrentStreak; got != 1 {
		t.Errorf("Expected current streak 1 after repeated call, got %d", got)
	}
	if store.puts != 1 {
		t.Errorf("Expected a single write, got %d", store.puts)
	}
}

func TestRecordMeetupIdempotentAfterMicrosecondStorage(t *testing.T) {
	engine, store, _ := setup(day(10))
	cal := uuid.New()
	ctx := context.Background()
	start := day(2).Add(1500 * time.Nanosecond)

	if _, err := engine.RecordMeetup(ctx, cal, start); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Postgres timestamptz drops everything below a microsecond.
	rec := store.records[cal]
	stored := rec.LastMeetupAt.Truncate(time.Microsecond)
	rec.LastMeetupAt = &stored
	store.records[cal] = rec

	res, err := engine.RecordMeetup(ctx, cal, start)
	if err != nil {
		t.Fatalf("Unexpected error on repeat: %v", err)
	}
	if res.Outcome != OutcomeDuplicate {
		t.Errorf("Expected duplicate outcome, got %s", res.Outcome)
	}
	if got := store.records[cal].CurrentStreak; got != 1 {
		t.Errorf("Expected current streak 1, got %d", got)
	}
}

func TestRecordMeetupOutOfOrder(t *testing.T) {
	engine, store, _ := setup(day(10))
	cal := uuid.New()
	ctx := context.Background()

	if _, err := engine.RecordMeetup(ctx, cal, day(5)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	_, err := engine.RecordMeetup(ctx, cal, day(3))
	if !errors.Is(err, ErrOutOfOrderMeetup) || !errors.Is(err, timewindow.ErrInvalidInterval) {
		t.Fatalf("Expected out-of-order invalid interval error, got %v", err)
	}
	if !store.records[cal].LastMeetupAt.Equal(day(5)) {
		t.Error("Expected last meetup to stay put after a rejected call")
	}
}

func TestRecordMeetupDeferredFuture(t *testing.T) {
	engine, store, clock := setup(day0)
	cal := uuid.New()
	ctx := context.Background()

	res, err := engine.RecordMeetup(ctx, cal, day(3))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Outcome != OutcomeDeferred {
		t.Errorf("Expected deferred outcome, got %s", res.Outcome)
	}
	if len(store.records) != 0 {
		t.Error("Expected no record to be created for a future meetup")
	}

	clock.now = day(3)
	res, err = engine.RecordMeetup(ctx, cal, day(3))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Outcome != OutcomeStarted {
		t.Errorf("Expected the re-invocation at start time to count, got %s", res.Outcome)
	}
}

func TestRecordMeetupLongestNeverDecreases(t *testing.T) {
	engine, store, _ := setup(day(1000))
	cal := uuid.New()
	ctx := context.Background()

	offsets := []int{0, 20, 45, 50, 55, 200, 210, 215, 220, 230, 400}
	longest := 0
	for _, off := range offsets {
		if _, err := engine.RecordMeetup(ctx, cal, day(off)); err != nil {
			t.Fatalf("Unexpected error at day %d: %v", off, err)
		}
		rec := store.records[cal]
		if rec.LongestStreak < longest {
			t.Fatalf("Longest streak decreased from %d to %d at day %d", longest, rec.LongestStreak, off)
		}
		if rec.LongestStreak < rec.CurrentStreak {
			t.Fatalf("Longest %d below current %d at day %d", rec.LongestStreak, rec.CurrentStreak, off)
		}
		longest = rec.LongestStreak
	}
	if longest != 5 {
		t.Errorf("Expected longest streak 5, got %d", longest)
	}
	if got := store.records[cal].CurrentStreak; got != 1 {
		t.Errorf("Expected final current streak 1, got %d", got)
	}
}

func TestRecordMeetupPersistenceFailure(t *testing.T) {
	engine, store, _ := setup(day(10))
	cal := uuid.New()
	store.putErr = errors.New("connection reset")

	_, err := engine.RecordMeetup(context.Background(), cal, day(1))
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Expected ErrPersistence, got %v", err)
	}

	store.putErr = nil
	store.getErr = errors.New("timeout")
	if _, err := engine.RecordMeetup(context.Background(), cal, day(1)); !errors.Is(err, ErrPersistence) {
		t.Fatalf("Expected ErrPersistence on read failure, got %v", err)
	}

	store.getErr = nil
	res, err := engine.RecordMeetup(context.Background(), cal, day(1))
	if err != nil || res.Outcome != OutcomeStarted {
		t.Fatalf("Expected retry to succeed, got %v / %v", res, err)
	}
}

func TestSetCadence(t *testing.T) {
	engine, store, _ := setup(day(10))
	cal := uuid.New()
	ctx := context.Background()

	rec, err := engine.SetCadence(ctx, cal, streak.CadenceWeekly)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rec.CurrentStreak != 0 || rec.LongestStreak != 0 || rec.Cadence != streak.CadenceWeekly {
		t.Errorf("Expected a fresh weekly record, got %+v", rec)
	}
	if streak.StateOf(rec) != streak.StateGoalSetNoStreak {
		t.Errorf("Expected goal-set state, got %s", streak.StateOf(rec))
	}

	if _, err := engine.RecordMeetup(ctx, cal, day(1)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	rec, err = engine.SetCadence(ctx, cal, streak.CadenceYearly)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rec.CurrentStreak != 1 || rec.LongestStreak != 1 {
		t.Errorf("Expected counters untouched by cadence change, got %+v", rec)
	}
	if store.records[cal].Cadence != streak.CadenceYearly {
		t.Error("Expected cadence change to be persisted")
	}

	if _, err := engine.SetCadence(ctx, cal, "daily"); !errors.Is(err, ErrInvalidCadence) {
		t.Errorf("Expected ErrInvalidCadence, got %v", err)
	}
}

func TestEvaluateTarget(t *testing.T) {
	engine, store, clock := setup(day(1))
	cal := uuid.New()
	ctx := context.Background()

	if _, err := engine.EvaluateTarget(ctx, cal); !errors.Is(err, ErrUnknownCalendar) {
		t.Fatalf("Expected ErrUnknownCalendar without a record, got %v", err)
	}

	if _, err := engine.RecordMeetup(ctx, cal, day0); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	clock.now = day(29)
	rec, err := engine.EvaluateTarget(ctx, cal)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !rec.TargetMet {
		t.Error("Expected target met inside the window")
	}

	clock.now = day(31)
	rec, err = engine.EvaluateTarget(ctx, cal)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rec.TargetMet {
		t.Error("Expected target missed after the window lapsed")
	}
	if rec.CurrentStreak != 1 || rec.LongestStreak != 1 {
		t.Errorf("Expected counters untouched, got %+v", rec)
	}
	if store.records[cal].TargetMet {
		t.Error("Expected target change to be persisted")
	}
}
