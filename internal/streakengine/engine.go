// Package streakengine maintains a calendar's meetup streak record.
//
// The engine is the only writer of streak records. It does not serialise
// calls itself: callers must ensure at most one mutating call per calendar
// is in flight, otherwise concurrent updates can race on LastMeetupAt.
package streakengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"meetupStreakAPI/internal/timewindow"
	"meetupStreakAPI/internal/types/streak"
)

var (
	ErrUnknownCalendar = errors.New("unknown calendar")
	ErrPersistence     = errors.New("streak persistence failure")
	ErrInvalidCadence  = errors.New("invalid cadence")
	// ErrOutOfOrderMeetup is an invalid-interval class rejection.
	ErrOutOfOrderMeetup = fmt.Errorf("%w: meetup precedes the last counted meetup", timewindow.ErrInvalidInterval)
)

// Store persists one streak record per calendar. GetStreakRecord returns
// (nil, nil) when the calendar has no record yet.
type Store interface {
	GetStreakRecord(ctx context.Context, calendarID uuid.UUID) (*streak.Record, error)
	PutStreakRecord(ctx context.Context, calendarID uuid.UUID, record *streak.Record) error
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var SystemClock Clock = ClockFunc(time.Now)

type Outcome string

const (
	OutcomeStarted   Outcome = "started"
	OutcomeExtended  Outcome = "extended"
	OutcomeReset     Outcome = "reset"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeDeferred  Outcome = "deferred"
)

// Counted reports whether the outcome changed the record.
func (o Outcome) Counted() bool {
	return o == OutcomeStarted || o == OutcomeExtended || o == OutcomeReset
}

type Result struct {
	Record  *streak.Record `json:"streak"`
	Outcome Outcome        `json:"outcome"`
	// Previous holds the record as it was before the update, nil if it did not exist.
	Previous *streak.Record `json:"-"`
}

type Engine struct {
	store Store
	clock Clock
}

func New(store Store, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock
	}
	return &Engine{store: store, clock: clock}
}

func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

func (e *Engine) load(ctx context.Context, calendarID uuid.UUID) (*streak.Record, error) {
	rec, err := e.store.GetStreakRecord(ctx, calendarID)
	if err != nil {
		if errors.Is(err, ErrUnknownCalendar) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: get record for calendar %s: %w", ErrPersistence, calendarID, err)
	}
	return rec, nil
}

func (e *Engine) save(ctx context.Context, calendarID uuid.UUID, rec *streak.Record) error {
	if err := e.store.PutStreakRecord(ctx, calendarID, rec); err != nil {
		if errors.Is(err, ErrUnknownCalendar) {
			return err
		}
		return fmt.Errorf("%w: put record for calendar %s: %w", ErrPersistence, calendarID, err)
	}
	return nil
}

func newRecord(calendarID uuid.UUID, cadence streak.Cadence, now time.Time) *streak.Record {
	return &streak.Record{
		ID:         uuid.New(),
		CalendarID: calendarID,
		Cadence:    cadence,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// SetCadence chooses the group's meeting goal, creating the record on first
// use. The streak counters are left untouched.
func (e *Engine) SetCadence(ctx context.Context, calendarID uuid.UUID, cadence streak.Cadence) (*streak.Record, error) {
	if !cadence.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCadence, cadence)
	}

	rec, err := e.load(ctx, calendarID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	if rec == nil {
		rec = newRecord(calendarID, cadence, now)
	} else {
		rec.Cadence = cadence
		rec.UpdatedAt = now
	}

	if err := e.save(ctx, calendarID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// RecordMeetup counts a meetup starting at start towards the calendar's
// streak. Meetups in the future are reported as deferred without touching the
// record; the caller re-invokes once start has passed.
func (e *Engine) RecordMeetup(ctx context.Context, calendarID uuid.UUID, start time.Time) (*Result, error) {
	now := e.clock.Now()
	if start.After(now) {
		return &Result{Outcome: OutcomeDeferred}, nil
	}

	rec, err := e.load(ctx, calendarID)
	if err != nil {
		return nil, err
	}

	var previous *streak.Record
	if rec == nil {
		rec = newRecord(calendarID, streak.DefaultCadence, now)
	} else {
		snapshot := *rec
		previous = &snapshot
	}

	next, outcome, err := Advance(*rec, start)
	if err != nil {
		return nil, err
	}
	if outcome == OutcomeDuplicate {
		return &Result{Record: rec, Outcome: outcome, Previous: previous}, nil
	}

	next.UpdatedAt = now
	if err := e.save(ctx, calendarID, &next); err != nil {
		return nil, err
	}

	return &Result{Record: &next, Outcome: outcome, Previous: previous}, nil
}

// Advance is the single streak transition. It is pure: the caller persists
// the returned record.
func Advance(rec streak.Record, start time.Time) (streak.Record, Outcome, error) {
	// Stored instants keep microseconds; the duplicate check must survive that.
	start = start.Truncate(time.Microsecond)
	if !rec.Cadence.Valid() {
		rec.Cadence = streak.DefaultCadence
	}

	var outcome Outcome
	switch {
	case rec.LastMeetupAt == nil:
		rec.CurrentStreak = 1
		outcome = OutcomeStarted
	case start.Equal(*rec.LastMeetupAt):
		return rec, OutcomeDuplicate, nil
	case start.Before(*rec.LastMeetupAt):
		return rec, "", ErrOutOfOrderMeetup
	case timewindow.InWindow(rec.Cadence, *rec.LastMeetupAt, start):
		rec.CurrentStreak++
		outcome = OutcomeExtended
	default:
		rec.CurrentStreak = 1
		outcome = OutcomeReset
	}

	rec.LongestStreak = max(rec.LongestStreak, rec.CurrentStreak)
	last := start
	rec.LastMeetupAt = &last
	rec.TargetMet = true

	return rec, outcome, nil
}

// EvaluateTarget refreshes TargetMet against the current time: the group is
// on target while now lies within the cadence window of the last counted
// meetup. Counters are never modified; a lapse is applied by the next
// RecordMeetup.
func (e *Engine) EvaluateTarget(ctx context.Context, calendarID uuid.UUID) (*streak.Record, error) {
	rec, err := e.load(ctx, calendarID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s has no streak record", ErrUnknownCalendar, calendarID)
	}

	now := e.clock.Now()
	onTarget := rec.LastMeetupAt != nil && timewindow.InWindow(rec.Cadence, *rec.LastMeetupAt, now)
	if onTarget == rec.TargetMet {
		return rec, nil
	}

	rec.TargetMet = onTarget
	rec.UpdatedAt = now
	if err := e.save(ctx, calendarID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
