package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"meetupStreakAPI/internal/achievement"
	"meetupStreakAPI/internal/queue"
	"meetupStreakAPI/internal/store"
	"meetupStreakAPI/internal/streakengine"
	"meetupStreakAPI/internal/timewindow"
	"meetupStreakAPI/internal/types/event"
	"meetupStreakAPI/internal/types/notification"
	"meetupStreakAPI/internal/types/streak"
)

const (
	TaskStreakRecheck = "streak:recheck"
	streakQueue       = "streaks"
	sweepBatchSize    = 100
)

type recheckPayload struct {
	CalendarID uuid.UUID `json:"calendar_id"`
	EventID    uuid.UUID `json:"event_id"`
}

// StreakService is the only caller of the streak engine. It serialises
// mutations per calendar, which the engine requires.
type StreakService struct {
	backend  store.Backend
	engine   *streakengine.Engine
	notifier *NotificationService
	queue    queue.Client
	locks    keyedMutex
}

func NewStreakService(backend store.Backend, clock streakengine.Clock, notifier *NotificationService) *StreakService {
	return &StreakService{
		backend:  backend,
		engine:   streakengine.New(backend, clock),
		notifier: notifier,
	}
}

// SetQueue enables scheduling of future meetups through the task queue.
// Without it the recheck sweep picks them up.
func (s *StreakService) SetQueue(q queue.Client) {
	s.queue = q
}

func (s *StreakService) Now() time.Time {
	return s.engine.Now()
}

func newStreakResponse(rec *streak.Record) *streak.StreakResponse {
	resp := &streak.StreakResponse{
		Record:       rec,
		State:        streak.StateOf(rec),
		Achievements: []achievement.Achievement{},
	}
	if rec != nil {
		resp.Message = achievement.Message(rec.CurrentStreak)
		resp.Achievements = achievement.Unlocked(rec.CurrentStreak, rec.LongestStreak)
	} else {
		resp.Message = achievement.Message(0)
	}
	return resp
}

func (s *StreakService) GetStreak(ctx context.Context, calendarID, memberID uuid.UUID) (*streak.StreakResponse, error) {
	if err := requireMember(ctx, s.backend, calendarID, memberID); err != nil {
		return nil, err
	}
	rec, err := s.backend.GetStreakRecord(ctx, calendarID)
	if err != nil {
		return nil, fmt.Errorf("failed to load streak: %w", err)
	}
	return newStreakResponse(rec), nil
}

func (s *StreakService) SetCadence(ctx context.Context, calendarID, memberID uuid.UUID, req *streak.SetCadenceRequest) (*streak.StreakResponse, error) {
	if err := requireMember(ctx, s.backend, calendarID, memberID); err != nil {
		return nil, err
	}
	cadence, err := streak.ParseCadence(req.Cadence)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", streakengine.ErrInvalidCadence, err)
	}

	unlock := s.locks.Lock(calendarID)
	defer unlock()

	rec, err := s.engine.SetCadence(ctx, calendarID, cadence)
	if err != nil {
		return nil, err
	}
	log.Printf("Calendar %s cadence set to %s", calendarID, cadence)
	return newStreakResponse(rec), nil
}

// RecordMeetup submits the meetup to the engine and marks it counted once the
// engine has taken a decision. Deferred meetups are scheduled for a recheck.
// Meetups older than the last counted one are marked counted as well, so the
// sweep does not retry them forever, and the rejection is returned.
func (s *StreakService) RecordMeetup(ctx context.Context, ev *event.Event) (*streakengine.Result, error) {
	unlock := s.locks.Lock(ev.CalendarID)
	defer unlock()

	if ev.StreakCountedAt != nil {
		return nil, nil
	}

	result, err := s.engine.RecordMeetup(ctx, ev.CalendarID, ev.StartTime)
	if err != nil {
		if errors.Is(err, timewindow.ErrInvalidInterval) {
			streakOutcomes.WithLabelValues("rejected").Inc()
			if markErr := s.markCounted(ctx, ev); markErr != nil {
				return nil, markErr
			}
		}
		return nil, err
	}
	streakOutcomes.WithLabelValues(string(result.Outcome)).Inc()

	if result.Outcome == streakengine.OutcomeDeferred {
		s.scheduleRecheck(ctx, ev)
		return result, nil
	}

	if err := s.markCounted(ctx, ev); err != nil {
		return nil, err
	}

	if result.Outcome.Counted() {
		log.Printf("Calendar %s streak %s: current=%d longest=%d",
			ev.CalendarID, result.Outcome, result.Record.CurrentStreak, result.Record.LongestStreak)
		s.notifyMilestones(ctx, ev.CalendarID, result)
	}
	return result, nil
}

func (s *StreakService) markCounted(ctx context.Context, ev *event.Event) error {
	now := s.engine.Now()
	if err := s.backend.MarkStreakCounted(ctx, ev.ID, now); err != nil {
		return fmt.Errorf("failed to mark meetup %s counted: %w", ev.ID, err)
	}
	ev.StreakCountedAt = &now
	return nil
}

func (s *StreakService) scheduleRecheck(ctx context.Context, ev *event.Event) {
	if s.queue == nil {
		return
	}
	payload, err := json.Marshal(recheckPayload{CalendarID: ev.CalendarID, EventID: ev.ID})
	if err != nil {
		log.Printf("Failed to encode recheck for meetup %s: %v", ev.ID, err)
		return
	}

	_, err = s.queue.Enqueue(ctx, queue.Task{Type: TaskStreakRecheck, Payload: payload}, queue.EnqueueOptions{
		Queue:     streakQueue,
		ProcessAt: ev.StartTime,
		MaxRetry:  5,
		TaskID:    "recheck:" + ev.ID.String(),
	})
	if err != nil && !errors.Is(err, queue.ErrDuplicate) {
		// The sweep still catches the meetup.
		log.Printf("Failed to schedule recheck for meetup %s: %v", ev.ID, err)
		return
	}
	log.Printf("Meetup %s recheck scheduled at %s", ev.ID, ev.StartTime.Format(time.RFC3339))
}

func (s *StreakService) notifyMilestones(ctx context.Context, calendarID uuid.UUID, result *streakengine.Result) {
	if s.notifier == nil {
		return
	}
	var beforeCurrent, beforeLongest int
	if result.Previous != nil {
		beforeCurrent, beforeLongest = result.Previous.CurrentStreak, result.Previous.LongestStreak
	}
	rec := result.Record
	for _, a := range achievement.NewlyUnlocked(beforeCurrent, beforeLongest, rec.CurrentStreak, rec.LongestStreak) {
		s.notifier.NotifyCalendar(ctx, &notification.Notification{
			CalendarID: calendarID,
			Type:       notification.TypeStreakMilestone,
			Title:      a.Icon + " " + a.Label,
			Body:       achievement.Message(rec.CurrentStreak),
			Data:       map[string]any{"achievement": a.Key, "current_streak": rec.CurrentStreak},
		})
	}
}

// RecheckMeetup re-submits a stored meetup; it is a no-op once the meetup
// was counted.
func (s *StreakService) RecheckMeetup(ctx context.Context, eventID uuid.UUID) (*streakengine.Result, error) {
	ev, err := s.backend.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load meetup %s: %w", eventID, err)
	}
	if ev.Kind != event.KindMeetup || ev.StreakCountedAt != nil {
		return nil, nil
	}
	return s.RecordMeetup(ctx, ev)
}

// HandleRecheckTask is the queue handler for TaskStreakRecheck.
func (s *StreakService) HandleRecheckTask(ctx context.Context, task queue.Task) error {
	var p recheckPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return fmt.Errorf("invalid %s payload: %w", TaskStreakRecheck, err)
	}
	_, err := s.RecheckMeetup(ctx, p.EventID)
	if errors.Is(err, ErrNotFound) || errors.Is(err, timewindow.ErrInvalidInterval) {
		// Deleted or out of order: nothing to retry.
		log.Printf("Recheck of meetup %s dropped: %v", p.EventID, err)
		return nil
	}
	return err
}

// SweepUncounted submits every past meetup not yet counted, oldest first.
func (s *StreakService) SweepUncounted(ctx context.Context) (int, error) {
	meetups, err := s.backend.ListUncountedMeetups(ctx, s.engine.Now(), sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list uncounted meetups: %w", err)
	}

	counted := 0
	for i := range meetups {
		res, err := s.RecordMeetup(ctx, &meetups[i])
		if err != nil {
			if errors.Is(err, timewindow.ErrInvalidInterval) || errors.Is(err, streakengine.ErrUnknownCalendar) {
				log.Printf("Sweep skipped meetup %s: %v", meetups[i].ID, err)
				continue
			}
			return counted, err
		}
		if res != nil && res.Outcome.Counted() {
			counted++
		}
	}
	if counted > 0 {
		log.Printf("Sweep counted %d meetups", counted)
	}
	return counted, nil
}

// EvaluateAll refreshes target_met on every calendar with a streak record
// and warns members of calendars that just fell off target.
func (s *StreakService) EvaluateAll(ctx context.Context) error {
	ids, err := s.backend.ListCalendarIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list calendars: %w", err)
	}

	var errs []error
	for _, id := range ids {
		if err := s.evaluate(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *StreakService) evaluate(ctx context.Context, calendarID uuid.UUID) error {
	unlock := s.locks.Lock(calendarID)
	defer unlock()

	before, err := s.backend.GetStreakRecord(ctx, calendarID)
	if err != nil {
		return fmt.Errorf("calendar %s: %w", calendarID, err)
	}
	if before == nil {
		return nil
	}

	rec, err := s.engine.EvaluateTarget(ctx, calendarID)
	if err != nil {
		return fmt.Errorf("calendar %s: %w", calendarID, err)
	}

	if before.TargetMet && !rec.TargetMet && rec.CurrentStreak > 0 && s.notifier != nil {
		s.notifier.NotifyCalendar(ctx, &notification.Notification{
			CalendarID: calendarID,
			Type:       notification.TypeStreakAtRisk,
			Title:      "Your streak is at risk",
			Body:       fmt.Sprintf("Meet up this %s to keep your streak of %d alive!", periodName(rec.Cadence), rec.CurrentStreak),
			Data:       map[string]any{"current_streak": rec.CurrentStreak},
		})
	}
	return nil
}

func requireMember(ctx context.Context, calendars store.CalendarStore, calendarID, memberID uuid.UUID) error {
	if _, err := calendars.GetCalendar(ctx, calendarID); err != nil {
		return err
	}
	ok, err := calendars.IsMember(ctx, calendarID, memberID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

func periodName(c streak.Cadence) string {
	switch c {
	case streak.CadenceWeekly:
		return "week"
	case streak.CadenceYearly:
		return "year"
	default:
		return "month"
	}
}
