package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"meetupStreakAPI/internal/conflict"
	"meetupStreakAPI/internal/store"
	"meetupStreakAPI/internal/streakengine"
	"meetupStreakAPI/internal/timewindow"
	"meetupStreakAPI/internal/types/calendar"
	"meetupStreakAPI/internal/types/event"
	"meetupStreakAPI/internal/types/notification"
)

type MeetupResponse struct {
	Event     *event.Event         `json:"event,omitempty"`
	Conflicts *conflict.Result     `json:"conflicts"`
	Streak    *streakengine.Result `json:"streak,omitempty"`
	// StreakNote explains why a stored meetup did not count.
	StreakNote string `json:"streak_note,omitempty"`
}

type MeetupService struct {
	backend  store.Backend
	streaks  *StreakService
	notifier *NotificationService
	location *time.Location
}

func NewMeetupService(backend store.Backend, streaks *StreakService, notifier *NotificationService, loc *time.Location) *MeetupService {
	if loc == nil {
		loc = time.UTC
	}
	return &MeetupService{
		backend:  backend,
		streaks:  streaks,
		notifier: notifier,
		location: loc,
	}
}

// participants resolves ids against the calendar's members, keeping the
// requested order. An empty list means every member.
func (s *MeetupService) participants(ctx context.Context, calendarID uuid.UUID, ids []uuid.UUID) ([]calendar.Member, error) {
	members, err := s.backend.ListMembers(ctx, calendarID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return members, nil
	}

	byID := make(map[uuid.UUID]calendar.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]calendar.Member, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: participant %s is not a member", ErrInvalidInput, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, m)
	}
	return out, nil
}

func (s *MeetupService) detect(ctx context.Context, calendarID uuid.UUID, start, end time.Time, ids []uuid.UUID) ([]calendar.Member, *conflict.Result, error) {
	if err := timewindow.Validate(start, end); err != nil {
		return nil, nil, err
	}
	participants, err := s.participants(ctx, calendarID, ids)
	if err != nil {
		return nil, nil, err
	}

	memberIDs := make([]uuid.UUID, len(participants))
	for i, m := range participants {
		memberIDs[i] = m.ID
	}
	day := timewindow.StartOfDay(start.In(s.location))
	events, err := s.backend.ListEventsForMembers(ctx, memberIDs, day)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load participants' events: %w", err)
	}

	result, err := conflict.DetectConflicts(conflict.Proposal{Start: start, End: end, Location: s.location}, participants, events)
	if err != nil {
		return nil, nil, err
	}
	if result.Clear() {
		conflictChecks.WithLabelValues("clear").Inc()
	} else {
		conflictChecks.WithLabelValues("clash").Inc()
	}
	return participants, result, nil
}

func (s *MeetupService) CheckConflicts(ctx context.Context, calendarID, memberID uuid.UUID, req *event.CheckMeetupRequest) (*conflict.Result, error) {
	if err := requireMember(ctx, s.backend, calendarID, memberID); err != nil {
		return nil, err
	}
	_, result, err := s.detect(ctx, calendarID, req.StartTime, req.EndTime, req.ParticipantIDs)
	return result, err
}

// CreateMeetup stores the meetup only when no participant has a clashing
// personal event, then submits it to the streak. On a clash the response
// lists the clashing members and ErrMeetupClash is returned.
func (s *MeetupService) CreateMeetup(ctx context.Context, calendarID, memberID uuid.UUID, req *event.CreateMeetupRequest) (*MeetupResponse, error) {
	if err := requireMember(ctx, s.backend, calendarID, memberID); err != nil {
		return nil, err
	}

	participants, result, err := s.detect(ctx, calendarID, req.StartTime, req.EndTime, req.ParticipantIDs)
	if err != nil {
		return nil, err
	}
	if !result.Clear() {
		return &MeetupResponse{Conflicts: result}, ErrMeetupClash
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Meetup"
	}
	now := s.streaks.Now()
	ev := &event.Event{
		ID:         uuid.New(),
		CalendarID: calendarID,
		OwnerID:    memberID,
		Title:      title,
		Kind:       event.KindMeetup,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Location:   req.Location,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, m := range participants {
		ev.Participants = append(ev.Participants, event.Participant{
			ID:       uuid.New(),
			EventID:  ev.ID,
			MemberID: m.ID,
		})
	}

	if err := s.backend.InsertEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to create meetup: %w", err)
	}
	log.Printf("Meetup %s created in calendar %s with %d participants", ev.ID, calendarID, len(participants))

	resp := &MeetupResponse{Event: ev, Conflicts: result}

	streakResult, err := s.streaks.RecordMeetup(ctx, ev)
	switch {
	case errors.Is(err, timewindow.ErrInvalidInterval):
		resp.StreakNote = "meetup predates the last counted meetup and does not affect the streak"
	case err != nil:
		// The meetup is stored uncounted; the sweep retries it.
		return nil, fmt.Errorf("meetup %s saved but streak update failed: %w", ev.ID, err)
	default:
		resp.Streak = streakResult
	}

	if s.notifier != nil && ev.StartTime.After(now) {
		s.notifier.NotifyCalendar(ctx, &notification.Notification{
			CalendarID: calendarID,
			Type:       notification.TypeMeetupScheduled,
			Title:      "New meetup: " + title,
			Body:       ev.StartTime.In(s.location).Format("Mon Jan 2, 15:04"),
			Data:       map[string]any{"event_id": ev.ID.String()},
		})
	}

	return resp, nil
}

// MarkAttendance records whether a participant arrived late. It is only
// possible once the meetup has ended.
func (s *MeetupService) MarkAttendance(ctx context.Context, calendarID, memberID, eventID uuid.UUID, req *event.MarkAttendanceRequest) (*event.Event, error) {
	if err := requireMember(ctx, s.backend, calendarID, memberID); err != nil {
		return nil, err
	}

	ev, err := s.backend.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.CalendarID != calendarID || ev.Kind != event.KindMeetup {
		return nil, ErrNotFound
	}

	now := s.streaks.Now()
	if !ev.HasEnded(now) {
		return nil, ErrAttendanceTooEarly
	}

	if err := s.backend.MarkAttendance(ctx, eventID, req.MemberID, req.WasLate, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: member %s is not a participant", ErrNotFound, req.MemberID)
		}
		return nil, err
	}

	return s.backend.GetEvent(ctx, eventID)
}
