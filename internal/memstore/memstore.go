// Package memstore is an in-memory implementation of the store ports. It backs
// STORE=memory development runs and the service and handler tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"meetupStreakAPI/internal/store"
	"meetupStreakAPI/internal/streakengine"
	"meetupStreakAPI/internal/types/calendar"
	"meetupStreakAPI/internal/types/event"
	"meetupStreakAPI/internal/types/notification"
	"meetupStreakAPI/internal/types/streak"
)

type Store struct {
	mu        sync.RWMutex
	users     map[string]uuid.UUID
	calendars map[uuid.UUID]calendar.Calendar
	members   map[uuid.UUID][]calendar.Member
	events    map[uuid.UUID]event.Event
	streaks   map[uuid.UUID]streak.Record
	devices   map[string]notification.DeviceToken

	// FailStreakWrites makes PutStreakRecord fail, for exercising error paths.
	FailStreakWrites error
}

var _ store.Backend = (*Store)(nil)

func New() *Store {
	return &Store{
		users:     make(map[string]uuid.UUID),
		calendars: make(map[uuid.UUID]calendar.Calendar),
		members:   make(map[uuid.UUID][]calendar.Member),
		events:    make(map[uuid.UUID]event.Event),
		streaks:   make(map[uuid.UUID]streak.Record),
		devices:   make(map[string]notification.DeviceToken),
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() {}

func (s *Store) ResolveUserID(ctx context.Context, subject string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.users[subject]; ok {
		return id, nil
	}
	id := uuid.New()
	s.users[subject] = id
	return id, nil
}

func (s *Store) CreateCalendar(ctx context.Context, cal *calendar.Calendar, owner calendar.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendars[cal.ID] = *cal
	s.members[cal.ID] = append(s.members[cal.ID], owner)
	return nil
}

func (s *Store) GetCalendar(ctx context.Context, calendarID uuid.UUID) (*calendar.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cal, ok := s.calendars[calendarID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &cal, nil
}

func (s *Store) GetCalendarByShareCode(ctx context.Context, shareCode string) (*calendar.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cal := range s.calendars {
		if cal.ShareCode == shareCode {
			return &cal, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) AddMember(ctx context.Context, member calendar.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calendars[member.CalendarID]; !ok {
		return store.ErrNotFound
	}
	for _, m := range s.members[member.CalendarID] {
		if m.ID == member.ID {
			return store.ErrAlreadyMember
		}
	}
	s.members[member.CalendarID] = append(s.members[member.CalendarID], member)
	return nil
}

func (s *Store) ListMembers(ctx context.Context, calendarID uuid.UUID) ([]calendar.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]calendar.Member(nil), s.members[calendarID]...), nil
}

func (s *Store) IsMember(ctx context.Context, calendarID, memberID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members[calendarID] {
		if m.ID == memberID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListCalendarIDs(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.calendars))
	for id := range s.calendars {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) filterEvents(keep func(ev *event.Event) bool) []event.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []event.Event
	for _, ev := range s.events {
		if keep(&ev) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func startsIn(ev *event.Event, from, to time.Time) bool {
	return !ev.StartTime.Before(from) && ev.StartTime.Before(to)
}

func (s *Store) ListEventsForCalendarOnDay(ctx context.Context, calendarID uuid.UUID, day time.Time) ([]event.Event, error) {
	return s.ListEventsInRange(ctx, calendarID, day, day.AddDate(0, 0, 1))
}

func (s *Store) ListEventsForMembers(ctx context.Context, memberIDs []uuid.UUID, day time.Time) ([]event.Event, error) {
	return s.ListEventsForMembersInRange(ctx, memberIDs, day, day.AddDate(0, 0, 1))
}

func (s *Store) ListEventsForMembersInRange(ctx context.Context, memberIDs []uuid.UUID, from, to time.Time) ([]event.Event, error) {
	wanted := make(map[uuid.UUID]bool, len(memberIDs))
	for _, id := range memberIDs {
		wanted[id] = true
	}
	return s.filterEvents(func(ev *event.Event) bool {
		return ev.IsPersonal() && wanted[ev.OwnerID] && startsIn(ev, from, to)
	}), nil
}

func (s *Store) ListEventsInRange(ctx context.Context, calendarID uuid.UUID, from, to time.Time) ([]event.Event, error) {
	return s.filterEvents(func(ev *event.Event) bool {
		return ev.CalendarID == calendarID && startsIn(ev, from, to)
	}), nil
}

func (s *Store) GetEvent(ctx context.Context, eventID uuid.UUID) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, store.ErrNotFound
	}
	ev.Participants = append([]event.Participant(nil), ev.Participants...)
	return &ev, nil
}

func (s *Store) InsertEvent(ctx context.Context, ev *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calendars[ev.CalendarID]; !ok {
		return store.ErrNotFound
	}
	stored := *ev
	stored.Participants = append([]event.Participant(nil), ev.Participants...)
	s.events[ev.ID] = stored
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, calendarID, eventID, ownerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok || ev.CalendarID != calendarID || ev.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(s.events, eventID)
	return nil
}

func (s *Store) MarkAttendance(ctx context.Context, eventID, memberID uuid.UUID, wasLate bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return store.ErrNotFound
	}
	for i := range ev.Participants {
		if ev.Participants[i].MemberID == memberID {
			late, marked := wasLate, at
			ev.Participants[i].WasLate = &late
			ev.Participants[i].MarkedAt = &marked
			s.events[eventID] = ev
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) MarkStreakCounted(ctx context.Context, eventID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return store.ErrNotFound
	}
	ev.StreakCountedAt = &at
	s.events[eventID] = ev
	return nil
}

func (s *Store) ListUncountedMeetups(ctx context.Context, before time.Time, limit int) ([]event.Event, error) {
	out := s.filterEvents(func(ev *event.Event) bool {
		return ev.Kind == event.KindMeetup && ev.StreakCountedAt == nil && !ev.StartTime.After(before)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) RegisterDevice(ctx context.Context, token notification.DeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[token.Token] = token
	return nil
}

func (s *Store) DeleteDevice(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices, token)
	return nil
}

func (s *Store) ListDevicesForCalendar(ctx context.Context, calendarID uuid.UUID) ([]notification.DeviceToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	memberSet := make(map[uuid.UUID]bool)
	for _, m := range s.members[calendarID] {
		memberSet[m.ID] = true
	}
	var out []notification.DeviceToken
	for _, d := range s.devices {
		if memberSet[d.MemberID] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) GetStreakRecord(ctx context.Context, calendarID uuid.UUID) (*streak.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.calendars[calendarID]; !ok {
		return nil, streakengine.ErrUnknownCalendar
	}
	rec, ok := s.streaks[calendarID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *Store) PutStreakRecord(ctx context.Context, calendarID uuid.UUID, record *streak.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailStreakWrites != nil {
		return s.FailStreakWrites
	}
	if _, ok := s.calendars[calendarID]; !ok {
		return streakengine.ErrUnknownCalendar
	}
	s.streaks[calendarID] = *record
	return nil
}
