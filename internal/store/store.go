// Package store declares the persistence ports used by the services. The
// Postgres adapters live next to the services; internal/memstore provides an
// in-memory adapter for development and tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"meetupStreakAPI/internal/streakengine"
	"meetupStreakAPI/internal/types/calendar"
	"meetupStreakAPI/internal/types/event"
	"meetupStreakAPI/internal/types/notification"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyMember = errors.New("already a member of this calendar")
)

type UserStore interface {
	// ResolveUserID maps an auth subject to a stable member id, creating it on first sight.
	ResolveUserID(ctx context.Context, subject string) (uuid.UUID, error)
}

type CalendarStore interface {
	CreateCalendar(ctx context.Context, cal *calendar.Calendar, owner calendar.Member) error
	GetCalendar(ctx context.Context, calendarID uuid.UUID) (*calendar.Calendar, error)
	GetCalendarByShareCode(ctx context.Context, shareCode string) (*calendar.Calendar, error)
	AddMember(ctx context.Context, member calendar.Member) error
	ListMembers(ctx context.Context, calendarID uuid.UUID) ([]calendar.Member, error)
	IsMember(ctx context.Context, calendarID, memberID uuid.UUID) (bool, error)
	ListCalendarIDs(ctx context.Context) ([]uuid.UUID, error)
}

type EventStore interface {
	// ListEventsForCalendarOnDay returns the calendar's events starting in [day, next local midnight).
	ListEventsForCalendarOnDay(ctx context.Context, calendarID uuid.UUID, day time.Time) ([]event.Event, error)
	// ListEventsForMembers returns personal events owned by the members, across
	// all calendars, starting in [day, next local midnight).
	ListEventsForMembers(ctx context.Context, memberIDs []uuid.UUID, day time.Time) ([]event.Event, error)
	ListEventsForMembersInRange(ctx context.Context, memberIDs []uuid.UUID, from, to time.Time) ([]event.Event, error)
	ListEventsInRange(ctx context.Context, calendarID uuid.UUID, from, to time.Time) ([]event.Event, error)
	GetEvent(ctx context.Context, eventID uuid.UUID) (*event.Event, error)
	// InsertEvent stores the event together with its participants.
	InsertEvent(ctx context.Context, ev *event.Event) error
	DeleteEvent(ctx context.Context, calendarID, eventID, ownerID uuid.UUID) error
	MarkAttendance(ctx context.Context, eventID, memberID uuid.UUID, wasLate bool, at time.Time) error
	MarkStreakCounted(ctx context.Context, eventID uuid.UUID, at time.Time) error
	// ListUncountedMeetups returns meetups that started before the given instant
	// and were never submitted to the streak engine, oldest first.
	ListUncountedMeetups(ctx context.Context, before time.Time, limit int) ([]event.Event, error)
}

type DeviceStore interface {
	RegisterDevice(ctx context.Context, token notification.DeviceToken) error
	ListDevicesForCalendar(ctx context.Context, calendarID uuid.UUID) ([]notification.DeviceToken, error)
	DeleteDevice(ctx context.Context, token string) error
}

// Backend bundles every port; both adapters satisfy it.
type Backend interface {
	UserStore
	CalendarStore
	EventStore
	DeviceStore
	streakengine.Store
	Ping(ctx context.Context) error
	Close()
}
