package event

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindPersonal Kind = "personal"
	KindMeetup   Kind = "meetup"
)

type Event struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	CalendarID      uuid.UUID     `json:"calendar_id" db:"calendar_id"`
	OwnerID         uuid.UUID     `json:"owner_id" db:"user_id"`
	Title           string        `json:"title" db:"title"`
	Kind            Kind          `json:"type" db:"type"`
	StartTime       time.Time     `json:"start_time" db:"start_time"`
	EndTime         time.Time     `json:"end_time" db:"end_time"`
	Location        *string       `json:"location,omitempty" db:"location"`
	Participants    []Participant `json:"participants,omitempty"`
	StreakCountedAt *time.Time    `json:"streak_counted_at,omitempty" db:"streak_counted_at"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// Participant is a meetup attendee. WasLate is nil until someone marks
// attendance, which is only allowed after the meetup has ended.
type Participant struct {
	ID       uuid.UUID  `json:"id" db:"id"`
	EventID  uuid.UUID  `json:"event_id" db:"event_id"`
	MemberID uuid.UUID  `json:"member_id" db:"user_id"`
	WasLate  *bool      `json:"was_late" db:"was_late"`
	MarkedAt *time.Time `json:"marked_at" db:"marked_at"`
}

func (e *Event) IsPersonal() bool { return e.Kind == KindPersonal }

func (e *Event) HasEnded(now time.Time) bool { return !now.Before(e.EndTime) }

type CreateEventRequest struct {
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Location  *string   `json:"location,omitempty"`
}

type CreateMeetupRequest struct {
	Title          string      `json:"title"`
	StartTime      time.Time   `json:"start_time"`
	EndTime        time.Time   `json:"end_time"`
	Location       *string     `json:"location,omitempty"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}

type MarkAttendanceRequest struct {
	MemberID uuid.UUID `json:"member_id"`
	WasLate  bool      `json:"was_late"`
}

type CheckMeetupRequest struct {
	StartTime      time.Time   `json:"start_time"`
	EndTime        time.Time   `json:"end_time"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}
