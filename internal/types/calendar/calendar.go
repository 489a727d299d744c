package calendar

import (
	"time"

	"github.com/google/uuid"

	"meetupStreakAPI/internal/types/event"
	"meetupStreakAPI/internal/types/streak"
)

// DefaultColors are handed out to members joining by share code.
var DefaultColors = []string{"#3b82f6", "#10b981", "#f59e0b", "#ef4444", "#8b5cf6", "#ec4899", "#06b6d4"}

type Calendar struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	OwnerID   uuid.UUID `json:"owner_id" db:"owner_id"`
	ShareCode string    `json:"share_code" db:"share_code"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Member is a calendar participant. ID is the member's user id, so the same
// person carries the same id across calendars.
type Member struct {
	ID          uuid.UUID `json:"id" db:"user_id"`
	CalendarID  uuid.UUID `json:"calendar_id" db:"calendar_id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Color       string    `json:"color" db:"color"`
	JoinedAt    time.Time `json:"joined_at" db:"joined_at"`
}

type CreateCalendarRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

type JoinCalendarRequest struct {
	ShareCode   string `json:"share_code"`
	DisplayName string `json:"display_name"`
}

type CalendarDetails struct {
	Calendar *Calendar      `json:"calendar"`
	Members  []Member       `json:"members"`
	Events   []event.Event  `json:"events"`
	Streak   *streak.Record `json:"streak"`
}
