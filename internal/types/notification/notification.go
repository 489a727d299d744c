package notification

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	TypeStreakMilestone NotificationType = "streak_milestone"
	TypeStreakAtRisk    NotificationType = "streak_at_risk"
	TypeMeetupScheduled NotificationType = "meetup_scheduled"
)

type Notification struct {
	CalendarID uuid.UUID        `json:"calendar_id"`
	Type       NotificationType `json:"type"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	Data       map[string]any   `json:"data"`
	CreatedAt  time.Time        `json:"created_at"`
}

type DeviceToken struct {
	MemberID  uuid.UUID `json:"member_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	Platform  string    `json:"platform" db:"platform"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}
