package streak

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"meetupStreakAPI/internal/achievement"
)

type Cadence string

const (
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
	CadenceYearly  Cadence = "yearly"
)

// DefaultCadence is used when a meetup is recorded before the group picked a goal.
const DefaultCadence = CadenceMonthly

// Days is the fixed window length of the cadence. Calendar months and ISO
// weeks are deliberately not used.
func (c Cadence) Days() int {
	switch c {
	case CadenceWeekly:
		return 7
	case CadenceMonthly:
		return 30
	case CadenceYearly:
		return 365
	default:
		return 0
	}
}

func (c Cadence) Duration() time.Duration {
	return time.Duration(c.Days()) * 24 * time.Hour
}

func (c Cadence) Valid() bool {
	return c.Days() > 0
}

func ParseCadence(s string) (Cadence, error) {
	c := Cadence(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown cadence %q", s)
	}
	return c, nil
}

type State string

const (
	StateNoGoal          State = "no_goal"
	StateGoalSetNoStreak State = "goal_set_no_streak"
	StateActiveStreak    State = "active_streak"
)

type Record struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	CalendarID    uuid.UUID  `json:"calendar_id" db:"calendar_id"`
	Cadence       Cadence    `json:"cadence" db:"cadence"`
	CurrentStreak int        `json:"current_streak" db:"current_streak"`
	LongestStreak int        `json:"longest_streak" db:"longest_streak"`
	LastMeetupAt  *time.Time `json:"last_meetup_at" db:"last_meetup_at"`
	TargetMet     bool       `json:"target_met" db:"target_met"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// StateOf reports the state machine position of a possibly missing record.
func StateOf(r *Record) State {
	switch {
	case r == nil:
		return StateNoGoal
	case r.CurrentStreak == 0:
		return StateGoalSetNoStreak
	default:
		return StateActiveStreak
	}
}

type SetCadenceRequest struct {
	Cadence string `json:"cadence"`
}

type StreakResponse struct {
	Record       *Record                   `json:"streak"`
	State        State                     `json:"state"`
	Message      string                    `json:"message"`
	Achievements []achievement.Achievement `json:"achievements"`
}
