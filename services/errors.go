package services

import (
	"errors"

	"meetupStreakAPI/internal/store"
)

var (
	ErrNotFound           = store.ErrNotFound
	ErrAlreadyMember      = store.ErrAlreadyMember
	ErrNotMember          = errors.New("not a member of this calendar")
	ErrInvalidInput       = errors.New("invalid input")
	ErrMeetupClash        = errors.New("meetup clashes with participants' commitments")
	ErrAttendanceTooEarly = errors.New("attendance can only be marked after the meetup has ended")
)
