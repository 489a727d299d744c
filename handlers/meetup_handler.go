package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"meetupStreakAPI/internal/types/event"
	"meetupStreakAPI/services"
)

type MeetupHandler struct {
	meetupService *services.MeetupService
}

func NewMeetupHandler(meetupService *services.MeetupService) *MeetupHandler {
	return &MeetupHandler{
		meetupService: meetupService,
	}
}

// POST /api/v1/calendars/{calendarID}/meetups/check
func (h *MeetupHandler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	memberID, ok := currentMember(w, r)
	if !ok {
		return
	}
	calendarID, ok := pathUUID(w, r, "calendarID")
	if !ok {
		return
	}

	var req event.CheckMeetupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.meetupService.CheckConflicts(ctx, calendarID, memberID, &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// POST /api/v1/calendars/{calendarID}/meetups
func (h *MeetupHandler) CreateMeetup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	memberID, ok := currentMember(w, r)
	if !ok {
		return
	}
	calendarID, ok := pathUUID(w, r, "calendarID")
	if !ok {
		return
	}

	var req event.CreateMeetupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.meetupService.CreateMeetup(ctx, calendarID, memberID, &req)
	if errors.Is(err, services.ErrMeetupClash) && resp != nil {
		respondWithJSON(w, http.StatusConflict, map[string]any{
			"error":     err.Error(),
			"conflicts": resp.Conflicts,
		})
		return
	}
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

// PUT /api/v1/calendars/{calendarID}/meetups/{eventID}/attendance
func (h *MeetupHandler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	memberID, ok := currentMember(w, r)
	if !ok {
		return
	}
	calendarID, ok := pathUUID(w, r, "calendarID")
	if !ok {
		return
	}
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}

	var req event.MarkAttendanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ev, err := h.meetupService.MarkAttendance(ctx, calendarID, memberID, eventID, &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ev)
}
