package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"meetupStreakAPI/internal/types/calendar"
	"meetupStreakAPI/internal/types/event"
	"meetupStreakAPI/services"
)

const maxImportBytes = 2 << 20

type CalendarHandler struct {
	calendarService *services.CalendarService
	location        *time.Location
}

func NewCalendarHandler(calendarService *services.CalendarService, loc *time.Location) *CalendarHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarHandler{
		calendarService: calendarService,
		location:        loc,
	}
}

// POST /api/v1/calendars
func (h *CalendarHandler) CreateCalendar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	memberID, ok := currentMember(w, r)
	if !ok {
		return
	}

	var req calendar.CreateCalendarRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	details, err := h.calendarService.CreateCalendar(ctx, memberID, &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, details)
}

// POST /api/v1/calendars/join
func (h *CalendarHandler) JoinCalendar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	memberID, ok := currentMember(w, r)
	if !ok {
		return
	}

	var req calendar.JoinCalendarRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	details, err := h.calendarService.JoinCalendar(ctx, memberID, &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, details)
}

// GET /api/v1/calendars/{calendarID}
func (h *CalendarHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
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

	details, err := h.calendarService.GetCalendar(ctx, calendarID, memberID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, details)
}

// GET /api/v1/calendars/{calendarID}/availability?date=2025-03-06&from=8&to=19
func (h *CalendarHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
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

	query := r.URL.Query()

	var ref time.Time
	if date := query.Get("date"); date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", date, h.location)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Query parameter 'date' must be YYYY-MM-DD")
			return
		}
		ref = parsed
	}

	hour := func(name string) (int, bool) {
		raw := query.Get(name)
		if raw == "" {
			return -1, true
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 23 {
			respondWithError(w, http.StatusBadRequest, "Query parameter '"+name+"' must be an hour between 0 and 23")
			return 0, false
		}
		return n, true
	}
	fromHour, ok := hour("from")
	if !ok {
		return
	}
	toHour, ok := hour("to")
	if !ok {
		return
	}

	grid, err := h.calendarService.Availability(ctx, calendarID, memberID, ref, fromHour, toHour)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, grid)
}

// POST /api/v1/calendars/{calendarID}/events
func (h *CalendarHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
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

	var req event.CreateEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ev, err := h.calendarService.CreatePersonalEvent(ctx, calendarID, memberID, &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, ev)
}

// DELETE /api/v1/calendars/{calendarID}/events/{eventID}
func (h *CalendarHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
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

	if err := h.calendarService.DeleteEvent(ctx, calendarID, memberID, eventID); err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// POST /api/v1/calendars/{calendarID}/events/import with a text/calendar body
func (h *CalendarHandler) ImportICS(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	memberID, ok := currentMember(w, r)
	if !ok {
		return
	}
	calendarID, ok := pathUUID(w, r, "calendarID")
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "Calendar file is too large")
			return
		}
		respondWithError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	result, err := h.calendarService.ImportICS(ctx, calendarID, memberID, body)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// GET /api/v1/calendars/{calendarID}/meetups.ics
func (h *CalendarHandler) ExportMeetups(w http.ResponseWriter, r *http.Request) {
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

	body, err := h.calendarService.ExportMeetupsICS(ctx, calendarID, memberID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="meetups.ics"`)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, body)
}
