package handlers

import (
	"context"
	"net/http"
	"time"

	"meetupStreakAPI/internal/types/streak"
	"meetupStreakAPI/services"
)

type StreakHandler struct {
	streakService *services.StreakService
}

func NewStreakHandler(streakService *services.StreakService) *StreakHandler {
	return &StreakHandler{
		streakService: streakService,
	}
}

// GET /api/v1/calendars/{calendarID}/streak
func (h *StreakHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
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

	resp, err := h.streakService.GetStreak(ctx, calendarID, memberID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// PUT /api/v1/calendars/{calendarID}/streak/cadence
func (h *StreakHandler) SetCadence(w http.ResponseWriter, r *http.Request) {
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

	var req streak.SetCadenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.streakService.SetCadence(ctx, calendarID, memberID, &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}
