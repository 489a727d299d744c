package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"meetupStreakAPI/internal/availability"
	"meetupStreakAPI/internal/streakengine"
	"meetupStreakAPI/internal/timewindow"
	"meetupStreakAPI/middleware"
	"meetupStreakAPI/services"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to encode response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps service errors onto status codes. Anything
// unrecognised is logged and reported as a 500 without leaking details.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, timewindow.ErrInvalidInterval),
		errors.Is(err, streakengine.ErrInvalidCadence),
		errors.Is(err, availability.ErrInvalidHourRange),
		errors.Is(err, services.ErrAttendanceTooEarly):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotMember):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrNotFound), errors.Is(err, streakengine.ErrUnknownCalendar):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrAlreadyMember), errors.Is(err, services.ErrMeetupClash):
		respondWithError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("Request failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func currentMember(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	memberID, ok := middleware.GetMemberID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return uuid.Nil, false
	}
	return memberID, true
}
