package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

type Handlers struct {
	Calendar     *CalendarHandler
	Meetup       *MeetupHandler
	Streak       *StreakHandler
	Notification *NotificationHandler
}

// RegisterRoutes mounts the authenticated API on api, which is expected to
// carry the /api/v1 prefix.
func RegisterRoutes(api *mux.Router, auth mux.MiddlewareFunc, h Handlers) {
	protected := api.PathPrefix("").Subrouter()
	protected.Use(auth)

	protected.HandleFunc("/calendars", h.Calendar.CreateCalendar).Methods(http.MethodPost)
	protected.HandleFunc("/calendars/join", h.Calendar.JoinCalendar).Methods(http.MethodPost)
	protected.HandleFunc("/calendars/{calendarID}", h.Calendar.GetCalendar).Methods(http.MethodGet)
	protected.HandleFunc("/calendars/{calendarID}/availability", h.Calendar.GetAvailability).Methods(http.MethodGet)
	protected.HandleFunc("/calendars/{calendarID}/events", h.Calendar.CreateEvent).Methods(http.MethodPost)
	protected.HandleFunc("/calendars/{calendarID}/events/{eventID}", h.Calendar.DeleteEvent).Methods(http.MethodDelete)
	protected.HandleFunc("/calendars/{calendarID}/events/import", h.Calendar.ImportICS).Methods(http.MethodPost)
	protected.HandleFunc("/calendars/{calendarID}/meetups.ics", h.Calendar.ExportMeetups).Methods(http.MethodGet)

	protected.HandleFunc("/calendars/{calendarID}/meetups/check", h.Meetup.CheckConflicts).Methods(http.MethodPost)
	protected.HandleFunc("/calendars/{calendarID}/meetups", h.Meetup.CreateMeetup).Methods(http.MethodPost)
	protected.HandleFunc("/calendars/{calendarID}/meetups/{eventID}/attendance", h.Meetup.MarkAttendance).Methods(http.MethodPut)

	protected.HandleFunc("/calendars/{calendarID}/streak", h.Streak.GetStreak).Methods(http.MethodGet)
	protected.HandleFunc("/calendars/{calendarID}/streak/cadence", h.Streak.SetCadence).Methods(http.MethodPut)

	protected.HandleFunc("/notifications/register-device", h.Notification.RegisterDevice).Methods(http.MethodPost)
}
