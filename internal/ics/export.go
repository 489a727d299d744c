package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"meetupStreakAPI/internal/types/event"
)

const productID = "-//meetupStreak//Meetups//EN"

// Export renders the events as a published VCALENDAR.
func Export(name string, events []event.Event, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(name)

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID.String() + "@meetupstreak")
		ve.SetDtStampTime(now.UTC())
		ve.SetStartAt(ev.StartTime.UTC())
		ve.SetEndAt(ev.EndTime.UTC())
		ve.SetSummary(ev.Title)
		if ev.Location != nil && *ev.Location != "" {
			ve.SetLocation(*ev.Location)
		}
	}

	return cal.Serialize()
}
