package ics

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/teambition/rrule-go"
)

const maxOccurrencesPerEvent = 500

type Occurrence struct {
	UID      string
	Summary  string
	Location string
	Start    time.Time
	End      time.Time
}

// Expand turns parsed events into concrete occurrences overlapping
// [from, to), applying RRULE and EXDATE. Results are sorted by start.
func Expand(events []ParsedEvent, from, to time.Time) ([]Occurrence, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("ics: expand range end %s is not after start %s", to, from)
	}

	var out []Occurrence
	for _, ev := range events {
		if ev.RawRRule == "" {
			if ev.Start.Before(to) && ev.End.After(from) {
				out = append(out, occurrence(ev, ev.Start, ev.End))
			}
			continue
		}

		r, err := rrule.StrToRRule(ev.RawRRule)
		if err != nil {
			log.Printf("ics: bad RRULE %q on %s: %v", ev.RawRRule, ev.UID, err)
			continue
		}
		r.DTStart(ev.Start)

		var set rrule.Set
		set.RRule(r)
		for _, ex := range ev.ExDates {
			set.ExDate(ex.In(ev.Start.Location()))
		}

		duration := ev.End.Sub(ev.Start)
		starts := set.Between(from.Add(-duration), to, true)
		if len(starts) > maxOccurrencesPerEvent {
			log.Printf("ics: truncating %s to %d occurrences", ev.UID, maxOccurrencesPerEvent)
			starts = starts[:maxOccurrencesPerEvent]
		}
		for _, s := range starts {
			e := s.Add(duration)
			if s.Before(to) && e.After(from) {
				out = append(out, occurrence(ev, s, e))
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func occurrence(ev ParsedEvent, start, end time.Time) Occurrence {
	return Occurrence{
		UID:      ev.UID,
		Summary:  ev.Summary,
		Location: ev.Location,
		Start:    start,
		End:      end,
	}
}
