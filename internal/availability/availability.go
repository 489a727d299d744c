package availability

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"meetupStreakAPI/internal/timewindow"
	"meetupStreakAPI/internal/types/calendar"
	"meetupStreakAPI/internal/types/event"
)

const (
	DefaultFromHour = 8
	DefaultToHour   = 19
	DaysInGrid      = 7
)

var ErrInvalidHourRange = errors.New("invalid hour range")

type Status string

const (
	StatusAllFree Status = "all_free"
	StatusPartial Status = "partial"
	StatusAllBusy Status = "all_busy"
)

type GridRequest struct {
	Members   []calendar.Member
	Events    []event.Event
	Reference time.Time
	// FromHour and ToHour are both inclusive.
	FromHour  int
	ToHour    int
	WeekStart time.Weekday
	Location  *time.Location
}

type Cell struct {
	Day         time.Time   `json:"day"`
	Hour        int         `json:"hour"`
	BusyMembers []uuid.UUID `json:"busy_members"`
	Status      Status      `json:"status"`
	Selectable  bool        `json:"selectable"`
}

type Grid struct {
	Days  []time.Time `json:"days"`
	Hours []int       `json:"hours"`
	// Cells is indexed [day][hour offset].
	Cells [][]Cell `json:"cells"`
}

func (g *Grid) Cell(day, hour int) *Cell {
	return &g.Cells[day][hour-g.Hours[0]]
}

// ClassifyGrid computes the group free/busy state of every cell of the week
// containing req.Reference. Only personal events count as busy time.
func ClassifyGrid(req GridRequest) (*Grid, error) {
	if req.FromHour < 0 || req.ToHour > 23 || req.FromHour > req.ToHour {
		return nil, ErrInvalidHourRange
	}
	loc := req.Location
	if loc == nil {
		loc = req.Reference.Location()
	}

	first := timewindow.WeekStart(req.Reference.In(loc), req.WeekStart)
	grid := &Grid{
		Days:  make([]time.Time, DaysInGrid),
		Hours: make([]int, 0, req.ToHour-req.FromHour+1),
		Cells: make([][]Cell, DaysInGrid),
	}
	for h := req.FromHour; h <= req.ToHour; h++ {
		grid.Hours = append(grid.Hours, h)
	}

	memberIdx := make(map[uuid.UUID]int, len(req.Members))
	for i, m := range req.Members {
		memberIdx[m.ID] = i
	}

	for d := 0; d < DaysInGrid; d++ {
		day := first.AddDate(0, 0, d)
		grid.Days[d] = day

		// busy[h][member index]
		busy := make([][]bool, len(grid.Hours))
		for i := range busy {
			busy[i] = make([]bool, len(req.Members))
		}

		for i := range req.Events {
			ev := &req.Events[i]
			if !ev.IsPersonal() {
				continue
			}
			mi, ok := memberIdx[ev.OwnerID]
			if !ok {
				continue
			}
			start := ev.StartTime.In(loc)
			if !timewindow.IsSameCalendarDay(start, day) {
				continue
			}
			from, to := timewindow.HourSpan(start, ev.EndTime.In(loc))
			for h := max(from, req.FromHour); h < to && h <= req.ToHour; h++ {
				busy[h-req.FromHour][mi] = true
			}
		}

		grid.Cells[d] = make([]Cell, len(grid.Hours))
		for hi, h := range grid.Hours {
			cell := Cell{Day: day, Hour: h, BusyMembers: []uuid.UUID{}}
			for mi, m := range req.Members {
				if busy[hi][mi] {
					cell.BusyMembers = append(cell.BusyMembers, m.ID)
				}
			}
			cell.Status = classify(len(cell.BusyMembers), len(req.Members))
			cell.Selectable = cell.Status != StatusAllBusy
			grid.Cells[d][hi] = cell
		}
	}

	return grid, nil
}

// classify special-cases an empty member list, where 0 busy == 0 members
// would otherwise read as all busy.
func classify(busy, members int) Status {
	switch {
	case busy == 0:
		return StatusAllFree
	case busy == members:
		return StatusAllBusy
	default:
		return StatusPartial
	}
}
