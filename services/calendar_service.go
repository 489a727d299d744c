package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"meetupStreakAPI/internal/availability"
	"meetupStreakAPI/internal/cache"
	"meetupStreakAPI/internal/ics"
	"meetupStreakAPI/internal/store"
	"meetupStreakAPI/internal/timewindow"
	"meetupStreakAPI/internal/types/calendar"
	"meetupStreakAPI/internal/types/event"
)

const (
	gridCacheTTL    = time.Minute
	maxImportEvents = 2000
	shareCodeLength = 8
)

type CalendarOptions struct {
	Location  *time.Location
	WeekStart time.Weekday
	// FromHour and ToHour bound the grid when a request leaves them unset.
	// Zero values mean a midnight-only grid.
	FromHour      int
	ToHour        int
	ImportHorizon time.Duration
	Now           func() time.Time
}

type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

type CalendarService struct {
	backend store.Backend
	cache   cache.Cache
	opts    CalendarOptions
}

func NewCalendarService(backend store.Backend, c cache.Cache, opts CalendarOptions) *CalendarService {
	if c == nil {
		c = cache.Nop{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.ImportHorizon <= 0 {
		opts.ImportHorizon = 90 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CalendarService{backend: backend, cache: c, opts: opts}
}

func newShareCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:shareCodeLength])
}

func (s *CalendarService) CreateCalendar(ctx context.Context, memberID uuid.UUID, req *calendar.CreateCalendarRequest) (*calendar.CalendarDetails, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return nil, fmt.Errorf("%w: display_name is required", ErrInvalidInput)
	}

	now := s.opts.Now()
	cal := &calendar.Calendar{
		ID:        uuid.New(),
		Name:      name,
		OwnerID:   memberID,
		ShareCode: newShareCode(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	owner := calendar.Member{
		ID:          memberID,
		CalendarID:  cal.ID,
		DisplayName: displayName,
		Color:       calendar.DefaultColors[0],
		JoinedAt:    now,
	}

	if err := s.backend.CreateCalendar(ctx, cal, owner); err != nil {
		return nil, fmt.Errorf("failed to create calendar: %w", err)
	}
	log.Printf("Calendar %s created by %s", cal.ID, memberID)

	return &calendar.CalendarDetails{
		Calendar: cal,
		Members:  []calendar.Member{owner},
		Events:   []event.Event{},
	}, nil
}

func (s *CalendarService) JoinCalendar(ctx context.Context, memberID uuid.UUID, req *calendar.JoinCalendarRequest) (*calendar.CalendarDetails, error) {
	code := strings.ToUpper(strings.TrimSpace(req.ShareCode))
	displayName := strings.TrimSpace(req.DisplayName)
	if code == "" || displayName == "" {
		return nil, fmt.Errorf("%w: share_code and display_name are required", ErrInvalidInput)
	}

	cal, err := s.backend.GetCalendarByShareCode(ctx, code)
	if err != nil {
		return nil, err
	}
	members, err := s.backend.ListMembers(ctx, cal.ID)
	if err != nil {
		return nil, err
	}

	member := calendar.Member{
		ID:          memberID,
		CalendarID:  cal.ID,
		DisplayName: displayName,
		Color:       calendar.DefaultColors[len(members)%len(calendar.DefaultColors)],
		JoinedAt:    s.opts.Now(),
	}
	if err := s.backend.AddMember(ctx, member); err != nil {
		return nil, err
	}
	s.invalidateGrid(ctx, cal.ID)
	log.Printf("Member %s joined calendar %s", memberID, cal.ID)

	return s.GetCalendar(ctx, cal.ID, memberID)
}

// GetCalendar returns the calendar with its members, the events of the
// current week onwards and the streak record.
func (s *CalendarService) GetCalendar(ctx context.Context, calendarID, memberID uuid.UUID) (*calendar.CalendarDetails, error) {
	if err := requireMember(ctx, s.backend, calendarID, memberID); err != nil {
		return nil, err
	}
	cal, err := s.backend.GetCalendar(ctx, calendarID)
	if err != nil {
		return nil, err
	}
	members, err := s.backend.ListMembers(ctx, calendarID)
	if err != nil {
		return nil, err
	}

	from := timewindow.WeekStart(s.opts.Now().In(s.opts.Location), s.opts.WeekStart)
	events, err := s.backend.ListEventsInRange(ctx, calendarID, from, from.Add(s.opts.ImportHorizon))
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []event.Event{}
	}

	rec, err := s.backend.GetStreakRecord(ctx, calendarID)
	if err != nil {
		return nil, fmt.Errorf("failed to load streak: %w", err)
	}

	return &calendar.CalendarDetails{Calendar: cal, Members: members, Events: events, Streak: rec}, nil
}

// gridVersion is bumped on every change to the calendar's members or events
// so cached grids of any week become unreachable.
func (s *CalendarService) gridVersion(ctx context.Context, calendarID uuid.UUID) string {
	v, err := s.cache.Get(ctx, "grid:ver:"+calendarID.String())
	if err != nil {
		return "0"
	}
	return v
}

func (s *CalendarService) invalidateGrid(ctx context.Context, calendarID uuid.UUID) {
	if err := s.cache.Set(ctx, "grid:ver:"+calendarID.String(), uuid.NewString(), 0); err != nil {
		log.Printf("Failed to invalidate grid cache for %s: %v", calendarID, err)
	}
}

// Availability classifies the week containing ref. Busy time counts every
// personal event of a member, whatever calendar it was entered in.
func (s *CalendarService) Availability(ctx context.Context, calendarID, memberID uuid.UUID, ref time.Time, fromHour, toHour int) (*availability.Grid, error) {
	if err := requireMember(ctx, s.backend, calendarID, memberID); err != nil {
		return nil, err
	}
	if ref.IsZero() {
		ref = s.opts.Now()
	}
	if fromHour < 0 {
		fromHour = s.opts.FromHour
	}
	if toHour < 0 {
		toHour = s.opts.ToHour
	}

	weekStart := timewindow.WeekStart(ref.In(s.opts.Location), s.opts.WeekStart)
	key := fmt.Sprintf("grid:%s:%s:%s:%d-%d", calendarID, s.gridVersion(ctx, calendarID), weekStart.Format("2006-01-02"), fromHour, toHour)

	if cached, err := s.cache.Get(ctx, key); err == nil {
		var grid availability.Grid
		if err := json.Unmarshal([]byte(cached), &grid); err == nil {
			gridCacheLookups.WithLabelValues("hit").Inc()
			return &grid, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		log.Printf("Grid cache read failed: %v", err)
	}
	gridCacheLookups.WithLabelValues("miss").Inc()

	members, err := s.backend.ListMembers(ctx, calendarID)
	if err != nil {
		return nil, err
	}
	memberIDs := make([]uuid.UUID, len(members))
	for i, m := range members {
		memberIDs[i] = m.ID
	}
	events, err := s.backend.ListEventsForMembersInRange(ctx, memberIDs, weekStart, weekStart.AddDate(0, 0, availability.DaysInGrid))
	if err != nil {
		return nil, fmt.Errorf("failed to load busy time: %w", err)
	}

	grid, err := availability.ClassifyGrid(availability.GridRequest{
		Members:   members,
		Events:    events,
		Reference: ref,
		FromHour:  fromHour,
		ToHour:    toHour,
		WeekStart: s.opts.WeekStart,
		Location:  s.opts.Location,
	})
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(grid); err == nil {
		if err := s.cache.Set(ctx, key, string(data), gridCacheTTL); err != nil {
			log.Printf("Grid cache write failed: %v", err)
		}
	}
	return grid, nil
}

func (s *CalendarService) CreatePersonalEvent(ctx context.Context, calendarID, memberID uuid.UUID, req *event.CreateEventRequest) (*event.Event, error) {
	if err := requireMember(ctx, s.backend, calendarID, memberID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Busy"
	}
	if err := timewindow.Validate(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	now := s.opts.Now()
	ev := &event.Event{
		ID:         uuid.New(),
		CalendarID: calendarID,
		OwnerID:    memberID,
		Title:      title,
		Kind:       event.KindPersonal,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Location:   req.Location,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.backend.InsertEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	s.invalidateGrid(ctx, calendarID)
	return ev, nil
}

// DeleteEvent removes an event owned by the member.
func (s *CalendarService) DeleteEvent(ctx context.Context, calendarID, memberID, eventID uuid.UUID) error {
	if err := requireMember(ctx, s.backend, calendarID, memberID); err != nil {
		return err
	}
	if err := s.backend.DeleteEvent(ctx, calendarID, eventID, memberID); err != nil {
		return err
	}
	s.invalidateGrid(ctx, calendarID)
	return nil
}

// ImportICS stores the feed's occurrences within the import horizon as the
// member's personal busy time.
func (s *CalendarService) ImportICS(ctx context.Context, calendarID, memberID uuid.UUID, body []byte) (*ImportResult, error) {
	if err := requireMember(ctx, s.backend, calendarID, memberID); err != nil {
		return nil, err
	}

	parsed, err := ics.Parse(body, s.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	now := s.opts.Now()
	from := timewindow.StartOfDay(now.In(s.opts.Location))
	occurrences, err := ics.Expand(parsed, from, from.Add(s.opts.ImportHorizon))
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for _, occ := range occurrences {
		if result.Imported >= maxImportEvents {
			result.Skipped += len(occurrences) - result.Imported - result.Skipped
			break
		}
		if timewindow.Validate(occ.Start, occ.End) != nil {
			result.Skipped++
			continue
		}
		title := strings.TrimSpace(occ.Summary)
		if title == "" {
			title = "Busy"
		}
		ev := &event.Event{
			ID:         uuid.New(),
			CalendarID: calendarID,
			OwnerID:    memberID,
			Title:      title,
			Kind:       event.KindPersonal,
			StartTime:  occ.Start,
			EndTime:    occ.End,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if occ.Location != "" {
			loc := occ.Location
			ev.Location = &loc
		}
		if err := s.backend.InsertEvent(ctx, ev); err != nil {
			if result.Imported > 0 {
				s.invalidateGrid(ctx, calendarID)
			}
			return result, fmt.Errorf("failed to import event %s: %w", occ.UID, err)
		}
		result.Imported++
	}

	s.invalidateGrid(ctx, calendarID)
	log.Printf("Imported %d events (%d skipped) into calendar %s for %s", result.Imported, result.Skipped, calendarID, memberID)
	return result, nil
}

// ExportMeetupsICS renders the calendar's meetups of the past and coming
// year as an iCalendar feed.
func (s *CalendarService) ExportMeetupsICS(ctx context.Context, calendarID, memberID uuid.UUID) (string, error) {
	if err := requireMember(ctx, s.backend, calendarID, memberID); err != nil {
		return "", err
	}
	cal, err := s.backend.GetCalendar(ctx, calendarID)
	if err != nil {
		return "", err
	}

	now := s.opts.Now()
	events, err := s.backend.ListEventsInRange(ctx, calendarID, now.AddDate(-1, 0, 0), now.AddDate(1, 0, 0))
	if err != nil {
		return "", err
	}
	meetups := events[:0]
	for _, ev := range events {
		if ev.Kind == event.KindMeetup {
			meetups = append(meetups, ev)
		}
	}
	return ics.Export(cal.Name, meetups, now), nil
}
