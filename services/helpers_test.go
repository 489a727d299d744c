package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"meetupStreakAPI/internal/availability"
	"meetupStreakAPI/internal/cache"
	"meetupStreakAPI/internal/memstore"
	"meetupStreakAPI/internal/queue"
	"meetupStreakAPI/internal/types/calendar"
	"meetupStreakAPI/internal/types/notification"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type pushCall struct {
	Tokens int
	Title  string
	Data   map[string]any
}

type fakePush struct {
	mu    sync.Mutex
	calls []pushCall
}

func (p *fakePush) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, pushCall{Tokens: len(tokens), Title: title, Data: data})
	return nil
}

func (p *fakePush) Calls() []pushCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pushCall(nil), p.calls...)
}

type enqueued struct {
	Task queue.Task
	Opts queue.EnqueueOptions
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []enqueued
}

func (q *fakeQueue) Enqueue(ctx context.Context, t queue.Task, opts queue.EnqueueOptions) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, enqueued{Task: t, Opts: opts})
	return opts.TaskID, nil
}

func (q *fakeQueue) Close() error { return nil }

type mapCache struct {
	mu     sync.Mutex
	data   map[string]string
	hits   int
	misses int
}

var _ cache.Cache = (*mapCache)(nil)

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]string)}
}

func (c *mapCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		c.misses++
		return "", cache.ErrMiss
	}
	c.hits++
	return v, nil
}

func (c *mapCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Del(ctx context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := c.data[k]; ok {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}

func (c *mapCache) Ping(ctx context.Context) error { return nil }

func (c *mapCache) Close() error { return nil }

type testEnv struct {
	ctx           context.Context
	clock         *testClock
	backend       *memstore.Store
	push          *fakePush
	queue         *fakeQueue
	cache         *mapCache
	notifications *NotificationService
	streaks       *StreakService
	meetups       *MeetupService
	calendars     *CalendarService

	alice, bob uuid.UUID
	cal        *calendar.Calendar
}

// newTestEnv builds the services on a memstore with a calendar owned by
// alice that bob has joined.
func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()

	env := &testEnv{
		ctx:     context.Background(),
		clock:   &testClock{now: now},
		backend: memstore.New(),
		push:    &fakePush{},
		queue:   &fakeQueue{},
		cache:   newMapCache(),
		alice:   uuid.New(),
		bob:     uuid.New(),
	}

	env.notifications = NewNotificationService(env.backend, nil)
	env.notifications.SetPushProvider(env.push)
	env.streaks = NewStreakService(env.backend, env.clock, env.notifications)
	env.streaks.SetQueue(env.queue)
	env.meetups = NewMeetupService(env.backend, env.streaks, env.notifications, time.UTC)
	env.calendars = NewCalendarService(env.backend, env.cache, CalendarOptions{
		Location:  time.UTC,
		WeekStart: time.Sunday,
		FromHour:  availability.DefaultFromHour,
		ToHour:    availability.DefaultToHour,
		Now:       env.clock.Now,
	})

	details, err := env.calendars.CreateCalendar(env.ctx, env.alice, &calendar.CreateCalendarRequest{Name: "Friends", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("Failed to create calendar: %v", err)
	}
	env.cal = details.Calendar

	if _, err := env.calendars.JoinCalendar(env.ctx, env.bob, &calendar.JoinCalendarRequest{ShareCode: env.cal.ShareCode, DisplayName: "Bob"}); err != nil {
		t.Fatalf("Failed to join calendar: %v", err)
	}
	return env
}

func at(day, hour int) time.Time {
	return time.Date(2025, 3, day, hour, 0, 0, 0, time.UTC)
}

var calendarReq = calendar.CreateCalendarRequest{Name: "Book club", DisplayName: "Bob"}
