package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"meetupStreakAPI/internal/store"
	"meetupStreakAPI/internal/streakengine"
	"meetupStreakAPI/internal/types/calendar"
	"meetupStreakAPI/internal/types/event"
	"meetupStreakAPI/internal/types/notification"
	"meetupStreakAPI/internal/types/streak"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore implements store.Backend on a pgx pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ store.Backend = (*PostgresStore)(nil)

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func (s *PostgresStore) ResolveUserID(ctx context.Context, subject string) (uuid.UUID, error) {
	query := `
		INSERT INTO users (clerk_id)
		VALUES ($1)
		ON CONFLICT (clerk_id) DO UPDATE SET clerk_id = EXCLUDED.clerk_id
		RETURNING id
	`
	var id uuid.UUID
	if err := s.db.QueryRow(ctx, query, subject).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve user %s: %w", subject, err)
	}
	return id, nil
}

// ---------------------------------------------------------------- calendars

func (s *PostgresStore) CreateCalendar(ctx context.Context, cal *calendar.Calendar, owner calendar.Member) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO calendars (id, name, owner_id, share_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, cal.ID, cal.Name, cal.OwnerID, cal.ShareCode, cal.CreatedAt, cal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert calendar: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO calendar_members (calendar_id, user_id, display_name, color, joined_at)
		VALUES ($1, $2, $3, $4, $5)
	`, cal.ID, owner.ID, owner.DisplayName, owner.Color, owner.JoinedAt)
	if err != nil {
		return fmt.Errorf("failed to insert owner membership: %w", err)
	}

	return tx.Commit(ctx)
}

const calendarColumns = `id, name, owner_id, share_code, created_at, updated_at`

func scanCalendar(row pgx.Row) (*calendar.Calendar, error) {
	var c calendar.Calendar
	err := row.Scan(&c.ID, &c.Name, &c.OwnerID, &c.ShareCode, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan calendar: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) GetCalendar(ctx context.Context, calendarID uuid.UUID) (*calendar.Calendar, error) {
	return scanCalendar(s.db.QueryRow(ctx, `SELECT `+calendarColumns+` FROM calendars WHERE id = $1`, calendarID))
}

func (s *PostgresStore) GetCalendarByShareCode(ctx context.Context, shareCode string) (*calendar.Calendar, error) {
	return scanCalendar(s.db.QueryRow(ctx, `SELECT `+calendarColumns+` FROM calendars WHERE share_code = $1`, shareCode))
}

func (s *PostgresStore) AddMember(ctx context.Context, member calendar.Member) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO calendar_members (calendar_id, user_id, display_name, color, joined_at)
		VALUES ($1, $2, $3, $4, $5)
	`, member.CalendarID, member.ID, member.DisplayName, member.Color, member.JoinedAt)
	if err == nil {
		return nil
	}
	switch pgCode(err) {
	case pgUniqueViolation:
		return store.ErrAlreadyMember
	case pgForeignKeyViolation:
		return store.ErrNotFound
	}
	return fmt.Errorf("failed to add member: %w", err)
}

func (s *PostgresStore) ListMembers(ctx context.Context, calendarID uuid.UUID) ([]calendar.Member, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, calendar_id, display_name, color, joined_at
		FROM calendar_members
		WHERE calendar_id = $1
		ORDER BY joined_at, user_id
	`, calendarID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []calendar.Member
	for rows.Next() {
		var m calendar.Member
		if err := rows.Scan(&m.ID, &m.CalendarID, &m.DisplayName, &m.Color, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *PostgresStore) IsMember(ctx context.Context, calendarID, memberID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM calendar_members WHERE calendar_id = $1 AND user_id = $2)
	`, calendarID, memberID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListCalendarIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM calendars ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendars: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// ------------------------------------------------------------------- events

const eventColumns = `id, calendar_id, user_id, title, type, start_time, end_time, location, streak_counted_at, created_at, updated_at`

func (s *PostgresStore) queryEvents(ctx context.Context, query string, args ...any) ([]event.Event, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var ev event.Event
		err := rows.Scan(
			&ev.ID, &ev.CalendarID, &ev.OwnerID, &ev.Title, &ev.Kind,
			&ev.StartTime, &ev.EndTime, &ev.Location, &ev.StreakCountedAt,
			&ev.CreatedAt, &ev.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachParticipants(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *PostgresStore) attachParticipants(ctx context.Context, events []event.Event) error {
	var ids []uuid.UUID
	index := make(map[uuid.UUID]int)
	for i, ev := range events {
		if ev.Kind == event.KindMeetup {
			ids = append(ids, ev.ID)
			index[ev.ID] = i
		}
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, event_id, user_id, was_late, marked_at
		FROM meetup_participants
		WHERE event_id = ANY($1)
		ORDER BY event_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p event.Participant
		if err := rows.Scan(&p.ID, &p.EventID, &p.MemberID, &p.WasLate, &p.MarkedAt); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		i := index[p.EventID]
		events[i].Participants = append(events[i].Participants, p)
	}
	return rows.Err()
}

func (s *PostgresStore) ListEventsForCalendarOnDay(ctx context.Context, calendarID uuid.UUID, day time.Time) ([]event.Event, error) {
	return s.ListEventsInRange(ctx, calendarID, day, day.AddDate(0, 0, 1))
}

func (s *PostgresStore) ListEventsForMembers(ctx context.Context, memberIDs []uuid.UUID, day time.Time) ([]event.Event, error) {
	return s.ListEventsForMembersInRange(ctx, memberIDs, day, day.AddDate(0, 0, 1))
}

func (s *PostgresStore) ListEventsForMembersInRange(ctx context.Context, memberIDs []uuid.UUID, from, to time.Time) ([]event.Event, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE type = 'personal' AND user_id = ANY($1)
		  AND start_time >= $2 AND start_time < $3
		ORDER BY start_time
	`, memberIDs, from, to)
}

func (s *PostgresStore) ListEventsInRange(ctx context.Context, calendarID uuid.UUID, from, to time.Time) ([]event.Event, error) {
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE calendar_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time
	`, calendarID, from, to)
}

func (s *PostgresStore) GetEvent(ctx context.Context, eventID uuid.UUID) (*event.Event, error) {
	events, err := s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, eventID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, store.ErrNotFound
	}
	return &events[0], nil
}

func (s *PostgresStore) InsertEvent(ctx context.Context, ev *event.Event) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO events (id, calendar_id, user_id, title, type, start_time, end_time, location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, ev.ID, ev.CalendarID, ev.OwnerID, ev.Title, ev.Kind, ev.StartTime, ev.EndTime, ev.Location, ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}

	for i, p := range ev.Participants {
		_, err = tx.Exec(ctx, `
			INSERT INTO meetup_participants (id, event_id, user_id, position)
			VALUES ($1, $2, $3, $4)
		`, p.ID, ev.ID, p.MemberID, i)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) DeleteEvent(ctx context.Context, calendarID, eventID, ownerID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM events WHERE id = $1 AND calendar_id = $2 AND user_id = $3
	`, eventID, calendarID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAttendance(ctx context.Context, eventID, memberID uuid.UUID, wasLate bool, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE meetup_participants
		SET was_late = $3, marked_at = $4
		WHERE event_id = $1 AND user_id = $2
	`, eventID, memberID, wasLate, at)
	if err != nil {
		return fmt.Errorf("failed to mark attendance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkStreakCounted(ctx context.Context, eventID uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE events SET streak_counted_at = $2 WHERE id = $1`, eventID, at)
	if err != nil {
		return fmt.Errorf("failed to mark meetup counted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListUncountedMeetups(ctx context.Context, before time.Time, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE type = 'meetup' AND streak_counted_at IS NULL AND start_time <= $1
		ORDER BY start_time
		LIMIT $2
	`, before, limit)
}

// ------------------------------------------------------------------ devices

func (s *PostgresStore) RegisterDevice(ctx context.Context, token notification.DeviceToken) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO device_tokens (user_id, token, platform, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform
	`, token.MemberID, token.Token, token.Platform, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDevicesForCalendar(ctx context.Context, calendarID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `
		SELECT d.user_id, d.token, d.platform, d.created_at
		FROM device_tokens d
		JOIN calendar_members m ON m.user_id = d.user_id
		WHERE m.calendar_id = $1
	`, calendarID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[notification.DeviceToken])
}

func (s *PostgresStore) DeleteDevice(ctx context.Context, token string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM device_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return nil
}

// ------------------------------------------------------------------ streaks

func (s *PostgresStore) GetStreakRecord(ctx context.Context, calendarID uuid.UUID) (*streak.Record, error) {
	var (
		id                   *uuid.UUID
		cadence              *string
		current, longest     *int
		lastMeetup           *time.Time
		targetMet            *bool
		createdAt, updatedAt *time.Time
	)
	err := s.db.QueryRow(ctx, `
		SELECT s.id, s.cadence, s.current_streak, s.longest_streak, s.last_meetup_at,
		       s.target_met, s.created_at, s.updated_at
		FROM calendars c
		LEFT JOIN calendar_streaks s ON s.calendar_id = c.id
		WHERE c.id = $1
	`, calendarID).Scan(&id, &cadence, &current, &longest, &lastMeetup, &targetMet, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, streakengine.ErrUnknownCalendar
		}
		return nil, fmt.Errorf("failed to query streak: %w", err)
	}
	if id == nil {
		return nil, nil
	}

	return &streak.Record{
		ID:            *id,
		CalendarID:    calendarID,
		Cadence:       streak.Cadence(*cadence),
		CurrentStreak: *current,
		LongestStreak: *longest,
		LastMeetupAt:  lastMeetup,
		TargetMet:     *targetMet,
		CreatedAt:     *createdAt,
		UpdatedAt:     *updatedAt,
	}, nil
}

func (s *PostgresStore) PutStreakRecord(ctx context.Context, calendarID uuid.UUID, rec *streak.Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO calendar_streaks (id, calendar_id, cadence, current_streak, longest_streak,
		                              last_meetup_at, target_met, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (calendar_id) DO UPDATE SET
			cadence = EXCLUDED.cadence,
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_meetup_at = EXCLUDED.last_meetup_at,
			target_met = EXCLUDED.target_met,
			updated_at = EXCLUDED.updated_at
	`, rec.ID, calendarID, string(rec.Cadence), rec.CurrentStreak, rec.LongestStreak,
		rec.LastMeetupAt, rec.TargetMet, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return streakengine.ErrUnknownCalendar
		}
		return fmt.Errorf("failed to upsert streak: %w", err)
	}
	return nil
}
