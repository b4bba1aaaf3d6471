package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"eventpass/internal/attendance"
	"eventpass/internal/auth"
)

// Dialect selects placeholder syntax and constraint error decoding.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// rebind rewrites ? placeholders to $n for Postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

// Repository persists events, teams and coordinators over database/sql.
type Repository struct {
	db      *sql.DB
	dialect Dialect
}

// NewRepository wraps an open database.
func NewRepository(db *sql.DB, dialect Dialect) *Repository {
	return &Repository{db: db, dialect: dialect}
}

// Migrate applies the schema. It is idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the underlying connection.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

func (r *Repository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.dialect.rebind(query), args...)
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.dialect.rebind(query), args...)
}

// -------- Events --------

const eventColumns = `id, name, event_date, location, description, club_name, event_head, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (attendance.Event, error) {
	var evt attendance.Event
	var date, created int64
	if err := s.Scan(&evt.ID, &evt.Name, &date, &evt.Location, &evt.Description, &evt.ClubName, &evt.EventHead, &created); err != nil {
		return attendance.Event{}, err
	}
	evt.Date = fromMillis(date)
	evt.CreatedAt = fromMillis(created)
	return evt, nil
}

// CreateEvent inserts an event, assigning id and creation time.
func (r *Repository) CreateEvent(ctx context.Context, evt attendance.Event) (attendance.Event, error) {
	evt.ID = uuid.NewString()
	evt.Date = fromMillis(toMillis(evt.Date))
	evt.CreatedAt = fromMillis(toMillis(time.Now()))
	_, err := r.exec(ctx, `INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.ID, evt.Name, toMillis(evt.Date), evt.Location, evt.Description, evt.ClubName, evt.EventHead, toMillis(evt.CreatedAt))
	if err != nil {
		return attendance.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return evt, nil
}

// GetEvent returns an event by id.
func (r *Repository) GetEvent(ctx context.Context, id string) (attendance.Event, error) {
	evt, err := scanEvent(r.queryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.Event{}, attendance.ErrEventNotFound
	}
	if err != nil {
		return attendance.Event{}, fmt.Errorf("get event: %w", err)
	}
	return evt, nil
}

// ListEvents returns events, soonest first.
func (r *Repository) ListEvents(ctx context.Context) ([]attendance.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY event_date, id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	events := []attendance.Event{}
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// -------- Teams --------

const teamColumns = `id, event_id, team_name, leader_name, email, department, year, phone_number,
	credential_token, qr_image_url, presence, present_at, created_at`

func scanTeam(s scanner) (attendance.Team, error) {
	var t attendance.Team
	var presence string
	var presentAt sql.NullInt64
	var created int64
	if err := s.Scan(&t.ID, &t.EventID, &t.TeamName, &t.LeaderName, &t.Email, &t.Department, &t.Year, &t.PhoneNumber,
		&t.CredentialToken, &t.QRImageURL, &presence, &presentAt, &created); err != nil {
		return attendance.Team{}, err
	}
	t.Presence = attendance.Presence(presence)
	if presentAt.Valid {
		at := fromMillis(presentAt.Int64)
		t.PresentAt = &at
	}
	t.CreatedAt = fromMillis(created)
	return t, nil
}

// CreateTeam inserts an ABSENT team.
func (r *Repository) CreateTeam(ctx context.Context, t attendance.Team) (attendance.Team, error) {
	t.ID = uuid.NewString()
	t.Presence = attendance.Absent
	t.PresentAt = nil
	t.CreatedAt = fromMillis(toMillis(time.Now()))
	_, err := r.exec(ctx, `INSERT INTO teams (`+teamColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
		t.ID, t.EventID, t.TeamName, t.LeaderName, t.Email, t.Department, t.Year, t.PhoneNumber,
		t.CredentialToken, t.QRImageURL, string(t.Presence), toMillis(t.CreatedAt))
	if r.dialect.isUniqueViolation(err) {
		return attendance.Team{}, attendance.ErrTeamExists
	}
	if err != nil {
		return attendance.Team{}, fmt.Errorf("insert team: %w", err)
	}
	return t, nil
}

// DeleteTeam removes a team.
func (r *Repository) DeleteTeam(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM teams WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	return nil
}

// GetTeam returns a team by id within an event.
func (r *Repository) GetTeam(ctx context.Context, eventID, teamID string) (attendance.Team, error) {
	return r.getTeam(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = ? AND event_id = ?`, teamID, eventID)
}

// GetTeamByID returns a team by id.
func (r *Repository) GetTeamByID(ctx context.Context, id string) (attendance.Team, error) {
	return r.getTeam(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = ?`, id)
}

func (r *Repository) getTeam(ctx context.Context, query string, args ...any) (attendance.Team, error) {
	t, err := scanTeam(r.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.Team{}, attendance.ErrTeamNotFound
	}
	if err != nil {
		return attendance.Team{}, fmt.Errorf("get team: %w", err)
	}
	return t, nil
}

// ListTeams returns teams in registration order.
func (r *Repository) ListTeams(ctx context.Context, eventID string) ([]attendance.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams`
	args := []any{}
	if eventID != "" {
		query += ` WHERE event_id = ?`
		args = append(args, eventID)
	}
	query += ` ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()
	teams := []attendance.Team{}
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// SetCredentialToken stores the issued credential on a team.
func (r *Repository) SetCredentialToken(ctx context.Context, eventID, teamID, token string) error {
	return r.updateOne(ctx, `UPDATE teams SET credential_token = ? WHERE id = ? AND event_id = ?`, token, teamID, eventID)
}

// SetQRImageURL stores the hosted credential image location.
func (r *Repository) SetQRImageURL(ctx context.Context, teamID, url string) error {
	return r.updateOne(ctx, `UPDATE teams SET qr_image_url = ? WHERE id = ?`, url, teamID)
}

func (r *Repository) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := r.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	if n == 0 {
		return attendance.ErrTeamNotFound
	}
	return nil
}

// MarkPresent is a compare-and-swap on presence = 'ABSENT'. Concurrent
// callers race on the row; the losers see no row returned.
func (r *Repository) MarkPresent(ctx context.Context, eventID, teamID string, at time.Time) (attendance.Team, error) {
	t, err := scanTeam(r.queryRow(ctx, `UPDATE teams SET presence = 'PRESENT', present_at = ?
		WHERE id = ? AND event_id = ? AND presence = 'ABSENT'
		RETURNING `+teamColumns, toMillis(at), teamID, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		if _, gerr := r.GetTeam(ctx, eventID, teamID); gerr != nil {
			return attendance.Team{}, gerr
		}
		return attendance.Team{}, attendance.ErrAlreadyRedeemed
	}
	if err != nil {
		return attendance.Team{}, fmt.Errorf("mark present: %w", err)
	}
	return t, nil
}

// -------- Coordinators --------

const coordinatorColumns = `id, name, email, phone_number, department, year, created_at`

// CreateCoordinator inserts a coordinator with a unique email.
func (r *Repository) CreateCoordinator(ctx context.Context, c auth.Coordinator) (auth.Coordinator, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = fromMillis(toMillis(time.Now()))
	_, err := r.exec(ctx, `INSERT INTO coordinators (`+coordinatorColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.PhoneNumber, c.Department, c.Year, toMillis(c.CreatedAt))
	if r.dialect.isUniqueViolation(err) {
		return auth.Coordinator{}, auth.ErrCoordinatorExists
	}
	if err != nil {
		return auth.Coordinator{}, fmt.Errorf("insert coordinator: %w", err)
	}
	return c, nil
}

// FindCoordinator looks a coordinator up by email and name.
func (r *Repository) FindCoordinator(ctx context.Context, email, name string) (auth.Coordinator, error) {
	var c auth.Coordinator
	var created int64
	err := r.queryRow(ctx, `SELECT `+coordinatorColumns+` FROM coordinators WHERE email = ? AND name = ?`, email, name).
		Scan(&c.ID, &c.Name, &c.Email, &c.PhoneNumber, &c.Department, &c.Year, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Coordinator{}, auth.ErrCoordinatorMissing
	}
	if err != nil {
		return auth.Coordinator{}, fmt.Errorf("find coordinator: %w", err)
	}
	c.CreatedAt = fromMillis(created)
	return c, nil
}

var _ Backend = (*Repository)(nil)
