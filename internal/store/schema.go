package store

// schema is valid for both Postgres and SQLite. Timestamps are UTC unix milliseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		event_date  BIGINT NOT NULL,
		location    TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL,
		club_name   TEXT NOT NULL,
		event_head  TEXT NOT NULL,
		created_at  BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS teams (
		id               TEXT PRIMARY KEY,
		event_id         TEXT NOT NULL REFERENCES events(id),
		team_name        TEXT NOT NULL,
		leader_name      TEXT NOT NULL,
		email            TEXT NOT NULL,
		department       TEXT NOT NULL,
		year             TEXT NOT NULL,
		phone_number     TEXT NOT NULL,
		credential_token TEXT NOT NULL DEFAULT '',
		qr_image_url     TEXT NOT NULL DEFAULT '',
		presence         TEXT NOT NULL DEFAULT 'ABSENT' CHECK (presence IN ('ABSENT', 'PRESENT')),
		present_at       BIGINT,
		created_at       BIGINT NOT NULL,
		UNIQUE (event_id, team_name),
		CHECK ((presence = 'PRESENT') = (present_at IS NOT NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_teams_event_presence ON teams (event_id, presence)`,
	`CREATE TABLE IF NOT EXISTS coordinators (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		email        TEXT NOT NULL UNIQUE,
		phone_number TEXT NOT NULL,
		department   TEXT NOT NULL,
		year         TEXT NOT NULL,
		created_at   BIGINT NOT NULL
	)`,
}
