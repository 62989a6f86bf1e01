package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/spigell/skillmatch/internal/profile"
)

const driverName = "sqlite"

// The users table keeps the layout of the first release of the bot so
// existing data.db files keep working: the bio lives in the "skills" column.
const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	user_id INTEGER PRIMARY KEY,
	username TEXT NOT NULL,
	course TEXT NOT NULL,
	photo_id TEXT,
	skills TEXT,
	tags TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

const selectColumns = `user_id, username, course, photo_id, skills, tags, created_at`

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// SQLite is a profile repository backed by a single sqlite database file.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open connects to the database at path and makes sure the schema exists.
func Open(ctx context.Context, path string, logger *zap.Logger) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}
	// sqlite serializes writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database %q: %w", path, err)
	}

	s := &SQLite{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("database is ready", zap.String("path", path))
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	return s.ensureTagsColumn(ctx)
}

// ensureTagsColumn upgrades databases created before tags existed.
func (s *SQLite) ensureTagsColumn(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info('users')`)
	if err != nil {
		return fmt.Errorf("inspect users table: %w", err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("inspect users table: %w", err)
		}
		if name == "tags" {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect users table: %w", err)
	}
	rows.Close()

	if found {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, `ALTER TABLE users ADD COLUMN tags TEXT`); err != nil {
		return fmt.Errorf("add tags column: %w", err)
	}
	s.logger.Info("added tags column to users table")
	return nil
}

// Get returns the profile of userID or profile.ErrNotFound.
func (s *SQLite) Get(ctx context.Context, userID int64) (*profile.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM users WHERE user_id = ?`, userID)

	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %d: %w", userID, err)
	}

	return p, nil
}

// Upsert inserts or overwrites the profile. created_at is only set on insert.
func (s *SQLite) Upsert(ctx context.Context, p profile.Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, course, photo_id, skills, tags)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			course = excluded.course,
			photo_id = excluded.photo_id,
			skills = excluded.skills,
			tags = excluded.tags`,
		p.UserID,
		p.Username,
		p.Course,
		nullIfEmpty(p.PhotoRef),
		nullIfEmpty(p.Bio),
		nullIfEmpty(profile.JoinTags(p.Tags)),
	)
	if err != nil {
		return fmt.Errorf("upsert profile %d: %w", p.UserID, err)
	}

	return nil
}

// Delete removes the profile. Deleting a missing profile is not an error.
func (s *SQLite) Delete(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete profile %d: %w", userID, err)
	}
	return nil
}

// ListExcept returns every profile but the one of userID, oldest first.
func (s *SQLite) ListExcept(ctx context.Context, userID int64) ([]profile.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM users WHERE user_id != ? ORDER BY created_at, user_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]profile.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("list profiles: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	return profiles, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*profile.Profile, error) {
	var (
		p         profile.Profile
		photo     sql.NullString
		bio       sql.NullString
		tags      sql.NullString
		createdAt any
	)

	if err := row.Scan(&p.UserID, &p.Username, &p.Course, &photo, &bio, &tags, &createdAt); err != nil {
		return nil, err
	}

	p.PhotoRef = photo.String
	p.Bio = bio.String
	p.Tags = profile.ParseTags(tags.String)
	p.CreatedAt = parseTimestamp(createdAt)

	return &p, nil
}

func parseTimestamp(v any) time.Time {
	switch typed := v.(type) {
	case time.Time:
		return typed.UTC()
	case string:
		return parseTimestampString(typed)
	case []byte:
		return parseTimestampString(string(typed))
	default:
		return time.Time{}
	}
}

func parseTimestampString(s string) time.Time {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
