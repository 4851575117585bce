// Package store persists tracking sessions, their configuration and samples,
// in SQLite.  Raw video is never stored.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/BenCrafterRED/colortracker/kinematics"
	"github.com/BenCrafterRED/colortracker/segment"
	"github.com/BenCrafterRED/colortracker/track"
	"github.com/google/uuid"
	"log/slog"
	_ "modernc.org/sqlite"
	"time"
)

// ErrSessionNotFound is returned when loading a session id that is not stored
var ErrSessionNotFound = errors.New("session not found")

// DB is a session database
type DB struct {
	*sql.DB
	log *slog.Logger
}

// Open opens or creates the database at path and migrates its schema to the
// latest version
func Open(path string) (*DB, error) {

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	sqlDB, err := sql.Open("sqlite", dsn)

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows a single writer
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, log: slog.Default()}

	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	db.log.Info("store: database opened", "path", path)

	return db, nil
}

// Session is a recorded tracking session with the configuration it was
// recorded under
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time
	// Source is the device selector the session was recorded from
	Source    string
	Hue       uint8
	Threshold uint8
	ROI       segment.ROI
	Scale     kinematics.Scale
	Sigma     float64
	Samples   []track.Sample
}

// SessionInfo summarises a stored session without its samples
type SessionInfo struct {
	ID         uuid.UUID
	StartedAt  time.Time
	Source     string
	Samples    int
	Detections int
	// Duration between the first and last sample
	Duration time.Duration
}

// SaveSession stores a session and its samples, replacing any session with
// the same id
func (db *DB) SaveSession(ctx context.Context, s *Session) error {

	tx, err := db.BeginTx(ctx, nil)

	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, s.ID.String())

	if err != nil {
		return fmt.Errorf("failed to replace session: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, started_at_ns, source, target_hue, threshold,
			roi_x1, roi_y1, roi_x2, roi_y2, pixels_per_unit, unit, sigma)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.StartedAt.UnixNano(), s.Source, s.Hue, s.Threshold,
		s.ROI.X1, s.ROI.Y1, s.ROI.X2, s.ROI.Y2,
		s.Scale.PixelsPerUnit, string(s.Scale.Unit), s.Sigma)

	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (session_id, seq, timestamp_ns, detected, x, y, width, height)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	if err != nil {
		return fmt.Errorf("failed to prepare sample insert: %w", err)
	}

	defer stmt.Close()

	for i, sample := range s.Samples {
		_, err := stmt.ExecContext(ctx, s.ID.String(), i, int64(sample.Timestamp),
			sample.Detected, sample.Box.X, sample.Box.Y, sample.Box.Width, sample.Box.Height)

		if err != nil {
			return fmt.Errorf("failed to insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}

	db.log.Info("store: session saved", "id", s.ID, "samples", len(s.Samples))

	return nil
}

// LoadSession reads a stored session with its samples in recording order
func (db *DB) LoadSession(ctx context.Context, id uuid.UUID) (*Session, error) {

	s := &Session{ID: id}

	var (
		startedAt int64
		unit      string
	)

	err := db.QueryRowContext(ctx, `
		SELECT started_at_ns, source, target_hue, threshold,
			roi_x1, roi_y1, roi_x2, roi_y2, pixels_per_unit, unit, sigma
		FROM sessions WHERE session_id = ?`, id.String()).Scan(
		&startedAt, &s.Source, &s.Hue, &s.Threshold,
		&s.ROI.X1, &s.ROI.Y1, &s.ROI.X2, &s.ROI.Y2,
		&s.Scale.PixelsPerUnit, &unit, &s.Sigma)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	s.StartedAt = time.Unix(0, startedAt)
	s.Scale.Unit = kinematics.Unit(unit)

	rows, err := db.QueryContext(ctx, `
		SELECT timestamp_ns, detected, x, y, width, height
		FROM samples WHERE session_id = ? ORDER BY seq`, id.String())

	if err != nil {
		return nil, fmt.Errorf("failed to load samples: %w", err)
	}

	defer rows.Close()

	s.Samples = []track.Sample{}

	for rows.Next() {
		var (
			sample track.Sample
			ts     int64
		)

		if err := rows.Scan(&ts, &sample.Detected, &sample.Box.X, &sample.Box.Y,
			&sample.Box.Width, &sample.Box.Height); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}

		sample.Timestamp = time.Duration(ts)
		s.Samples = append(s.Samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}

	return s, nil
}

// ListSessions returns all stored sessions, most recent first
func (db *DB) ListSessions(ctx context.Context) ([]SessionInfo, error) {

	rows, err := db.QueryContext(ctx, `
		SELECT s.session_id, s.started_at_ns, s.source,
			COUNT(p.seq), COALESCE(SUM(p.detected), 0),
			COALESCE(MAX(p.timestamp_ns) - MIN(p.timestamp_ns), 0)
		FROM sessions s
		LEFT JOIN samples p ON p.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.started_at_ns DESC`)

	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	defer rows.Close()

	var infos []SessionInfo

	for rows.Next() {
		var (
			info      SessionInfo
			id        string
			startedAt int64
			duration  int64
		)

		if err := rows.Scan(&id, &startedAt, &info.Source, &info.Samples,
			&info.Detections, &duration); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		if info.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid session id %q: %w", id, err)
		}

		info.StartedAt = time.Unix(0, startedAt)
		info.Duration = time.Duration(duration)
		infos = append(infos, info)
	}

	return infos, rows.Err()
}

// DeleteSession removes a session and its samples
func (db *DB) DeleteSession(ctx context.Context, id uuid.UUID) error {

	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id.String())

	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	return nil
}
