package store

import (
	"database/sql"
	"errors"
	"time"
)

// Session is the history record of one tracking session.
type Session struct {
	ID        string     `json:"id"`
	PresetID  string     `json:"preset_id,omitempty"`
	Scale     string     `json:"scale"`
	Key       string     `json:"key"`
	Timbre    string     `json:"timbre"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`

	Stats
}

// Stats are the counters written when a session stops.
type Stats struct {
	Frames        int64   `json:"frames"`
	Dropped       int64   `json:"dropped"`
	Events        int64   `json:"events"`
	Failures      int64   `json:"failures"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
}

// SessionRepository records session history.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

const sessionColumns = `id, preset_id, scale, key, timbre, started_at, stopped_at,
	frames, dropped, events, failures, mean_latency_ms`

// Start inserts a running session.
func (r *SessionRepository) Start(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, preset_id, scale, key, timbre, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, nullString(sess.PresetID), sess.Scale, sess.Key, sess.Timbre, sess.StartedAt,
	)
	return err
}

// Finish stamps the stop time and final counters.
func (r *SessionRepository) Finish(id string, stoppedAt time.Time, stats Stats) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET stopped_at = ?, frames = ?, dropped = ?, events = ?, failures = ?, mean_latency_ms = ?
		 WHERE id = ?`,
		stoppedAt, stats.Frames, stats.Dropped, stats.Events, stats.Failures, stats.MeanLatencyMs, id,
	)
	if err != nil {
		return err
	}
	return affectedOne(result)
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

// List returns the most recent sessions first. limit <= 0 returns all.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Delete removes a session record.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(result)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	sess := &Session{}
	var presetID sql.NullString
	var stopped sql.NullTime

	err := row.Scan(&sess.ID, &presetID, &sess.Scale, &sess.Key, &sess.Timbre, &sess.StartedAt, &stopped,
		&sess.Frames, &sess.Dropped, &sess.Events, &sess.Failures, &sess.MeanLatencyMs)
	if err != nil {
		return nil, err
	}

	sess.PresetID = presetID.String
	if stopped.Valid {
		t := stopped.Time
		sess.StoppedAt = &t
	}
	return sess, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
