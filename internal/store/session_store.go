package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/sawt/internal/domain"
)

// SessionStore is keyed persistence of whole sessions. Load returns a fresh
// greeting-phase session when id is unknown; Save replaces the stored record
// atomically.
type SessionStore interface {
	Load(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]SessionInfo, error)
}

// SessionInfo is the listing view of a stored session.
type SessionInfo struct {
	ID        string       `json:"id"`
	Phase     domain.Phase `json:"phase"`
	Turns     int          `json:"turns"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// SQLiteSessionStore implements SessionStore backed by SQLite. The session is
// stored as one JSON document next to a few indexed columns.
type SQLiteSessionStore struct {
	db *DB
}

// NewSQLiteSessionStore creates a session store using the given database.
func NewSQLiteSessionStore(db *DB) *SQLiteSessionStore {
	return &SQLiteSessionStore{db: db}
}

// Load returns the stored session or a new one.
func (s *SQLiteSessionStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	var state string
	err := s.db.sql.QueryRowContext(ctx, `SELECT state FROM sessions WHERE id = ?`, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewSession(id, time.Now().UTC()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	var sess domain.Session
	if err := json.Unmarshal([]byte(state), &sess); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &sess, nil
}

// Save upserts the full session in a single statement.
func (s *SQLiteSessionStore) Save(ctx context.Context, sess *domain.Session) error {
	if sess.ID == "" {
		return domain.Validation("save session", "session id is required")
	}
	state, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", sess.ID, err)
	}

	created := sess.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	updated := sess.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	_, err = s.db.sql.ExecContext(ctx,
		`INSERT INTO sessions (id, phase, state, turns, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   phase = excluded.phase,
		   state = excluded.state,
		   turns = excluded.turns,
		   updated_at = excluded.updated_at`,
		sess.ID, string(sess.Phase), string(state), sess.Turns,
		created.Format(time.DateTime), updated.Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", sess.ID, err)
	}
	return nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *SQLiteSessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.sql.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// List returns all sessions, most recently updated first.
func (s *SQLiteSessionStore) List(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, phase, turns, updated_at FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var phase, updatedAt string
		if err := rows.Scan(&info.ID, &phase, &info.Turns, &updatedAt); err != nil {
			return nil, err
		}
		info.Phase = domain.Phase(phase)
		info.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
		out = append(out, info)
	}
	return out, rows.Err()
}
