package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// SessionRepo provides methods for chat session operations.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates a new SessionRepo.
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create inserts a new session with a generated UUID.
func (r *SessionRepo) Create(ctx context.Context, userID, title string) (*Session, error) {
	session := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO chat_sessions (id, user_id, title, created_at) VALUES (?, ?, ?, ?)",
		session.ID, session.UserID, session.Title, session.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return session, nil
}

// Get returns a session by id. Returns ErrNotFound if it does not exist.
func (r *SessionRepo) Get(ctx context.Context, id string) (*Session, error) {
	var session Session
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, title, created_at FROM chat_sessions WHERE id = ?",
		id,
	).Scan(&session.ID, &session.UserID, &session.Title, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return &session, nil
}

// ListByUser returns a user's sessions, newest first.
func (r *SessionRepo) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, user_id, title, created_at FROM chat_sessions WHERE user_id = ? ORDER BY created_at DESC, rowid DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	sessions := []Session{}
	for rows.Next() {
		var session Session
		if err := rows.Scan(&session.ID, &session.UserID, &session.Title, &session.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

// Rename updates a session title. Returns ErrNotFound if it does not exist.
func (r *SessionRepo) Rename(ctx context.Context, id, title string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE chat_sessions SET title = ? WHERE id = ?", title, id)
	if err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
