package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageRepo provides methods for chat message and feedback operations.
type MessageRepo struct {
	db *sql.DB
}

// NewMessageRepo creates a new MessageRepo.
func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create inserts a message, generating its ID and timestamp when unset.
func (r *MessageRepo) Create(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	var metadata sql.NullString
	if len(msg.Metadata) > 0 {
		metadata = sql.NullString{String: string(msg.Metadata), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO chat_messages (id, session_id, role, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		msg.ID, msg.SessionID, msg.Role, msg.Content, metadata, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// Get returns a message by id. Returns ErrNotFound if it does not exist.
func (r *MessageRepo) Get(ctx context.Context, id string) (*Message, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, session_id, role, content, metadata, created_at FROM chat_messages WHERE id = ?",
		id,
	)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query message: %w", err)
	}
	return msg, nil
}

// ListBySession returns every message of a session, oldest first.
func (r *MessageRepo) ListBySession(ctx context.Context, sessionID string) ([]Message, error) {
	return r.query(ctx,
		"SELECT id, session_id, role, content, metadata, created_at FROM chat_messages WHERE session_id = ? ORDER BY rowid",
		sessionID,
	)
}

// ListRecent returns the last limit messages of a session, oldest first.
func (r *MessageRepo) ListRecent(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}
	return r.query(ctx,
		`SELECT id, session_id, role, content, metadata, created_at FROM (
			SELECT rowid AS seq, id, session_id, role, content, metadata, created_at
			FROM chat_messages WHERE session_id = ? ORDER BY rowid DESC LIMIT ?
		) ORDER BY seq`,
		sessionID, limit,
	)
}

// UpsertFeedback records a rating, replacing any earlier rating by the same user.
func (r *MessageRepo) UpsertFeedback(ctx context.Context, fb Feedback) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO feedback (message_id, user_id, score, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (message_id, user_id) DO UPDATE SET score = excluded.score, created_at = excluded.created_at`,
		fb.MessageID, fb.UserID, fb.Score, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert feedback: %w", err)
	}
	return nil
}

// GetFeedback returns a user's rating of a message. Returns ErrNotFound if none exists.
func (r *MessageRepo) GetFeedback(ctx context.Context, messageID, userID string) (*Feedback, error) {
	fb := Feedback{MessageID: messageID, UserID: userID}
	err := r.db.QueryRowContext(ctx,
		"SELECT score FROM feedback WHERE message_id = ? AND user_id = ?",
		messageID, userID,
	).Scan(&fb.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	return &fb, nil
}

func (r *MessageRepo) query(ctx context.Context, q string, args ...any) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	messages := []Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return messages, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (*Message, error) {
	var (
		msg      Message
		metadata sql.NullString
	)
	if err := s.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &metadata, &msg.CreatedAt); err != nil {
		return nil, err
	}
	if metadata.Valid && metadata.String != "" {
		msg.Metadata = []byte(metadata.String)
	}
	return &msg, nil
}
