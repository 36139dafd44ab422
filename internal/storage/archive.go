// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/termsage/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrChatNotFound is returned when a chat ID does not exist.
// Use errors.Is(err, ErrChatNotFound) to check for this error.
var ErrChatNotFound = &ArchiveError{Message: "chat not found"}

// ErrEmptyChat is returned when saving a transcript with no turns.
var ErrEmptyChat = &ArchiveError{Message: "chat has no turns"}

// ArchiveError represents an archive-related error.
type ArchiveError struct {
	Message string
}

// Error implements the error interface.
func (e *ArchiveError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing archive errors.
func (e *ArchiveError) Is(target error) bool {
	t, ok := target.(*ArchiveError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// TYPES
// =============================================================================

// ChatSummary describes an archived chat without its turns.
type ChatSummary struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	Title     string    `json:"title"`
	Turns     int       `json:"turns"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// StoredChat is an archived chat with its turns in order.
type StoredChat struct {
	ChatSummary
	Messages []model.Turn `json:"messages"`
}

// =============================================================================
// ARCHIVE
// =============================================================================

// Archive keeps finished chat sub-sessions in a SQLite database.
// It is safe for concurrent use.
type Archive struct {
	db   *sql.DB
	path string
}

// OpenArchive opens (creating if needed) the archive at path.
func OpenArchive(path string) (*Archive, error) {
	if path == "" {
		return nil, errors.New("archive path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &Archive{db: db, path: path}, nil
}

// Path returns the database file path.
func (a *Archive) Path() string {
	return a.path
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// SaveChat stores a finished transcript and returns its new ID.
func (a *Archive) SaveChat(ctx context.Context, modelName string, tr model.Transcript) (string, error) {
	turns := tr.Turns()
	if len(turns) == 0 {
		return "", ErrEmptyChat
	}

	id := uuid.NewString()
	endedAt := time.Now()
	startedAt := tr.StartedAt()
	if startedAt.IsZero() {
		startedAt = turns[0].Timestamp
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chats (id, model, title, turn_count, started_at, ended_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, modelName, tr.Title(), len(turns), startedAt.UnixNano(), endedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to insert chat: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO turns (chat_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare turn insert: %w", err)
	}
	defer stmt.Close()

	for i, turn := range turns {
		if _, err := stmt.ExecContext(ctx, id, i, turn.Role.String(), turn.Content, turn.Timestamp.UnixNano()); err != nil {
			return "", fmt.Errorf("failed to insert turn %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit chat: %w", err)
	}
	return id, nil
}

// RecentChats returns up to limit chats, newest first.
func (a *Archive) RecentChats(ctx context.Context, limit int) ([]ChatSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, model, title, turn_count, started_at, ended_at
		 FROM chats ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// SearchChats returns chats whose title or turns contain query,
// case-insensitively, newest first.
func (a *Archive) SearchChats(ctx context.Context, query string, limit int) ([]ChatSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return a.RecentChats(ctx, limit)
	}
	if limit <= 0 {
		limit = 20
	}

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, model, title, turn_count, started_at, ended_at
		 FROM chats c
		 WHERE lower(c.title) LIKE ? ESCAPE '\'
		    OR EXISTS (SELECT 1 FROM turns t WHERE t.chat_id = c.id AND lower(t.content) LIKE ? ESCAPE '\')
		 ORDER BY started_at DESC, id LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search chats: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// LoadChat returns the chat with the given ID. A unique ID prefix is accepted.
func (a *Archive) LoadChat(ctx context.Context, id string) (*StoredChat, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrChatNotFound
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT id, model, title, turn_count, started_at, ended_at
		 FROM chats WHERE id = ? OR id LIKE ? ESCAPE '\' LIMIT 2`, id, escapeLike(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query chat: %w", err)
	}
	matches, err := scanSummaries(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(matches) != 1 {
		return nil, ErrChatNotFound
	}

	chat := &StoredChat{ChatSummary: matches[0]}
	turnRows, err := a.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM turns WHERE chat_id = ? ORDER BY seq`, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer turnRows.Close()

	for turnRows.Next() {
		var role, content string
		var created int64
		if err := turnRows.Scan(&role, &content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		chat.Messages = append(chat.Messages, model.Turn{
			Role:      model.Role(role),
			Content:   content,
			Timestamp: time.Unix(0, created),
		})
	}
	if err := turnRows.Err(); err != nil {
		return nil, err
	}
	return chat, nil
}

// DeleteChat removes a chat and its turns.
func (a *Archive) DeleteChat(ctx context.Context, id string) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChatNotFound
	}
	return nil
}

// Count returns the number of archived chats.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chats`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chats: %w", err)
	}
	return n, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func scanSummaries(rows *sql.Rows) ([]ChatSummary, error) {
	var out []ChatSummary
	for rows.Next() {
		var s ChatSummary
		var started, ended int64
		if err := rows.Scan(&s.ID, &s.Model, &s.Title, &s.Turns, &started, &ended); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		s.StartedAt = time.Unix(0, started)
		s.EndedAt = time.Unix(0, ended)
		out = append(out, s)
	}
	return out, rows.Err()
}

// escapeLike escapes LIKE wildcards for use with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
