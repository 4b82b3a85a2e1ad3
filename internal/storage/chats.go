// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jeranaias/chatsync/internal/model"
)

// =============================================================================
// ROWS
// =============================================================================

type chatRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Title     string    `db:"title"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r chatRow) toChat() *model.Chat {
	return &model.Chat{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Messages:  make([]*model.Message, 0),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type messageRow struct {
	ID        string    `db:"id"`
	ChatID    string    `db:"chat_id"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

func (r messageRow) toMessage() *model.Message {
	return &model.Message{
		ID:        r.ID,
		ChatID:    r.ChatID,
		Role:      model.Role(r.Role),
		Content:   r.Content,
		Timestamp: r.CreatedAt.UTC(),
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// ListChats returns the user's chats with their messages, most recently
// updated first.
func (s *Store) ListChats(ctx context.Context, userID string) ([]*model.Chat, error) {
	var chatRows []chatRow
	err := s.db.SelectContext(ctx, &chatRows, s.db.Rebind(
		`SELECT id, user_id, title, created_at, updated_at
		 FROM chats WHERE user_id = ?
		 ORDER BY updated_at DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", classify(err))
	}

	var msgRows []messageRow
	err = s.db.SelectContext(ctx, &msgRows, s.db.Rebind(
		`SELECT m.id, m.chat_id, m.role, m.content, m.created_at
		 FROM messages m JOIN chats c ON c.id = m.chat_id
		 WHERE c.user_id = ?
		 ORDER BY m.created_at, m.id`), userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", classify(err))
	}

	chats := make([]*model.Chat, 0, len(chatRows))
	byID := make(map[string]*model.Chat, len(chatRows))
	for _, r := range chatRows {
		c := r.toChat()
		chats = append(chats, c)
		byID[c.ID] = c
	}
	for _, r := range msgRows {
		if c := byID[r.ChatID]; c != nil {
			c.Messages = append(c.Messages, r.toMessage())
		}
	}
	return chats, nil
}

// GetChat returns one chat with its messages.
func (s *Store) GetChat(ctx context.Context, userID, chatID string) (*model.Chat, error) {
	row, err := s.chatRow(ctx, s.db, userID, chatID)
	if err != nil {
		return nil, err
	}
	chat := row.toChat()

	var msgRows []messageRow
	err = s.db.SelectContext(ctx, &msgRows, s.db.Rebind(
		`SELECT id, chat_id, role, content, created_at
		 FROM messages WHERE chat_id = ?
		 ORDER BY created_at, id`), chatID)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", classify(err))
	}
	for _, r := range msgRows {
		chat.Messages = append(chat.Messages, r.toMessage())
	}
	return chat, nil
}

func (s *Store) chatRow(ctx context.Context, q sqlx.QueryerContext, userID, chatID string) (*chatRow, error) {
	var row chatRow
	err := sqlx.GetContext(ctx, q, &row, s.db.Rebind(
		`SELECT id, user_id, title, created_at, updated_at
		 FROM chats WHERE id = ? AND user_id = ?`), chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", classify(err))
	}
	return &row, nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// EnsureChat returns the user's chat with the given id, creating it with
// title when it does not exist. created reports whether a row was added.
// An id that belongs to another user yields ErrChatNotFound.
func (s *Store) EnsureChat(ctx context.Context, userID, chatID, title string) (chat *model.Chat, created bool, err error) {
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		row, err := s.chatRow(ctx, tx, userID, chatID)
		if err == nil {
			chat = row.toChat()
			return nil
		}
		if !errors.Is(err, ErrChatNotFound) {
			return err
		}

		var owner string
		err = tx.GetContext(ctx, &owner, tx.Rebind(`SELECT user_id FROM chats WHERE id = ?`), chatID)
		switch {
		case err == nil:
			return ErrChatNotFound
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check chat owner: %w", classify(err))
		}

		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO chats (id, user_id, title, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`), chatID, userID, title, now, now)
		if err != nil {
			return fmt.Errorf("create chat: %w", classify(err))
		}
		chat = &model.Chat{
			ID:        chatID,
			UserID:    userID,
			Title:     title,
			Messages:  make([]*model.Message, 0),
			CreatedAt: now,
			UpdatedAt: now,
		}
		created = true
		return nil
	})
	return chat, created, err
}

// AppendMessage stores msg in its chat and bumps the chat's updated time.
// A chat without a title takes one from its first user message.
func (s *Store) AppendMessage(ctx context.Context, userID string, msg *model.Message) error {
	if !msg.Role.Valid() {
		return ErrInvalidRole
	}
	ts := msg.Timestamp.UTC()
	if msg.Timestamp.IsZero() {
		ts = time.Now().UTC()
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		row, err := s.chatRow(ctx, tx, userID, msg.ChatID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO messages (id, chat_id, role, content, created_at)
			 VALUES (?, ?, ?, ?, ?)`), msg.ID, msg.ChatID, string(msg.Role), msg.Content, ts)
		if err != nil {
			return fmt.Errorf("insert message: %w", classify(err))
		}

		title := row.Title
		if strings.TrimSpace(title) == "" && msg.Role == model.RoleUser {
			title = model.DeriveTitle(msg.Content)
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(
			`UPDATE chats SET updated_at = ?, title = ? WHERE id = ?`), ts, title, msg.ChatID)
		if err != nil {
			return fmt.Errorf("touch chat: %w", classify(err))
		}
		return nil
	})
}

// DeleteChat removes a chat and, through the foreign key, its messages.
func (s *Store) DeleteChat(ctx context.Context, userID, chatID string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`DELETE FROM chats WHERE id = ? AND user_id = ?`), chatID, userID)
	if err != nil {
		return fmt.Errorf("delete chat: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if n == 0 {
		return ErrChatNotFound
	}
	return nil
}

// ClearHistory deletes all of the user's chats and returns how many went.
func (s *Store) ClearHistory(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM chats WHERE user_id = ?`), userID)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return n, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", classify(err))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", classify(err))
	}
	return nil
}
