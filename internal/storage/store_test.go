// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatsync/internal/config"
	"github.com/jeranaias/chatsync/internal/model"
)

const (
	alice = "alice"
	bob   = "bob"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func addMessage(t *testing.T, s *Store, user, chatID string, role model.Role, content string, at time.Time) *model.Message {
	t.Helper()
	msg := model.NewMessage(role, content)
	msg.ChatID = chatID
	msg.Timestamp = at
	require.NoError(t, s.AppendMessage(context.Background(), user, msg))
	return msg
}

func TestEnsureChat_CreatesOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := model.NewChat().ID

	chat, created, err := s.EnsureChat(ctx, alice, id, "First")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "First", chat.Title)
	assert.NotNil(t, chat.Messages)

	chat, created, err = s.EnsureChat(ctx, alice, id, "Other")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "First", chat.Title)
}

func TestEnsureChat_OtherUsersChat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := model.NewChat().ID

	_, _, err := s.EnsureChat(ctx, alice, id, "")
	require.NoError(t, err)

	_, _, err = s.EnsureChat(ctx, bob, id, "")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestAppendMessage_AndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

	older := model.NewChat().ID
	newer := model.NewChat().ID
	_, _, err := s.EnsureChat(ctx, alice, older, "")
	require.NoError(t, err)
	_, _, err = s.EnsureChat(ctx, alice, newer, "")
	require.NoError(t, err)

	addMessage(t, s, alice, older, model.RoleUser, "Hello!! How's the weather today???", base)
	addMessage(t, s, alice, older, model.RoleAssistant, "Sunny.", base.Add(time.Second))
	addMessage(t, s, alice, newer, model.RoleUser, "second chat", base.Add(time.Minute))

	chats, err := s.ListChats(ctx, alice)
	require.NoError(t, err)
	require.Len(t, chats, 2)

	assert.Equal(t, newer, chats[0].ID)
	assert.Equal(t, older, chats[1].ID)
	assert.Equal(t, "Hello Hows the weather today", chats[1].Title)
	require.Len(t, chats[1].Messages, 2)
	assert.Equal(t, model.RoleUser, chats[1].Messages[0].Role)
	assert.Equal(t, "Sunny.", chats[1].Messages[1].Content)
	assert.Equal(t, older, chats[1].Messages[1].ChatID)
	assert.Equal(t, base.UnixMilli(), chats[1].Messages[0].Timestamp.UnixMilli())

	other, err := s.ListChats(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAppendMessage_Rejects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := model.NewChat().ID
	_, _, err := s.EnsureChat(ctx, alice, id, "")
	require.NoError(t, err)

	bad := model.NewMessage(model.Role("system"), "x")
	bad.ChatID = id
	assert.ErrorIs(t, s.AppendMessage(ctx, alice, bad), ErrInvalidRole)

	msg := model.NewUserMessage("hi")
	msg.ChatID = id
	assert.ErrorIs(t, s.AppendMessage(ctx, bob, msg), ErrChatNotFound)

	msg.ChatID = "missing"
	assert.ErrorIs(t, s.AppendMessage(ctx, alice, msg), ErrChatNotFound)
}

func TestGetChat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := model.NewChat().ID
	_, _, err := s.EnsureChat(ctx, alice, id, "t")
	require.NoError(t, err)
	addMessage(t, s, alice, id, model.RoleUser, "one", time.Now())

	chat, err := s.GetChat(ctx, alice, id)
	require.NoError(t, err)
	assert.Len(t, chat.Messages, 1)

	_, err = s.GetChat(ctx, bob, id)
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestDeleteChat_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := model.NewChat().ID
	_, _, err := s.EnsureChat(ctx, alice, id, "")
	require.NoError(t, err)
	addMessage(t, s, alice, id, model.RoleUser, "one", time.Now())

	assert.ErrorIs(t, s.DeleteChat(ctx, bob, id), ErrChatNotFound)
	require.NoError(t, s.DeleteChat(ctx, alice, id))
	assert.ErrorIs(t, s.DeleteChat(ctx, alice, id), ErrChatNotFound)

	var n int
	require.NoError(t, s.db.Get(&n, `SELECT COUNT(*) FROM messages WHERE chat_id = ?`, id))
	assert.Zero(t, n)
}

func TestClearHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _, err := s.EnsureChat(ctx, alice, model.NewChat().ID, fmt.Sprintf("c%d", i))
		require.NoError(t, err)
	}
	keep := model.NewChat().ID
	_, _, err := s.EnsureChat(ctx, bob, keep, "")
	require.NoError(t, err)

	n, err := s.ClearHistory(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	chats, err := s.ListChats(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestMissingTable(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ListChats(context.Background(), alice)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.ErrorIs(t, classify(&pq.Error{Code: pgUndefinedTable}), ErrTableNotFound)
	assert.ErrorIs(t, classify(errors.New("SQL logic error: no such table: chats (1)")), ErrTableNotFound)

	other := errors.New("disk full")
	assert.Equal(t, other, classify(other))
}

func TestOpen_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chatsync.db")
	s, err := Open(config.StorageConfig{Driver: config.DriverSQLite, DSN: path})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, config.DriverSQLite, s.Driver())

	_, err = Open(config.StorageConfig{Driver: "mysql"})
	assert.Error(t, err)
}
