// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatsync/internal/backend"
	"github.com/jeranaias/chatsync/internal/chat"
	"github.com/jeranaias/chatsync/internal/llm"
	"github.com/jeranaias/chatsync/internal/model"
	"github.com/jeranaias/chatsync/internal/session"
)

// These tests drive the client controller against a live server.

func newClientController(t *testing.T, env *testEnv, token, user string) *chat.Controller {
	t.Helper()
	sess := session.New(token, user)
	client := backend.New(backend.Options{BaseURL: env.srv.URL}, sess)
	ctrl := chat.New(client, sess, chat.Options{})
	t.Cleanup(ctrl.Close)
	return ctrl
}

func TestEndToEnd_SendThenFetchReconciles(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())
	ctrl := newClientController(t, env, aliceToken, "alice")
	ctx := context.Background()

	require.NoError(t, ctrl.Send(ctx, "hello there"))

	snap := ctrl.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "You said: hello there", snap.Messages[1].Content)
	activeID := snap.ActiveChatID
	require.NotEmpty(t, activeID)

	require.NoError(t, ctrl.Fetch(ctx))

	snap = ctrl.Snapshot()
	assert.Equal(t, activeID, snap.ActiveChatID)
	require.Len(t, snap.Messages, 2, "confirmed copies replace the optimistic ones")
	assert.Equal(t, model.RoleUser, snap.Messages[0].Role)
	assert.Equal(t, "hello there", snap.Messages[0].Content)
	require.Len(t, snap.Chats, 1)
	assert.Equal(t, activeID, snap.Chats[0].ID)
	assert.False(t, snap.HasError())
}

func TestEndToEnd_SendWithFiles(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())
	ctrl := newClientController(t, env, aliceToken, "alice")

	err := ctrl.Send(context.Background(), "read this",
		backend.File{Name: "todo.txt", Reader: strings.NewReader("water plants")})
	require.NoError(t, err)

	snap := ctrl.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Contains(t, snap.Messages[1].Content, "water plants")
}

func TestEndToEnd_DeleteAndClear(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())
	ctrl := newClientController(t, env, aliceToken, "alice")
	ctx := context.Background()

	require.NoError(t, ctrl.Send(ctx, "first"))
	first := ctrl.ActiveChatID()
	ctrl.NewChat()
	require.NoError(t, ctrl.Send(ctx, "second"))
	require.NoError(t, ctrl.Fetch(ctx))
	require.Len(t, ctrl.Snapshot().Chats, 2)

	require.NoError(t, ctrl.Delete(ctx, first))
	require.NoError(t, ctrl.Fetch(ctx))
	require.Len(t, ctrl.Snapshot().Chats, 1)

	require.NoError(t, ctrl.ClearHistory(ctx))
	require.NoError(t, ctrl.Fetch(ctx))
	snap := ctrl.Snapshot()
	assert.Empty(t, snap.Chats)
	assert.Empty(t, snap.Messages)
}

func TestEndToEnd_BadTokenIsUnauthorized(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())
	ctrl := newClientController(t, env, "stolen", "mallory")

	err := ctrl.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrUnauthorized)

	snap := ctrl.Snapshot()
	require.True(t, snap.HasError())
	assert.True(t, snap.Err.ShouldRelogin())
}

func TestEndToEnd_UsersAreIsolated(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())
	alice := newClientController(t, env, aliceToken, "alice")
	bob := newClientController(t, env, bobToken, "bob")
	ctx := context.Background()

	require.NoError(t, alice.Send(ctx, "secret"))
	require.NoError(t, bob.Fetch(ctx))

	snap := bob.Snapshot()
	assert.Empty(t, snap.Chats)
	assert.Equal(t, "empty", snap.Source)
}
