// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleUser, true},
		{RoleAssistant, true},
		{Role("system"), false},
		{Role(""), false},
	}
	for _, tc := range tests {
		if got := tc.role.Valid(); got != tc.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tc.role, got, tc.want)
		}
	}
}

func TestRoleFromSender(t *testing.T) {
	tests := map[string]Role{
		"ai":        RoleAssistant,
		"AI":        RoleAssistant,
		"assistant": RoleAssistant,
		"user":      RoleUser,
		"human":     RoleUser,
		"":          RoleUser,
	}
	for sender, want := range tests {
		if got := RoleFromSender(sender); got != want {
			t.Errorf("RoleFromSender(%q) = %q, want %q", sender, got, want)
		}
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessage_SynthesizesID(t *testing.T) {
	msg := NewUserMessage("hi")
	if !strings.HasPrefix(msg.ID, "user-") {
		t.Errorf("ID = %q, want user- prefix", msg.ID)
	}
	if parts := strings.Split(msg.ID, "-"); len(parts) != 3 {
		t.Errorf("ID = %q, want three dash-separated parts", msg.ID)
	}
	other := NewUserMessage("hi")
	if msg.ID == other.ID {
		t.Error("two messages should not share an ID")
	}
}

func TestAssistantPlaceholder_StreamPatch(t *testing.T) {
	msg := NewAssistantPlaceholder()
	id := msg.ID
	require.True(t, msg.IsStreaming)
	require.True(t, msg.IsEmpty())

	msg.SetStreamContent("Hel")
	msg.SetStreamContent("Hello")
	assert.Equal(t, "Hello", msg.Content)
	assert.Equal(t, id, msg.ID)

	msg.FinalizeStream()
	msg.SetStreamContent("ignored")
	assert.Equal(t, "Hello", msg.Content)
	assert.False(t, msg.IsStreaming)
}

func TestMessage_Valid(t *testing.T) {
	var nilMsg *Message
	assert.False(t, nilMsg.Valid())
	assert.False(t, (&Message{Role: RoleUser}).Valid())
	assert.False(t, (&Message{ID: "x", Role: "bot"}).Valid())
	assert.True(t, (&Message{ID: "x", Role: RoleAssistant}).Valid())
}

func TestMessage_Preview(t *testing.T) {
	msg := &Message{Content: "line one\nline   two"}
	assert.Equal(t, "line one line two", msg.Preview(50))
	assert.Equal(t, "line...", msg.Preview(7))
}

// =============================================================================
// TITLE TESTS
// =============================================================================

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"punctuation stripped", "Hello!! How's the weather today???", "Hello Hows the weather today"},
		{"whitespace collapsed", "  many   spaces\there  ", "many spaces here"},
		{"only punctuation", "?!?...", DefaultTitle},
		{"empty", "", DefaultTitle},
		{"truncated at word", "Can you explain how photosynthesis works in desert plants", "Can you explain how photosynthesis..."},
		{"unicode letters kept", "¿Qué tal el día?", "Qué tal el día"},
		{"exactly limit", strings.Repeat("a", 35), strings.Repeat("a", 35)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveTitle(tc.in))
		})
	}
}

func TestDeriveTitle_NeverLongerThanLimit(t *testing.T) {
	title := DeriveTitle(strings.Repeat("word ", 40))
	body := strings.TrimSuffix(title, "...")
	assert.LessOrEqual(t, len([]rune(body)), TitleMaxRunes)
	assert.True(t, strings.HasSuffix(title, "..."))
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestChat_AddMessage_DerivesTitle(t *testing.T) {
	chat := NewChat()
	assert.True(t, IsValidChatID(chat.ID))
	assert.Equal(t, DefaultTitle, chat.DisplayTitle())

	chat.AddMessage(NewMessage(RoleAssistant, "greeting"))
	assert.Empty(t, chat.Title)

	chat.AddMessage(NewUserMessage("What is Go?"))
	assert.Equal(t, "What is Go", chat.Title)

	chat.AddMessage(NewUserMessage("Second question"))
	assert.Equal(t, "What is Go", chat.Title)

	for _, m := range chat.Messages {
		assert.Equal(t, chat.ID, m.ChatID)
	}
}

func TestChat_RemoveMessage(t *testing.T) {
	chat := NewChat()
	a := NewUserMessage("a")
	b := NewUserMessage("b")
	chat.AddMessage(a)
	chat.AddMessage(b)

	assert.True(t, chat.RemoveMessage(a.ID))
	assert.False(t, chat.RemoveMessage(a.ID))
	assert.Equal(t, 1, chat.MessageCount())
	assert.Same(t, b, chat.LastMessage())
}

func TestChat_CloneIsDeep(t *testing.T) {
	chat := NewChat()
	chat.AddMessage(NewUserMessage("original"))
	clone := chat.Clone()
	clone.Messages[0].Content = "changed"
	assert.Equal(t, "original", chat.Messages[0].Content)
}

func TestSortByUpdated(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	chats := []*Chat{
		{ID: "old", UpdatedAt: base},
		{ID: "new", UpdatedAt: base.Add(time.Hour)},
	}
	SortByUpdated(chats)
	assert.Equal(t, "new", chats[0].ID)
}

func TestIsValidChatID(t *testing.T) {
	assert.True(t, IsValidChatID("3f1c2b9a-6f0e-4a5e-9c77-0d1e2f3a4b5c"))
	assert.False(t, IsValidChatID("not-a-uuid"))
	assert.False(t, IsValidChatID(""))
}

// =============================================================================
// HELPERS
// =============================================================================

func mustRecord(t *testing.T, s string) Record {
	t.Helper()
	rec, ok := ParseRecord(json.RawMessage(s))
	require.True(t, ok, "not an object: %s", s)
	return rec
}

func assertSameMessage(t *testing.T, want, got *Message) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Role, got.Role)
	assert.Equal(t, want.Content, got.Content)
	assert.Equal(t, want.ChatID, got.ChatID)
	assert.True(t, want.Timestamp.Equal(got.Timestamp), "timestamp %v != %v", want.Timestamp, got.Timestamp)
}
