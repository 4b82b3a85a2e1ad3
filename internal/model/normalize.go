// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// MESSAGE NORMALIZATION
// =============================================================================

// NormalizeMessage converts a record into a canonical message. It never
// fails: a missing ID is synthesized and a missing or unparsable timestamp
// becomes now.
func NormalizeMessage(r Record, now time.Time) *Message {
	rawRole := strings.TrimSpace(r.String("role"))
	sender := strings.TrimSpace(r.String("sender"))

	role := Role(strings.ToLower(rawRole))
	if !role.Valid() {
		role = RoleFromSender(sender)
	}

	content := r.String("content")
	if content == "" {
		content = r.String("text")
	}

	ts, ok := r.Time("timestamp", "createdAt", "created_at")
	if !ok {
		ts = now.UTC().Round(0)
	}

	id := r.String("id", "_id")
	if id == "" {
		prefix := rawRole
		if prefix == "" {
			prefix = sender
		}
		if prefix == "" {
			prefix = string(role)
		}
		id = SynthesizeID(prefix, now)
	}

	return &Message{
		ID:        id,
		Role:      role,
		Content:   content,
		Timestamp: ts,
		ChatID:    r.String("chatId", "chat_id"),
	}
}

// NormalizeMessages converts a JSON array of message records. Anything
// that is not an array yields an empty slice; elements that are not objects
// are discarded. A non-empty chatID overrides each message's own.
func NormalizeMessages(raw json.RawMessage, chatID string, now time.Time) []*Message {
	elems := asArray(raw)
	out := make([]*Message, 0, len(elems))
	for i, elem := range elems {
		rec, ok := ParseRecord(elem)
		if !ok {
			slog.Debug("discarding non-object message element", "index", i, "chat_id", chatID)
			continue
		}
		msg := NormalizeMessage(rec, now)
		if chatID != "" {
			msg.ChatID = chatID
		}
		out = append(out, msg)
	}
	return out
}

// =============================================================================
// CHAT NORMALIZATION
// =============================================================================

// NormalizeChat converts a record into a canonical chat. The ID is taken
// from id, then _id, then chatId; every message is claimed by that ID and
// Messages is never nil.
func NormalizeChat(r Record, now time.Time) *Chat {
	return normalizeChat(r, now, nil)
}

func normalizeChat(r Record, now time.Time, orphans map[string][]*Message) *Chat {
	id := r.String("id", "_id", "chatId")
	if id == "" {
		id = uuid.NewString()
		slog.Debug("chat record has no id, generated one", "chat_id", id)
	}

	created, ok := r.Time("createdAt", "created_at")
	if !ok {
		created = now.UTC().Round(0)
	}
	updated, ok := r.Time("updatedAt", "updated_at")
	if !ok {
		updated = created
	}

	chat := &Chat{
		ID:        id,
		Title:     strings.TrimSpace(r.String("title")),
		UserID:    r.String("userId", "user_id"),
		Messages:  NormalizeMessages(r.Raw("messages"), id, now),
		CreatedAt: created,
		UpdatedAt: updated,
	}

	if len(chat.Messages) == 0 {
		for _, m := range orphans[id] {
			c := m.Clone()
			c.ChatID = id
			chat.Messages = append(chat.Messages, c)
		}
	}

	chat.EnsureTitle()
	return chat
}

// NormalizeChats converts a JSON array of chat records.
func NormalizeChats(raw json.RawMessage, now time.Time) []*Chat {
	return normalizeChats(raw, now, nil)
}

func normalizeChats(raw json.RawMessage, now time.Time, orphans map[string][]*Message) []*Chat {
	elems := asArray(raw)
	out := make([]*Chat, 0, len(elems))
	for i, elem := range elems {
		rec, ok := ParseRecord(elem)
		if !ok {
			slog.Debug("discarding non-object chat element", "index", i)
			continue
		}
		out = append(out, normalizeChat(rec, now, orphans))
	}
	return out
}

// Record returns the chat as a wire record using canonical field names.
func (c *Chat) Record() Record {
	msgs := make([]Record, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m != nil {
			msgs = append(msgs, m.Record())
		}
	}
	fields := map[string]any{
		"id":        c.ID,
		"title":     c.Title,
		"messages":  msgs,
		"createdAt": c.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt": c.UpdatedAt.Format(time.RFC3339Nano),
	}
	if c.UserID != "" {
		fields["userId"] = c.UserID
	}
	return NewRecord(fields)
}

// =============================================================================
// HISTORY NORMALIZATION
// =============================================================================

// History is a normalized history payload.
type History struct {
	Chats    []*Chat
	Messages []*Message
}

// NormalizeHistory normalizes the chats and messages arrays of a history
// response. Chats that arrive without messages are filled from the flat
// messages array by chat ID. When the flat array is empty it is rebuilt
// from the chats.
func NormalizeHistory(chatsRaw, messagesRaw json.RawMessage, now time.Time) History {
	flat := NormalizeMessages(messagesRaw, "", now)

	orphans := make(map[string][]*Message)
	for _, m := range flat {
		if m.ChatID != "" {
			orphans[m.ChatID] = append(orphans[m.ChatID], m)
		}
	}

	chats := normalizeChats(chatsRaw, now, orphans)

	if len(flat) == 0 {
		for _, c := range chats {
			for _, m := range c.Messages {
				flat = append(flat, m.Clone())
			}
		}
	}

	return History{Chats: chats, Messages: flat}
}

// ChatByID returns the chat with the given ID, or nil.
func (h History) ChatByID(id string) *Chat {
	for _, c := range h.Chats {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func asArray(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		slog.Debug("discarding malformed array", "error", err)
		return nil
	}
	return elems
}
