// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"log/slog"
	"strings"
	"time"

	"github.com/jeranaias/chatsync/internal/model"
)

// Placeholder texts for messages without content.
const (
	ThinkingText  = "Thinking..."
	EmptyUserText = "(empty message)"
)

// ItemKind says how a display item should be drawn.
type ItemKind int

const (
	ItemMessage ItemKind = iota
	ItemThinking
	ItemEmptyUser
)

func (k ItemKind) String() string {
	switch k {
	case ItemThinking:
		return "thinking"
	case ItemEmptyUser:
		return "empty-user"
	default:
		return "message"
	}
}

// DisplayItem is one renderable transcript entry.
type DisplayItem struct {
	Kind      ItemKind
	ID        string
	Role      model.Role
	Content   string
	Timestamp time.Time
	Streaming bool
}

// Text returns the content, or the placeholder for empty items.
func (d DisplayItem) Text() string {
	switch d.Kind {
	case ItemThinking:
		return ThinkingText
	case ItemEmptyUser:
		return EmptyUserText
	default:
		return d.Content
	}
}

// Guard turns messages into display items. Entries the renderer cannot
// show are skipped: nil messages, empty or repeated ids, and unknown roles.
func Guard(msgs []*model.Message) []DisplayItem {
	items := make([]DisplayItem, 0, len(msgs))
	seen := make(map[string]struct{}, len(msgs))

	for i, m := range msgs {
		switch {
		case m == nil:
			slog.Debug("render guard: skipping nil message", "index", i)
			continue
		case m.ID == "":
			slog.Debug("render guard: skipping message without id", "index", i)
			continue
		case !m.Role.Valid():
			slog.Debug("render guard: skipping message with invalid role", "index", i, "id", m.ID, "role", string(m.Role))
			continue
		}
		if _, dup := seen[m.ID]; dup {
			slog.Debug("render guard: skipping duplicate id", "index", i, "id", m.ID)
			continue
		}
		seen[m.ID] = struct{}{}

		item := DisplayItem{
			Kind:      ItemMessage,
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp,
			Streaming: m.IsStreaming,
		}
		if strings.TrimSpace(m.Content) == "" {
			if m.Role == model.RoleAssistant {
				item.Kind = ItemThinking
			} else {
				item.Kind = ItemEmptyUser
			}
		}
		items = append(items, item)
	}
	return items
}
