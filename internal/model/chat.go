// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CHAT TYPE
// =============================================================================

// Chat is a titled sequence of messages owned by one user.
type Chat struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	UserID    string     `json:"userId,omitempty"`
	Messages  []*Message `json:"messages"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// ChatMeta is the lightweight listing form of a chat.
type ChatMeta struct {
	ID           string
	Title        string
	Preview      string
	MessageCount int
	UpdatedAt    time.Time
}

// NewChat creates an empty chat with a fresh UUID.
func NewChat() *Chat {
	return NewChatWithID(uuid.NewString())
}

// NewChatWithID creates an empty chat with the given ID.
func NewChatWithID(id string) *Chat {
	now := time.Now()
	return &Chat{
		ID:        id,
		Messages:  make([]*Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsValidChatID reports whether id is a well-formed UUID.
func IsValidChatID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends a message, claims it for this chat and derives the
// title from the first user message when none is set.
func (c *Chat) AddMessage(msg *Message) {
	if msg == nil {
		return
	}
	msg.ChatID = c.ID
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	c.EnsureTitle()
}

// MessageByID returns the message with the given ID, or nil.
func (c *Chat) MessageByID(id string) *Message {
	for _, m := range c.Messages {
		if m != nil && m.ID == id {
			return m
		}
	}
	return nil
}

// RemoveMessage deletes the message with the given ID.
func (c *Chat) RemoveMessage(id string) bool {
	i := slices.IndexFunc(c.Messages, func(m *Message) bool { return m != nil && m.ID == id })
	if i < 0 {
		return false
	}
	c.Messages = slices.Delete(c.Messages, i, i+1)
	return true
}

// LastMessage returns the most recent message, or nil.
func (c *Chat) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// FirstUserMessage returns the earliest user message, or nil.
func (c *Chat) FirstUserMessage() *Message {
	for _, m := range c.Messages {
		if m != nil && m.Role == RoleUser && strings.TrimSpace(m.Content) != "" {
			return m
		}
	}
	return nil
}

// MessageCount returns the number of messages.
func (c *Chat) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty reports whether the chat has no messages.
func (c *Chat) IsEmpty() bool {
	return len(c.Messages) == 0
}

// =============================================================================
// TITLE
// =============================================================================

// EnsureTitle derives a title from the first user message if the chat has
// none. A chat with no user message keeps an empty title until one arrives.
func (c *Chat) EnsureTitle() {
	if strings.TrimSpace(c.Title) != "" {
		return
	}
	if first := c.FirstUserMessage(); first != nil {
		c.Title = DeriveTitle(first.Content)
	}
}

// DisplayTitle returns the title or DefaultTitle.
func (c *Chat) DisplayTitle() string {
	if strings.TrimSpace(c.Title) == "" {
		return DefaultTitle
	}
	return c.Title
}

// Meta returns the listing form of the chat.
func (c *Chat) Meta() ChatMeta {
	meta := ChatMeta{
		ID:           c.ID,
		Title:        c.DisplayTitle(),
		MessageCount: len(c.Messages),
		UpdatedAt:    c.UpdatedAt,
	}
	if first := c.FirstUserMessage(); first != nil {
		meta.Preview = first.Preview(60)
	}
	return meta
}

// Clone returns a deep copy of the chat.
func (c *Chat) Clone() *Chat {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Messages = make([]*Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		clone.Messages = append(clone.Messages, m.Clone())
	}
	return &clone
}

// SortByUpdated orders chats most recently updated first.
func SortByUpdated(chats []*Chat) {
	slices.SortStableFunc(chats, func(a, b *Chat) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
}
