// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// RoleFromSender maps the legacy sender field onto a role.
// "ai" and "assistant" map to RoleAssistant; everything else is a user.
func RoleFromSender(sender string) Role {
	switch strings.ToLower(strings.TrimSpace(sender)) {
	case "ai", "assistant":
		return RoleAssistant
	default:
		return RoleUser
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single turn in a chat.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ChatID    string    `json:"chatId,omitempty"`

	// IsStreaming marks an assistant placeholder whose content is still
	// being filled in. Not persisted.
	IsStreaming bool `json:"-"`
}

// NewMessage creates a new message with a synthesized ID.
func NewMessage(role Role, content string) *Message {
	now := time.Now()
	return &Message{
		ID:        SynthesizeID(string(role), now),
		Role:      role,
		Content:   content,
		Timestamp: now,
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantPlaceholder creates an empty assistant message that will be
// patched as the reply streams in.
func NewAssistantPlaceholder() *Message {
	msg := NewMessage(RoleAssistant, "")
	msg.IsStreaming = true
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// SetStreamContent replaces the content of a streaming message with the
// accumulated text received so far. The ID is never touched.
func (m *Message) SetStreamContent(text string) {
	if m.IsStreaming {
		m.Content = text
	}
}

// FinalizeStream marks the message as complete.
func (m *Message) FinalizeStream() {
	m.IsStreaming = false
}

// IsEmpty reports whether the message has no visible content.
func (m *Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == ""
}

// Valid reports whether the message may enter the render path.
func (m *Message) Valid() bool {
	return m != nil && m.ID != "" && m.Role.Valid()
}

// Clone returns a copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// Preview returns a single-line preview of the content.
func (m *Message) Preview(maxRunes int) string {
	line := strings.Join(strings.Fields(m.Content), " ")
	runes := []rune(line)
	if len(runes) <= maxRunes {
		return line
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// Record returns the message as a wire record using canonical field names.
// Normalizing the result yields an equal message.
func (m *Message) Record() Record {
	fields := map[string]any{
		"id":        m.ID,
		"role":      string(m.Role),
		"content":   m.Content,
		"timestamp": m.Timestamp.Format(time.RFC3339Nano),
	}
	if m.ChatID != "" {
		fields["chatId"] = m.ChatID
	}
	return NewRecord(fields)
}

// =============================================================================
// ID GENERATION
// =============================================================================

// SynthesizeID builds a message ID of the form prefix-epochms-random.
func SynthesizeID(prefix string, ts time.Time) string {
	if prefix == "" {
		prefix = "msg"
	}
	return fmt.Sprintf("%s-%d-%s", prefix, ts.UnixMilli(), randomSuffix())
}

func randomSuffix() string {
	var b [5]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Fall back to the clock; uniqueness within a chat is enough.
		return fmt.Sprintf("%09x", time.Now().UnixNano()&0xfffffffff)
	}
	return hex.EncodeToString(b[:])[:9]
}
