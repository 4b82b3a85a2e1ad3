// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/chatsync/internal/backend"
	"github.com/jeranaias/chatsync/internal/model"
)

// Snapshot is an immutable view of controller state.
type Snapshot struct {
	// Seq increases with every snapshot taken.
	Seq uint64

	ActiveChatID string
	Generation   uint64

	// Chats is the chat list, most recently updated first.
	Chats []model.ChatMeta

	// Messages is the confirmed transcript followed by pending sends.
	Messages []*model.Message

	// Items is Messages after the render guard.
	Items []DisplayItem

	Loading bool
	Sending bool

	// Err is the visible error, or nil.
	Err *backend.Error

	UserID    string
	Source    string
	LastFetch time.Time
}

// HasError reports whether an error is visible.
func (s Snapshot) HasError() bool {
	return s.Err != nil
}

// ErrorText returns the user-facing error line, or "".
func (s Snapshot) ErrorText() string {
	if s.Err == nil {
		return ""
	}
	text := s.Err.UserMessage()
	if s.Err.Details != "" {
		text += " (" + s.Err.Details + ")"
	}
	return text
}

// snapshotLocked builds a snapshot. Caller must hold mu.
func (c *Controller) snapshotLocked() Snapshot {
	c.seq++

	chats := make([]*model.Chat, len(c.chats))
	copy(chats, c.chats)
	model.SortByUpdated(chats)
	metas := make([]model.ChatMeta, 0, len(chats))
	for _, ch := range chats {
		metas = append(metas, ch.Meta())
	}

	msgs := cloneMessages(c.confirmed)
	for _, p := range c.pending {
		msgs = append(msgs, p.msg.Clone())
	}

	return Snapshot{
		Seq:          c.seq,
		ActiveChatID: c.activeID,
		Generation:   c.gen,
		Chats:        metas,
		Messages:     msgs,
		Items:        Guard(msgs),
		Loading:      c.loading,
		Sending:      c.sending > 0,
		Err:          c.err,
		UserID:       c.sess.UserID(),
		Source:       c.source,
		LastFetch:    c.lastFetch,
	}
}
