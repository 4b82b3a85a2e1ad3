// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/jeranaias/chatsync/internal/backend"
	"github.com/jeranaias/chatsync/internal/model"
	"github.com/jeranaias/chatsync/internal/wire"
)

// =============================================================================
// CHAT SWITCHING
// =============================================================================

// NewChat starts an empty chat and makes it active. The server learns about
// it in the background; a failed registration is logged only, because the
// first send creates the chat server-side anyway.
func (c *Controller) NewChat() string {
	id := uuid.NewString()

	var closed bool
	c.update(func() {
		c.gen++
		c.activeID = id
		c.pending = nil
		c.confirmed = make([]*model.Message, 0)
		c.err = nil

		ch := model.NewChatWithID(id)
		ch.CreatedAt = c.opts.Now()
		ch.UpdatedAt = ch.CreatedAt
		c.chats = append(c.chats, ch)
		c.localOnly[id] = true
		closed = c.closed
		if !closed {
			c.wg.Add(1)
		}
	})

	if closed {
		return id
	}

	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.RequestTimeout)
		defer cancel()
		if _, err := c.backend.CreateChat(ctx, wire.CreateChatRequest{ID: id}); err != nil {
			slog.Warn("chat registration failed", "chat_id", id, "error", err)
			return
		}
		slog.Debug("chat registered", "chat_id", id)
	}()
	return id
}

// Select makes a listed chat active. Selecting an unknown chat clears the
// transcript and sets a not-found error.
func (c *Controller) Select(id string) error {
	var err error
	c.update(func() {
		c.gen++
		c.pending = nil

		ch := c.chatLocked(id)
		if ch == nil {
			c.activeID = ""
			c.confirmed = make([]*model.Message, 0)
			c.err = &backend.Error{Kind: backend.KindNotFound, Op: "select chat", Message: "chat " + id + " not found"}
			err = c.err
			return
		}

		c.activeID = id
		c.confirmed = cloneMessages(ch.Messages)
		c.err = nil
	})
	return err
}

// Delete removes a chat on the server and locally. A chat the server has
// never seen is removed locally without error.
func (c *Controller) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	if _, err := c.backend.DeleteChat(ctx, id); err != nil {
		be := backend.Classify("delete chat", err)
		c.mu.Lock()
		local := c.localOnly[id]
		c.mu.Unlock()
		if !(local && errors.Is(be, backend.ErrNotFound)) {
			c.update(func() { c.err = be })
			return be
		}
	}

	c.update(func() {
		c.chats = slices.DeleteFunc(c.chats, func(ch *model.Chat) bool { return ch.ID == id })
		delete(c.localOnly, id)
		if c.activeID == id {
			c.gen++
			c.activeID = ""
			c.confirmed = make([]*model.Message, 0)
			c.pending = nil
		}
	})
	slog.Info("chat deleted", "chat_id", id)
	return nil
}

// ClearHistory deletes every chat of the current user.
func (c *Controller) ClearHistory(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	resp, err := c.backend.ClearHistory(ctx)
	if err != nil {
		be := backend.Classify("clear history", err)
		c.update(func() { c.err = be })
		return be
	}

	c.update(func() {
		c.activeID = ""
		c.clearDataLocked()
		c.err = nil
	})
	var deleted int64
	if resp != nil {
		deleted = resp.Deleted
	}
	slog.Info("history cleared", "deleted", deleted)
	return nil
}
