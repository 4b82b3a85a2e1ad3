// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jeranaias/chatsync/internal/backend"
	"github.com/jeranaias/chatsync/internal/model"
	"github.com/jeranaias/chatsync/internal/wire"
)

// =============================================================================
// OPTIMISTIC SEND
// =============================================================================

// Send posts text to the active chat, creating one if none is active. The
// user message and an empty assistant placeholder are visible before the
// request leaves. With files the message is uploaded as multipart and the
// reply arrives in one piece; otherwise it streams into the placeholder.
//
// Send blocks until the reply settles or fails. Empty input is rejected
// with a validation error and changes nothing.
func (c *Controller) Send(ctx context.Context, text string, files ...backend.File) error {
	const op = "send message"

	text = strings.TrimSpace(text)
	if text == "" {
		return &backend.Error{Kind: backend.KindValidation, Op: op, Message: "message is empty"}
	}

	userMsg := model.NewUserMessage(text)
	placeholder := model.NewAssistantPlaceholder()

	var tag sendTag
	c.update(func() {
		if c.activeID == "" {
			c.activeID = uuid.NewString()
			slog.Debug("started chat on first send", "chat_id", c.activeID)
		}
		tag = sendTag{chatID: c.activeID, gen: c.gen}
		userMsg.ChatID = tag.chatID
		placeholder.ChatID = tag.chatID
		baseline := len(c.confirmed)
		c.pending = append(c.pending,
			&pendingEntry{msg: userMsg, tag: tag, baseline: baseline},
			&pendingEntry{msg: placeholder, tag: tag, baseline: baseline},
		)
		c.sending++
		c.err = nil
	})

	ctx, cancel := context.WithTimeout(ctx, c.opts.SendTimeout)
	defer cancel()

	req := wire.ChatRequest{Message: text, ChatID: tag.chatID}
	var (
		reply string
		err   error
	)
	if len(files) > 0 {
		reply, err = c.backend.SendWithFiles(ctx, req, files)
	} else {
		reply, err = c.backend.StreamMessage(ctx, req, func(full string) {
			c.patch(tag, placeholder.ID, full)
		})
	}
	if err == nil && strings.TrimSpace(reply) == "" {
		err = &backend.Error{Kind: backend.KindServerError, Message: "empty reply"}
	}
	if err != nil {
		be := backend.Classify(op, err)
		c.rollback(tag, userMsg.ID, placeholder.ID, be)
		return be
	}

	c.settle(tag, userMsg, placeholder.ID, reply)
	return nil
}

// patch replaces the placeholder content with the text received so far.
func (c *Controller) patch(tag sendTag, id, full string) {
	c.mutate(func() bool {
		if !c.current(tag) {
			return false
		}
		entry := c.pendingByIDLocked(id)
		if entry == nil {
			return false
		}
		entry.msg.SetStreamContent(full)
		return true
	})
}

// settle finalizes the placeholder and records both messages in the chat
// list. The chat list is updated even when the tag is stale, since the
// server has the exchange regardless of what is on screen.
func (c *Controller) settle(tag sendTag, userMsg *model.Message, id, reply string) {
	c.update(func() {
		c.sending--

		assistant := &model.Message{
			ID:        id,
			Role:      model.RoleAssistant,
			Content:   reply,
			Timestamp: c.opts.Now(),
			ChatID:    tag.chatID,
		}
		if c.current(tag) {
			for _, p := range c.pending {
				if p.tag != tag {
					continue
				}
				if p.msg.ID == id {
					p.msg.Content = reply
					p.msg.FinalizeStream()
					assistant = p.msg
				}
				if p.msg.ID == id || p.msg.ID == userMsg.ID {
					p.settled = true
				}
			}
		}

		c.upsertChatLocked(tag.chatID, userMsg.Clone(), assistant.Clone())
	})
	slog.Debug("send settled", "chat_id", tag.chatID, "reply_len", len(reply))
}

// rollback removes the placeholder and keeps the user message, settled so
// a later fetch that holds it replaces the local copy. The error is shown
// even when the tag is stale.
func (c *Controller) rollback(tag sendTag, userID, id string, be *backend.Error) {
	c.update(func() {
		c.sending--
		c.err = be
		if !c.current(tag) {
			return
		}
		kept := c.pending[:0]
		for _, p := range c.pending {
			if p.msg.ID == id {
				continue
			}
			if p.msg.ID == userID {
				p.settled = true
			}
			kept = append(kept, p)
		}
		c.pending = kept
	})
	slog.Warn("send failed", "chat_id", tag.chatID, "kind", be.Kind, "error", be)
}

func (c *Controller) pendingByIDLocked(id string) *pendingEntry {
	for _, p := range c.pending {
		if p.msg.ID == id {
			return p
		}
	}
	return nil
}

// upsertChatLocked appends an exchange to a chat, creating the chat when
// it is not listed yet.
func (c *Controller) upsertChatLocked(chatID string, msgs ...*model.Message) {
	ch := c.chatLocked(chatID)
	if ch == nil {
		ch = model.NewChatWithID(chatID)
		ch.CreatedAt = c.opts.Now()
		c.chats = append(c.chats, ch)
		c.localOnly[chatID] = true
	}
	for _, m := range msgs {
		ch.AddMessage(m)
	}
	ch.UpdatedAt = c.opts.Now()
}
