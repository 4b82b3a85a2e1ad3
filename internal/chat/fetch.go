// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/jeranaias/chatsync/internal/backend"
	"github.com/jeranaias/chatsync/internal/model"
)

const historyKey = "history"

// =============================================================================
// HISTORY FETCH
// =============================================================================

// Fetch loads chat history. Concurrent calls share one network request and
// its result. The request runs under the fetch timeout regardless of ctx;
// ctx only bounds how long this caller waits for it.
func (c *Controller) Fetch(ctx context.Context) error {
	ch := c.group.DoChan(historyKey, func() (any, error) {
		return nil, c.fetchOnce()
	})

	select {
	case res := <-ch:
		if res.Shared {
			slog.Debug("history fetch shared with in-flight request")
		}
		return res.Err
	case <-ctx.Done():
		return backend.Classify("fetch history", ctx.Err())
	}
}

// Retry fetches again after a failure. A fetch already in flight is
// joined rather than duplicated.
func (c *Controller) Retry(ctx context.Context) error {
	return c.Fetch(ctx)
}

// errSessionChanged reports a fetch whose result belonged to a previous
// identity and was discarded.
func errSessionChanged(op string) *backend.Error {
	return &backend.Error{Kind: backend.KindCanceled, Op: op, Message: "session changed"}
}

func (c *Controller) fetchOnce() error {
	const op = "fetch history"

	if _, err := c.sess.Token(); err != nil {
		be := backend.Classify(op, err)
		c.update(func() {
			c.clearDataLocked()
			c.err = be
		})
		return be
	}

	var epoch uint64
	c.update(func() {
		c.loading = true
		epoch = c.epoch
	})

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.FetchTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.backend.FetchHistory(ctx)
	if err != nil {
		be := backend.Classify(op, err)
		stale := false
		c.mutate(func() bool {
			if c.epoch != epoch {
				stale = true
				return false
			}
			c.loading = false
			c.err = be
			if be.Kind != backend.KindTimeout {
				c.clearDataLocked()
			}
			return true
		})
		if stale {
			slog.Debug("dropped history failure from previous session", "error", err)
			return errSessionChanged(op)
		}
		slog.Warn("history fetch failed",
			"kind", be.Kind,
			"elapsed", time.Since(start),
			"error", err,
		)
		return be
	}

	hist := model.NormalizeHistory(resp.Chats, resp.Messages, c.opts.Now())
	stale := false
	c.mutate(func() bool {
		if c.epoch != epoch {
			stale = true
			return false
		}
		c.loading = false
		c.applyHistoryLocked(hist, resp.Source)
		return true
	})
	if stale {
		slog.Debug("dropped history from previous session", "chats", len(hist.Chats))
		return errSessionChanged(op)
	}
	slog.Debug("history fetched",
		"chats", len(hist.Chats),
		"messages", len(hist.Messages),
		"source", resp.Source,
		"elapsed", time.Since(start),
	)
	return nil
}

// clearDataLocked drops every loaded chat and message. The active chat id
// survives so the next send continues the same conversation.
func (c *Controller) clearDataLocked() {
	c.gen++
	c.chats = make([]*model.Chat, 0)
	c.confirmed = make([]*model.Message, 0)
	c.pending = nil
	for id := range c.localOnly {
		delete(c.localOnly, id)
	}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// applyHistoryLocked replaces local state with a server copy. Chats created
// locally but not yet known to the server stay in the list.
func (c *Controller) applyHistoryLocked(h model.History, source string) {
	chats := make([]*model.Chat, 0, len(h.Chats)+len(c.localOnly))
	chats = append(chats, h.Chats...)
	for _, ch := range h.Chats {
		delete(c.localOnly, ch.ID)
	}
	for _, ch := range c.chats {
		if c.localOnly[ch.ID] {
			chats = append(chats, ch)
		}
	}

	c.chats = chats
	c.source = source
	c.lastFetch = c.opts.Now()
	c.err = nil

	if c.activeID == "" {
		return
	}

	switch server := h.ChatByID(c.activeID); {
	case server != nil:
		c.confirmed = cloneMessages(server.Messages)
	case c.localOnly[c.activeID]:
		// Not persisted yet; keep what we have.
	default:
		c.confirmed = make([]*model.Message, 0)
	}
	c.pending = reconcilePending(c.pending, c.confirmed)
}

type messageKey struct {
	role    model.Role
	content string
}

// reconcilePending drops entries the server now holds. Each entry claims
// at most one confirmed message with the same role and content, found past
// the entry's baseline. User messages are stored before the reply is
// generated, so they match while in flight and after a failed send. The
// assistant placeholder only matches once settled.
func reconcilePending(pending []*pendingEntry, confirmed []*model.Message) []*pendingEntry {
	if len(pending) == 0 {
		return pending
	}

	claimed := make([]bool, len(confirmed))
	kept := pending[:0:0]
	for _, p := range pending {
		if !p.settled && p.msg.Role != model.RoleUser {
			kept = append(kept, p)
			continue
		}
		key := messageKey{p.msg.Role, p.msg.Content}
		match := -1
		for i := p.baseline; i < len(confirmed); i++ {
			if !claimed[i] && (messageKey{confirmed[i].Role, confirmed[i].Content}) == key {
				match = i
				break
			}
		}
		if match < 0 {
			kept = append(kept, p)
			continue
		}
		claimed[match] = true
	}
	return kept
}
