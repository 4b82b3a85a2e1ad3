// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/chatsync/internal/backend"
	"github.com/jeranaias/chatsync/internal/model"
	"github.com/jeranaias/chatsync/internal/session"
	"github.com/jeranaias/chatsync/internal/wire"
)

// Default timeouts.
const (
	DefaultFetchTimeout   = 5 * time.Second
	DefaultSendTimeout    = 60 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// =============================================================================
// BACKEND INTERFACE
// =============================================================================

// Backend is the subset of the backend client the controller uses.
type Backend interface {
	FetchHistory(ctx context.Context) (*wire.RawHistoryResponse, error)
	StreamMessage(ctx context.Context, req wire.ChatRequest, onText func(full string)) (string, error)
	SendWithFiles(ctx context.Context, req wire.ChatRequest, files []backend.File) (string, error)
	CreateChat(ctx context.Context, req wire.CreateChatRequest) (*model.Chat, error)
	DeleteChat(ctx context.Context, chatID string) (*wire.DeleteResponse, error)
	ClearHistory(ctx context.Context) (*wire.DeleteResponse, error)
}

// Options configures a Controller.
type Options struct {
	FetchTimeout   time.Duration
	SendTimeout    time.Duration
	RequestTimeout time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// =============================================================================
// CONTROLLER
// =============================================================================

// pendingEntry is one optimistic message. settled is set once the send
// that produced it has finished, successfully or not. baseline is the
// length of the confirmed transcript when the entry was queued; only
// confirmed messages past it can stand in for the entry.
type pendingEntry struct {
	msg      *model.Message
	tag      sendTag
	settled  bool
	baseline int
}

// sendTag identifies the chat context a send was dispatched in.
type sendTag struct {
	chatID string
	gen    uint64
}

// Controller reconciles optimistic local state with server history.
type Controller struct {
	backend Backend
	sess    *session.Session
	opts    Options
	group   singleflight.Group

	mu        sync.Mutex
	chats     []*model.Chat
	localOnly map[string]bool
	confirmed []*model.Message
	pending   []*pendingEntry
	activeID  string
	gen       uint64
	epoch     uint64 // bumped on identity change only
	seq       uint64
	loading   bool
	sending   int
	err       *backend.Error
	source    string
	lastFetch time.Time
	listeners []func(Snapshot)
	closed    bool

	wg sync.WaitGroup
}

// New creates a controller. A change of session identity resets all state.
func New(b Backend, sess *session.Session, opts Options) *Controller {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Controller{
		backend:   b,
		sess:      sess,
		opts:      opts,
		chats:     make([]*model.Chat, 0),
		localOnly: make(map[string]bool),
		confirmed: make([]*model.Message, 0),
	}
	sess.OnChange(func(session.Credentials) {
		c.reset()
	})
	return c
}

// OnChange registers fn to receive a snapshot after every state change.
// Snapshots may arrive out of order from concurrent operations; compare
// Seq to discard stale ones.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// ActiveChatID returns the active chat, or "".
func (c *Controller) ActiveChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// ClearError dismisses the visible error.
func (c *Controller) ClearError() {
	c.update(func() { c.err = nil })
}

// Close waits for background chat registrations to finish.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wg.Wait()
}

// reset drops everything tied to the previous identity.
func (c *Controller) reset() {
	c.update(func() {
		c.gen++
		c.epoch++
		c.loading = false
		c.activeID = ""
		c.chats = make([]*model.Chat, 0)
		c.localOnly = make(map[string]bool)
		c.confirmed = make([]*model.Message, 0)
		c.pending = nil
		c.err = nil
		c.source = ""
	})
	c.group.Forget(historyKey)
	slog.Info("session changed, chat state reset")
}

// update runs fn under the lock and notifies listeners afterwards.
func (c *Controller) update(fn func()) {
	c.mutate(func() bool {
		fn()
		return true
	})
}

// mutate runs fn under the lock and notifies listeners if fn reports a
// change.
func (c *Controller) mutate(fn func() bool) {
	c.mu.Lock()
	if !fn() {
		c.mu.Unlock()
		return
	}
	snap, listeners := c.snapshotLocked(), slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// current reports whether a send tag still matches the active context.
// Caller must hold mu.
func (c *Controller) current(tag sendTag) bool {
	return tag.chatID == c.activeID && tag.gen == c.gen
}

func (c *Controller) chatLocked(id string) *model.Chat {
	for _, ch := range c.chats {
		if ch.ID == id {
			return ch
		}
	}
	return nil
}

func cloneMessages(msgs []*model.Message) []*model.Message {
	out := make([]*model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m != nil {
			out = append(out, m.Clone())
		}
	}
	return out
}
