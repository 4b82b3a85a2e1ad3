// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an atomic write produces.
const DefaultDebounce = 150 * time.Millisecond

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// Watcher reloads a Session whenever its backing file changes, so a login
// or logout in another terminal takes effect immediately.
type Watcher struct {
	store    *FileStore
	sess     *Session
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher watches the directory holding the store's file. The directory
// is watched rather than the file because atomic writes replace the inode.
func NewWatcher(store *FileStore, sess *Session, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	dir := filepath.Dir(store.Path())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{store: store, sess: sess, debounce: debounce, watcher: fw}, nil
}

// Run processes events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.store.Path() {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("session watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	creds, err := w.store.Load()
	if err != nil {
		slog.Warn("session file changed but could not be read", "path", w.store.Path(), "error", err)
		return
	}
	before := w.sess.Fingerprint()
	w.sess.Set(creds)
	slog.Info("session reloaded", "path", w.store.Path(), "before", before, "after", Fingerprint(creds.Token))
}
