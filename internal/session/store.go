// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/chatsync/internal/util"
)

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore persists credentials as JSON in a single file. With a
// passphrase the file is sealed with AES-256-GCM.
type FileStore struct {
	path       string
	passphrase string
}

// StoreOption configures a FileStore.
type StoreOption func(*FileStore)

// WithPassphrase encrypts the file at rest. An empty passphrase leaves it
// in plain JSON.
func WithPassphrase(passphrase string) StoreOption {
	return func(f *FileStore) {
		f.passphrase = passphrase
	}
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string, opts ...StoreOption) *FileStore {
	f := &FileStore{path: filepath.Clean(path)}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Encrypted reports whether Save seals the file.
func (f *FileStore) Encrypted() bool {
	return f.passphrase != ""
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the stored credentials. A missing file yields empty
// credentials and no error. A plain file is still read when a passphrase
// is set; the next Save seals it.
func (f *FileStore) Load() (Credentials, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Credentials{}, nil
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read session file: %w", err)
	}
	var env sealedFile
	if err := json.Unmarshal(data, &env); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse session file: %w", err)
	}
	if env.Format != "" {
		if f.passphrase == "" {
			return Credentials{}, ErrSealed
		}
		if data, err = unseal(f.passphrase, env); err != nil {
			return Credentials{}, err
		}
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse session file: %w", err)
	}
	return creds, nil
}

// Save writes credentials atomically with owner-only permissions.
func (f *FileStore) Save(creds Credentials) error {
	if creds.SavedAt.IsZero() {
		creds.SavedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if f.passphrase != "" {
		if data, err = seal(f.passphrase, data); err != nil {
			return fmt.Errorf("failed to encrypt session: %w", err)
		}
	}
	if err := util.AtomicWriteFileWithDir(f.path, data, 0o600, 0o700); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	slog.Debug("session saved", "path", f.path, "token", Fingerprint(creds.Token), "encrypted", f.Encrypted())
	return nil
}

// Remove deletes the stored credentials. Removing a missing file is not an
// error.
func (f *FileStore) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// Restore builds a session from the store.
func Restore(store *FileStore) (*Session, error) {
	creds, err := store.Load()
	if err != nil {
		return New("", ""), err
	}
	s := New(creds.Token, creds.UserID)
	return s, nil
}

// Login stores new credentials and applies them to the session.
func Login(store *FileStore, s *Session, token, userID string) error {
	creds := Credentials{Token: token, UserID: userID}
	if creds.Empty() {
		return ErrNoToken
	}
	if err := store.Save(creds); err != nil {
		return err
	}
	s.Set(creds)
	return nil
}

// Logout removes stored credentials and clears the session.
func Logout(store *FileStore, s *Session) error {
	if err := store.Remove(); err != nil {
		return err
	}
	s.Clear()
	return nil
}
