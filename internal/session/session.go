// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrNoToken is returned when an operation needs a token and none is set.
var ErrNoToken = errors.New("no session token")

// =============================================================================
// CREDENTIALS
// =============================================================================

// Credentials is the persisted identity.
type Credentials struct {
	Token   string    `json:"token"`
	UserID  string    `json:"userId,omitempty"`
	SavedAt time.Time `json:"savedAt"`
}

// Empty reports whether no token is present.
func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.Token) == ""
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the identity of the current caller. It is safe for concurrent
// use.
type Session struct {
	mu       sync.RWMutex
	creds    Credentials
	onChange []func(Credentials)
}

// New creates a session holding the given credentials.
func New(token, userID string) *Session {
	return &Session{creds: Credentials{Token: strings.TrimSpace(token), UserID: userID}}
}

// Token returns the bearer token, or ErrNoToken.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds.Empty() {
		return "", ErrNoToken
	}
	return s.creds.Token, nil
}

// UserID returns the user ID the token belongs to, if known.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.UserID
}

// Credentials returns a copy of the current credentials.
func (s *Session) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.creds.Empty()
}

// Set replaces the credentials and notifies subscribers if they changed.
func (s *Session) Set(creds Credentials) {
	creds.Token = strings.TrimSpace(creds.Token)

	s.mu.Lock()
	changed := creds.Token != s.creds.Token || creds.UserID != s.creds.UserID
	s.creds = creds
	subs := append([]func(Credentials){}, s.onChange...)
	s.mu.Unlock()

	if changed {
		for _, fn := range subs {
			fn(creds)
		}
	}
}

// Clear drops the credentials.
func (s *Session) Clear() {
	s.Set(Credentials{})
}

// UpdateUserID records the user ID reported by the server without
// touching the token.
func (s *Session) UpdateUserID(userID string) {
	if userID == "" {
		return
	}
	s.mu.Lock()
	s.creds.UserID = userID
	s.mu.Unlock()
}

// OnChange registers fn to run after the token or user changes. Callbacks
// run on the goroutine that made the change.
func (s *Session) OnChange(fn func(Credentials)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Fingerprint returns a short, non-reversible tag of the token suitable
// for logs.
func (s *Session) Fingerprint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Fingerprint(s.creds.Token)
}

// Fingerprint hashes a token for logging. Empty tokens yield "none".
func Fingerprint(token string) string {
	if token == "" {
		return "none"
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}
