// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the caller's identity: a bearer token and the user
// ID it belongs to.
//
// A Session is passed explicitly to everything that talks to the backend;
// there is no package-level token. Credentials persist in a small JSON file
// written atomically with 0600 permissions, sealed with AES-256-GCM when a
// passphrase is configured, and a Watcher reloads the session when another
// process logs in or out.
//
// # Usage
//
//	store := session.NewFileStore(cfg.Client.TokenFile,
//	    session.WithPassphrase(cfg.Client.TokenPassphrase))
//	sess, err := session.Restore(store)
//	if !sess.Authenticated() {
//	    // prompt for `chatsync login`
//	}
//
//	w, _ := session.NewWatcher(store, sess, 0)
//	go w.Run(ctx)
package session
