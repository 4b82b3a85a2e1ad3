// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the HTTP client for a chatsync server.
//
// Every call authenticates with the bearer token of an explicit
// session.Session and fails with KindNoToken, before any network traffic,
// when the session has none. Failures are returned as *Error values whose
// Kind drives what the user sees:
//
//	_, err := client.FetchHistory(ctx)
//	if errors.Is(err, backend.ErrTimeout) {
//	    // keep showing what we have
//	}
//	if backend.KindOf(err).ShouldRelogin() {
//	    // send the user to `chatsync login`
//	}
package backend
