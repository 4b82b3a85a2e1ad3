// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat keeps a local transcript consistent with server history.
//
// The Controller owns the chat list, the confirmed messages of the active
// chat and a pending buffer of optimistic sends. Every mutation happens
// under one mutex; network calls happen outside it. Observers receive
// immutable Snapshots through OnChange.
//
// # Operations
//
//   - Fetch: single-flight history load bounded by a timeout. A timeout
//     keeps what is on screen; any other failure clears it.
//   - Send: appends the user message and an empty assistant placeholder
//     before dispatch, patches the placeholder as the reply streams in,
//     and removes it again on failure.
//   - Select, NewChat: switch the active chat. Each switch bumps a
//     generation counter so late patches from an earlier chat are dropped.
//   - Guard: filters messages down to what the renderer can show.
//
// # Usage
//
//	ctrl := chat.New(client, sess, chat.Options{})
//	defer ctrl.Close()
//	ctrl.OnChange(func(s chat.Snapshot) { program.Send(s) })
//	if err := ctrl.Fetch(ctx); err != nil { ... }
//	ctrl.Send(ctx, "Hello!")
package chat
