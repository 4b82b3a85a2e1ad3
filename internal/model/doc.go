// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats and messages.
//
// This package defines the domain types shared by the client controller,
// the backend client and the server, plus the normalizer that turns the
// loosely shaped records found on the wire into canonical values.
//
// # Key Types
//
//   - Chat: a titled container of messages owned by one user
//   - Message: a single user or assistant turn with a stable ID
//   - Record: an undecoded JSON object as received from a server
//   - Role: message role enumeration (user, assistant)
//
// # Normalization
//
// Records may use either naming style for the same field (role or sender,
// content or text, id or _id, timestamp or createdAt). NormalizeMessage and
// NormalizeChat never fail; they fall back to synthesized IDs and the
// current time when a field is missing or unparsable.
//
//	msgs := model.NormalizeMessages(raw, chatID, time.Now())
//	chat := model.NormalizeChat(rec, time.Now())
package model
