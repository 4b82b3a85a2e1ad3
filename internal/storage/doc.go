// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chats and messages for the chat server.
//
// Two drivers are supported through sqlx: the pure Go SQLite driver for
// single-host installs and tests, and lib/pq for Postgres.
//
// # Schema
//
//	chats(id, user_id, title, created_at, updated_at)
//	messages(id, chat_id -> chats.id ON DELETE CASCADE, role, content, created_at)
//
// Every query is scoped to a user. A chat owned by someone else is reported
// as ErrChatNotFound.
//
// # Usage
//
//	store, err := storage.Open(cfg.Storage)
//	if err := store.Migrate(ctx); err != nil { ... }
//	chats, err := store.ListChats(ctx, userID)
package storage
