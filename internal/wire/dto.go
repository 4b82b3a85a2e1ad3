// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

import (
	"encoding/json"

	"github.com/jeranaias/chatsync/internal/model"
)

// History sources reported by GET /api/history.
const (
	SourceDatabase = "database"
	SourceEmpty    = "empty"
)

// Multipart form fields accepted by POST /api/chat.
const (
	FormMessage = "message"
	FormChatID  = "chatId"
	FormFiles   = "files"
)

// HistoryResponse is the server-side body of GET /api/history.
type HistoryResponse struct {
	Messages []*model.Message `json:"messages"`
	Chats    []*model.Chat    `json:"chats"`
	UserID   string           `json:"userId"`
	Source   string           `json:"source"`
	Message  string           `json:"message,omitempty"`
}

// RawHistoryResponse is the client-side view of GET /api/history. The
// arrays stay undecoded so that the normalizer can accept any shape.
type RawHistoryResponse struct {
	Messages json.RawMessage `json:"messages"`
	Chats    json.RawMessage `json:"chats"`
	UserID   string          `json:"userId"`
	Source   string          `json:"source"`
	Message  string          `json:"message,omitempty"`
}

// ChatRequest is the JSON body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
	ChatID  string `json:"chatId,omitempty"`
}

// CreateChatRequest is the body of POST /api/chats.
type CreateChatRequest struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
}

// CreateChatResponse is returned by POST /api/chats.
type CreateChatResponse struct {
	Chat *model.Chat `json:"chat"`
}

// DeleteResponse is returned by DELETE /api/chats/{id} and DELETE /api/history.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Deleted int64  `json:"deleted,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Database string `json:"database,omitempty"`
	Model    string `json:"model,omitempty"`
}
