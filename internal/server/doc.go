// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is the chat backend.
//
// Endpoints (all under /api require a bearer token):
//   - GET    /api/history          - chats and flattened messages of the caller
//   - DELETE /api/history          - delete every chat of the caller
//   - POST   /api/chat             - send a message, stream the reply
//   - POST   /api/chats            - create a chat
//   - DELETE /api/chats/{chat_id}  - delete a chat and its messages
//   - GET    /health               - liveness and database status
//
// Replies stream as lines of the form 0:"<json string>". A line starting
// with 3: reports an error after streaming has begun. Errors before that
// are JSON bodies of the form {"error", "code", "details"}.
package server
