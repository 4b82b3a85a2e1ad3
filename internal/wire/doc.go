// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire defines the JSON contract between the chatsync client and
// server: request and response bodies, error codes, and the line-oriented
// stream format used by POST /api/chat.
//
// A streamed reply is a sequence of lines, each a one-character part type,
// a colon and a JSON value:
//
//	0:"Hello"
//	0:", world"
//	3:"model quota exceeded"
//
// Type 0 carries a text delta; type 3 carries an error that ends the stream.
package wire
