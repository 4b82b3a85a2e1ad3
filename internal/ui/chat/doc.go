// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea chat view for chatsync.

The view never owns chat state. It drives a Controller (normally
*chat.Controller from internal/chat) and renders the Snapshots it publishes.
Snapshots reach the program as SnapshotMsg values; Run wires that up.

# Layout

	header       user, active chat title, sync source
	error banner only while an error is visible
	chat list    sidebar on wide terminals or when focused (Tab)
	transcript   scrollable viewport of guarded display items
	input        single-line prompt
	status bar   spinner, counts, key hints

# Keys

	Enter      send the message
	Tab        focus the chat list, Enter there selects a chat
	Ctrl+N     start a new chat
	Ctrl+R     retry loading history
	Esc        dismiss the error banner
	F1         toggle full help
	Ctrl+C     quit

# Commands

Lines starting with "/" are commands: /new, /delete, /clear, /retry,
/attach PATH MESSAGE, /help and /quit.
*/
package chat
