// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the chatsync command line.
//
// Parse turns os.Args into a Command and Args; Run dispatches to the
// handler for that command. Handlers return errors rather than printing
// them, and main maps them to exit codes with GetExitCode.
//
// Commands:
//
//	tui       Full-screen chat (default)
//	chat      Line-based chat with input history
//	history   List, show, delete, or clear server-side chats
//	login     Save a bearer token
//	logout    Remove the saved token
//	serve     Run the chat backend
//	version   Show version information
package cli
