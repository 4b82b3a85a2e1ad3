// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import chatctl "github.com/jeranaias/chatsync/internal/chat"

// SnapshotMsg delivers controller state. Older snapshots than the one
// shown are ignored.
type SnapshotMsg struct {
	Snapshot chatctl.Snapshot
}

// opDoneMsg reports the end of a background operation. Controller
// failures also show up in the next snapshot; err is kept for failures
// the controller never saw, such as an unreadable attachment.
type opDoneMsg struct {
	op  string
	err error
}
