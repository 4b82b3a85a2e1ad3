// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small file and string helpers shared by chatsync packages.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateAtWord: word-boundary truncation used for chat titles
//   - TruncateWidth, StringWidth: terminal-cell aware helpers for the TUI
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	title := util.TruncateAtWord(text, 35)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
