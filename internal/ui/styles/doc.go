// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the chatsync TUI.

All colors use Lip Gloss AdaptiveColor so that one palette serves light and
dark terminals. The Theme struct holds the composed styles:

	theme := styles.NewTheme("auto")
	theme.SetSize(width, height)
	if theme.GetLayoutMode() == styles.LayoutWide {
		// room for the chat list sidebar
	}

Status colors always come with a text marker from StatusIndicators, so no
state is conveyed by color alone.
*/
package styles
