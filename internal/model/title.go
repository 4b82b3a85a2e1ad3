// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"regexp"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/chatsync/internal/util"
)

const (
	// TitleMaxRunes is the longest title derived from message text.
	TitleMaxRunes = 35

	// DefaultTitle is used when no text survives title derivation.
	DefaultTitle = "New Chat"
)

// titleStripper removes everything that is not a letter, mark, digit,
// underscore or whitespace. Non-ASCII letters survive.
var titleStripper = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]+`)

// DeriveTitle builds a chat title from the first user message.
//
//	DeriveTitle("Hello!! How's the weather today???") == "Hello Hows the weather today"
func DeriveTitle(text string) string {
	t := norm.NFC.String(text)
	t = titleStripper.ReplaceAllString(t, "")
	t = util.CollapseSpaces(t)
	if t == "" {
		return DefaultTitle
	}
	return util.TruncateAtWord(t, TitleMaxRunes)
}
