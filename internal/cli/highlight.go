// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// highlight.go - Syntax highlighting for fenced code in printed transcripts.

package cli

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// HighlightCodeBlocks highlights the body of every ``` fenced block in
// text. Fences are kept so the output still reads as markdown. An unclosed
// block is highlighted to the end of the text.
func HighlightCodeBlocks(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}

	var (
		out      []string
		code     []string
		language string
		inBlock  bool
	)
	flush := func() {
		out = append(out, strings.TrimRight(highlightCode(strings.Join(code, "\n"), language), "\n"))
		code = nil
	}

	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "```") && inBlock:
			flush()
			out = append(out, line)
			inBlock = false
		case strings.HasPrefix(line, "```"):
			language = strings.TrimSpace(strings.TrimPrefix(line, "```"))
			out = append(out, line)
			inBlock = true
		case inBlock:
			code = append(code, line)
		default:
			out = append(out, line)
		}
	}
	if inBlock && len(code) > 0 {
		flush()
	}
	return strings.Join(out, "\n")
}

// highlightCode renders code with ANSI colors, or returns it unchanged if
// tokenizing fails.
func highlightCode(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}
