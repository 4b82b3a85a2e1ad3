// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/jeranaias/chatsync/internal/model"
)

// LangChain adapts a langchaingo model to Generator.
type LangChain struct {
	llm          llms.Model
	name         string
	systemPrompt string
	historyTurns int
}

// NewLangChain wraps m. historyTurns limits how many trailing messages are
// sent; zero or less sends all of them.
func NewLangChain(m llms.Model, name, systemPrompt string, historyTurns int) *LangChain {
	return &LangChain{
		llm:          m,
		name:         name,
		systemPrompt: systemPrompt,
		historyTurns: historyTurns,
	}
}

// Name implements Generator.
func (l *LangChain) Name() string {
	return l.name
}

// Generate implements Generator.
func (l *LangChain) Generate(ctx context.Context, history []*model.Message, onChunk func(string) error) (string, error) {
	msgs := l.buildMessages(history)
	if len(msgs) == 0 || msgs[len(msgs)-1].Role != llms.ChatMessageTypeHuman {
		return "", errors.New("history must end with a user message")
	}

	var sb strings.Builder
	stream := llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		sb.Write(chunk)
		if onChunk == nil {
			return nil
		}
		return onChunk(string(chunk))
	})

	start := time.Now()
	resp, err := l.llm.GenerateContent(ctx, msgs, stream)
	if err != nil {
		if ctx.Err() != nil {
			return sb.String(), ctx.Err()
		}
		slog.Warn("llm generation failed", "model", l.name, "error", err)
		return sb.String(), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	reply := sb.String()
	if reply == "" && resp != nil && len(resp.Choices) > 0 {
		reply = resp.Choices[0].Content
		if onChunk != nil && reply != "" {
			if err := onChunk(reply); err != nil {
				return reply, err
			}
		}
	}
	if strings.TrimSpace(reply) == "" {
		return "", ErrEmptyReply
	}

	slog.Debug("llm reply generated",
		"model", l.name,
		"messages", len(msgs),
		"reply_len", len(reply),
		"elapsed", time.Since(start),
	)
	return reply, nil
}

// buildMessages converts chat history into provider messages, prefixed by
// the system prompt. Empty messages are skipped.
func (l *LangChain) buildMessages(history []*model.Message) []llms.MessageContent {
	if l.historyTurns > 0 && len(history) > l.historyTurns {
		history = history[len(history)-l.historyTurns:]
	}

	out := make([]llms.MessageContent, 0, len(history)+1)
	if l.systemPrompt != "" {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, l.systemPrompt))
	}
	for _, m := range history {
		if m == nil || m.IsEmpty() {
			continue
		}
		role := llms.ChatMessageTypeHuman
		if m.Role == model.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}
