// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"strings"
	"time"

	"github.com/jeranaias/chatsync/internal/model"
)

// Echo replies with the user's own words, one word per chunk.
type Echo struct {
	// Delay is slept between chunks so streaming is visible.
	Delay time.Duration
}

// NewEcho returns an echo generator without delay.
func NewEcho() *Echo {
	return &Echo{}
}

// Name implements Generator.
func (e *Echo) Name() string {
	return "echo"
}

// Generate implements Generator.
func (e *Echo) Generate(ctx context.Context, history []*model.Message, onChunk func(string) error) (string, error) {
	var prompt string
	for i := len(history) - 1; i >= 0; i-- {
		if m := history[i]; m != nil && m.Role == model.RoleUser {
			prompt = m.Content
			break
		}
	}
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyReply
	}

	words := strings.Fields("You said: " + prompt)
	var sb strings.Builder
	for i, w := range words {
		if i > 0 {
			w = " " + w
		}
		if e.Delay > 0 && i > 0 {
			select {
			case <-ctx.Done():
				return sb.String(), ctx.Err()
			case <-time.After(e.Delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return sb.String(), err
		}
		sb.WriteString(w)
		if onChunk != nil {
			if err := onChunk(w); err != nil {
				return sb.String(), err
			}
		}
	}
	return sb.String(), nil
}
