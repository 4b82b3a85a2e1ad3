// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/jeranaias/chatsync/internal/config"
	"github.com/jeranaias/chatsync/internal/model"
)

// ErrUnavailable wraps failures of the underlying model provider.
var ErrUnavailable = errors.New("language model unavailable")

// ErrEmptyReply is returned when the provider produced no text.
var ErrEmptyReply = errors.New("language model returned an empty reply")

// Generator produces an assistant reply for a chat.
type Generator interface {
	// Generate answers the last message in history. onChunk receives each
	// piece of text as it arrives; returning an error from it aborts the
	// generation. The full reply is returned.
	Generate(ctx context.Context, history []*model.Message, onChunk func(chunk string) error) (string, error)

	// Name identifies the provider and model, for health reporting.
	Name() string
}

// New builds the generator selected by cfg.
func New(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "", config.ProviderEcho:
		return NewEcho(), nil

	case config.ProviderOpenAI:
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("could not create OpenAI client: %w", err)
		}
		return NewLangChain(client, "openai/"+cfg.Model, cfg.SystemPrompt, cfg.HistoryTurns), nil

	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		client, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("could not create Ollama client: %w", err)
		}
		return NewLangChain(client, "ollama/"+cfg.Model, cfg.SystemPrompt, cfg.HistoryTurns), nil

	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
