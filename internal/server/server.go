// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jeranaias/chatsync/internal/config"
	"github.com/jeranaias/chatsync/internal/llm"
	"github.com/jeranaias/chatsync/internal/model"
)

// ============================================================================
// Constants
// ============================================================================

const (
	// Version is reported by /health.
	Version = "0.3.0"

	// MaxRequestBodySize bounds JSON request bodies.
	MaxRequestBodySize = 1 << 20

	// MaxMessageLength bounds a single prompt, in bytes.
	MaxMessageLength = 100_000

	shutdownGrace = 10 * time.Second
)

// ============================================================================
// Server
// ============================================================================

// Store is the persistence the server needs.
type Store interface {
	ListChats(ctx context.Context, userID string) ([]*model.Chat, error)
	GetChat(ctx context.Context, userID, chatID string) (*model.Chat, error)
	EnsureChat(ctx context.Context, userID, chatID, title string) (*model.Chat, bool, error)
	AppendMessage(ctx context.Context, userID string, msg *model.Message) error
	DeleteChat(ctx context.Context, userID, chatID string) error
	ClearHistory(ctx context.Context, userID string) (int64, error)
	Ping(ctx context.Context) error
}

// Server serves the chat API.
type Server struct {
	cfg     config.ServerConfig
	store   Store
	gen     llm.Generator
	auth    *TokenVerifier
	limiter *RateLimiter
	handler http.Handler
}

// New builds a server. cfg.Tokens must hold at least one token:user entry.
func New(cfg config.ServerConfig, store Store, gen llm.Generator) (*Server, error) {
	auth, err := NewTokenVerifier(cfg.Tokens)
	if err != nil {
		return nil, err
	}
	if auth.Len() == 0 {
		slog.Warn("no tokens configured, every API request will be rejected")
	}

	s := &Server{
		cfg:   cfg,
		store: store,
		gen:   gen,
		auth:  auth,
	}
	if cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit, max(cfg.RateBurst, 1))
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Chat-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware)
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	r.Get("/health", RestHandler(s.health))

	r.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(RateLimitMiddleware(s.limiter))
		}
		r.Use(AuthMiddleware(s.auth))

		r.Get("/history", RestHandler(s.getHistory))
		r.Delete("/history", RestHandler(s.clearHistory))
		r.Post("/chat", s.postChat)
		r.Post("/chats", RestHandler(s.createChat))
		r.Delete("/chats/{chat_id}", RestHandler(s.deleteChat))
	})

	return r
}

// Run serves on cfg.Addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.cfg.Addr, "model", s.gen.Name())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
