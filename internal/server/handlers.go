// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jeranaias/chatsync/internal/model"
	"github.com/jeranaias/chatsync/internal/wire"
)

// ============================================================================
// History
// ============================================================================

func (s *Server) getHistory(r *http.Request) (any, error) {
	userID := UserID(r.Context())

	chats, err := s.store.ListChats(r.Context(), userID)
	if err != nil {
		return nil, mapError("list chats", err)
	}

	resp := wire.HistoryResponse{
		Chats:    chats,
		Messages: make([]*model.Message, 0),
		UserID:   userID,
		Source:   wire.SourceDatabase,
	}
	for _, c := range chats {
		resp.Messages = append(resp.Messages, c.Messages...)
	}
	if len(chats) == 0 {
		resp.Source = wire.SourceEmpty
		resp.Message = "no chats yet"
	}
	return resp, nil
}

func (s *Server) clearHistory(r *http.Request) (any, error) {
	n, err := s.store.ClearHistory(r.Context(), UserID(r.Context()))
	if err != nil {
		return nil, mapError("clear history", err)
	}
	return wire.DeleteResponse{Success: true, Message: "history cleared", Deleted: n}, nil
}

// ============================================================================
// Chats
// ============================================================================

func (s *Server) createChat(r *http.Request) (any, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)
	req, err := ParseRequest[wire.CreateChatRequest](r)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	} else if !model.IsValidChatID(id) {
		return nil, CodedErrorf(wire.CodeValidation, "invalid chat id %q", id)
	}

	chat, _, err := s.store.EnsureChat(r.Context(), UserID(r.Context()), id, strings.TrimSpace(req.Title))
	if err != nil {
		return nil, mapError("create chat", err)
	}
	return wire.CreateChatResponse{Chat: chat}, nil
}

func (s *Server) deleteChat(r *http.Request) (any, error) {
	id := chi.URLParam(r, "chat_id")
	if !model.IsValidChatID(id) {
		return nil, CodedErrorf(wire.CodeValidation, "invalid chat id %q", id)
	}
	if err := s.store.DeleteChat(r.Context(), UserID(r.Context()), id); err != nil {
		return nil, mapError("delete chat", err)
	}
	return wire.DeleteResponse{Success: true, Message: "chat deleted"}, nil
}

// ============================================================================
// Health
// ============================================================================

func (s *Server) health(r *http.Request) (any, error) {
	resp := wire.HealthResponse{
		Status:   "ok",
		Version:  Version,
		Database: "ok",
		Model:    s.gen.Name(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "unavailable"
	}
	return resp, nil
}
