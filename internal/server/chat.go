// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jeranaias/chatsync/internal/model"
	"github.com/jeranaias/chatsync/internal/wire"
)

// persistTimeout bounds saving the reply after the stream has finished.
const persistTimeout = 5 * time.Second

type attachment struct {
	name string
	data []byte
}

type chatInput struct {
	message string
	chatID  string
	files   []attachment
}

// prompt is the message with attached text files appended. Only the bare
// message is stored, so it matches what the client shows.
func (in chatInput) prompt() string {
	if len(in.files) == 0 {
		return in.message
	}
	var sb strings.Builder
	sb.WriteString(in.message)
	for _, f := range in.files {
		sb.WriteString("\n\n")
		if utf8.Valid(f.data) {
			fmt.Fprintf(&sb, "[Attached file: %s]\n%s", f.name, f.data)
		} else {
			fmt.Fprintf(&sb, "[Attached binary file: %s, %d bytes omitted]", f.name, len(f.data))
		}
	}
	return sb.String()
}

// ============================================================================
// POST /api/chat
// ============================================================================

func (s *Server) postChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := UserID(ctx)

	in, err := s.parseChatInput(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	chat, created, err := s.store.EnsureChat(ctx, userID, in.chatID, model.DeriveTitle(in.message))
	if err != nil {
		writeError(w, mapError("open chat", err))
		return
	}
	if created {
		slog.Info("chat created", "chat_id", chat.ID, "user", userID)
	}

	userMsg := model.NewUserMessage(in.message)
	userMsg.ChatID = chat.ID
	if err := s.store.AppendMessage(ctx, userID, userMsg); err != nil {
		writeError(w, mapError("save message", err))
		return
	}

	full, err := s.store.GetChat(ctx, userID, chat.ID)
	if err != nil {
		writeError(w, mapError("load chat", err))
		return
	}
	history := full.Clone().Messages
	if n := len(history); n > 0 && history[n-1].ID == userMsg.ID {
		history[n-1].Content = in.prompt()
	}

	sw := &streamWriter{w: w, chatID: chat.ID}
	reply, err := s.gen.Generate(ctx, history, sw.text)
	if err != nil {
		if !sw.started {
			writeError(w, mapError("generate reply", err))
			return
		}
		slog.Warn("reply stream interrupted", "chat_id", chat.ID, "error", err)
		sw.fail("reply interrupted: " + err.Error())
		return
	}
	if !sw.started {
		// Generators that do not stream still answer through one line.
		if err := sw.text(reply); err != nil {
			return
		}
	}

	assistant := model.NewMessage(model.RoleAssistant, reply)
	assistant.ChatID = chat.ID
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.store.AppendMessage(saveCtx, userID, assistant); err != nil {
		slog.Error("failed to save reply", "chat_id", chat.ID, "error", err)
		sw.fail("reply could not be saved")
	}
}

func (s *Server) parseChatInput(w http.ResponseWriter, r *http.Request) (chatInput, error) {
	var in chatInput

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		limit := max(s.cfg.MaxUploadMB, 1) << 20
		r.Body = http.MaxBytesReader(w, r.Body, limit+MaxRequestBodySize)
		if err := r.ParseMultipartForm(limit); err != nil {
			return in, CodedErrorf(wire.CodeValidation, "unable to parse upload: %v", err)
		}
		in.message = r.FormValue(wire.FormMessage)
		in.chatID = r.FormValue(wire.FormChatID)

		for _, fh := range r.MultipartForm.File[wire.FormFiles] {
			f, err := fh.Open()
			if err != nil {
				return in, CodedErrorf(wire.CodeValidation, "unable to read %s: %v", fh.Filename, err)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return in, CodedErrorf(wire.CodeValidation, "unable to read %s: %v", fh.Filename, err)
			}
			in.files = append(in.files, attachment{name: fh.Filename, data: data})
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
		req, err := ParseRequest[wire.ChatRequest](r)
		if err != nil {
			return in, err
		}
		in.message, in.chatID = req.Message, req.ChatID
	}

	in.message = strings.TrimSpace(in.message)
	in.chatID = strings.TrimSpace(in.chatID)
	switch {
	case in.message == "":
		return in, CodedErrorf(wire.CodeValidation, "message is required")
	case len(in.message) > MaxMessageLength:
		return in, CodedErrorf(wire.CodeValidation, "message exceeds %d bytes", MaxMessageLength)
	case in.chatID == "":
		in.chatID = uuid.NewString()
	case !model.IsValidChatID(in.chatID):
		return in, CodedErrorf(wire.CodeValidation, "invalid chat id %q", in.chatID)
	}
	return in, nil
}

// ============================================================================
// Stream Writer
// ============================================================================

// streamWriter writes reply deltas. Headers go out with the first chunk so
// that a generator failing up front still gets a JSON error response.
type streamWriter struct {
	w       http.ResponseWriter
	chatID  string
	started bool
}

func (sw *streamWriter) start() {
	h := sw.w.Header()
	h.Set("Content-Type", wire.ContentTypeStream)
	h.Set("X-Chat-Id", sw.chatID)
	sw.w.WriteHeader(http.StatusOK)
	sw.started = true
}

func (sw *streamWriter) text(chunk string) error {
	if chunk == "" {
		return nil
	}
	if !sw.started {
		sw.start()
	}
	if err := wire.WriteText(sw.w, chunk); err != nil {
		return fmt.Errorf("write stream: %w", err)
	}
	sw.flush()
	return nil
}

func (sw *streamWriter) fail(message string) {
	if !sw.started {
		sw.start()
	}
	if err := wire.WriteError(sw.w, message); err != nil {
		slog.Debug("failed to write stream error", "error", err)
	}
	sw.flush()
}

func (sw *streamWriter) flush() {
	if f, ok := sw.w.(http.Flusher); ok {
		f.Flush()
	}
}
