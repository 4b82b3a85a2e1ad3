// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatsync/internal/session"
	"github.com/jeranaias/chatsync/internal/wire"
)

func newTestClient(t *testing.T, h http.Handler, token string) (*Client, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, RequestTimeout: 2 * time.Second}, session.New(token, "")), &hits
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// HISTORY
// =============================================================================

func TestFetchHistory_Success(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/history", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"messages":[{"id":"m1"}],"chats":[{"_id":"c1"}],"userId":"u1","source":"database"}`)
	}), "tok")

	h, err := c.FetchHistory(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"m1"}]`, string(h.Messages))
	assert.JSONEq(t, `[{"_id":"c1"}]`, string(h.Chats))
	assert.Equal(t, "database", h.Source)
	assert.Equal(t, "u1", c.Session().UserID())
}

func TestFetchHistory_NoTokenMakesNoRequest(t *testing.T) {
	c, hits := newTestClient(t, http.NotFoundHandler(), "")
	_, err := c.FetchHistory(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoToken)
	assert.ErrorIs(t, err, session.ErrNoToken)
	assert.True(t, KindOf(err).ShouldRelogin())
	assert.Equal(t, int32(0), hits.Load())
}

func TestFetchHistory_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"unauthorized code", 401, `{"error":"bad token","code":"UNAUTHORIZED"}`, KindUnauthorized},
		{"no token code", 401, `{"error":"missing","code":"NO_TOKEN"}`, KindNoToken},
		{"table not found code", 503, `{"error":"db","code":"TABLE_NOT_FOUND"}`, KindTableNotFound},
		{"service unavailable", 503, `{"error":"down","code":"SERVICE_UNAVAILABLE"}`, KindServiceUnavailable},
		{"missing table text", 500, `{"error":"pq: relation \"chats\" does not exist"}`, KindTableNotFound},
		{"plain 500", 500, `oops`, KindServerError},
		{"plain 403", 403, ``, KindUnauthorized},
		{"gateway timeout", 504, ``, KindTimeout},
		{"validation", 400, `{"error":"bad","code":"VALIDATION_ERROR","details":"message required"}`, KindValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}), "tok")
			_, err := c.FetchHistory(context.Background())
			var be *Error
			require.True(t, errors.As(err, &be), "err = %v", err)
			assert.Equal(t, tc.want, be.Kind)
			assert.Equal(t, tc.status, be.Status)
			assert.NotEmpty(t, be.UserMessage())
		})
	}
}

func TestFetchHistory_Timeout(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), "tok")
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.FetchHistory(ctx)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, KindOf(err).Retryable())
}

func TestFetchHistory_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := New(Options{BaseURL: "http://" + addr}, session.New("tok", ""))
	_, err = c.FetchHistory(context.Background())
	assert.ErrorIs(t, err, ErrNetworkUnreachable)
}

func TestFetchHistory_MalformedBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"messages":`)
	}), "tok")
	_, err := c.FetchHistory(context.Background())
	assert.ErrorIs(t, err, ErrServerError)
}

// =============================================================================
// SENDING
// =============================================================================

func TestStreamMessage(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wire.ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hi", req.Message)
		assert.Equal(t, "c1", req.ChatID)

		f := w.(http.Flusher)
		for _, d := range []string{"Hel", "lo"} {
			_ = wire.WriteText(w, d)
			f.Flush()
		}
	}), "tok")

	var seen []string
	text, err := c.StreamMessage(context.Background(), wire.ChatRequest{Message: "hi", ChatID: "c1"}, func(s string) {
		seen = append(seen, s)
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
	assert.Equal(t, []string{"Hel", "Hello"}, seen)
}

func TestStreamMessage_ErrorPart(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = wire.WriteText(w, "partial")
		_ = wire.WriteError(w, "model overloaded")
	}), "tok")

	text, err := c.StreamMessage(context.Background(), wire.ChatRequest{Message: "hi"}, nil)
	assert.Equal(t, "partial", text)
	assert.ErrorIs(t, err, ErrServerError)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestStreamMessage_HTTPError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, wire.ErrorBody{Error: "message is required", Code: wire.CodeValidation})
	}), "tok")

	_, err := c.StreamMessage(context.Background(), wire.ChatRequest{}, nil)
	var be *Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, KindValidation, be.Kind)
	assert.Equal(t, "message is required", be.Message)
}

func TestSendWithFiles(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "see attached", r.FormValue(wire.FormMessage))
		assert.Equal(t, "c2", r.FormValue(wire.FormChatID))
		files := r.MultipartForm.File[wire.FormFiles]
		if assert.Len(t, files, 2) {
			assert.Equal(t, "a.txt", files[0].Filename)
		}

		_ = wire.WriteText(w, "got ")
		_ = wire.WriteText(w, "2 files")
	}), "tok")

	text, err := c.SendWithFiles(context.Background(), wire.ChatRequest{Message: "see attached", ChatID: "c2"}, []File{
		{Name: "a.txt", Reader: strings.NewReader("aaa")},
		{Name: "b.txt", Reader: strings.NewReader("bbb")},
	})
	require.NoError(t, err)
	assert.Equal(t, "got 2 files", text)
}

// =============================================================================
// CHATS
// =============================================================================

func TestCreateChat(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chats", r.URL.Path)
		var req wire.CreateChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusCreated, map[string]any{"chat": map[string]any{"_id": req.ID, "title": req.Title}})
	}), "tok")

	chat, err := c.CreateChat(context.Background(), wire.CreateChatRequest{ID: "c9", Title: "Plans"})
	require.NoError(t, err)
	assert.Equal(t, "c9", chat.ID)
	assert.Equal(t, "Plans", chat.Title)
	assert.NotNil(t, chat.Messages)
}

func TestDeleteChat(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Path != "/api/chats/c1" {
			writeJSON(w, http.StatusNotFound, wire.ErrorBody{Error: "chat not found", Code: wire.CodeNotFound})
			return
		}
		writeJSON(w, http.StatusOK, wire.DeleteResponse{Success: true, Message: "Chat deleted"})
	}), "tok")

	res, err := c.DeleteChat(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = c.DeleteChat(context.Background(), "other")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.DeleteChat(context.Background(), " ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestClearHistory(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/history", r.URL.Path)
		writeJSON(w, http.StatusOK, wire.DeleteResponse{Success: true, Message: "History cleared", Deleted: 3})
	}), "tok")

	res, err := c.ClearHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Deleted)
}

func TestHealth_NoAuthNeeded(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, wire.HealthResponse{Status: "ok"})
	}), "")

	res, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Status)
}

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

func TestKindPredicates(t *testing.T) {
	kinds := []Kind{
		KindNoToken, KindTimeout, KindNetworkUnreachable, KindUnauthorized,
		KindServiceUnavailable, KindTableNotFound, KindServerError,
		KindValidation, KindNotFound, KindCanceled, KindUnknown,
	}
	messages := make(map[string]Kind)
	for _, k := range kinds {
		msg := k.UserMessage()
		if prev, dup := messages[msg]; dup {
			t.Errorf("kinds %s and %s share a user message", prev, k)
		}
		messages[msg] = k
	}

	assert.True(t, KindNoToken.ShouldRelogin())
	assert.True(t, KindUnauthorized.ShouldRelogin())
	assert.False(t, KindTimeout.ShouldRelogin())
	assert.True(t, KindTimeout.Retryable())
	assert.False(t, KindValidation.Retryable())
}

func TestKindOf_Transport(t *testing.T) {
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindCanceled, KindOf(context.Canceled))
	assert.Equal(t, KindNoToken, KindOf(session.ErrNoToken))
	assert.Equal(t, KindUnknown, KindOf(errors.New("weird")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestClassify_KeepsOp(t *testing.T) {
	err := Classify("fetch history", context.DeadlineExceeded)
	assert.Equal(t, "fetch history", err.Op)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "fetch history: timeout")
}
