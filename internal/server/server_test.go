// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatsync/internal/config"
	"github.com/jeranaias/chatsync/internal/llm"
	"github.com/jeranaias/chatsync/internal/model"
	"github.com/jeranaias/chatsync/internal/storage"
	"github.com/jeranaias/chatsync/internal/wire"
)

// =============================================================================
// HELPERS
// =============================================================================

const (
	aliceToken = "tok-alice"
	bobToken   = "tok-bob"
)

type testEnv struct {
	srv   *httptest.Server
	store *storage.Store
}

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		Addr:           "127.0.0.1:0",
		Tokens:         []string{aliceToken + ":alice", bobToken + ":bob"},
		AllowedOrigins: []string{"http://localhost:3000"},
		MaxUploadMB:    1,
		RequestTimeout: 10 * time.Second,
	}
}

func newTestEnv(t *testing.T, gen llm.Generator, mutate ...func(*config.ServerConfig)) *testEnv {
	t.Helper()
	store, err := storage.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	return newTestEnvWithStore(t, store, gen, mutate...)
}

func newTestEnvWithStore(t *testing.T, store *storage.Store, gen llm.Generator, mutate ...func(*config.ServerConfig)) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := New(cfg, store, gen)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) postJSON(t *testing.T, path, token string, v any) *http.Response {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return e.do(t, http.MethodPost, path, token, bytes.NewReader(b), "application/json")
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func readStream(t *testing.T, resp *http.Response) (string, error) {
	t.Helper()
	return wire.Accumulate(resp.Body, nil)
}

// failingGenerator fails after emitting the given chunks.
type failingGenerator struct {
	chunks []string
	err    error
}

func (g *failingGenerator) Name() string { return "failing" }

func (g *failingGenerator) Generate(_ context.Context, _ []*model.Message, onChunk func(string) error) (string, error) {
	for _, c := range g.chunks {
		if err := onChunk(c); err != nil {
			return "", err
		}
	}
	return "", g.err
}

// =============================================================================
// AUTH
// =============================================================================

func TestHealth_NoAuth(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())

	resp := env.do(t, http.MethodGet, "/health", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	h := decode[wire.HealthResponse](t, resp)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "ok", h.Database)
	assert.Equal(t, "echo", h.Model)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())

	resp := env.do(t, http.MethodGet, "/api/history", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, wire.CodeNoToken, decode[wire.ErrorBody](t, resp).Code)

	resp = env.do(t, http.MethodGet, "/api/history", "wrong", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, wire.CodeUnauthorized, decode[wire.ErrorBody](t, resp).Code)
}

func TestNewTokenVerifier(t *testing.T) {
	v, err := NewTokenVerifier([]string{"a:u1", " b : u2 "})
	require.NoError(t, err)

	user, ok := v.Verify("b")
	assert.True(t, ok)
	assert.Equal(t, "u2", user)

	_, ok = v.Verify("")
	assert.False(t, ok)
	_, ok = v.Verify("c")
	assert.False(t, ok)

	_, err = NewTokenVerifier([]string{"no-user"})
	assert.Error(t, err)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho(), func(c *config.ServerConfig) {
		c.RateLimit = 0.001
		c.RateBurst = 1
	})

	first := env.do(t, http.MethodGet, "/api/history", aliceToken, nil, "")
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := env.do(t, http.MethodGet, "/api/history", aliceToken, nil, "")
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, wire.CodeRateLimited, decode[wire.ErrorBody](t, second).Code)
	assert.Equal(t, "1", second.Header.Get("Retry-After"))
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistory_Empty(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())

	resp := env.do(t, http.MethodGet, "/api/history", aliceToken, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, `[]`, string(raw["messages"]))
	assert.JSONEq(t, `[]`, string(raw["chats"]))
	assert.JSONEq(t, `"alice"`, string(raw["userId"]))
	assert.JSONEq(t, `"empty"`, string(raw["source"]))
}

func TestHistory_TableNotFound(t *testing.T) {
	store, err := storage.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	env := newTestEnvWithStore(t, store, llm.NewEcho())

	resp := env.do(t, http.MethodGet, "/api/history", aliceToken, nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode[wire.ErrorBody](t, resp)
	assert.Equal(t, wire.CodeTableNotFound, body.Code)
	assert.Contains(t, body.Details, "no such table")
}

// =============================================================================
// CHAT
// =============================================================================

func TestPostChat_StreamsAndPersists(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())
	chatID := uuid.NewString()

	resp := env.postJSON(t, "/api/chat", aliceToken, wire.ChatRequest{
		Message: "Hello!! How's the weather today???",
		ChatID:  chatID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, wire.ContentTypeStream, resp.Header.Get("Content-Type"))
	assert.Equal(t, chatID, resp.Header.Get("X-Chat-Id"))

	reply, err := readStream(t, resp)
	require.NoError(t, err)
	assert.Equal(t, "You said: Hello!! How's the weather today???", reply)

	chats, err := env.store.ListChats(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Hello Hows the weather today", chats[0].Title)
	require.Len(t, chats[0].Messages, 2)
	assert.Equal(t, model.RoleUser, chats[0].Messages[0].Role)
	assert.Equal(t, reply, chats[0].Messages[1].Content)

	other, err := env.store.ListChats(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPostChat_GeneratesChatID(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())

	resp := env.postJSON(t, "/api/chat", aliceToken, wire.ChatRequest{Message: "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, model.IsValidChatID(resp.Header.Get("X-Chat-Id")))
}

func TestPostChat_Validation(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())

	tests := []struct {
		name string
		body string
	}{
		{"empty message", `{"message":"   "}`},
		{"bad chat id", `{"message":"hi","chatId":"not-a-uuid"}`},
		{"malformed json", `{"message":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/chat", aliceToken, strings.NewReader(tt.body), "application/json")
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, wire.CodeValidation, decode[wire.ErrorBody](t, resp).Code)
		})
	}
}

func TestPostChat_OtherUsersChat(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())
	chatID := uuid.NewString()

	resp := env.postJSON(t, "/api/chat", aliceToken, wire.ChatRequest{Message: "mine", ChatID: chatID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, _ = readStream(t, resp)

	resp = env.postJSON(t, "/api/chat", bobToken, wire.ChatRequest{Message: "steal", ChatID: chatID})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, wire.CodeNotFound, decode[wire.ErrorBody](t, resp).Code)
}

func TestPostChat_Multipart(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())
	chatID := uuid.NewString()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField(wire.FormMessage, "summarize"))
	require.NoError(t, mw.WriteField(wire.FormChatID, chatID))
	fw, err := mw.CreateFormFile(wire.FormFiles, "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("buy milk"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp := env.do(t, http.MethodPost, "/api/chat", aliceToken, &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reply, err := readStream(t, resp)
	require.NoError(t, err)
	assert.Contains(t, reply, "notes.txt")
	assert.Contains(t, reply, "buy milk")

	chat, err := env.store.GetChat(context.Background(), "alice", chatID)
	require.NoError(t, err)
	require.Len(t, chat.Messages, 2)
	assert.Equal(t, "summarize", chat.Messages[0].Content, "attachments are not stored")
}

func TestPostChat_GeneratorFailsBeforeStreaming(t *testing.T) {
	env := newTestEnv(t, &failingGenerator{err: llm.ErrUnavailable})

	resp := env.postJSON(t, "/api/chat", aliceToken, wire.ChatRequest{Message: "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, wire.CodeServiceUnavailable, decode[wire.ErrorBody](t, resp).Code)
}

func TestPostChat_GeneratorFailsMidStream(t *testing.T) {
	env := newTestEnv(t, &failingGenerator{chunks: []string{"partial"}, err: errors.New("connection reset")})
	chatID := uuid.NewString()

	resp := env.postJSON(t, "/api/chat", aliceToken, wire.ChatRequest{Message: "hi", ChatID: chatID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	partial, err := readStream(t, resp)
	var se *wire.StreamError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "partial", partial)
	assert.Contains(t, se.Message, "connection reset")

	chat, err := env.store.GetChat(context.Background(), "alice", chatID)
	require.NoError(t, err)
	assert.Len(t, chat.Messages, 1, "failed replies are not stored")
}

// =============================================================================
// CHATS
// =============================================================================

func TestCreateAndDeleteChat(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())
	id := uuid.NewString()

	resp := env.postJSON(t, "/api/chats", aliceToken, wire.CreateChatRequest{ID: id, Title: "Plans"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decode[wire.CreateChatResponse](t, resp)
	require.NotNil(t, created.Chat)
	assert.Equal(t, id, created.Chat.ID)
	assert.Equal(t, "Plans", created.Chat.Title)

	resp = env.do(t, http.MethodDelete, "/api/chats/"+id, bobToken, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/chats/"+id, aliceToken, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[wire.DeleteResponse](t, resp).Success)

	resp = env.do(t, http.MethodDelete, "/api/chats/not-a-uuid", aliceToken, nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateChat_GeneratesID(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())

	resp := env.postJSON(t, "/api/chats", aliceToken, wire.CreateChatRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decode[wire.CreateChatResponse](t, resp)
	assert.True(t, model.IsValidChatID(created.Chat.ID))
}

func TestClearHistory(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())
	for i := 0; i < 2; i++ {
		resp := env.postJSON(t, "/api/chats", aliceToken, wire.CreateChatRequest{})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := env.do(t, http.MethodDelete, "/api/history", aliceToken, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[wire.DeleteResponse](t, resp)
	assert.True(t, out.Success)
	assert.Equal(t, int64(2), out.Deleted)
}

// =============================================================================
// CORS
// =============================================================================

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, llm.NewEcho())

	req, err := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/history", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
