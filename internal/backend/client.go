// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jeranaias/chatsync/internal/model"
	"github.com/jeranaias/chatsync/internal/session"
	"github.com/jeranaias/chatsync/internal/wire"
)

// Configuration constants for the backend client.
const (
	// DefaultRequestTimeout bounds calls that carry no context deadline.
	DefaultRequestTimeout = 10 * time.Second

	// MaxErrorBodySize bounds how much of an error body is read.
	MaxErrorBodySize = 1 << 20

	// MaxResponseSize bounds a buffered (non-streamed) reply.
	MaxResponseSize = 10 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
	UserAgent      string

	// HTTPClient overrides the underlying transport, mainly for tests.
	HTTPClient *http.Client
}

// File is one attachment for SendWithFiles.
type File struct {
	Name   string
	Reader io.Reader
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to a chatsync backend on behalf of one Session.
type Client struct {
	http           *resty.Client
	sess           *session.Session
	requestTimeout time.Duration
}

// New creates a backend client. The session is consulted on every call,
// so logging in or out takes effect immediately.
func New(opts Options, sess *session.Session) *Client {
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "chatsync"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}

	rc.SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json").
		OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
			slog.Debug("backend response",
				"method", res.Request.Method,
				"path", res.Request.URL,
				"status", res.StatusCode(),
				"duration", res.Time())
			return nil
		})

	return &Client{http: rc, sess: sess, requestTimeout: opts.RequestTimeout}
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *session.Session {
	return c.sess
}

// authed returns a request carrying the bearer token. It fails with
// KindNoToken before any network traffic when no token is set.
func (c *Client) authed(ctx context.Context, op string) (*resty.Request, error) {
	tok, err := c.sess.Token()
	if err != nil {
		return nil, &Error{Kind: KindNoToken, Op: op, Err: err}
	}
	return c.http.R().SetContext(ctx).SetAuthToken(tok), nil
}

// withDefaultTimeout applies the request timeout when ctx has no deadline.
func (c *Client) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

// =============================================================================
// HISTORY
// =============================================================================

// FetchHistory retrieves every chat of the current user. The arrays are
// returned undecoded for the normalizer. The caller's ctx bounds the call.
func (c *Client) FetchHistory(ctx context.Context) (*wire.RawHistoryResponse, error) {
	const op = "fetch history"
	r, err := c.authed(ctx, op)
	if err != nil {
		return nil, err
	}

	res, err := r.Get("/api/history")
	if err != nil {
		return nil, Classify(op, err)
	}
	if !res.IsSuccess() {
		return nil, fromResponse(op, res.StatusCode(), res.Body())
	}

	var out wire.RawHistoryResponse
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return nil, &Error{Kind: KindServerError, Op: op, Status: res.StatusCode(), Message: "malformed history response", Err: err}
	}
	c.sess.UpdateUserID(out.UserID)
	return &out, nil
}

// ClearHistory deletes every chat of the current user.
func (c *Client) ClearHistory(ctx context.Context) (*wire.DeleteResponse, error) {
	const op = "clear history"
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	r, err := c.authed(ctx, op)
	if err != nil {
		return nil, err
	}
	var out wire.DeleteResponse
	res, err := r.SetResult(&out).Delete("/api/history")
	if err != nil {
		return nil, Classify(op, err)
	}
	if !res.IsSuccess() {
		return nil, fromResponse(op, res.StatusCode(), res.Body())
	}
	return &out, nil
}

// =============================================================================
// CHATS
// =============================================================================

// CreateChat registers a chat on the server. The returned chat is
// normalized.
func (c *Client) CreateChat(ctx context.Context, req wire.CreateChatRequest) (*model.Chat, error) {
	const op = "create chat"
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	r, err := c.authed(ctx, op)
	if err != nil {
		return nil, err
	}
	res, err := r.SetBody(req).Post("/api/chats")
	if err != nil {
		return nil, Classify(op, err)
	}
	if !res.IsSuccess() {
		return nil, fromResponse(op, res.StatusCode(), res.Body())
	}

	var out struct {
		Chat json.RawMessage `json:"chat"`
	}
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return nil, &Error{Kind: KindServerError, Op: op, Status: res.StatusCode(), Message: "malformed chat response", Err: err}
	}
	rec, ok := model.ParseRecord(out.Chat)
	if !ok {
		return nil, &Error{Kind: KindServerError, Op: op, Status: res.StatusCode(), Message: "response has no chat object"}
	}
	return model.NormalizeChat(rec, time.Now()), nil
}

// DeleteChat deletes one chat and its messages.
func (c *Client) DeleteChat(ctx context.Context, chatID string) (*wire.DeleteResponse, error) {
	const op = "delete chat"
	if strings.TrimSpace(chatID) == "" {
		return nil, &Error{Kind: KindValidation, Op: op, Message: "chat id is required"}
	}
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	r, err := c.authed(ctx, op)
	if err != nil {
		return nil, err
	}
	var out wire.DeleteResponse
	res, err := r.SetPathParam("id", chatID).SetResult(&out).Delete("/api/chats/{id}")
	if err != nil {
		return nil, Classify(op, err)
	}
	if !res.IsSuccess() {
		return nil, fromResponse(op, res.StatusCode(), res.Body())
	}
	return &out, nil
}

// =============================================================================
// SENDING
// =============================================================================

// StreamMessage posts a message and streams the reply. onText receives the
// accumulated reply after each delta. The returned string is the full
// reply; on a mid-stream failure it is the partial reply.
func (c *Client) StreamMessage(ctx context.Context, req wire.ChatRequest, onText func(full string)) (string, error) {
	const op = "send message"
	r, err := c.authed(ctx, op)
	if err != nil {
		return "", err
	}

	res, err := r.SetBody(req).SetDoNotParseResponse(true).Post("/api/chat")
	if err != nil {
		return "", Classify(op, err)
	}
	body := res.RawBody()
	defer body.Close()

	if !res.IsSuccess() {
		data, _ := io.ReadAll(io.LimitReader(body, MaxErrorBodySize))
		return "", fromResponse(op, res.StatusCode(), data)
	}

	text, err := wire.Accumulate(body, onText)
	if err != nil {
		return text, streamFailure(ctx, op, err)
	}
	return text, nil
}

// SendWithFiles posts a message with attachments as multipart form data.
// The reply is read whole and returned at once.
func (c *Client) SendWithFiles(ctx context.Context, req wire.ChatRequest, files []File) (string, error) {
	const op = "send message with files"
	r, err := c.authed(ctx, op)
	if err != nil {
		return "", err
	}

	form := map[string]string{wire.FormMessage: req.Message}
	if req.ChatID != "" {
		form[wire.FormChatID] = req.ChatID
	}
	r.SetFormData(form)
	for _, f := range files {
		r.SetFileReader(wire.FormFiles, f.Name, f.Reader)
	}

	res, err := r.SetDoNotParseResponse(true).Post("/api/chat")
	if err != nil {
		return "", Classify(op, err)
	}
	body := res.RawBody()
	defer body.Close()

	if !res.IsSuccess() {
		data, _ := io.ReadAll(io.LimitReader(body, MaxErrorBodySize))
		return "", fromResponse(op, res.StatusCode(), data)
	}

	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return "", Classify(op, err)
	}
	text, err := wire.Accumulate(bytes.NewReader(data), nil)
	if err != nil {
		return text, streamFailure(ctx, op, err)
	}
	return text, nil
}

func streamFailure(ctx context.Context, op string, err error) *Error {
	var se *wire.StreamError
	if errors.As(err, &se) {
		return &Error{Kind: KindServerError, Op: op, Message: se.Message, Err: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Classify(op, fmt.Errorf("%w: %w", ctxErr, err))
	}
	return Classify(op, err)
}

// =============================================================================
// HEALTH
// =============================================================================

// Health calls the unauthenticated health endpoint.
func (c *Client) Health(ctx context.Context) (*wire.HealthResponse, error) {
	const op = "health"
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	var out wire.HealthResponse
	res, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/health")
	if err != nil {
		return nil, Classify(op, err)
	}
	if !res.IsSuccess() {
		return nil, fromResponse(op, res.StatusCode(), res.Body())
	}
	return &out, nil
}
