// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jeranaias/chatsync/internal/llm"
	"github.com/jeranaias/chatsync/internal/storage"
	"github.com/jeranaias/chatsync/internal/wire"
)

// ============================================================================
// Coded Errors
// ============================================================================

type codedError struct {
	err     error
	code    wire.Code
	details string
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

// CodedError attaches a wire code to err.
func CodedError(code wire.Code, err error) error {
	return &codedError{err: err, code: code}
}

// CodedErrorf formats a coded error.
func CodedErrorf(code wire.Code, format string, args ...any) error {
	return &codedError{err: fmt.Errorf(format, args...), code: code}
}

// withDetails adds a details string shown to the client.
func withDetails(err error, details string) error {
	var cerr *codedError
	if errors.As(err, &cerr) {
		c := *cerr
		c.details = details
		return &c
	}
	return &codedError{err: err, code: wire.CodeServerError, details: details}
}

// mapError turns storage and generator failures into coded errors.
func mapError(op string, err error) error {
	var cerr *codedError
	switch {
	case errors.As(err, &cerr):
		return err
	case errors.Is(err, storage.ErrTableNotFound):
		return withDetails(CodedErrorf(wire.CodeTableNotFound, "%s: database not initialized", op), err.Error())
	case errors.Is(err, storage.ErrChatNotFound):
		return CodedErrorf(wire.CodeNotFound, "chat not found")
	case errors.Is(err, storage.ErrInvalidRole):
		return CodedErrorf(wire.CodeValidation, "%s: %v", op, err)
	case errors.Is(err, llm.ErrUnavailable), errors.Is(err, llm.ErrEmptyReply):
		return CodedErrorf(wire.CodeServiceUnavailable, "%s: %v", op, err)
	default:
		return CodedError(wire.CodeServerError, fmt.Errorf("%s: %w", op, err))
	}
}

// writeError writes err as a JSON error body. Server errors are logged and
// their text is not sent to the client.
func writeError(w http.ResponseWriter, err error) {
	body := wire.ErrorBody{Error: err.Error(), Code: wire.CodeServerError}

	var cerr *codedError
	switch {
	case !errors.As(err, &cerr):
		slog.Error("received non coded error from endpoint", "error", err)
		body.Error = "internal server error"
	case cerr.code == wire.CodeServerError:
		slog.Error("internal server error received in endpoint", "error", err)
		body.Error = "internal server error"
		body.Details = cerr.details
	default:
		body.Code = cerr.code
		body.Details = cerr.details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(body.Code.Status())
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("error writing error body", "error", err)
	}
}

// ============================================================================
// Handlers
// ============================================================================

// RestHandler adapts a handler returning a value or an error.
func RestHandler(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if res == nil {
			res = struct{}{}
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("error serializing response body", "error", err)
	}
}

// ParseRequest decodes a JSON body into T.
func ParseRequest[T any](r *http.Request) (T, error) {
	var data T
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		slog.Debug("error parsing request body", "error", err)
		return data, CodedErrorf(wire.CodeValidation, "unable to parse request body")
	}
	return data, nil
}
