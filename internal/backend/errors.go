// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/jeranaias/chatsync/internal/session"
	"github.com/jeranaias/chatsync/internal/wire"
)

// =============================================================================
// ERROR KINDS
// =============================================================================

// Kind classifies a failed backend call.
type Kind string

const (
	KindNoToken            Kind = "no_token"
	KindTimeout            Kind = "timeout"
	KindNetworkUnreachable Kind = "network_unreachable"
	KindUnauthorized       Kind = "unauthorized"
	KindServiceUnavailable Kind = "service_unavailable"
	KindTableNotFound      Kind = "table_not_found"
	KindServerError        Kind = "server_error"
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindCanceled           Kind = "canceled"
	KindUnknown            Kind = "unknown"
)

// UserMessage returns the text shown to the user for this kind.
func (k Kind) UserMessage() string {
	switch k {
	case KindNoToken:
		return "You are not signed in. Run `chatsync login` and try again."
	case KindTimeout:
		return "The server took too long to respond. Your chats are still here; try again."
	case KindNetworkUnreachable:
		return "Cannot reach the chat server. Check your connection."
	case KindUnauthorized:
		return "Your session has expired. Please sign in again."
	case KindServiceUnavailable:
		return "The chat service is temporarily unavailable."
	case KindTableNotFound:
		return "The chat database is not set up yet. Ask an administrator to run migrations."
	case KindServerError:
		return "The server hit an error while handling your request."
	case KindValidation:
		return "The request was rejected as invalid."
	case KindNotFound:
		return "That chat no longer exists."
	case KindCanceled:
		return "The request was canceled."
	default:
		return "Something went wrong. Please try again."
	}
}

// ShouldRelogin reports whether the user must sign in again.
func (k Kind) ShouldRelogin() bool {
	return k == KindNoToken || k == KindUnauthorized
}

// Retryable reports whether repeating the same call may succeed.
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindNetworkUnreachable, KindServiceUnavailable, KindServerError:
		return true
	default:
		return false
	}
}

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is a classified backend failure.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Code    wire.Code
	Message string
	Details string
	Err     error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrNoToken            = &Error{Kind: KindNoToken}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrNetworkUnreachable = &Error{Kind: KindNetworkUnreachable}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable}
	ErrTableNotFound      = &Error{Kind: KindTableNotFound}
	ErrServerError        = &Error{Kind: KindServerError}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrNotFound           = &Error{Kind: KindNotFound}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("backend")
	if e.Op != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Op)
	}
	sb.WriteString(": ")
	sb.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&sb, " (HTTP %d)", e.Status)
	}
	switch {
	case e.Message != "":
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	case e.Err != nil:
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Op == "" && t.Status == 0 && t.Kind == e.Kind
}

// UserMessage returns the user-facing text for the error.
func (e *Error) UserMessage() string {
	return e.Kind.UserMessage()
}

// ShouldRelogin reports whether the user must sign in again.
func (e *Error) ShouldRelogin() bool {
	return e.Kind.ShouldRelogin()
}

// Retryable reports whether repeating the call may succeed.
func (e *Error) Retryable() bool {
	return e.Kind.Retryable()
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// KindOf returns the kind of any error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return classifyTransport(err)
}

// UserMessage returns the user-facing text for any error.
func UserMessage(err error) string {
	return KindOf(err).UserMessage()
}

// Classify wraps a transport-level failure.
func Classify(op string, err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		if be.Op == "" {
			c := *be
			c.Op = op
			return &c
		}
		return be
	}
	return &Error{Kind: classifyTransport(err), Op: op, Err: err}
}

func classifyTransport(err error) Kind {
	switch {
	case errors.Is(err, session.ErrNoToken):
		return KindNoToken
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.As(err, &opErr):
		return KindNetworkUnreachable
	}
	return KindUnknown
}

// fromResponse builds an error from a non-2xx response body.
func fromResponse(op string, status int, body []byte) *Error {
	e := &Error{Op: op, Status: status}

	var eb wire.ErrorBody
	if err := json.Unmarshal(body, &eb); err == nil && (eb.Error != "" || eb.Code != "") {
		e.Code = eb.Code
		e.Message = eb.Error
		e.Details = eb.Details
	} else {
		e.Message = strings.TrimSpace(string(body))
		if len(e.Message) > 200 {
			e.Message = e.Message[:200]
		}
	}

	e.Kind = kindFromCode(e.Code)
	if e.Kind == "" {
		e.Kind = kindFromStatus(status)
	}
	if e.Kind == KindServerError && mentionsMissingTable(e.Message+" "+e.Details) {
		e.Kind = KindTableNotFound
	}
	return e
}

func kindFromCode(code wire.Code) Kind {
	switch code {
	case wire.CodeNoToken:
		return KindNoToken
	case wire.CodeUnauthorized:
		return KindUnauthorized
	case wire.CodeValidation:
		return KindValidation
	case wire.CodeNotFound:
		return KindNotFound
	case wire.CodeServiceUnavailable, wire.CodeRateLimited:
		return KindServiceUnavailable
	case wire.CodeTableNotFound:
		return KindTableNotFound
	case wire.CodeServerError:
		return KindServerError
	default:
		return ""
	}
}

func kindFromStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity || status == http.StatusRequestEntityTooLarge:
		return KindValidation
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests || status == http.StatusBadGateway:
		return KindServiceUnavailable
	case status >= 500:
		return KindServerError
	default:
		return KindUnknown
	}
}

func mentionsMissingTable(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "no such table") ||
		(strings.Contains(s, "relation") && strings.Contains(s, "does not exist"))
}
