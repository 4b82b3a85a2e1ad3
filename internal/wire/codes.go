// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

import "net/http"

// Code is the machine-readable error code carried in error bodies.
type Code string

const (
	CodeNoToken            Code = "NO_TOKEN"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeNotFound           Code = "NOT_FOUND"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeTableNotFound      Code = "TABLE_NOT_FOUND"
	CodeServerError        Code = "SERVER_ERROR"
	CodeRateLimited        Code = "RATE_LIMITED"
)

// ErrorBody is the JSON body of every non-2xx response.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    Code   `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Status returns the HTTP status conventionally paired with the code.
func (c Code) Status() int {
	switch c {
	case CodeNoToken, CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeServiceUnavailable, CodeTableNotFound:
		return http.StatusServiceUnavailable
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
