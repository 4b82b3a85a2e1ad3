// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// =============================================================================
// ERRORS
// =============================================================================

// Sentinel errors. Use errors.Is to check for them.
var (
	ErrChatNotFound  = &StoreError{Message: "chat not found"}
	ErrTableNotFound = &StoreError{Message: "table not found"}
	ErrInvalidRole   = &StoreError{Message: "invalid message role"}
)

// StoreError is a storage failure that callers can match with errors.Is.
type StoreError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the driver error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches errors with the same message.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// pgUndefinedTable is the Postgres SQLSTATE for a missing relation.
const pgUndefinedTable = "42P01"

// classify maps driver errors onto sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUndefinedTable {
		return &StoreError{Message: ErrTableNotFound.Message, Err: err}
	}
	if strings.Contains(err.Error(), "no such table") {
		return &StoreError{Message: ErrTableNotFound.Message, Err: err}
	}
	return err
}
