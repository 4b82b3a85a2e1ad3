// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// RECORD
// =============================================================================

// Record is an undecoded JSON object as received from a server. Fields are
// looked up leniently so that one malformed field never rejects the record.
type Record map[string]json.RawMessage

// NewRecord builds a Record from native Go values. Values that cannot be
// marshaled are dropped. time.Time values become RFC 3339 strings.
func NewRecord(fields map[string]any) Record {
	r := make(Record, len(fields))
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		r[k] = b
	}
	return r
}

// ParseRecord decodes a single JSON object. It reports false for anything
// that is not an object.
func ParseRecord(raw json.RawMessage) (Record, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false
	}
	if r == nil {
		r = Record{}
	}
	return r, true
}

// Has reports whether key is present and not null.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && !isNull(v)
}

// String returns the value of the first key holding a non-empty string.
// Numbers are formatted; objects of the form {"$oid": "..."} yield the oid.
func (r Record) String(keys ...string) string {
	for _, k := range keys {
		if s := flexString(r[k]); s != "" {
			return s
		}
	}
	return ""
}

// Raw returns the raw value of the first present, non-null key.
func (r Record) Raw(keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := r[k]; ok && !isNull(v) {
			return v
		}
	}
	return nil
}

// Time returns the first parsable timestamp among keys, or false.
func (r Record) Time(keys ...string) (time.Time, bool) {
	for _, k := range keys {
		if t, ok := ParseTimestamp(r[k]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func isNull(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}

func flexString(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return ""
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ""
		}
		return s
	case '{':
		var oid struct {
			OID string `json:"$oid"`
		}
		if err := json.Unmarshal(v, &oid); err != nil {
			return ""
		}
		return oid.OID
	case 'n', 't', 'f', '[':
		return ""
	default:
		var n json.Number
		if err := json.Unmarshal(v, &n); err != nil {
			return ""
		}
		return n.String()
	}
}

// =============================================================================
// TIMESTAMPS
// =============================================================================

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
// 1e11 seconds is in the year 5138; 1e11 milliseconds is March 1973.
const epochMillisThreshold = 1e11

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// ParseTimestamp accepts an RFC 3339 or ISO-like string, a numeric string,
// or a JSON number holding epoch seconds or milliseconds.
func ParseTimestamp(v json.RawMessage) (time.Time, bool) {
	v = bytes.TrimSpace(v)
	if isNull(v) {
		return time.Time{}, false
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return time.Time{}, false
		}
		return ParseTimestampString(s)
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return time.Time{}, false
	}
	f, err := n.Float64()
	if err != nil {
		return time.Time{}, false
	}
	return FromEpoch(f)
}

// ParseTimestampString parses a string timestamp in any accepted layout.
func ParseTimestampString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FromEpoch(f)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FromEpoch converts an epoch value to a time. Values at or above 1e11 are
// treated as milliseconds, smaller values as seconds.
func FromEpoch(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	if math.Abs(f) >= epochMillisThreshold {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}
