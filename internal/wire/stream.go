// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// =============================================================================
// STREAM CONSTANTS
// =============================================================================

// PartType identifies the payload of one stream line.
type PartType byte

const (
	// PartText carries a text delta.
	PartText PartType = '0'
	// PartError carries an error message and ends the stream.
	PartError PartType = '3'
)

// MaxLineSize bounds a single stream line (1MB).
const MaxLineSize = 1 << 20

// ContentTypeStream is the content type of a streamed chat reply.
const ContentTypeStream = "text/plain; charset=utf-8"

// ErrLineTooLong is returned when a stream line exceeds MaxLineSize.
var ErrLineTooLong = errors.New("stream line exceeds maximum size")

// =============================================================================
// ENCODING
// =============================================================================

// EncodeText returns the stream line for a text delta.
func EncodeText(text string) []byte {
	return encodePart(PartText, text)
}

// EncodeError returns the stream line for an error.
func EncodeError(message string) []byte {
	return encodePart(PartError, message)
}

func encodePart(t PartType, s string) []byte {
	// Marshaling a string cannot fail.
	b, _ := json.Marshal(s)
	line := make([]byte, 0, len(b)+3)
	line = append(line, byte(t), ':')
	line = append(line, b...)
	return append(line, '\n')
}

// WriteText writes a text delta line to w.
func WriteText(w io.Writer, text string) error {
	_, err := w.Write(EncodeText(text))
	return err
}

// WriteError writes an error line to w.
func WriteError(w io.Writer, message string) error {
	_, err := w.Write(EncodeError(message))
	return err
}

// =============================================================================
// DECODING
// =============================================================================

// Part is one decoded stream line.
type Part struct {
	Type PartType
	Text string
}

// StreamError is an error part received mid-stream, preserving any text
// received before it.
type StreamError struct {
	Partial string
	Message string
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %s", len(e.Partial), e.Message)
	}
	return fmt.Sprintf("stream error: %s", e.Message)
}

// PartReader decodes stream lines from a reader.
type PartReader struct {
	reader *bufio.Reader
}

// NewPartReader creates a new part reader.
func NewPartReader(r io.Reader) *PartReader {
	return &PartReader{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next part. Blank lines are skipped. A line that is not
// in part syntax is returned verbatim as text, newline included, so plain
// text bodies still render. Returns io.EOF when the stream ends.
func (p *PartReader) Next() (Part, error) {
	for {
		line, err := p.readLine()
		if err != nil && (err != io.EOF || line == "") {
			return Part{}, err
		}
		hadNewline := strings.HasSuffix(line, "\n")
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			if err == io.EOF {
				return Part{}, io.EOF
			}
			continue
		}

		if part, ok := parsePart(trimmed); ok {
			return part, nil
		}
		if hadNewline {
			trimmed += "\n"
		}
		return Part{Type: PartText, Text: trimmed}, nil
	}
}

func (p *PartReader) readLine() (string, error) {
	var sb strings.Builder
	for {
		chunk, err := p.reader.ReadSlice('\n')
		sb.Write(chunk)
		if sb.Len() > MaxLineSize {
			return "", ErrLineTooLong
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return sb.String(), err
	}
}

func parsePart(line string) (Part, bool) {
	if len(line) < 3 || line[1] != ':' || line[0] < '0' || line[0] > '9' {
		return Part{}, false
	}
	payload := line[2:]
	var s string
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		if !json.Valid([]byte(payload)) {
			return Part{}, false
		}
		// Non-string JSON payloads are passed through raw.
		s = payload
	}
	return Part{Type: PartType(line[0]), Text: s}, true
}

// Accumulate reads a whole stream, calling onText with the accumulated text
// after every text part. Unknown part types are ignored. An error part
// stops reading and returns a *StreamError.
func Accumulate(r io.Reader, onText func(full string)) (string, error) {
	pr := NewPartReader(r)
	var sb strings.Builder
	for {
		part, err := pr.Next()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		switch part.Type {
		case PartText:
			if part.Text == "" {
				continue
			}
			sb.WriteString(part.Text)
			if onText != nil {
				onText(sb.String())
			}
		case PartError:
			return sb.String(), &StreamError{Partial: sb.String(), Message: part.Text}
		}
	}
}
