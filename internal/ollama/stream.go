// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// StreamKind selects which response field carries the text of a chunk.
type StreamKind int

const (
	// StreamChat reads message.content from /api/chat lines.
	StreamChat StreamKind = iota
	// StreamGenerate reads response from /api/generate lines.
	StreamGenerate
)

// =============================================================================
// STREAM
// =============================================================================

// Stream iterates the newline-delimited JSON chunks of a streaming response.
//
// Next returns chunks in arrival order and io.EOF after the terminal chunk.
// Cancelling the context passed to NewStream aborts a pending Next with a
// ClientError of type ErrTypeCancelled and closes the body.
type Stream struct {
	ctx    context.Context
	body   io.ReadCloser
	reader *bufio.Reader
	kind   StreamKind

	model string
	done  bool

	closeOnce sync.Once
	stop      func() bool
}

// NewStream wraps a response body. The body is closed when ctx is cancelled
// so that a blocked read returns promptly.
func NewStream(ctx context.Context, body io.ReadCloser, kind StreamKind) *Stream {
	s := &Stream{
		ctx:    ctx,
		body:   body,
		reader: bufio.NewReaderSize(body, 32*1024),
		kind:   kind,
	}
	s.stop = context.AfterFunc(ctx, func() { s.closeBody() })
	return s
}

// streamLine is the union of the chat and generate line shapes.
type streamLine struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason,omitempty"`
	TotalDuration   int64  `json:"total_duration,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
	EvalDuration    int64  `json:"eval_duration,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Next returns the next chunk. After the chunk with Done set it returns io.EOF.
func (s *Stream) Next() (StreamChunk, error) {
	if s.done {
		return StreamChunk{}, io.EOF
	}

	for {
		if err := s.ctx.Err(); err != nil {
			return StreamChunk{}, s.fail(classifyTransportError(s.ctx, err))
		}

		line, err := s.reader.ReadBytes('\n')
		if err != nil && len(line) == 0 {
			if s.ctx.Err() != nil {
				return StreamChunk{}, s.fail(classifyTransportError(s.ctx, s.ctx.Err()))
			}
			if errors.Is(err, io.EOF) {
				return StreamChunk{}, s.fail(&ClientError{
					Type:    ErrTypeInvalidResponse,
					Message: "stream ended before completion",
				})
			}
			return StreamChunk{}, s.fail(&ClientError{Type: ErrTypeConnection, Message: "stream read failed", Cause: err})
		}

		trimmed := strings.TrimSpace(string(line))
		if trimmed == "" {
			continue
		}

		chunk, perr := s.parse(trimmed)
		if perr != nil {
			return StreamChunk{}, s.fail(perr)
		}
		if chunk.Done {
			s.done = true
			s.Close()
		}
		return chunk, nil
	}
}

func (s *Stream) parse(line string) (StreamChunk, error) {
	var resp streamLine
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return StreamChunk{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "malformed stream chunk", Cause: err}
	}
	if resp.Error != "" {
		return StreamChunk{}, &ClientError{Type: ErrTypeInvalidResponse, Message: resp.Error}
	}

	if resp.Model != "" {
		s.model = resp.Model
	}

	chunk := StreamChunk{
		Done:       resp.Done,
		DoneReason: resp.DoneReason,
		Model:      s.model,
	}
	switch s.kind {
	case StreamGenerate:
		chunk.Content = resp.Response
	default:
		chunk.Content = resp.Message.Content
	}

	if resp.Done {
		chunk.TotalDuration = time.Duration(resp.TotalDuration)
		chunk.EvalDuration = time.Duration(resp.EvalDuration)
		chunk.PromptTokens = resp.PromptEvalCount
		chunk.CompletionTokens = resp.EvalCount
	}
	return chunk, nil
}

func (s *Stream) fail(err error) error {
	s.done = true
	s.Close()
	return err
}

// Close releases the response body. It is safe to call more than once.
func (s *Stream) Close() error {
	s.stop()
	return s.closeBody()
}

func (s *Stream) closeBody() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}

// Collect drains the stream, calling onChunk for every chunk with content,
// and returns the concatenated text. On error the partial text is returned
// alongside the error.
func (s *Stream) Collect(onChunk func(StreamChunk)) (string, StreamChunk, error) {
	defer s.Close()

	var sb strings.Builder
	var last StreamChunk
	for {
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			return sb.String(), last, nil
		}
		if err != nil {
			return sb.String(), last, err
		}
		if chunk.Content != "" {
			sb.WriteString(chunk.Content)
			if onChunk != nil {
				onChunk(chunk)
			}
		}
		last = chunk
	}
}
