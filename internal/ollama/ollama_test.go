// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessageConstructors(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		role string
	}{
		{"user", NewUserMessage("Hello"), "user"},
		{"assistant", NewAssistantMessage("Response"), "assistant"},
		{"system", NewSystemMessage("You are a helpful assistant"), "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.msg.Role != tt.role {
				t.Errorf("Role = %q, want %q", tt.msg.Role, tt.role)
			}
			if tt.msg.Content == "" {
				t.Error("Content should not be empty")
			}
		})
	}
}

func TestOptionsTemperatureZeroIsSent(t *testing.T) {
	data, err := json.Marshal(GenerateRequest{Model: "m", Prompt: "p", Options: WithTemperature(0)})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if !strings.Contains(string(data), `"temperature":0`) {
		t.Errorf("request = %s, want explicit temperature 0", data)
	}
}

func TestModelInfoFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "unknown"},
		{4_700_000_000, "4.7 GB"},
		{3_800_000, "3.8 MB"},
	}

	for _, tt := range tests {
		got := ModelInfo{Size: tt.size}.FormatSize()
		if got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestClientError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running", Cause: cause}

	if got := err.Error(); got != "Ollama is not running: connection refused" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if !errors.Is(err, ErrNotRunning) {
		t.Error("errors.Is should match the sentinel of the same type")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("errors.Is should not match a sentinel of another type")
	}
	if !IsNotRunning(fmt.Errorf("wrapped: %w", err)) {
		t.Error("IsNotRunning should see through wrapping")
	}
}

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		typ  ErrorType
		want string
	}{
		{ErrTypeNotRunning, "not_running"},
		{ErrTypeTimeout, "timeout"},
		{ErrTypeModelNotFound, "model_not_found"},
		{ErrTypeConnection, "connection"},
		{ErrTypeInvalidResponse, "invalid_response"},
		{ErrTypeCancelled, "cancelled"},
		{ErrTypeUnknown, "unknown"},
	}

	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("ErrorType(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClientWithConfig(&ClientConfig{BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
}

func TestNewClientWithConfigDefaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{})
	if c.BaseURL() != "http://127.0.0.1:11434" {
		t.Errorf("BaseURL = %q", c.BaseURL())
	}
	if c.config.Timeout != 120*time.Second {
		t.Errorf("Timeout = %v, want 120s", c.config.Timeout)
	}
	if c.config.HealthTimeout != 2*time.Second {
		t.Errorf("HealthTimeout = %v, want 2s", c.config.HealthTimeout)
	}
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "Ollama is running")
	}))

	health, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health error: %v", err)
	}
	if !health.Reachable {
		t.Error("Reachable = false, want true")
	}
	if health.CheckedAt.IsZero() {
		t.Error("CheckedAt should be set")
	}
}

func TestHealthNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: url})
	health, err := c.Health(context.Background())
	if err == nil {
		t.Fatal("Health should fail against a closed server")
	}
	if health.Reachable {
		t.Error("Reachable = true, want false")
	}
	if !IsNotRunning(err) {
		t.Errorf("error type = %v, want not running", err)
	}
}

func TestHealthBadStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	health, err := c.Health(context.Background())
	if err == nil || health.Reachable {
		t.Fatalf("Health = %+v, %v; want unreachable", health, err)
	}
}

func TestListModels(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `{"models":[{"name":"llama3:8b","size":4700000000},{"name":"mistral:7b","size":4100000000}]}`)
	}))

	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("len(models) = %d, want 2", len(models))
	}
	if models[0].Name != "llama3:8b" || models[0].Size != 4700000000 {
		t.Errorf("models[0] = %+v", models[0])
	}
}

func TestListModelsMalformed(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"models":[`)
	}))

	_, err := c.ListModels(context.Background())
	var ce *ClientError
	if !errors.As(err, &ce) || ce.Type != ErrTypeInvalidResponse {
		t.Errorf("error = %v, want invalid response", err)
	}
}

func TestGenerateSendsOptions(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Stream {
			t.Error("Generate should send stream=false")
		}
		if req.System != "be brief" {
			t.Errorf("System = %q", req.System)
		}
		if req.Options == nil || req.Options.Temperature == nil || *req.Options.Temperature != 0.3 {
			t.Errorf("Options = %+v, want temperature 0.3", req.Options)
		}
		io.WriteString(w, `{"model":"llama3:8b","response":"Hello there","done":true}`)
	}))

	got, err := c.Generate(context.Background(), GenerateRequest{
		Model:   "llama3:8b",
		Prompt:  "hi",
		System:  "be brief",
		Options: WithTemperature(0.3),
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if got != "Hello there" {
		t.Errorf("Generate = %q", got)
	}
}

func TestGenerateModelNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"model 'ghost' not found"}`)
	}))

	_, err := c.Generate(context.Background(), GenerateRequest{Model: "ghost", Prompt: "hi"})
	if !IsModelNotFound(err) {
		t.Fatalf("error = %v, want model not found", err)
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Errorf("error = %q, want server message", err.Error())
	}
}

func TestChatStreamOrdered(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("ChatStream should send stream=true")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != RoleSystem {
			t.Errorf("Messages = %+v", req.Messages)
		}
		for _, part := range []string{"Hel", "lo", " world"} {
			fmt.Fprintf(w, `{"model":"llama3:8b","message":{"role":"assistant","content":%q},"done":false}`+"\n", part)
		}
		io.WriteString(w, `{"model":"llama3:8b","message":{"role":"assistant","content":""},"done":true,"eval_count":3,"eval_duration":1000000000}`+"\n")
	}))

	stream, err := c.ChatStream(context.Background(), ChatRequest{
		Model:    "llama3:8b",
		Messages: []Message{NewSystemMessage("sys"), NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("ChatStream error: %v", err)
	}

	var parts []string
	text, final, err := stream.Collect(func(c StreamChunk) {
		parts = append(parts, c.Content)
	})
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if text != "Hello world" {
		t.Errorf("text = %q, want %q", text, "Hello world")
	}
	if strings.Join(parts, "|") != "Hel|lo| world" {
		t.Errorf("chunks = %v, want in order", parts)
	}
	if !final.Done || final.CompletionTokens != 3 {
		t.Errorf("final = %+v", final)
	}
	if tps := final.TokensPerSecond(); tps != 3 {
		t.Errorf("TokensPerSecond = %v, want 3", tps)
	}
}

func TestGenerateStreamUsesResponseField(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"response":"a","done":false}`+"\n"+`{"response":"b","done":true}`+"\n")
	}))

	stream, err := c.GenerateStream(context.Background(), GenerateRequest{Model: "m", Prompt: "p"})
	if err != nil {
		t.Fatalf("GenerateStream error: %v", err)
	}
	defer stream.Close()

	first, err := stream.Next()
	if err != nil || first.Content != "a" {
		t.Fatalf("Next = %+v, %v", first, err)
	}
	second, err := stream.Next()
	if err != nil || second.Content != "b" || !second.Done {
		t.Fatalf("Next = %+v, %v", second, err)
	}
	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next after done = %v, want io.EOF", err)
	}
}

// =============================================================================
// STREAM TESTS
// =============================================================================

func TestStreamTruncated(t *testing.T) {
	body := io.NopCloser(strings.NewReader(`{"message":{"content":"partial"},"done":false}` + "\n"))
	stream := NewStream(context.Background(), body, StreamChat)

	text, _, err := stream.Collect(nil)
	if text != "partial" {
		t.Errorf("text = %q, want partial text", text)
	}
	var ce *ClientError
	if !errors.As(err, &ce) || ce.Type != ErrTypeInvalidResponse {
		t.Errorf("error = %v, want invalid response", err)
	}
}

func TestStreamMalformedLine(t *testing.T) {
	body := io.NopCloser(strings.NewReader("not json\n"))
	stream := NewStream(context.Background(), body, StreamChat)

	_, err := stream.Next()
	var ce *ClientError
	if !errors.As(err, &ce) || ce.Type != ErrTypeInvalidResponse {
		t.Errorf("error = %v, want invalid response", err)
	}
}

func TestStreamErrorLine(t *testing.T) {
	body := io.NopCloser(strings.NewReader(`{"error":"out of memory"}` + "\n"))
	stream := NewStream(context.Background(), body, StreamGenerate)

	_, err := stream.Next()
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Errorf("error = %v, want server error", err)
	}
}

func TestStreamCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	stream := NewStream(ctx, pr, StreamChat)

	go func() {
		io.WriteString(pw, `{"message":{"content":"one"},"done":false}`+"\n")
	}()

	chunk, err := stream.Next()
	if err != nil || chunk.Content != "one" {
		t.Fatalf("Next = %+v, %v", chunk, err)
	}

	cancel()

	_, err = stream.Next()
	if !IsCancelled(err) {
		t.Fatalf("error = %v, want cancelled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("cancelled error should wrap context.Canceled")
	}
	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next after cancel = %v, want io.EOF", err)
	}
}

func TestChatStreamCancelledBeforeRequest(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ChatStream(ctx, ChatRequest{Model: "m"})
	if !IsCancelled(err) {
		t.Errorf("error = %v, want cancelled", err)
	}
}
