// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/termsage/internal/model"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := OpenArchive(filepath.Join(t.TempDir(), "nested", "chats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func transcript(exchanges ...[2]string) model.Transcript {
	tr := model.NewTranscript()
	for _, ex := range exchanges {
		tr = tr.Append(ex[0], ex[1], 0)
	}
	return tr
}

// =============================================================================
// ARCHIVE TESTS
// =============================================================================

func TestOpenArchiveEmptyPath(t *testing.T) {
	_, err := OpenArchive("")
	assert.Error(t, err)
}

func TestArchiveSaveAndLoad(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	tr := transcript([2]string{"Tell me a joke", "Why did the gopher..."}, [2]string{"Another", "Sure."})
	id, err := a.SaveChat(ctx, "llama3:8b", tr)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err, "id should be a UUID")

	chat, err := a.LoadChat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, chat.ID)
	assert.Equal(t, "llama3:8b", chat.Model)
	assert.Equal(t, "Tell me a joke", chat.Title)
	assert.Equal(t, 4, chat.Turns)
	require.Len(t, chat.Messages, 4)

	want := tr.Turns()
	for i, turn := range chat.Messages {
		assert.Equal(t, want[i].Role, turn.Role)
		assert.Equal(t, want[i].Content, turn.Content)
		assert.True(t, want[i].Timestamp.Equal(turn.Timestamp))
	}
	assert.False(t, chat.EndedAt.Before(chat.StartedAt))
}

func TestArchiveLoadByPrefix(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	id, err := a.SaveChat(ctx, "mistral:7b", transcript([2]string{"hi", "hello"}))
	require.NoError(t, err)

	chat, err := a.LoadChat(ctx, id[:8])
	require.NoError(t, err)
	assert.Equal(t, id, chat.ID)
}

func TestArchiveLoadMissing(t *testing.T) {
	a := openTestArchive(t)

	_, err := a.LoadChat(context.Background(), "does-not-exist")
	assert.True(t, errors.Is(err, ErrChatNotFound))

	_, err = a.LoadChat(context.Background(), "")
	assert.True(t, errors.Is(err, ErrChatNotFound))
}

func TestArchiveRejectsEmptyTranscript(t *testing.T) {
	a := openTestArchive(t)

	_, err := a.SaveChat(context.Background(), "llama3:8b", model.NewTranscript())
	assert.ErrorIs(t, err, ErrEmptyChat)

	n, err := a.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestArchiveRecentChatsNewestFirst(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	var ids []string
	for _, prompt := range []string{"first", "second", "third"} {
		id, err := a.SaveChat(ctx, "llama3:8b", transcript([2]string{prompt, "ok"}))
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}

	recent, err := a.RecentChats(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[2], recent[0].ID)
	assert.Equal(t, ids[1], recent[1].ID)
	assert.Equal(t, "third", recent[0].Title)
	assert.Equal(t, 2, recent[0].Turns)
}

func TestArchiveSearchChats(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	_, err := a.SaveChat(ctx, "llama3:8b", transcript([2]string{"Explain goroutines", "They are light threads."}))
	require.NoError(t, err)
	_, err = a.SaveChat(ctx, "llama3:8b", transcript([2]string{"Weather?", "Sunny with 100% chance of GOPHERS."}))
	require.NoError(t, err)

	tests := []struct {
		query string
		want  int
	}{
		{"goroutines", 1},
		{"gophers", 1},
		{"LIGHT", 1},
		{"100%", 1},
		{"_", 0},
		{"zebra", 0},
		{"", 2},
	}

	for _, tt := range tests {
		got, err := a.SearchChats(ctx, tt.query, 10)
		require.NoError(t, err)
		if len(got) != tt.want {
			t.Errorf("SearchChats(%q) returned %d chats, want %d", tt.query, len(got), tt.want)
		}
	}
}

func TestArchiveDeleteChat(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	id, err := a.SaveChat(ctx, "llama3:8b", transcript([2]string{"hi", "hello"}))
	require.NoError(t, err)

	require.NoError(t, a.DeleteChat(ctx, id))
	_, err = a.LoadChat(ctx, id)
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.ErrorIs(t, a.DeleteChat(ctx, id), ErrChatNotFound)
}

func TestArchiveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.db")
	a, err := OpenArchive(path)
	require.NoError(t, err)

	id, err := a.SaveChat(context.Background(), "llama3:8b", transcript([2]string{"persist me", "done"}))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := OpenArchive(path)
	require.NoError(t, err)
	defer b.Close()

	chat, err := b.LoadChat(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "persist me", chat.Title)
	assert.Equal(t, path, b.Path())
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`c:\x`, `c:\\x`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
