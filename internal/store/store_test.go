package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRecentUserMessages(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "messages.json"))

	require.NoError(t, s.AppendMessage(ctx, ChatMessage{ProjectID: "p1", UserID: "u1", Role: "user", Content: "build a todo app"}))
	require.NoError(t, s.AppendMessage(ctx, ChatMessage{ProjectID: "p1", UserID: "u1", Role: "assistant", Content: "done"}))
	require.NoError(t, s.AppendMessage(ctx, ChatMessage{ProjectID: "p1", UserID: "u2", Role: "user", Content: "other user"}))
	require.NoError(t, s.AppendMessage(ctx, ChatMessage{ProjectID: "p2", UserID: "u1", Role: "user", Content: "other project"}))

	got, err := s.RecentUserMessages(ctx, "p1", "u1", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"build a todo app"}, got)
}

func TestRecentUserMessagesWindowExpiry(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "messages.json"))

	old := ChatMessage{ProjectID: "p1", UserID: "u1", Role: "user", Content: "stale", CreatedAt: time.Now().Add(-10 * time.Minute)}
	require.NoError(t, s.AppendMessage(ctx, old))
	require.NoError(t, s.AppendMessage(ctx, ChatMessage{ProjectID: "p1", UserID: "u1", Role: "user", Content: "fresh"}))

	got, err := s.RecentUserMessages(ctx, "p1", "u1", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, got)
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "messages.json")

	s := New(path)
	require.NoError(t, s.AppendMessage(ctx, ChatMessage{ProjectID: "p1", UserID: "u1", Role: "user", Content: "hello"}))
	require.NoError(t, s.PutManifest(ctx, "p1", Manifest{"src/App.jsx": "content"}))

	reopened := New(path)
	got, err := reopened.RecentUserMessages(ctx, "p1", "u1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, got)

	m, ok := reopened.GetManifest(ctx, "p1")
	require.True(t, ok)
	assert.Equal(t, "content", m["src/App.jsx"])
}

func TestManifestCacheHitAfterPut(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "messages.json"))

	require.NoError(t, s.PutManifest(ctx, "p1", Manifest{"a": "1"}))
	m, ok := s.GetManifest(ctx, "p1")
	require.True(t, ok)
	assert.Equal(t, "1", m["a"])

	_, ok = s.GetManifest(ctx, "unknown")
	assert.False(t, ok)
}

func TestNilStoreIsNoOp(t *testing.T) {
	ctx := context.Background()
	var s *Store
	assert.NoError(t, s.AppendMessage(ctx, ChatMessage{}))
	got, err := s.RecentUserMessages(ctx, "p", "u", time.Minute)
	assert.NoError(t, err)
	assert.Nil(t, got)
	_, ok := s.GetManifest(ctx, "p")
	assert.False(t, ok)
	assert.NoError(t, s.PutManifest(ctx, "p", Manifest{}))
	assert.NoError(t, s.Close())
}
