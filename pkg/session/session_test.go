package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sessTestID    = "sess-1"
	sessTestKey   = "user"
	sessTestValue = "alice"
	sessTestStart = int64(1_700_000_000_000)
)

func TestSession_Entries(t *testing.T) {
	s := newSession(sessTestID, sessTestStart)

	_, ok := s.Get(sessTestKey)
	assert.False(t, ok)
	assert.False(t, s.Contains(sessTestKey))

	s.Set(sessTestKey, sessTestValue)
	got, ok := s.Get(sessTestKey)
	require.True(t, ok)
	assert.Equal(t, sessTestValue, got)
	assert.True(t, s.Contains(sessTestKey))
	assert.Equal(t, 1, s.Len())

	s.Set(sessTestKey, "bob")
	got, _ = s.Get(sessTestKey)
	assert.Equal(t, "bob", got)

	s.Remove(sessTestKey)
	assert.False(t, s.Contains(sessTestKey))
	assert.Equal(t, 0, s.Len())

	// removing an absent key is harmless
	s.Remove("missing")
}

func TestSession_EmptyValueIsPresent(t *testing.T) {
	s := newSession(sessTestID, sessTestStart)
	s.Set(sessTestKey, "")

	got, ok := s.Get(sessTestKey)
	assert.True(t, ok)
	assert.Empty(t, got)
	assert.True(t, s.Contains(sessTestKey))
}

func TestSession_EntriesReturnsCopy(t *testing.T) {
	s := newSession(sessTestID, sessTestStart)
	s.Set(sessTestKey, sessTestValue)

	entries := s.Entries()
	entries[sessTestKey] = "changed"
	entries["other"] = "x"

	got, _ := s.Get(sessTestKey)
	assert.Equal(t, sessTestValue, got)
	assert.False(t, s.Contains("other"))
}

func TestRestore(t *testing.T) {
	src := map[string]string{sessTestKey: sessTestValue}
	s := Restore(sessTestID, src, sessTestStart)

	assert.Equal(t, sessTestID, s.ID())
	assert.Equal(t, sessTestStart, s.LastAccessed())
	got, ok := s.Get(sessTestKey)
	require.True(t, ok)
	assert.Equal(t, sessTestValue, got)

	src[sessTestKey] = "changed"
	got, _ = s.Get(sessTestKey)
	assert.Equal(t, sessTestValue, got, "Restore must copy entries")
}

func TestRestore_NilEntries(t *testing.T) {
	s := Restore(sessTestID, nil, sessTestStart)
	s.Set(sessTestKey, sessTestValue)
	assert.Equal(t, 1, s.Len())
}

func TestSession_TouchOnlyMovesForward(t *testing.T) {
	s := newSession(sessTestID, sessTestStart)

	s.touch(sessTestStart + 10)
	assert.Equal(t, sessTestStart+10, s.LastAccessed())

	s.touch(sessTestStart + 5)
	assert.Equal(t, sessTestStart+10, s.LastAccessed())

	s.touch(sessTestStart + 10)
	assert.Equal(t, sessTestStart+10, s.LastAccessed())
}

func TestSession_DestroyWithoutOwner(t *testing.T) {
	s := Restore(sessTestID, map[string]string{sessTestKey: sessTestValue}, sessTestStart)

	require.NoError(t, s.Destroy(context.Background()))
	assert.Empty(t, s.ID())
	assert.Equal(t, 0, s.Len())

	// second destroy is a no-op
	require.NoError(t, s.Destroy(context.Background()))
}
