package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_RoundTrip(t *testing.T) {
	s := NewMemStore()

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("k", []byte("v1")))
	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	require.NoError(t, s.Set("k", []byte("v2")))
	v, err = s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)

	require.NoError(t, s.Delete("k"))
	_, err = s.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is not an error
	assert.NoError(t, s.Delete("k"))
}

func TestMemStore_GetReturnsCopy(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Set("k", []byte("abc")))

	v, err := s.Get("k")
	require.NoError(t, err)
	v[0] = 'x'

	v2, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), v2)
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	s, err := OpenBadger(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("k", []byte("v")))
	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, s.Delete("k"))
	_, err = s.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)
}
