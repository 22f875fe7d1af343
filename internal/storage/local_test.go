package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Store("brent-news-2024-03-01.json", []byte(`[1]`)))
	require.NoError(t, s.Store("brent-news-2024-03-01.json", []byte(`[2]`)))

	data, err := s.Retrieve("brent-news-2024-03-01.json")
	require.NoError(t, err)
	assert.Equal(t, `[2]`, string(data))
}

func TestLocalStorage_MissingObject(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Retrieve("nope.json")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete("nope.json"))
}

func TestLocalStorage_List(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"cache/b.json", "cache/a.json", "brent-news-2024-03-01.json"} {
		require.NoError(t, s.Store(name, []byte("{}")))
	}

	tests := []struct {
		name   string
		prefix string
		want   []string
	}{
		{"all", "", []string{"brent-news-2024-03-01.json", "cache/a.json", "cache/b.json"}},
		{"cache only", "cache/", []string{"cache/a.json", "cache/b.json"}},
		{"no match", "zzz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(tt.prefix)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalStorage_RejectsEscape(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	require.NoError(t, s.Store("../outside.json", []byte("x")))
	names, err := s.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{"outside.json"}, names)
}
