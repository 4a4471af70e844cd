package kv

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RIZAmohammadkhan/Serma/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := openTestStore(t)
	ih, err := model.ParseInfoHashHex(strings.Repeat("aa", 20))
	require.NoError(t, err)

	_, err = s.Get(ih)
	require.ErrorIs(t, err, ErrNotFound)

	rec := &model.Record{InfoHash: ih, Seeders: 3}
	require.NoError(t, s.Put(rec))

	got, err := s.Get(ih)
	require.NoError(t, err)
	require.Equal(t, int32(3), got.Seeders)

	require.NoError(t, s.Delete(ih))
	_, err = s.Get(ih)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRangeAndCount(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		ih, err := model.ParseInfoHashHex(strings.Repeat(string(rune('0'+i)), 40)[:40])
		require.NoError(t, err)
		require.NoError(t, s.Put(&model.Record{InfoHash: ih}))
	}

	n, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, 5, n)

	seen := 0
	require.NoError(t, s.Range(func(*model.Record) bool {
		seen++
		return true
	}))
	require.Equal(t, 5, seen)

	seen = 0
	require.NoError(t, s.Range(func(*model.Record) bool {
		seen++
		return seen < 2
	}))
	require.Equal(t, 2, seen)
}
