package fulltext

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RIZAmohammadkhan/Serma/model"
	"github.com/RIZAmohammadkhan/Serma/pkg/timecache"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	x, err := Open(filepath.Join(t.TempDir(), "idx.bleve"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = x.Close() })
	return x
}

func TestIndexAndSearch(t *testing.T) {
	x := openTestIndex(t)

	now := timecache.NowUnixMilli()
	require.NoError(t, x.Index(model.IndexDoc{
		InfoHash:       "aaaa",
		Title:          "Ubuntu Linux ISO",
		FileNames:      []string{"ubuntu.iso"},
		Seeders:        50,
		LastSeenMillis: now,
	}))
	require.NoError(t, x.Index(model.IndexDoc{
		InfoHash:       "bbbb",
		Title:          "Debian Linux ISO",
		FileNames:      []string{"debian.iso"},
		Seeders:        1,
		LastSeenMillis: now,
	}))

	hits, _, err := x.Search("ubuntu", 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "aaaa", hits[0].InfoHash)
	require.Equal(t, int32(50), hits[0].Seeders)

	hits, _, err = x.Search("linux", 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
}

func TestDeleteRemovesDocument(t *testing.T) {
	x := openTestIndex(t)
	require.NoError(t, x.Index(model.IndexDoc{InfoHash: "cccc", Title: "something rare"}))

	hits, _, err := x.Search("rare", 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	require.NoError(t, x.Delete("cccc"))

	hits, _, err = x.Search("rare", 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 0)
}
