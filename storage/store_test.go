package storage

import (
	"context"
	"crypto/sha1"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RIZAmohammadkhan/Serma/bencode"
	"github.com/RIZAmohammadkhan/Serma/model"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	s, err := Open(Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Stop().Err()) })
	return s
}

func buildInfoDict(t *testing.T, name string) ([]byte, model.InfoHash) {
	t.Helper()
	d := map[string]any{"name": name, "length": int64(1024)}
	enc, err := bencode.Marshal(d)
	require.NoError(t, err)
	sum := sha1.Sum(enc)
	ih, err := model.NewInfoHash(sum[:])
	require.NoError(t, err)
	return enc, ih
}

func TestUpsertSightingThenStoreMetadata(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	infoDict, ih := buildInfoDict(t, "debian-12.iso")

	require.NoError(t, s.UpsertSighting(ctx, ih, 12))
	rec, err := s.Get(ctx, ih)
	require.NoError(t, err)
	require.False(t, rec.HasMetadata())
	require.EqualValues(t, 12, rec.Seeders)

	require.NoError(t, s.StoreMetadata(ctx, ih, infoDict))
	rec, err = s.Get(ctx, ih)
	require.NoError(t, err)
	require.True(t, rec.HasMetadata())
	require.Equal(t, "debian-12.iso", *rec.Title)

	hits, _, err := s.Search(ctx, "debian", 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, ih.String(), hits[0].InfoHash)
}

func TestStoreMetadataRejectsHashMismatch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	infoDict, _ := buildInfoDict(t, "whatever")
	wrongIH, err := model.ParseInfoHashHex(strings.Repeat("ff", 20))
	require.NoError(t, err)
	require.NoError(t, s.UpsertSighting(ctx, wrongIH, 1))

	err = s.StoreMetadata(ctx, wrongIH, infoDict)
	require.ErrorIs(t, err, ErrHashMismatch)
}

func TestIterMissingMetadataSkipsEnrichedAndBackedOff(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, ih1 := buildInfoDict(t, "one")
	infoDict2, ih2 := buildInfoDict(t, "two")

	require.NoError(t, s.UpsertSighting(ctx, ih1, 1))
	require.NoError(t, s.UpsertSighting(ctx, ih2, 1))
	require.NoError(t, s.StoreMetadata(ctx, ih2, infoDict2))

	var seen []model.InfoHash
	require.NoError(t, s.IterMissingMetadata(ctx, func(ih model.InfoHash) bool {
		seen = append(seen, ih)
		return true
	}))
	require.Equal(t, []model.InfoHash{ih1}, seen)

	require.NoError(t, s.RecordEnrichAttempt(ctx, ih1))
	seen = nil
	require.NoError(t, s.IterMissingMetadata(ctx, func(ih model.InfoHash) bool {
		seen = append(seen, ih)
		return true
	}))
	require.Empty(t, seen, "freshly failed attempt should be backed off")
}

func TestDeleteRemovesFromBothStores(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	infoDict, ih := buildInfoDict(t, "deleteme")
	require.NoError(t, s.UpsertSighting(ctx, ih, 1))
	require.NoError(t, s.StoreMetadata(ctx, ih, infoDict))

	require.NoError(t, s.Delete(ctx, ih))
	_, err := s.Get(ctx, ih)
	require.ErrorIs(t, err, ErrNotFound)

	hits, _, err := s.Search(ctx, "deleteme", 10, 0)
	require.NoError(t, err)
	require.Empty(t, hits)
}
