package cleanup

import (
	"context"
	"crypto/sha1"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RIZAmohammadkhan/Serma/bencode"
	"github.com/RIZAmohammadkhan/Serma/model"
	"github.com/RIZAmohammadkhan/Serma/storage"
)

func openTestStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.Open(storage.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Stop().Err()) })
	return s
}

func freshInfoHash(t *testing.T, seed string) model.InfoHash {
	t.Helper()
	enc, err := bencode.Marshal(map[string]any{"name": seed})
	require.NoError(t, err)
	sum := sha1.Sum(enc)
	ih, err := model.NewInfoHash(sum[:])
	require.NoError(t, err)
	return ih
}

func TestSweepEvictsRecordsPastFailureThreshold(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	ih := freshInfoHash(t, "overfailed")
	require.NoError(t, store.UpsertSighting(ctx, ih, 1))

	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordEnrichAttempt(ctx, ih))
	}

	s := &Sweeper{cfg: Config{MaxEnrichFailures: 2, StaleAfter: time.Hour}.withDefaults(), store: store}
	n, err := s.sweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = store.Get(ctx, ih)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSweepKeepsFreshRecords(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	ih := freshInfoHash(t, "fresh")
	require.NoError(t, store.UpsertSighting(ctx, ih, 5))

	s := &Sweeper{cfg: Config{MaxEnrichFailures: 5, StaleAfter: time.Hour}.withDefaults(), store: store}
	n, err := s.sweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	_, err = store.Get(ctx, ih)
	require.NoError(t, err)
}
