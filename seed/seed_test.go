package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RIZAmohammadkhan/Serma/storage"
)

func openTestStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.Open(storage.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Stop().Err()) })
	return s
}

func TestIngestAcceptsValidHashesAndSkipsMalformed(t *testing.T) {
	store := openTestStore(t)

	input := strings.Join([]string{
		strings.Repeat("a", 40),
		"not-a-hash",
		strings.Repeat("b", 40),
		"",
		"# a comment line",
		strings.Repeat("c", 40),
		strings.Repeat("d", 39), // one short
	}, "\n")

	res, err := Ingest(context.Background(), store, strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 3, res.Accepted)
	require.Equal(t, 2, res.Skipped)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestIngestIsIdempotentPerHash(t *testing.T) {
	store := openTestStore(t)
	line := strings.Repeat("e", 40) + "\n"

	_, err := Ingest(context.Background(), store, strings.NewReader(line+line))
	require.NoError(t, err)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
