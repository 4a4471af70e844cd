package bloomfilter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTestAndAddReportsPriorMembership(t *testing.T) {
	f := New(1000, 0.01)
	key := []byte("some-info-hash-bytes")

	require.False(t, f.TestAndAdd(key))
	require.True(t, f.TestAndAdd(key))
	require.True(t, f.Test(key))
}

func TestResetClearsMembership(t *testing.T) {
	f := New(1000, 0.01)
	key := []byte("another-key")
	f.TestAndAdd(key)
	require.True(t, f.Test(key))

	f.Reset()
	require.False(t, f.Test(key))
}
