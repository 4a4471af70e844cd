package kademlia

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func idFromByte(b byte) ID {
	var id ID
	id[0] = b
	return id
}

func TestDistanceIsZeroForSelf(t *testing.T) {
	a := idFromByte(0x42)
	require.Equal(t, ID{}, Distance(a, a))
}

func TestLessOrdersByXorDistance(t *testing.T) {
	self := idFromByte(0x00)
	near := idFromByte(0x01)
	far := idFromByte(0xF0)
	require.True(t, Less(Distance(self, near), Distance(self, far)))
}

func TestInsertAndClosest(t *testing.T) {
	self := idFromByte(0x00)
	table := NewTable(self)

	for i := byte(1); i <= 5; i++ {
		ok := table.Insert(Node{ID: idFromByte(i), Addr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(i)}})
		require.True(t, ok)
	}
	require.Equal(t, 5, table.Len())

	closest := table.Closest(idFromByte(0x00), 2)
	require.Len(t, closest, 2)
	require.Equal(t, idFromByte(1), closest[0].ID)
	require.Equal(t, idFromByte(2), closest[1].ID)
}

func TestInsertRejectsSelf(t *testing.T) {
	self := idFromByte(0x09)
	table := NewTable(self)
	require.False(t, table.Insert(Node{ID: self}))
	require.Equal(t, 0, table.Len())
}

func TestInsertEvictsNonGoodBeforeDroppingNewNode(t *testing.T) {
	self := idFromByte(0x00)
	table := NewTable(self)

	// All of these ids share the same distance prefix length from self
	// (bit 7 set, rest zero), landing in the same bucket.
	var full []ID
	for i := 0; i < bucketSize; i++ {
		id := idFromByte(0x80)
		id[1] = byte(i + 1)
		full = append(full, id)
		require.True(t, table.Insert(Node{ID: id}))
	}
	require.Equal(t, bucketSize, table.Len())

	table.MarkBad(full[0])

	overflow := idFromByte(0x80)
	overflow[1] = 0xFF
	require.True(t, table.Insert(Node{ID: overflow}))
	require.Equal(t, bucketSize, table.Len())

	closest := table.Closest(self, bucketSize+1)
	for _, n := range closest {
		require.NotEqual(t, full[0], n.ID, "non-good node should have been evicted")
	}
}

func TestMarkBadThenRemove(t *testing.T) {
	self := idFromByte(0x00)
	table := NewTable(self)
	n := idFromByte(0x11)
	require.True(t, table.Insert(Node{ID: n, LastSeen: time.Now()}))
	table.MarkBad(n)
	table.Remove(n)
	require.Equal(t, 0, table.Len())
}
