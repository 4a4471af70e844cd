package krpc

import (
	"net"
	"testing"

	"github.com/RIZAmohammadkhan/Serma/model"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeQuery(t *testing.T) {
	var id, target model.InfoHash
	copy(id[:], "abcdefghij0123456789")
	copy(target[:], "mnopqrstuvwxyz123456")

	m := Msg{
		T: "aa",
		Y: TypeQuery,
		Q: QueryFindNode,
		A: &Args{ID: id, Target: target},
	}
	enc, err := Encode(m)
	require.NoError(t, err)

	got, err := Decode(enc)
	require.NoError(t, err)
	require.Equal(t, m.T, got.T)
	require.Equal(t, m.Y, got.Y)
	require.Equal(t, m.Q, got.Q)
	require.NotNil(t, got.A)
	require.Equal(t, id, got.A.ID)
	require.Equal(t, target, got.A.Target)
	require.Nil(t, got.R)
	require.Nil(t, got.E)
}

func TestEncodeDecodeResponseWithValues(t *testing.T) {
	var id model.InfoHash
	copy(id[:], "abcdefghij0123456789")
	peer, err := EncodeCompactPeer(net.IPv4(192, 168, 1, 2), 6881)
	require.NoError(t, err)

	m := Msg{
		T: "bb",
		Y: TypeResponse,
		R: &Return{ID: id, Token: "tok", Values: []string{peer}},
	}
	enc, err := Encode(m)
	require.NoError(t, err)

	got, err := Decode(enc)
	require.NoError(t, err)
	require.NotNil(t, got.R)
	require.Equal(t, id, got.R.ID)
	require.Equal(t, "tok", got.R.Token)
	require.Len(t, got.R.Values, 1)

	ip, port, err := DecodeCompactPeer(got.R.Values[0])
	require.NoError(t, err)
	require.True(t, ip.Equal(net.IPv4(192, 168, 1, 2)))
	require.EqualValues(t, 6881, port)
}

func TestEncodeDecodeError(t *testing.T) {
	m := Msg{
		T: "cc",
		Y: TypeError,
		E: &ErrBody{Code: 203, Message: "Protocol Error"},
	}
	enc, err := Encode(m)
	require.NoError(t, err)
	require.Equal(t, "d1:eli203e14:Protocol Errore1:t2:cc1:y1:ee", string(enc))

	got, err := Decode(enc)
	require.NoError(t, err)
	require.NotNil(t, got.E)
	require.Equal(t, 203, got.E.Code)
	require.Equal(t, "Protocol Error", got.E.Message)
}

func TestDecodeRejectsMissingY(t *testing.T) {
	_, err := Decode([]byte("d1:t2:aae"))
	require.Error(t, err)
}

func TestDecodeRejectsQueryWithoutArgs(t *testing.T) {
	_, err := Decode([]byte("d1:q4:ping1:t2:aa1:y1:qe"))
	require.Error(t, err)
}

func TestCompactNodesRoundTrip(t *testing.T) {
	var id1, id2 model.InfoHash
	copy(id1[:], "abcdefghij0123456789")
	copy(id2[:], "ABCDEFGHIJ0123456789")
	nodes := []NodeInfo{
		{ID: id1, IP: net.IPv4(10, 0, 0, 1), Port: 1234},
		{ID: id2, IP: net.IPv4(10, 0, 0, 2), Port: 4321},
	}
	enc := EncodeCompactNodes(nodes)
	require.Len(t, enc, 2*compactNodeLen)

	got, err := DecodeCompactNodes(enc)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, id1, got[0].ID)
	require.True(t, got[0].IP.Equal(net.IPv4(10, 0, 0, 1)))
	require.EqualValues(t, 1234, got[0].Port)
}
