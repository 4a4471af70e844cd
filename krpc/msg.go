// Package krpc defines the KRPC message envelope used by the DHT
// (BEP-5) and its BEP-51 sample_infohashes extension: every message is a
// bencoded dictionary with a transaction id ("t"), a type tag ("y"), and
// either query name+args ("q"/"a") or a response/error body ("r"/"e").
package krpc

import "github.com/RIZAmohammadkhan/Serma/model"

// ID is a 20-byte Kademlia node id or info-hash, depending on context.
type ID = model.InfoHash

// Msg is the top-level KRPC envelope.
type Msg struct {
	T string   `bencode:"t"`
	Y string   `bencode:"y"`
	Q string   `bencode:"q,omitempty"`
	A *Args    `bencode:"a,omitempty"`
	R *Return  `bencode:"r,omitempty"`
	E *ErrBody `bencode:"e,omitempty"`
	V string   `bencode:"v,omitempty"` // client version string, cosmetic
	RO bool    `bencode:"ro,omitempty"`
}

// Message type tags (the "y" field).
const (
	TypeQuery    = "q"
	TypeResponse = "r"
	TypeError    = "e"
)

// Query names this spider understands.
const (
	QueryPing             = "ping"
	QueryFindNode         = "find_node"
	QueryGetPeers         = "get_peers"
	QueryAnnouncePeer     = "announce_peer"
	QuerySampleInfohashes = "sample_infohashes"
)

// Args carries the named arguments of a query; unused fields are
// omitted on encode, and absent fields decode as zero values.
type Args struct {
	ID          ID     `bencode:"id"`
	Target      ID     `bencode:"target,omitempty"`
	InfoHash    ID     `bencode:"info_hash,omitempty"`
	Token       string `bencode:"token,omitempty"`
	Port        int    `bencode:"port,omitempty"`
	ImpliedPort int    `bencode:"implied_port,omitempty"`
	// Want lists requested node-address families, e.g. "n4"/"n6" (unused
	// by this spider, which only speaks IPv4, but decoded for
	// compatibility with well-behaved dual-stack peers).
	Want []string `bencode:"want,omitempty"`
}

// Return carries a successful response body.
type Return struct {
	ID     ID     `bencode:"id"`
	Nodes  []byte `bencode:"nodes,omitempty"`  // compact IPv4 node info, 26 bytes each
	Token  string `bencode:"token,omitempty"`
	Values []string `bencode:"values,omitempty"` // compact peer endpoints, 6 bytes each

	// BEP-51
	Interval int64  `bencode:"interval,omitempty"`
	Num      int64  `bencode:"num,omitempty"`
	Samples  []byte `bencode:"samples,omitempty"` // concatenated 20-byte info-hashes
}

// ErrBody carries a KRPC error: a list of [code, message].
type ErrBody struct {
	Code    int
	Message string
}

// MarshalBencodeList and UnmarshalBencodeList would normally be needed
// for ErrBody's non-struct [code, message] wire shape; instead Msg
// encoding/decoding special-cases the "e" key directly (see codec.go),
// keeping the generic struct codec ignorant of this one irregular shape.
