// Package model defines Serma's core data types: InfoHash, Record,
// IndexDoc, and the magnet-link helper used even when a record has no
// metadata yet.
package model

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// InfoHashLen is the fixed length of a BitTorrent v1 info-hash: the SHA-1
// digest of the bencoded info dictionary.
const InfoHashLen = 20

// ErrInvalidInfoHash is returned when raw or hex input is not exactly
// InfoHashLen bytes / 2*InfoHashLen hex characters.
var ErrInvalidInfoHash = errors.New("model: info-hash must be 20 bytes")

// InfoHash is the 20-byte content identifier of a torrent. Every Record
// carries one, always exactly 20 bytes.
type InfoHash [InfoHashLen]byte

// NewInfoHash validates and wraps a raw 20-byte info-hash.
func NewInfoHash(raw []byte) (InfoHash, error) {
	var ih InfoHash
	if len(raw) != InfoHashLen {
		return ih, ErrInvalidInfoHash
	}
	copy(ih[:], raw)
	return ih, nil
}

// ParseInfoHashHex parses a 40-character lowercase-or-uppercase hex
// string into an InfoHash.
func ParseInfoHashHex(s string) (InfoHash, error) {
	var ih InfoHash
	if len(s) != InfoHashLen*2 {
		return ih, ErrInvalidInfoHash
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ih, fmt.Errorf("%w: %w", ErrInvalidInfoHash, err)
	}
	copy(ih[:], raw)
	return ih, nil
}

// Bytes returns the raw 20-byte identifier.
func (ih InfoHash) Bytes() []byte {
	return ih[:]
}

// String renders the canonical 40-character lowercase hex form, the
// form used as the index key everywhere a Record is looked up.
func (ih InfoHash) String() string {
	return hex.EncodeToString(ih[:])
}
