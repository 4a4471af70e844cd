package model

import (
	"fmt"
	"net/url"
	"strings"
)

// File is one entry of a multi-file torrent's file list.
type File struct {
	Name   string `json:"name"`
	Length int64  `json:"length"`
}

// Record is the canonical, durable representation of a discovered
// torrent. Fields left nil/zero mean "not yet known".
type Record struct {
	InfoHash InfoHash `json:"info_hash"`

	Title *string `json:"title,omitempty"`
	// InfoDict holds the raw bytes of the bencoded `info` dictionary
	// exactly as received; it is never re-encoded, since SHA-1
	// verification depends on byte-for-byte stability. encoding/json
	// base64-encodes a []byte field automatically, so the raw bytes
	// round-trip through storage without a custom codec.
	InfoDict []byte `json:"info_dict,omitempty"`
	Files    []File `json:"files,omitempty"`

	Seeders int32 `json:"seeders"`

	FirstSeenMillis        int64 `json:"first_seen"`
	LastSeenMillis         int64 `json:"last_seen"`
	LastEnrichAttemptMillis int64 `json:"last_enrich_attempt"`
	EnrichFailures         int32 `json:"enrich_failures"`
}

// HasMetadata reports whether the info dictionary has been fetched and
// verified. Index membership mirrors this flag.
func (r *Record) HasMetadata() bool {
	return r.InfoDict != nil
}

// Magnet synthesizes a magnet link from the info-hash and, if known,
// the title — valid even with no info dict present.
func (r *Record) Magnet() string {
	m := "magnet:?xt=urn:btih:" + r.InfoHash.String()
	if r.Title != nil && *r.Title != "" {
		m += "&dn=" + url.QueryEscape(*r.Title)
	}
	return m
}

// Magnet builds a magnet link directly from an info-hash and optional
// display name, for callers (e.g. the HTTP frontend) that only have a
// hash and a title, not a full Record.
func Magnet(ih InfoHash, title string) string {
	m := "magnet:?xt=urn:btih:" + ih.String()
	if title = strings.TrimSpace(title); title != "" {
		m += "&dn=" + url.QueryEscape(title)
	}
	return m
}

// String is a compact debug representation.
func (r *Record) String() string {
	title := "<no title>"
	if r.Title != nil {
		title = *r.Title
	}
	return fmt.Sprintf("Record{%s %q seeders=%d enriched=%v}", r.InfoHash, title, r.Seeders, r.HasMetadata())
}
