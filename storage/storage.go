// Package storage is Serma's storage façade: a registry of Store
// drivers in the same Register/Builder shape used for other pluggable
// backends, fronting the dual KV (storage/kv) and full-text
// (storage/fulltext) engines that actually hold data.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RIZAmohammadkhan/Serma/model"
	"github.com/RIZAmohammadkhan/Serma/pkg/conf"
	"github.com/RIZAmohammadkhan/Serma/pkg/stop"
)

// ErrNotFound is returned by Get when no record exists for the
// requested info-hash.
var ErrNotFound = errors.New("storage: record not found")

// ErrHashMismatch is returned by StoreMetadata when a received info
// dict's SHA-1 does not equal the info-hash it was fetched for.
var ErrHashMismatch = errors.New("storage: info dict does not hash to its info-hash")

// SearchHit is one ranked result of Search.
type SearchHit struct {
	InfoHash string
	Title    string
	Seeders  int32
	Score    float64
}

// Store is the interface the spider, enricher, cleanup sweeper and HTTP
// frontend all depend on; concrete drivers register via RegisterBuilder.
type Store interface {
	// UpsertSighting records that ih was observed with the given seeder
	// count, creating the record if this is the first sighting.
	UpsertSighting(ctx context.Context, ih model.InfoHash, seeders int32) error

	// StoreMetadata attaches a verified info dict to ih's record, creating
	// the record if none exists, and projects it into the full-text index.
	// infoDict must hash to ih.
	StoreMetadata(ctx context.Context, ih model.InfoHash, infoDict []byte) error

	// RecordEnrichAttempt marks that metadata enrichment for ih was
	// attempted and failed, advancing its retry backoff.
	RecordEnrichAttempt(ctx context.Context, ih model.InfoHash) error

	// Get returns the stored record for ih, or ErrNotFound.
	Get(ctx context.Context, ih model.InfoHash) (*model.Record, error)

	// IterMissingMetadata calls fn for every record without metadata
	// whose retry backoff has elapsed. fn returning false stops the scan.
	IterMissingMetadata(ctx context.Context, fn func(model.InfoHash) bool) error

	// IterAll calls fn for every stored record regardless of enrichment
	// state or backoff, for callers (cleanup) that apply their own
	// eviction policy rather than the enrichment retry schedule. fn
	// returning false stops the scan.
	IterAll(ctx context.Context, fn func(*model.Record) bool) error

	// Search runs a ranked full-text query over titles and file names,
	// returning up to limit hits starting at offset plus the total
	// number of matching documents.
	Search(ctx context.Context, query string, limit, offset int) (hits []SearchHit, total uint64, err error)

	// Delete removes a record from both the KV store and the full-text
	// index. The two writes are not transactional together: the KV delete
	// runs first, so a crash or index failure between them leaves a search
	// hit for a record the KV store no longer has. The cleanup sweeper
	// scans KV records only and does not remove such a hit.
	Delete(ctx context.Context, ih model.InfoHash) error

	// Count returns the total number of stored records.
	Count(ctx context.Context) (int, error)

	stop.Stopper
}

// Builder constructs a Store from configuration.
type Builder func(conf.MapConfig) (Store, error)

var (
	buildersMu sync.Mutex
	builders   = make(map[string]Builder)
)

// RegisterBuilder makes a Store driver available under name. It panics
// if called twice with the same name.
func RegisterBuilder(name string, b Builder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	if _, dup := builders[name]; dup {
		panic("storage: RegisterBuilder called twice for driver " + name)
	}
	builders[name] = b
}

// NewStore builds the named driver from cfg.
func NewStore(name string, cfg conf.MapConfig) (Store, error) {
	buildersMu.Lock()
	b, ok := builders[name]
	buildersMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown store driver %q", name)
	}
	return b(cfg)
}
