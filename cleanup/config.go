// Package cleanup implements Serma's periodic corpus eviction: a
// ticker-driven sweep that removes records which have exhausted
// enrichment retries or gone stale with no seeders.
package cleanup

import "time"

// Config controls one Sweeper's thresholds. Thresholds are
// collaborator-supplied config, not environment variables — the
// enumerated environment-variable set only exposes SERMA_CLEANUP as an
// on/off switch, leaving the thresholds themselves to whatever wires
// cleanup up (cmd/serma, or a test).
type Config struct {
	Interval time.Duration `cfg:"interval"`
	// MaxEnrichFailures (F) evicts a record once enrich_failures
	// exceeds it with metadata still missing.
	MaxEnrichFailures int32 `cfg:"max_enrich_failures"`
	// StaleAfter (T) evicts a zero-seeder record once its last sighting
	// is older than this.
	StaleAfter time.Duration `cfg:"stale_after"`
}

func (cfg Config) withDefaults() Config {
	out := cfg
	if out.Interval <= 0 {
		out.Interval = 10 * time.Second
	}
	if out.MaxEnrichFailures <= 0 {
		out.MaxEnrichFailures = 5
	}
	if out.StaleAfter <= 0 {
		out.StaleAfter = 14 * 24 * time.Hour
	}
	return out
}
