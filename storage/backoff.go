package storage

import "time"

// backoffBase and backoffCap set enrichment retry scheduling:
// exponential backoff starting at 30s, doubling per failed attempt,
// capped at 24h.
const (
	backoffBase = 30 * time.Second
	backoffCap  = 24 * time.Hour
)

// backoffFor returns how long to wait after the most recent failed
// enrichment attempt before trying ih again.
func backoffFor(failures int32) time.Duration {
	if failures <= 0 {
		return 0
	}
	d := backoffBase
	for i := int32(1); i < failures && d < backoffCap; i++ {
		d *= 2
	}
	if d > backoffCap {
		d = backoffCap
	}
	return d
}
