// Package enrich implements Serma's metadata enricher: given an
// info-hash lacking metadata, it runs an iterative DHT peer
// lookup, attempts the BitTorrent handshake and BEP-9 metadata
// exchange against a bounded number of candidate peers concurrently,
// and hands the first verified info dict to storage.
package enrich

import (
	"bytes"
	"context"
	"crypto/sha1"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RIZAmohammadkhan/Serma/model"
	"github.com/RIZAmohammadkhan/Serma/pkg/log"
	"github.com/RIZAmohammadkhan/Serma/pkg/metrics"
	"github.com/RIZAmohammadkhan/Serma/pkg/stop"
	"github.com/RIZAmohammadkhan/Serma/storage"
)

var logger = log.NewLogger("enrich")

// PeerFinder locates candidate peers for an info-hash; dht.Spider
// satisfies this via its FindPeers method.
type PeerFinder interface {
	FindPeers(ctx context.Context, ih model.InfoHash) ([]*net.UDPAddr, error)
}

// Enricher periodically sweeps storage for un-enriched records and
// attempts to fetch their metadata.
type Enricher struct {
	cfg    Config
	store  storage.Store
	finder PeerFinder

	closing chan struct{}
	wg      sync.WaitGroup

	inflightMu sync.Mutex
	inflight   map[model.InfoHash]context.CancelFunc
}

// New returns an Enricher that will source peers via finder and read
// and write records through store. Call Start to begin sweeping.
func New(cfg Config, store storage.Store, finder PeerFinder) *Enricher {
	return &Enricher{
		cfg:      cfg.withDefaults(),
		store:    store,
		finder:   finder,
		closing:  make(chan struct{}),
		inflight: make(map[model.InfoHash]context.CancelFunc),
	}
}

// Start launches the sweep loop in the background.
func (e *Enricher) Start() {
	e.wg.Add(1)
	go e.sweepLoop()
}

// Stop cancels every in-flight enrichment attempt and waits for the
// sweep loop to exit.
func (e *Enricher) Stop() stop.Result {
	c := make(stop.Channel)
	go func() {
		close(e.closing)

		e.inflightMu.Lock()
		for _, cancel := range e.inflight {
			cancel()
		}
		e.inflightMu.Unlock()

		e.wg.Wait()
		c.Done(nil)
	}()
	return c.Result()
}

func (e *Enricher) sweepLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.closing:
			return
		case <-ticker.C:
			e.sweepOnce()
		}
	}
}

// sweepOnce collects pending info-hashes and fans them out across a
// bounded errgroup.
func (e *Enricher) sweepOnce() {
	ctx := context.Background()
	var pending []model.InfoHash

	err := e.store.IterMissingMetadata(ctx, func(ih model.InfoHash) bool {
		pending = append(pending, ih)
		return len(pending) < e.cfg.HashConcurrency*4
	})
	if err != nil {
		logger.Warn().Err(err).Msg("scan for missing metadata")
		return
	}

	g, gctx := errgroup.WithContext(context.Background())
	g.SetLimit(e.cfg.HashConcurrency)
	for _, ih := range pending {
		ih := ih
		g.Go(func() error {
			e.enrichOne(gctx, ih)
			return nil
		})
	}
	_ = g.Wait()
}

// enrichOne drives one info-hash's full lookup-then-attempt cycle.
func (e *Enricher) enrichOne(ctx context.Context, ih model.InfoHash) {
	select {
	case <-e.closing:
		return
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	e.inflightMu.Lock()
	e.inflight[ih] = cancel
	e.inflightMu.Unlock()
	defer func() {
		e.inflightMu.Lock()
		delete(e.inflight, ih)
		e.inflightMu.Unlock()
		cancel()
	}()

	lookupCtx, lookupCancel := context.WithTimeout(ctx, e.cfg.LookupTimeout)
	peers, err := e.finder.FindPeers(lookupCtx, ih)
	lookupCancel()
	if err != nil || len(peers) == 0 {
		e.fail(ctx, ih)
		return
	}

	infoDict := e.attemptPeers(ctx, ih, peers)
	if infoDict == nil {
		e.fail(ctx, ih)
		return
	}

	if err := e.store.StoreMetadata(ctx, ih, infoDict); err != nil {
		logger.Debug().Err(err).Str("info_hash", ih.String()).Msg("store metadata")
		e.fail(ctx, ih)
		return
	}
	e.countAttempt("success")
}

func (e *Enricher) fail(ctx context.Context, ih model.InfoHash) {
	e.countAttempt("exhausted")
	if err := e.store.RecordEnrichAttempt(ctx, ih); err != nil {
		logger.Debug().Err(err).Str("info_hash", ih.String()).Msg("record enrich attempt")
	}
}

func (e *Enricher) countAttempt(outcome string) {
	if metrics.Enabled() {
		metrics.PromEnrichAttemptsTotal.WithLabelValues(outcome).Inc()
	}
}

// attemptPeers races up to cfg.PeerConcurrency peer attempts at once,
// returning the first verified info dict and cancelling the rest.
func (e *Enricher) attemptPeers(ctx context.Context, ih model.InfoHash, peers []*net.UDPAddr) []byte {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.TransferTimeout)
	defer cancel()

	type result struct {
		infoDict []byte
	}
	results := make(chan result, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.PeerConcurrency)

	for _, p := range peers {
		p := p
		g.Go(func() error {
			infoDict, err := e.attemptPeer(gctx, ih, &net.TCPAddr{IP: p.IP, Port: p.Port})
			if err != nil {
				return nil // a failed peer does not abort the others
			}
			if !verifiesInfoHash(ih, infoDict) {
				// a corrupt or adversarial peer must not abort
				// in-flight attempts from legitimate peers
				return nil
			}
			select {
			case results <- result{infoDict: infoDict}:
				cancel() // first verified transfer wins; stop the rest
			default:
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() { _ = g.Wait(); close(done) }()

	select {
	case r := <-results:
		<-done
		return r.infoDict
	case <-done:
		select {
		case r := <-results:
			return r.infoDict
		default:
			return nil
		}
	}
}

// verifiesInfoHash reports whether infoDict's SHA-1 equals ih, the same
// check storage.StoreMetadata makes before persisting. Checked here too
// so that a corrupt or adversarial peer's transfer can never cancel a
// sibling attempt that would have verified.
func verifiesInfoHash(ih model.InfoHash, infoDict []byte) bool {
	sum := sha1.Sum(infoDict)
	return bytes.Equal(sum[:], ih.Bytes())
}
