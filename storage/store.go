package storage

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/RIZAmohammadkhan/Serma/model"
	"github.com/RIZAmohammadkhan/Serma/pkg/conf"
	"github.com/RIZAmohammadkhan/Serma/pkg/log"
	"github.com/RIZAmohammadkhan/Serma/pkg/metrics"
	"github.com/RIZAmohammadkhan/Serma/pkg/stop"
	"github.com/RIZAmohammadkhan/Serma/pkg/timecache"
	"github.com/RIZAmohammadkhan/Serma/storage/fulltext"
	"github.com/RIZAmohammadkhan/Serma/storage/kv"
)

// Name is the driver name this package registers itself under: a bbolt
// KV store paired with a bleve full-text index, both rooted under one
// data directory.
const Name = "bolt_bleve"

var logger = log.NewLogger(Name)

func init() {
	RegisterBuilder(Name, builder)
}

// Config configures the bolt_bleve driver.
type Config struct {
	DataDir string `cfg:"data_dir"`
}

func builder(icfg conf.MapConfig) (Store, error) {
	var cfg Config
	if err := icfg.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		return nil, errors.New("storage: data_dir is required")
	}
	return Open(cfg)
}

type boltBleveStore struct {
	kv  *kv.Store
	idx *fulltext.Index
}

// Open constructs the default Store over cfg.DataDir, creating it if
// absent.
func Open(cfg Config) (Store, error) {
	kvStore, err := kv.Open(filepath.Join(cfg.DataDir, "serma.db"))
	if err != nil {
		return nil, err
	}
	idx, err := fulltext.Open(filepath.Join(cfg.DataDir, "serma.bleve"))
	if err != nil {
		_ = kvStore.Close()
		return nil, err
	}
	return &boltBleveStore{kv: kvStore, idx: idx}, nil
}

func (s *boltBleveStore) UpsertSighting(_ context.Context, ih model.InfoHash, seeders int32) error {
	now := timecache.NowUnixMilli()
	rec, err := s.kv.Get(ih)
	if errors.Is(err, kv.ErrNotFound) {
		rec = &model.Record{InfoHash: ih, FirstSeenMillis: now}
	} else if err != nil {
		return err
	}
	rec.Seeders = seeders
	rec.LastSeenMillis = now

	if err := s.kv.Put(rec); err != nil {
		return err
	}
	if metrics.Enabled() {
		metrics.PromSightingsTotal.WithLabelValues("false").Inc()
	}
	if rec.HasMetadata() {
		// Seeder count and freshness changed; refresh the ranking inputs.
		return s.idx.Index(model.NewIndexDoc(rec))
	}
	return nil
}

func (s *boltBleveStore) StoreMetadata(_ context.Context, ih model.InfoHash, infoDict []byte) error {
	title, files, err := verifyAndParseInfoDict(ih, infoDict)
	if err != nil {
		return err
	}

	rec, err := s.kv.Get(ih)
	if errors.Is(err, kv.ErrNotFound) {
		now := timecache.NowUnixMilli()
		rec = &model.Record{InfoHash: ih, FirstSeenMillis: now, LastSeenMillis: now}
	} else if err != nil {
		return err
	}

	rec.Title = &title
	rec.InfoDict = infoDict
	rec.Files = files
	rec.EnrichFailures = 0

	if err := s.kv.Put(rec); err != nil {
		return err
	}
	if metrics.Enabled() {
		metrics.PromEnrichedCount.Inc()
	}
	return s.idx.Index(model.NewIndexDoc(rec))
}

func (s *boltBleveStore) RecordEnrichAttempt(_ context.Context, ih model.InfoHash) error {
	rec, err := s.kv.Get(ih)
	if err != nil {
		return err
	}
	rec.LastEnrichAttemptMillis = timecache.NowUnixMilli()
	rec.EnrichFailures++
	return s.kv.Put(rec)
}

func (s *boltBleveStore) Get(_ context.Context, ih model.InfoHash) (*model.Record, error) {
	rec, err := s.kv.Get(ih)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *boltBleveStore) IterMissingMetadata(_ context.Context, fn func(model.InfoHash) bool) error {
	now := timecache.NowUnixMilli()
	return s.kv.Range(func(rec *model.Record) bool {
		if rec.HasMetadata() {
			return true
		}
		wait := backoffFor(rec.EnrichFailures)
		if rec.LastEnrichAttemptMillis != 0 && now-rec.LastEnrichAttemptMillis < wait.Milliseconds() {
			return true
		}
		return fn(rec.InfoHash)
	})
}

func (s *boltBleveStore) IterAll(_ context.Context, fn func(*model.Record) bool) error {
	return s.kv.Range(fn)
}

func (s *boltBleveStore) Search(_ context.Context, query string, limit, offset int) ([]SearchHit, uint64, error) {
	start := timecache.Now()
	hits, total, err := s.idx.Search(query, limit, offset)
	if metrics.Enabled() {
		metrics.PromSearchDurationMilliseconds.Observe(float64(timecache.Now().Sub(start).Milliseconds()))
	}
	if err != nil {
		return nil, 0, err
	}
	out := make([]SearchHit, len(hits))
	for i, h := range hits {
		out[i] = SearchHit{InfoHash: h.InfoHash, Title: h.Title, Seeders: h.Seeders, Score: h.Score}
	}
	return out, total, nil
}

func (s *boltBleveStore) Delete(_ context.Context, ih model.InfoHash) error {
	// Two separate writes by design: the index delete can fail or crash
	// after the KV delete commits, leaving a dangling search hit; the
	// cleanup sweeper scans KV records only, so it does not remove it.
	if err := s.kv.Delete(ih); err != nil {
		return err
	}
	if err := s.idx.Delete(ih.String()); err != nil {
		logger.Warn().Err(err).Str("info_hash", ih.String()).Msg("index delete failed after kv delete committed")
		return err
	}
	return nil
}

func (s *boltBleveStore) Count(_ context.Context) (int, error) {
	return s.kv.Count()
}

func (s *boltBleveStore) Stop() stop.Result {
	c := make(stop.Channel)
	go func() {
		err := s.idx.Close()
		if kvErr := s.kv.Close(); err == nil {
			err = kvErr
		}
		c.Done(err)
	}()
	return c.Result()
}
