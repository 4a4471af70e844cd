// Package fulltext is the searchable half of Serma's storage layer: a
// bleve index over model.IndexDoc, ranked by BM25 weighted by freshness
// and seeder count.
package fulltext

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/RIZAmohammadkhan/Serma/model"
	"github.com/RIZAmohammadkhan/Serma/pkg/timecache"
)

// Hit is one ranked search result.
type Hit struct {
	InfoHash string
	Title    string
	Seeders  int32
	Score    float64
}

// Index wraps a bleve index of model.IndexDoc values, keyed by hex
// info-hash.
type Index struct {
	idx bleve.Index
}

// Open creates the index at path if absent, or opens it if present.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return &Index{idx: idx}, nil
	}
	idx, err = bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("fulltext: open/create %s: %w", path, err)
	}
	return &Index{idx: idx}, nil
}

func buildMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = "keyword"
	doc.AddFieldMappingsAt("InfoHash", exact)

	title := bleve.NewTextFieldMapping()
	title.Analyzer = "en"
	doc.AddFieldMappingsAt("Title", title)

	names := bleve.NewTextFieldMapping()
	names.Analyzer = "en"
	names.Store = false
	doc.AddFieldMappingsAt("FileNames", names)

	seeders := bleve.NewNumericFieldMapping()
	doc.AddFieldMappingsAt("Seeders", seeders)

	lastSeen := bleve.NewNumericFieldMapping()
	doc.AddFieldMappingsAt("LastSeenMillis", lastSeen)

	m.AddDocumentMapping("indexdoc", doc)
	m.DefaultMapping = doc
	return m
}

// Close flushes and closes the underlying index.
func (x *Index) Close() error {
	return x.idx.Close()
}

// Index inserts or overwrites doc, keyed by its info-hash.
func (x *Index) Index(doc model.IndexDoc) error {
	if err := x.idx.Index(doc.InfoHash, doc); err != nil {
		return fmt.Errorf("fulltext: index %s: %w", doc.InfoHash, err)
	}
	return nil
}

// Delete removes the document for ih, if present.
func (x *Index) Delete(ih string) error {
	return x.idx.Delete(ih)
}

// freshnessHalfLifeHours is the tunable in score = bm25 *
// 1/(1+hours/halfLife) * log(1+seeders): a torrent last seen this many
// hours ago carries half the weight of one seen right now.
const freshnessHalfLifeHours = 72.0

// Search runs a full-text query over title and file names, returning up
// to limit hits starting at offset, ranked by bm25 weighted by freshness
// and seeder count.
func (x *Index) Search(query string, limit, offset int) ([]Hit, uint64, error) {
	q := bleve.NewDisjunctionQuery(
		bleve.NewMatchQuery(query),
		bleve.NewMatchPhraseQuery(query),
	)
	req := bleve.NewSearchRequestOptions(q, limit, offset, false)
	req.Fields = []string{"InfoHash", "Title", "Seeders", "LastSeenMillis"}

	res, err := x.idx.Search(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fulltext: search: %w", err)
	}

	now := timecache.Now()
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{InfoHash: h.ID, Score: h.Score}
		if t, ok := h.Fields["Title"].(string); ok {
			hit.Title = t
		}
		var lastSeenMillis float64
		var seeders float64
		if v, ok := h.Fields["Seeders"].(float64); ok {
			seeders = v
		}
		if v, ok := h.Fields["LastSeenMillis"].(float64); ok {
			lastSeenMillis = v
		}
		hit.Seeders = int32(seeders)
		hit.Score = h.Score * freshness(now, int64(lastSeenMillis)) * math.Log1p(math.Max(0, seeders))
		hits = append(hits, hit)
	}

	// bleve returns hits ordered by raw BM25 score; re-sort by the
	// composite score above, since it can reorder hits that BM25 alone
	// would not.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	return hits, res.Total, nil
}

func freshness(now time.Time, lastSeenMillis int64) float64 {
	if lastSeenMillis <= 0 {
		return 1
	}
	lastSeen := time.UnixMilli(lastSeenMillis)
	hours := now.Sub(lastSeen).Hours()
	if hours < 0 {
		hours = 0
	}
	return 1 / (1 + hours/freshnessHalfLifeHours)
}
