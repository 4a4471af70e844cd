// Package seed ingests an operator-supplied list of known info-hashes:
// one 40-character hex string per line in hashes.txt, fed through the
// same upsert path a live DHT sighting would use. Malformed lines are
// skipped, not fatal.
package seed

import (
	"bufio"
	"context"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/RIZAmohammadkhan/Serma/model"
	"github.com/RIZAmohammadkhan/Serma/pkg/log"
	"github.com/RIZAmohammadkhan/Serma/storage"
)

var logger = log.NewLogger("seed")

var hexLine = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

// seedSeeders is the synthetic seeder count attached to a seeded
// sighting; operators supply hashes with no peer information attached.
const seedSeeders = 0

// Result summarizes one ingestion pass.
type Result struct {
	Accepted int
	Skipped  int
}

// Ingest reads r line by line, validating each as a 40-character hex
// info-hash, and upserts a sighting for every valid one. Blank lines
// and '#' comment lines are ignored without being counted; malformed
// lines, and lines whose upsert fails, are counted as skipped. A single
// bad line never aborts the file.
func Ingest(ctx context.Context, store storage.Store, r io.Reader) (Result, error) {
	var res Result
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !hexLine.MatchString(line) {
			res.Skipped++
			continue
		}
		ih, err := model.ParseInfoHashHex(strings.ToLower(line))
		if err != nil {
			res.Skipped++
			continue
		}
		if err := store.UpsertSighting(ctx, ih, seedSeeders); err != nil {
			logger.Warn().Err(err).Str("info_hash", ih.String()).Msg("seed upsert failed")
			res.Skipped++
			continue
		}
		res.Accepted++
	}
	if err := sc.Err(); err != nil {
		return res, err
	}
	logger.Info().Int("accepted", res.Accepted).Int("skipped", res.Skipped).Msg("seed ingestion complete")
	return res, nil
}

// IngestFile opens path and runs Ingest over its contents.
func IngestFile(ctx context.Context, store storage.Store, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	return Ingest(ctx, store, f)
}
