// Package http implements Serma's collaborator-facing JSON API:
// GET /api/search and GET /api/torrent/<hex>, served over fasthttp.
package http

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/valyala/fasthttp"

	"github.com/RIZAmohammadkhan/Serma/frontend"
	"github.com/RIZAmohammadkhan/Serma/model"
	"github.com/RIZAmohammadkhan/Serma/pkg/conf"
	"github.com/RIZAmohammadkhan/Serma/pkg/log"
	"github.com/RIZAmohammadkhan/Serma/storage"
)

// Name is the registered driver name.
const Name = "http"

var logger = log.NewLogger("frontend/http")

func init() {
	frontend.RegisterBuilder(Name, NewFrontend)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Config configures the HTTP frontend.
type Config struct {
	Addr string `cfg:"addr"`
}

func (cfg Config) withDefaults() Config {
	out := cfg
	if out.Addr == "" {
		out.Addr = "127.0.0.1:8080"
	}
	return out
}

// httpFE is a running fasthttp listener over the storage façade.
type httpFE struct {
	server *fasthttp.Server
	store  storage.Store

	onceCloser sync.Once
	closeErr   error
}

// NewFrontend builds and starts the HTTP JSON API frontend.
func NewFrontend(c conf.MapConfig, store storage.Store) (frontend.Frontend, error) {
	var cfg Config
	if err := c.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	f := &httpFE{store: store}
	f.server = &fasthttp.Server{Handler: f.handle}

	errCh := make(chan error, 1)
	go func() {
		errCh <- f.server.ListenAndServe(cfg.Addr)
	}()
	select {
	case err := <-errCh:
		return nil, err
	default:
	}

	logger.Info().Str("addr", cfg.Addr).Msg("http frontend listening")
	return f, nil
}

// Close shuts the listener down exactly once.
func (f *httpFE) Close() error {
	f.onceCloser.Do(func() {
		f.closeErr = f.server.Shutdown()
	})
	return f.closeErr
}

func (f *httpFE) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	switch {
	case path == "/api/search":
		f.handleSearch(ctx)
	case strings.HasPrefix(path, "/api/torrent/"):
		f.handleTorrent(ctx, strings.TrimPrefix(path, "/api/torrent/"))
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

type searchResult struct {
	InfoHash string `json:"info_hash"`
	Title    string `json:"title"`
	Magnet   string `json:"magnet"`
	Seeders  int32  `json:"seeders"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
	Total   uint64         `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

func (f *httpFE) handleSearch(ctx *fasthttp.RequestCtx) {
	q := string(ctx.QueryArgs().Peek("q"))
	limit := clampLimit(ctx.QueryArgs().GetUintOrZero("limit"))
	offset := ctx.QueryArgs().GetUintOrZero("offset")

	hits, total, err := f.store.Search(context.Background(), q, limit, offset)
	if err != nil {
		logger.Warn().Err(err).Str("q", q).Msg("search failed")
		writeError(ctx, fasthttp.StatusInternalServerError, "search failed")
		return
	}

	resp := searchResponse{Results: make([]searchResult, len(hits)), Total: total, Limit: limit, Offset: offset}
	for i, h := range hits {
		resp.Results[i] = searchResult{
			InfoHash: h.InfoHash,
			Title:    h.Title,
			Magnet:   model.Magnet(mustParseInfoHash(h.InfoHash), h.Title),
			Seeders:  h.Seeders,
		}
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

type torrentResponse struct {
	InfoHash string      `json:"info_hash"`
	Title    *string     `json:"title,omitempty"`
	Magnet   string      `json:"magnet"`
	Seeders  int32       `json:"seeders"`
	Files    []model.File `json:"files,omitempty"`
}

func (f *httpFE) handleTorrent(ctx *fasthttp.RequestCtx, hex string) {
	ih, err := model.ParseInfoHashHex(strings.ToLower(hex))
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "malformed info-hash")
		return
	}

	rec, err := f.store.Get(context.Background(), ih)
	if err == storage.ErrNotFound {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	if err != nil {
		logger.Warn().Err(err).Str("info_hash", ih.String()).Msg("get torrent failed")
		writeError(ctx, fasthttp.StatusInternalServerError, "lookup failed")
		return
	}

	title := ""
	if rec.Title != nil {
		title = *rec.Title
	}
	writeJSON(ctx, fasthttp.StatusOK, torrentResponse{
		InfoHash: rec.InfoHash.String(),
		Title:    rec.Title,
		Magnet:   model.Magnet(rec.InfoHash, title),
		Seeders:  rec.Seeders,
		Files:    rec.Files,
	})
}

func clampLimit(raw int) int {
	if raw <= 0 {
		return defaultLimit
	}
	if raw > maxLimit {
		return maxLimit
	}
	return raw
}

// mustParseInfoHash is safe here: h.InfoHash always comes from our own
// index, keyed by InfoHash.String(), never from untrusted input.
func mustParseInfoHash(hex string) model.InfoHash {
	ih, _ := model.ParseInfoHashHex(hex)
	return ih
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	_, _ = ctx.Write(body)
}

func writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}
