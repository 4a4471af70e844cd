package http

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/RIZAmohammadkhan/Serma/bencode"
	"github.com/RIZAmohammadkhan/Serma/model"
	"github.com/RIZAmohammadkhan/Serma/storage"
)

func openTestStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.Open(storage.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Stop().Err()) })
	return s
}

func seedRecord(t *testing.T, s storage.Store, name string, seeders int32) model.InfoHash {
	t.Helper()
	enc, err := bencode.Marshal(map[string]any{"name": name, "length": int64(1)})
	require.NoError(t, err)
	sum := sha1.Sum(enc)
	ih, err := model.NewInfoHash(sum[:])
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.UpsertSighting(ctx, ih, seeders))
	require.NoError(t, s.StoreMetadata(ctx, ih, enc))
	return ih
}

func doRequest(f *httpFE, uri string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.SetRequestURI(uri)
	var rctx fasthttp.RequestCtx
	rctx.Init(&req, nil, nil)
	f.handle(&rctx)
	return &rctx
}

func TestHandleSearchReturnsMagnetAndTotal(t *testing.T) {
	store := openTestStore(t)
	ih := seedRecord(t, store, "my-linux-distro", 9)
	f := &httpFE{store: store}

	rctx := doRequest(f, "/api/search?q=linux")
	require.Equal(t, fasthttp.StatusOK, rctx.Response.StatusCode())

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rctx.Response.Body(), &resp))
	require.Len(t, resp.Results, 1)
	require.EqualValues(t, 1, resp.Total)
	require.Equal(t, ih.String(), resp.Results[0].InfoHash)
	require.True(t, strings.HasPrefix(resp.Results[0].Magnet, "magnet:?xt=urn:btih:"+ih.String()))
	require.EqualValues(t, 9, resp.Results[0].Seeders)
	require.Equal(t, defaultLimit, resp.Limit)
}

func TestHandleSearchClampsLimit(t *testing.T) {
	store := openTestStore(t)
	f := &httpFE{store: store}

	rctx := doRequest(f, "/api/search?q=x&limit=99999")
	var resp searchResponse
	require.NoError(t, json.Unmarshal(rctx.Response.Body(), &resp))
	require.Equal(t, maxLimit, resp.Limit)
}

func TestHandleTorrentFound(t *testing.T) {
	store := openTestStore(t)
	ih := seedRecord(t, store, "specific-torrent", 2)
	f := &httpFE{store: store}

	rctx := doRequest(f, "/api/torrent/"+ih.String())
	require.Equal(t, fasthttp.StatusOK, rctx.Response.StatusCode())

	var resp torrentResponse
	require.NoError(t, json.Unmarshal(rctx.Response.Body(), &resp))
	require.Equal(t, ih.String(), resp.InfoHash)
	require.Equal(t, "specific-torrent", *resp.Title)
}

func TestHandleTorrentNotFound(t *testing.T) {
	store := openTestStore(t)
	f := &httpFE{store: store}

	rctx := doRequest(f, "/api/torrent/"+strings.Repeat("ab", 20))
	require.Equal(t, fasthttp.StatusNotFound, rctx.Response.StatusCode())
}

func TestHandleTorrentMalformedHash(t *testing.T) {
	store := openTestStore(t)
	f := &httpFE{store: store}

	rctx := doRequest(f, "/api/torrent/not-a-hash")
	require.Equal(t, fasthttp.StatusBadRequest, rctx.Response.StatusCode())
}
