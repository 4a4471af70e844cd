// Command serma runs a self-hosted DHT indexer: the spider, metadata
// enricher, cleanup sweeper, and HTTP API frontend wired together over
// one shared storage façade.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RIZAmohammadkhan/Serma/cleanup"
	"github.com/RIZAmohammadkhan/Serma/config"
	"github.com/RIZAmohammadkhan/Serma/dht"
	"github.com/RIZAmohammadkhan/Serma/enrich"
	"github.com/RIZAmohammadkhan/Serma/frontend"
	_ "github.com/RIZAmohammadkhan/Serma/frontend/http"
	"github.com/RIZAmohammadkhan/Serma/pkg/conf"
	"github.com/RIZAmohammadkhan/Serma/pkg/log"
	"github.com/RIZAmohammadkhan/Serma/pkg/stop"
	"github.com/RIZAmohammadkhan/Serma/seed"
	"github.com/RIZAmohammadkhan/Serma/socks5"
	"github.com/RIZAmohammadkhan/Serma/storage"
)

var logger = log.NewLogger("main")

func main() {
	seedFile := flag.String("seed-file", "", "optional hashes.txt to ingest at startup")
	flag.Parse()

	if err := run(*seedFile); err != nil {
		logger.Error().Err(err).Msg("fatal")
		os.Exit(1)
	}
}

func run(seedFile string) error {
	cfg := config.FromEnv()

	store, err := storage.Open(storage.Config{DataDir: cfg.DataDir})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	group := stop.NewGroup()
	group.Add(store)

	ctx := context.Background()
	if seedFile != "" {
		res, err := seed.IngestFile(ctx, store, seedFile)
		if err != nil {
			return fmt.Errorf("seed ingestion: %w", err)
		}
		logger.Info().Int("accepted", res.Accepted).Int("skipped", res.Skipped).Msg("seeded from file")
	}

	var socksCfg *socks5.Config
	if cfg.SOCKS5Proxy != "" {
		socksCfg = &socks5.Config{
			Addr:     cfg.SOCKS5Proxy,
			Username: cfg.SOCKS5Username,
			Password: cfg.SOCKS5Password,
		}
	}

	var spider *dht.Spider
	var finder enrich.PeerFinder
	if cfg.SpiderEnabled {
		spider, err = dht.New(dht.Config{BindAddr: cfg.SpiderBind, Bootstrap: cfg.SpiderBootstrap}, store, socksCfg)
		if err != nil {
			return fmt.Errorf("start spider: %w", err)
		}
		group.Add(spider)
		finder = spider
		logger.Info().Str("bind", cfg.SpiderBind).Msg("spider started")
	} else {
		logger.Info().Msg("spider disabled (SERMA_SPIDER)")
	}

	if finder != nil {
		enricher := enrich.New(enrich.Config{}, store, finder)
		enricher.Start()
		group.Add(enricher)
		logger.Info().Msg("enricher started")
	}

	if cfg.CleanupEnabled {
		sweeper := cleanup.New(cleanup.Config{}, store)
		sweeper.Start()
		group.Add(sweeper)
		logger.Info().Msg("cleanup sweeper started")
	} else {
		logger.Info().Msg("cleanup disabled (SERMA_CLEANUP)")
	}

	for _, addr := range cfg.HTTPAddrs {
		fe, err := frontend.New("http", conf.MapConfig{"addr": addr}, store)
		if err != nil {
			return fmt.Errorf("start http frontend on %s: %w", addr, err)
		}
		group.Add(closerStopper{fe})
		logger.Info().Str("addr", addr).Msg("http frontend started")
	}

	waitForSignal()
	logger.Info().Msg("shutting down")
	return group.Stop().Err()
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}

// closerStopper adapts an io.Closer-shaped Frontend to stop.Stopper.
type closerStopper struct {
	c interface{ Close() error }
}

func (cs closerStopper) Stop() stop.Result {
	ch := make(stop.Channel)
	go func() { ch.Done(cs.c.Close()) }()
	return ch.Result()
}
