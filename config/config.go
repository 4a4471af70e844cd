// Package config parses Serma's process-level environment configuration:
// a small, enumerated set of SERMA_* variables, each with a concrete
// effect on startup.
package config

import (
	"os"
	"strings"
)

// Config is the fully resolved process configuration.
type Config struct {
	DataDir string

	// HTTPAddrs is every address the HTTP API frontend should listen
	// on. When SERMA_ADDR is set explicitly, this is exactly that one
	// address; otherwise it is both the IPv4 and IPv6 loopback on
	// SERMA_WEB_PORT.
	HTTPAddrs []string

	SpiderEnabled    bool
	SpiderBind       string
	SpiderBootstrap  []string

	CleanupEnabled bool

	SOCKS5Proxy    string
	SOCKS5Username string
	SOCKS5Password string
}

const (
	defaultDataDir   = "./serma-data"
	defaultWebPort   = "8080"
	defaultLoopback4 = "127.0.0.1:"
	defaultLoopback6 = "[::1]:"
)

// FromEnv resolves a Config from the process environment, applying
// sensible defaults for anything unset.
func FromEnv() Config {
	cfg := Config{
		DataDir:        getenvDefault("SERMA_DATA_DIR", defaultDataDir),
		SpiderEnabled:  !isFalsy(os.Getenv("SERMA_SPIDER")),
		SpiderBind:     os.Getenv("SERMA_SPIDER_BIND"),
		CleanupEnabled: !isFalsy(os.Getenv("SERMA_CLEANUP")),
		SOCKS5Proxy:    os.Getenv("SERMA_SOCKS5_PROXY"),
		SOCKS5Username: os.Getenv("SERMA_SOCKS5_USERNAME"),
		SOCKS5Password: os.Getenv("SERMA_SOCKS5_PASSWORD"),
	}

	if addr := os.Getenv("SERMA_ADDR"); addr != "" {
		cfg.HTTPAddrs = []string{addr}
	} else {
		port := getenvDefault("SERMA_WEB_PORT", defaultWebPort)
		cfg.HTTPAddrs = []string{defaultLoopback4 + port, defaultLoopback6 + port}
	}

	if bootstrap := os.Getenv("SERMA_SPIDER_BOOTSTRAP"); bootstrap != "" {
		for _, addr := range strings.Split(bootstrap, ",") {
			addr = strings.TrimSpace(addr)
			if addr != "" {
				cfg.SpiderBootstrap = append(cfg.SpiderBootstrap, addr)
			}
		}
	}

	return cfg
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// isFalsy matches the disable-switch vocabulary: "0", "false", "off",
// "no" (case-insensitive); everything else, including unset, means
// enabled.
func isFalsy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "off", "no":
		return true
	default:
		return false
	}
}
