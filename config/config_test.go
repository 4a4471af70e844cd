package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	require.Equal(t, defaultDataDir, cfg.DataDir)
	require.Equal(t, []string{"127.0.0.1:8080", "[::1]:8080"}, cfg.HTTPAddrs)
	require.True(t, cfg.SpiderEnabled)
	require.True(t, cfg.CleanupEnabled)
}

func TestFromEnvDisableSwitches(t *testing.T) {
	withEnv(t, map[string]string{
		"SERMA_SPIDER":  "off",
		"SERMA_CLEANUP": "0",
	})
	cfg := FromEnv()
	require.False(t, cfg.SpiderEnabled)
	require.False(t, cfg.CleanupEnabled)
}

func TestFromEnvBootstrapList(t *testing.T) {
	withEnv(t, map[string]string{
		"SERMA_SPIDER_BOOTSTRAP": "a.example:6881, b.example:6882",
	})
	cfg := FromEnv()
	require.Equal(t, []string{"a.example:6881", "b.example:6882"}, cfg.SpiderBootstrap)
}

func TestFromEnvExplicitAddr(t *testing.T) {
	withEnv(t, map[string]string{"SERMA_ADDR": "0.0.0.0:9090"})
	cfg := FromEnv()
	require.Equal(t, []string{"0.0.0.0:9090"}, cfg.HTTPAddrs)
}
