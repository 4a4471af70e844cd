// Package frontend defines the pluggable external-interface registry:
// a Frontend is anything that serves collaborator-facing traffic off of
// storage, built from the same Register/Builder shape used by
// storage's driver registry.
package frontend

import (
	"fmt"
	"sync"

	"github.com/RIZAmohammadkhan/Serma/pkg/conf"
	"github.com/RIZAmohammadkhan/Serma/storage"
)

// Frontend is a running external-interface listener.
type Frontend interface {
	// Close shuts the frontend down, blocking until its listener(s)
	// have stopped accepting new work.
	Close() error
}

// Builder constructs a Frontend from configuration and the storage
// façade it serves.
type Builder func(cfg conf.MapConfig, store storage.Store) (Frontend, error)

var (
	buildersMu sync.Mutex
	builders   = make(map[string]Builder)
)

// RegisterBuilder makes a Frontend driver available under name. It
// panics if called twice with the same name, mirroring storage's
// registry idiom.
func RegisterBuilder(name string, b Builder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	if _, dup := builders[name]; dup {
		panic("frontend: RegisterBuilder called twice for driver " + name)
	}
	builders[name] = b
}

// New builds the named driver from cfg.
func New(name string, cfg conf.MapConfig, store storage.Store) (Frontend, error) {
	buildersMu.Lock()
	b, ok := builders[name]
	buildersMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("frontend: unknown driver %q", name)
	}
	return b(cfg, store)
}
