package dht

import "time"

// Config configures one Spider instance.
type Config struct {
	BindAddr     string        `cfg:"bind_addr"`
	Workers      int           `cfg:"workers"`
	Bootstrap    []string      `cfg:"bootstrap"`
	WalkInterval time.Duration `cfg:"walk_interval"`
	QueryTimeout time.Duration `cfg:"query_timeout"`

	// ParseQueueSize bounds the lock-free queue between the UDP receive
	// loop and the dispatcher pool; once full, the oldest unparsed
	// packet is silently dropped.
	ParseQueueSize int `cfg:"parse_queue_size"`
	// DispatchWorkers is the size of the fixed pool draining the parse
	// queue, decoupling packet arrival rate from handling cost.
	DispatchWorkers int `cfg:"dispatch_workers"`

	// OutboundQueriesPerSecond caps the rate of queries the walker and
	// lookup issue — a well-behaved node never floods the network it's
	// eavesdropping on.
	OutboundQueriesPerSecond float64 `cfg:"outbound_queries_per_second"`
}

func (cfg Config) withDefaults() Config {
	out := cfg
	if out.BindAddr == "" {
		out.BindAddr = "0.0.0.0:6881"
	}
	if out.Workers <= 0 {
		out.Workers = 1
	}
	if out.WalkInterval <= 0 {
		out.WalkInterval = 5 * time.Second
	}
	if out.QueryTimeout <= 0 {
		out.QueryTimeout = 5 * time.Second
	}
	if out.ParseQueueSize <= 0 {
		out.ParseQueueSize = 1024
	}
	if out.DispatchWorkers <= 0 {
		out.DispatchWorkers = 4
	}
	if out.OutboundQueriesPerSecond <= 0 {
		out.OutboundQueriesPerSecond = 100
	}
	if len(out.Bootstrap) == 0 {
		out.Bootstrap = []string{
			"router.bittorrent.com:6881",
			"dht.transmissionbt.com:6881",
			"router.utorrent.com:6881",
		}
	}
	return out
}
