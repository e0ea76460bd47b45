// Command pagecached runs a standalone page buffer cache with an
// admin HTTP surface for stats, metrics, and a live event feed.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mnohosten/pagecache/pkg/adminserver"
	"github.com/mnohosten/pagecache/pkg/buffer"
	"github.com/mnohosten/pagecache/pkg/config"
	"github.com/mnohosten/pagecache/pkg/pagestore"
	"github.com/mnohosten/pagecache/pkg/scheduler"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (optional, defaults are used otherwise)")
	listenAddr := flag.String("listen", "", "Admin HTTP server bind address, overrides config")
	dataDir := flag.String("data-dir", "", "Page store file path, overrides config")
	poolSize := flag.Int("pool-size", 0, "Buffer pool size in frames, overrides config (0 keeps the config value)")
	k := flag.Int("k", 0, "LRU-K's K, overrides config (0 keeps the config value)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *poolSize != 0 {
		cfg.PoolSize = *poolSize
	}
	if *k != 0 {
		cfg.K = *k
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	codecCfg, err := cfg.CodecConfig()
	if err != nil {
		return fmt.Errorf("configure codec: %w", err)
	}

	dm, err := pagestore.NewDiskManager(cfg.DataDir, codecCfg)
	if err != nil {
		return fmt.Errorf("open disk manager: %w", err)
	}
	defer dm.Close()

	sched := scheduler.New(dm, scheduler.Config{
		NumWorkers: cfg.SchedulerWorkers,
		QueueSize:  cfg.SchedulerQueue,
	})
	defer sched.Shutdown()

	pool := buffer.New(buffer.Config{PoolSize: cfg.PoolSize, K: cfg.K}, sched, dm)

	var flusher *buffer.Flusher
	if cfg.FlushInterval > 0 {
		flusher = buffer.NewFlusher(pool, cfg.FlushInterval)
		flusher.Start()
		defer flusher.Stop()
	}

	srv := adminserver.New(cfg, pool, dm)
	return srv.Start()
}
