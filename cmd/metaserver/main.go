// Command metaserver runs the metadata server: the lock manager, keyval
// store, attribute cache, security caches, and SID cache bound together
// behind one HTTP API by internal/metaserver.
//
// Configuration:
//   - METASERVER_ADDR: listen address (default ":8334")
//   - METASERVER_ATTR_CACHE_SIZE: attribute cache entry limit
//   - METASERVER_CAP_TIMEOUT: capability cache rolling hold, e.g. "1m"
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dreamware/pvfsmeta/internal/metaserver"
)

func main() {
	cfg := metaserver.DefaultConfig()
	cfg.Addr = getenv("METASERVER_ADDR", cfg.Addr)
	if n, err := strconv.Atoi(os.Getenv("METASERVER_ATTR_CACHE_SIZE")); err == nil && n > 0 {
		cfg.AttrCacheSize = n
	}
	if d, err := time.ParseDuration(os.Getenv("METASERVER_CAP_TIMEOUT")); err == nil && d > 0 {
		cfg.CapTimeout = d
	}

	srv := metaserver.New(cfg, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("metaserver listening on %s", cfg.Addr)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("metaserver stopped: %v", err)
	}
	log.Println("metaserver stopped")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
