// Package metaserver is the composition root binding every engine of
// SPEC_FULL.md together behind one HTTP surface: the lock manager (4.D),
// keyval store (4.E), attribute cache (4.F), security caches (4.G), and
// SID cache (4.H), plus the job queue's timeout sweeper (§5). It plays
// the role the teacher's coordinator `server` struct plays for the
// cluster: one struct owning every collaborator, wired up in New
// and exposed over a small JSON API.
package metaserver

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/pvfsmeta/internal/attrcache"
	"github.com/dreamware/pvfsmeta/internal/jobqueue"
	"github.com/dreamware/pvfsmeta/internal/keyval"
	"github.com/dreamware/pvfsmeta/internal/lockmgr"
	"github.com/dreamware/pvfsmeta/internal/logging"
	"github.com/dreamware/pvfsmeta/internal/seccache"
	"github.com/dreamware/pvfsmeta/internal/sidcache"
)

// Config holds the tunables a deployment picks at startup.
type Config struct {
	Addr string

	AttrCacheSize  int
	CapEntryLimit  int
	CapHashLimit   int
	CapTimeout     time.Duration
	CredEntryLimit int
	RevEntryLimit  int

	SweepInterval time.Duration
}

// DefaultConfig returns the tunables the teacher's own defaults would
// suggest: modest cache sizes, a one-minute capability hold, and a
// one-second job sweep matching the timeout wheel's second-granularity
// buckets.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8334",
		AttrCacheSize:  4096,
		CapEntryLimit:  2048,
		CapHashLimit:   256,
		CapTimeout:     time.Minute,
		CredEntryLimit: 2048,
		RevEntryLimit:  1024,
		SweepInterval:  time.Second,
	}
}

// Server owns every engine collaborator plus the HTTP mux that exposes
// them. Each engine holds its own lock (spec.md §5); Server adds no
// locking of its own beyond what building the mux requires.
type Server struct {
	cfg Config

	Locks      *lockmgr.Manager
	Keyvals    *keyval.Store
	Attrs      *attrcache.Cache
	Caps       *seccache.CapabilityCache
	Creds      *seccache.CredentialCache
	Revoked    *seccache.RevocationList
	Servers    *sidcache.Catalog
	Jobs       *jobqueue.Queue
	Log        *logging.Logger
	addrByURL  sidcache.Resolver
	httpServer *http.Server
}

// New builds a Server with every engine wired up per cfg. resolver backs
// the SID cache's BMI address resolution (spec.md §4.H.4); pass nil to
// run without address resolution (get_addr then only serves pre-resolved
// records).
func New(cfg Config, resolver sidcache.Resolver) *Server {
	now := time.Now
	s := &Server{
		cfg:       cfg,
		Locks:     lockmgr.NewManager(),
		Keyvals:   keyval.New(),
		Attrs:     attrcache.New(cfg.AttrCacheSize, nil),
		Caps:      seccache.NewCapabilityCache(seccache.Properties{EntryLimit: cfg.CapEntryLimit, HashLimit: cfg.CapHashLimit, Timeout: cfg.CapTimeout}, now),
		Creds:     seccache.NewCredentialCache(seccache.Properties{EntryLimit: cfg.CredEntryLimit, HashLimit: cfg.CapHashLimit}, now),
		Revoked:   seccache.NewRevocationList(seccache.Properties{EntryLimit: cfg.RevEntryLimit, HashLimit: cfg.CapHashLimit}, now),
		Servers:   sidcache.NewCatalog(),
		Jobs:      jobqueue.NewQueue(),
		Log:       logging.New().Named("metaserver"),
		addrByURL: resolver,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Resolved returns an address resolver bound to this server's catalog,
// or nil if no transport resolver was configured.
func (s *Server) Resolved() *sidcache.Resolved {
	if s.addrByURL == nil {
		return nil
	}
	return sidcache.NewResolved(s.Servers, s.addrByURL)
}

// Run starts the HTTP server and the job timeout sweeper, and blocks
// until ctx is cancelled, shutting both down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.Log.Sync()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- s.httpServer.ListenAndServe() }()
		select {
		case <-gctx.Done():
			s.Log.Infow("shutting down", "addr", s.cfg.Addr)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return s.httpServer.Shutdown(shutdownCtx)
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			s.Log.Errorw("http server exited", "error", err)
			return err
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case t := <-ticker.C:
				if n := s.Jobs.Sweep(t.Unix()); n > 0 {
					s.Log.Debugw("jobs timed out", "count", n)
				}
			}
		}
	})

	return g.Wait()
}
