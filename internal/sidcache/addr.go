package sidcache

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/dreamware/pvfsmeta/internal/errs"
)

// Resolver is the transport-layer collaborator of spec.md §6: it turns a
// server's URL into the transport-layer address used for message
// posting. A real implementation backs onto BMI; tests supply a stub.
type Resolver interface {
	Resolve(ctx context.Context, url string) (uint64, error)
}

// Resolved is a cache of in-flight and prior BMIAddr resolutions, layered
// over a Catalog, implementing spec.md §4.H.4's get_addr.
type Resolved struct {
	cat      *Catalog
	resolver Resolver
	group    singleflight.Group
}

// NewResolved binds a catalog to the transport resolver used to fill in
// zero BMIAddr fields on first lookup.
func NewResolved(cat *Catalog, resolver Resolver) *Resolved {
	return &Resolved{cat: cat, resolver: resolver}
}

// GetAddr implements spec.md §4.H.4: look up; if bmi_addr is zero,
// resolve the URL via the transport layer, write back the result, and
// return. Subsequent lookups are O(1). Concurrent callers resolving the
// same SID collapse onto a single transport round trip via singleflight;
// resolution retries transient failures with an exponential backoff.
func (r *Resolved) GetAddr(ctx context.Context, sid SID) (uint64, error) {
	rec, err := r.cat.Get(sid)
	if err != nil {
		return 0, err
	}
	if rec.BMIAddr != 0 {
		return rec.BMIAddr, nil
	}

	v, err, _ := r.group.Do(sid.String(), func() (any, error) {
		rec, err := r.cat.Get(sid)
		if err != nil {
			return uint64(0), err
		}
		if rec.BMIAddr != 0 {
			return rec.BMIAddr, nil
		}

		var addr uint64
		op := func() error {
			a, rerr := r.resolver.Resolve(ctx, rec.URL)
			if rerr != nil {
				return rerr
			}
			addr = a
			return nil
		}
		bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
		if berr := backoff.Retry(op, bo); berr != nil {
			return uint64(0), errs.Wrap(berr, "resolving address for %s", rec.URL)
		}

		rec.BMIAddr = addr
		r.cat.Add(rec)
		return addr, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}
