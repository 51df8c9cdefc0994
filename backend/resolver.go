package backend

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// resolverTTL is how long a hostname's resolved addresses are cached
// before a fresh lookup is issued.
const resolverTTL = 30 * time.Second

// LookupFunc resolves a hostname to its IP addresses. Satisfied by
// net.DefaultResolver.LookupIPAddr in production and stubbed in tests to
// count invocations.
type LookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

// Resolver memoizes hostname resolution so that a backend configured with
// a DNS name (rather than an IP literal, per spec: "Address... or
// resolvable host") is not re-resolved on every single dial under load.
// IP literals bypass the cache entirely — there is nothing to resolve.
type Resolver struct {
	lookup LookupFunc
	cache  *ttlcache.Cache[string, []net.IP]
}

// NewResolver returns a Resolver using net.DefaultResolver for lookups.
func NewResolver() *Resolver {
	return NewResolverWithLookup(func(ctx context.Context, host string) ([]net.IPAddr, error) {
		return net.DefaultResolver.LookupIPAddr(ctx, host)
	})
}

// NewResolverWithLookup returns a Resolver using a caller-supplied lookup
// function, primarily for tests that need to count or fault lookups.
func NewResolverWithLookup(lookup LookupFunc) *Resolver {
	cache := ttlcache.New[string, []net.IP](
		ttlcache.WithTTL[string, []net.IP](resolverTTL),
		ttlcache.WithDisableTouchOnHit[string, []net.IP](),
	)
	go cache.Start()
	return &Resolver{lookup: lookup, cache: cache}
}

// Stop releases the cache's background eviction goroutine.
func (r *Resolver) Stop() { r.cache.Stop() }

// Resolve returns one IP address to dial for host. If host is already an
// IP literal it is returned unchanged without consulting the cache or
// issuing a lookup.
func (r *Resolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}

	if item := r.cache.Get(host); item != nil {
		ips := item.Value()
		if len(ips) > 0 {
			return ips[0], nil
		}
	}

	addrs, err := r.lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("backend: resolving %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("backend: no addresses found for %q", host)
	}

	ips := make([]net.IP, len(addrs))
	for i, a := range addrs {
		ips[i] = a.IP
	}
	r.cache.Set(host, ips, ttlcache.DefaultTTL)
	return ips[0], nil
}
