package emailcheck

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/maypok86/otter"
)

// Resolver is the DNS capability the checker needs. *net.Resolver satisfies it.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// DomainChecker answers "can this domain receive mail" with MX first and an
// address record as fallback. Definitive answers are cached; resolver
// failures are not.
type DomainChecker struct {
	resolver Resolver
	cache    otter.Cache[string, bool]
}

const defaultCacheEntries = 10_000

func NewDomainChecker(r Resolver, ttl time.Duration) (*DomainChecker, error) {
	if r == nil {
		r = net.DefaultResolver
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	cache, err := otter.MustBuilder[string, bool](defaultCacheEntries).
		Cost(func(_ string, _ bool) uint32 { return 1 }).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}
	return &DomainChecker{resolver: r, cache: cache}, nil
}

// Exists returns (false, nil) when DNS says the domain has neither MX nor
// address records, and a non-nil error when the resolver itself failed.
func (c *DomainChecker) Exists(ctx context.Context, domain string) (bool, error) {
	if v, ok := c.cache.Get(domain); ok {
		return v, nil
	}

	ok, err := c.lookup(ctx, domain)
	if err != nil {
		return false, err
	}
	c.cache.Set(domain, ok)
	return ok, nil
}

func (c *DomainChecker) lookup(ctx context.Context, domain string) (bool, error) {
	mx, err := c.resolver.LookupMX(ctx, domain)
	if err == nil && len(mx) > 0 {
		return true, nil
	}
	if err != nil && !isNotFound(err) {
		return false, err
	}

	addrs, err := c.resolver.LookupHost(ctx, domain)
	if err == nil && len(addrs) > 0 {
		return true, nil
	}
	if err != nil && !isNotFound(err) {
		return false, err
	}
	return false, nil
}

func (c *DomainChecker) Close() {
	c.cache.Close()
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsNotFound
	}
	return false
}
