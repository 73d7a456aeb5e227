package trust

import (
	"context"
	"crypto/x509"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/patrickmn/go-cache"
)

// DefaultCacheTTL is the lifetime of cached lookups if none is configured.
const DefaultCacheTTL = 5 * time.Minute

// Cached wraps a DB with a read-through cache of positive fingerprint
// lookups. A fingerprint always resolves to the same certificate, so cached
// entries stay correct even when other processes insert into a shared DB.
// Subject lookups resolve to the newest root with that subject and are
// always passed through. Misses are never cached.
type Cached struct {
	DB
	cache *cache.Cache
}

// NewCached returns a cached view of db. A non-positive ttl selects
// DefaultCacheTTL.
func NewCached(db DB, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		DB:    db,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Root looks up the root with the given fingerprint.
func (c *Cached) Root(ctx context.Context, fingerprint digest.Digest) (*x509.Certificate, error) {
	key := string(fingerprint)
	if v, ok := c.cache.Get(key); ok {
		return v.(*x509.Certificate), nil
	}
	cert, err := c.DB.Root(ctx, fingerprint)
	if err != nil || cert == nil {
		return cert, err
	}
	c.cache.SetDefault(key, cert)
	return cert, nil
}
