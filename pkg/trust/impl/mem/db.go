package mem

import (
	"context"
	"crypto/x509"
	"slices"
	"strings"
	"sync"

	"github.com/opencontainers/go-digest"

	"github.com/fancl20/sigtrust/pkg/pki"
	"github.com/fancl20/sigtrust/pkg/trust"
)

// DB implements trust.DB using in-memory maps.
type DB struct {
	mu       sync.RWMutex
	roots    map[digest.Digest]*x509.Certificate // fingerprint -> root
	subjects map[string]digest.Digest            // raw subject -> fingerprint
}

var _ trust.DB = (*DB)(nil)

// New creates a new in-memory trust DB.
func New() *DB {
	return &DB{
		roots:    make(map[digest.Digest]*x509.Certificate),
		subjects: make(map[string]digest.Digest),
	}
}

// Root looks up the root certificate with the given fingerprint.
func (s *DB) Root(ctx context.Context, fingerprint digest.Digest) (*x509.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roots[fingerprint], nil
}

// RootBySubject looks up the most recently inserted root with the subject.
func (s *DB) RootBySubject(ctx context.Context, rawSubject []byte) (*x509.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fp, ok := s.subjects[string(rawSubject)]
	if !ok {
		return nil, nil
	}
	return s.roots[fp], nil
}

// Roots returns all trusted roots ordered by fingerprint.
func (s *DB) Roots(ctx context.Context) ([]*x509.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fps := make([]digest.Digest, 0, len(s.roots))
	for fp := range s.roots {
		fps = append(fps, fp)
	}
	slices.SortFunc(fps, func(a, b digest.Digest) int {
		return strings.Compare(string(a), string(b))
	})
	roots := make([]*x509.Certificate, 0, len(fps))
	for _, fp := range fps {
		roots = append(roots, s.roots[fp])
	}
	return roots, nil
}

// InsertRoot adds a root to the store. Returns true if it was not yet
// present.
func (s *DB) InsertRoot(ctx context.Context, cert *x509.Certificate) (bool, error) {
	fp := pki.Fingerprint(cert)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roots[fp]; ok {
		return false, nil
	}
	s.roots[fp] = cert
	s.subjects[string(cert.RawSubject)] = fp
	return true, nil
}

// Close is a no-op.
func (s *DB) Close() error {
	return nil
}
