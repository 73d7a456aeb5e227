package trust

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/fancl20/sigtrust/pkg/pki"
)

// RootInfo summarizes a trusted root for log output.
type RootInfo struct {
	Fingerprint digest.Digest
	Subject     string
}

// Info returns the RootInfo of cert.
func Info(cert *x509.Certificate) RootInfo {
	return RootInfo{
		Fingerprint: pki.Fingerprint(cert),
		Subject:     cert.Subject.String(),
	}
}

// MarshalJSON marshals the root info for well formated log output.
func (i RootInfo) MarshalJSON() ([]byte, error) {
	j := struct {
		Fingerprint string `json:"fingerprint"`
		Subject     string `json:"subject"`
	}{
		Fingerprint: i.Fingerprint.String(),
		Subject:     i.Subject,
	}
	return json.Marshal(j)
}

func (i RootInfo) String() string {
	return fmt.Sprintf("%s (%s)", i.Subject, i.Fingerprint)
}

// DB is the database interface for trusted root certificates.
//
// Implementations must be safe for concurrent use. Inserts are serialized
// against each other and against lookups.
type DB interface {
	// Root looks up the root certificate with the given fingerprint. It
	// returns nil if no such root is trusted.
	Root(ctx context.Context, fingerprint digest.Digest) (*x509.Certificate, error)
	// RootBySubject looks up the most recently inserted root with the given
	// raw DER subject. It returns nil if no such root is trusted.
	RootBySubject(ctx context.Context, rawSubject []byte) (*x509.Certificate, error)
	// Roots returns all trusted roots.
	Roots(ctx context.Context) ([]*x509.Certificate, error)
	// InsertRoot adds the given root to the trusted set. Returns true if the
	// root was not yet in the DB.
	InsertRoot(ctx context.Context, cert *x509.Certificate) (bool, error)

	Close() error
}
