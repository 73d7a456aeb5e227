package security

import (
	"context"
	"crypto/x509"
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/fancl20/sigtrust/pkg/pki"
	"github.com/fancl20/sigtrust/pkg/trust"
)

// CheckTrust checks that the root candidate of chain, its last certificate,
// is trusted by db.
//
// A root with the same subject as a trusted root but a different encoding
// is reported as a checksum mismatch rather than as untrusted. For chains
// longer than one certificate the stored root and the chain's root are
// additionally compared by their alg digests.
func CheckTrust(ctx context.Context, chain []*x509.Certificate, alg digest.Algorithm, db trust.DB) error {
	if len(chain) == 0 {
		return ErrEmptyChain
	}
	root := chain[len(chain)-1]

	stored, err := db.Root(ctx, pki.Fingerprint(root))
	if err != nil {
		return fmt.Errorf("looking up trusted root: %w", err)
	}
	if stored == nil {
		other, err := db.RootBySubject(ctx, root.RawSubject)
		if err != nil {
			return fmt.Errorf("looking up trusted root: %w", err)
		}
		if other != nil {
			return &TrustError{Subject: other.Subject.String(), Mismatch: true}
		}
		e := &TrustError{Subject: root.Subject.String()}
		if len(chain) > 1 {
			e.Signer = chain[0].Subject.String()
		}
		return e
	}
	if len(chain) == 1 {
		return nil
	}

	want, err := Sum(alg, stored.Raw)
	if err != nil {
		return err
	}
	got, err := Sum(alg, root.Raw)
	if err != nil {
		return err
	}
	if want != got {
		return &TrustError{Subject: stored.Subject.String(), Mismatch: true}
	}
	return nil
}

// AddTrustedCert adds cert to the trusted roots in db. Adding a certificate
// that is already trusted is a no-op.
func AddTrustedCert(ctx context.Context, db trust.DB, cert *x509.Certificate) error {
	if _, err := db.InsertRoot(ctx, cert); err != nil {
		return fmt.Errorf("adding trusted cert %s: %w", cert.Subject, err)
	}
	return nil
}
