// Package pkgsig holds the signature metadata of a package: the digest of
// every packaged file, the signatures over those digests and the signer's
// certificate chain. Reading and writing the package archive itself is
// left to the caller.
package pkgsig

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"io"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/fancl20/sigtrust/pkg/pki"
	"github.com/fancl20/sigtrust/pkg/security"
)

// Package is the signature metadata of a package.
type Package struct {
	// CertChain is the PEM encoded signing chain, leaf first.
	CertChain []byte
	// Digests maps every packaged file to its digest.
	Digests map[string]digest.Digest
	// Signatures maps signed files to the signature over their raw digest.
	Signatures map[string][]byte
}

// Digest computes the alg digest of a packaged file.
func Digest(r io.Reader, alg digest.Algorithm) (digest.Digest, error) {
	if !alg.Available() {
		return "", fmt.Errorf("%w: %q", security.ErrUnsupportedDigest, alg)
	}
	return alg.FromReader(r)
}

// Chain decodes the embedded certificate chain. An unsigned package has no
// chain.
func (p *Package) Chain() ([]*x509.Certificate, error) {
	if len(p.CertChain) == 0 {
		return nil, nil
	}
	chain, err := pki.ParseChain(p.CertChain)
	if err != nil {
		return nil, fmt.Errorf("decoding certificate chain: %w", err)
	}
	return chain, nil
}

// AddUnsigned records the digest of a file without signing it.
func (p *Package) AddUnsigned(name string, r io.Reader, alg digest.Algorithm) error {
	d, err := Digest(r, alg)
	if err != nil {
		return fmt.Errorf("digesting %s: %w", name, err)
	}
	if p.Digests == nil {
		p.Digests = make(map[string]digest.Digest)
	}
	p.Digests[name] = d
	return nil
}

// Verify checks the package signatures with v at the given time.
func (p *Package) Verify(ctx context.Context, v *security.Verifier, at time.Time) error {
	chain, err := p.Chain()
	if err != nil {
		return err
	}
	return v.VerifySignatures(ctx, chain, p.Digests, p.Signatures, at)
}

// Signer signs packaged files.
type Signer struct {
	Key crypto.Signer
	// Chain is the signing chain, leaf first. Its first certificate must
	// belong to Key.
	Chain []*x509.Certificate
	// Algorithm defaults to security.DefaultAlgorithm.
	Algorithm digest.Algorithm
}

func (s *Signer) algorithm() digest.Algorithm {
	if s.Algorithm == "" {
		return security.DefaultAlgorithm
	}
	return s.Algorithm
}

// NewPackage returns an empty package carrying the signer's chain.
func (s *Signer) NewPackage() *Package {
	return &Package{
		CertChain:  pki.EncodeChain(s.Chain),
		Digests:    make(map[string]digest.Digest),
		Signatures: make(map[string][]byte),
	}
}

// Add digests the file read from r and signs the digest.
func (s *Signer) Add(p *Package, name string, r io.Reader) error {
	if err := p.AddUnsigned(name, r, s.algorithm()); err != nil {
		return err
	}
	raw, err := security.DigestBytes(p.Digests[name])
	if err != nil {
		return err
	}
	sig, err := security.Sign(s.Key, s.algorithm(), raw)
	if err != nil {
		return fmt.Errorf("signing %s: %w", name, err)
	}
	if p.Signatures == nil {
		p.Signatures = make(map[string][]byte)
	}
	p.Signatures[name] = sig
	return nil
}
