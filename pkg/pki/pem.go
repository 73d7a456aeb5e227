package pki

import (
	_ "crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/opencontainers/go-digest"
	"github.com/scionproto/scion/pkg/scrypto/cppki"
)

// CertificatePEMBlockType is the PEM block type of encoded certificates.
const CertificatePEMBlockType = "CERTIFICATE"

// ParseChain parses consecutive CERTIFICATE PEM blocks and returns them in
// the order they appear. Signing chains are encoded leaf first.
func ParseChain(data []byte) ([]*x509.Certificate, error) {
	var chain []*x509.Certificate
	for len(data) > 0 {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != CertificatePEMBlockType {
			return nil, fmt.Errorf("unexpected pem block type for certificate: %q", block.Type)
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate %d: %w", len(chain), err)
		}
		chain = append(chain, cert)
		data = rest
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("invalid certificate format (expected %q PEM block)", CertificatePEMBlockType)
	}
	return chain, nil
}

// EncodeCert returns the PEM encoding of cert.
func EncodeCert(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: CertificatePEMBlockType, Bytes: cert.Raw})
}

// EncodeChain returns the concatenated PEM encoding of chain.
func EncodeChain(chain []*x509.Certificate) []byte {
	var out []byte
	for _, cert := range chain {
		out = append(out, EncodeCert(cert)...)
	}
	return out
}

// ValidityOf returns the validity window of cert.
func ValidityOf(cert *x509.Certificate) cppki.Validity {
	return cppki.Validity{
		NotBefore: cert.NotBefore,
		NotAfter:  cert.NotAfter,
	}
}

// Fingerprint identifies a certificate by the SHA-256 digest of its DER
// encoding.
func Fingerprint(cert *x509.Certificate) digest.Digest {
	return digest.Canonical.FromBytes(cert.Raw)
}
