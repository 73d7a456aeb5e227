package pki

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"slices"

	"github.com/scionproto/scion/pkg/scrypto/cppki"
)

// CertType represents the role of a certificate in a signing chain.
type CertType int

const (
	CertTypeUnknown CertType = iota
	// CertTypeRoot indicates a self-signed root certificate.
	CertTypeRoot
	// CertTypeIntermediate indicates a CA certificate issued by a root or
	// another intermediate.
	CertTypeIntermediate
	// CertTypeSigning indicates the certificate of the key signing packages.
	CertTypeSigning
)

func (t CertType) String() string {
	switch t {
	case CertTypeRoot:
		return "root"
	case CertTypeIntermediate:
		return "intermediate"
	case CertTypeSigning:
		return "signing"
	default:
		return "unknown"
	}
}

// Organization is written into the subject of every generated certificate.
const Organization = "sigtrust"

// Identity is a certificate together with its private key.
type Identity struct {
	Cert *x509.Certificate
	Key  crypto.Signer
}

// Template describes a certificate to generate.
type Template struct {
	CommonName string
	Type       CertType
	Validity   cppki.Validity
	// Key is the subject key. A fresh ECDSA P-256 key is generated if nil.
	Key crypto.Signer
	// IssuerName overrides the issuer name written into the certificate.
	IssuerName *pkix.Name
	// SignerKey overrides the key the certificate is signed with.
	SignerKey crypto.Signer
}

// Generate creates a certificate from tpl. It is issued by issuer, or
// self-signed if issuer is nil. The IssuerName and SignerKey overrides
// allow producing certificates that do not chain up correctly.
func Generate(tpl Template, issuer *Identity) (*Identity, error) {
	key := tpl.Key
	if key == nil {
		k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
		}
		key = k
	}
	pubKey := key.Public()

	subjectKeyID, err := cppki.SubjectKeyID(pubKey)
	if err != nil {
		return nil, fmt.Errorf("failed to compute subject key identifier: %w", err)
	}

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	subject := pkix.Name{
		Organization: []string{Organization},
		CommonName:   tpl.CommonName,
	}

	cert := x509.Certificate{
		SerialNumber: serialNumber,
		Subject:      subject,
		NotBefore:    tpl.Validity.NotBefore,
		NotAfter:     tpl.Validity.NotAfter,
		SubjectKeyId: subjectKeyID,
	}
	switch tpl.Type {
	case CertTypeRoot, CertTypeIntermediate:
		cert.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature
		cert.BasicConstraintsValid = true
		cert.IsCA = true
	case CertTypeSigning:
		cert.KeyUsage = x509.KeyUsageDigitalSignature
		cert.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning}
		cert.BasicConstraintsValid = true
	default:
		return nil, fmt.Errorf("invalid cert type: %v", tpl.Type)
	}

	parent, signerKey := &cert, key
	if issuer != nil {
		parent, signerKey = issuer.Cert, issuer.Key
	}
	if tpl.IssuerName != nil || tpl.SignerKey != nil {
		// Strip the parent down to its name so that x509 does not insist on
		// the signer matching the parent's public key.
		stripped := &x509.Certificate{
			Subject:      parent.Subject,
			SubjectKeyId: parent.SubjectKeyId,
		}
		if tpl.IssuerName != nil {
			stripped.Subject = *tpl.IssuerName
		}
		if tpl.SignerKey != nil {
			signerKey = tpl.SignerKey
		}
		parent = stripped
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, &cert, parent, pubKey, signerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create %v certificate: %w", tpl.Type, err)
	}
	parsed, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated certificate: %w", err)
	}
	return &Identity{Cert: parsed, Key: key}, nil
}

// Certificates manages a signing chain and the private keys owned by a
// single signer. The chain grows downwards: the first certificate created
// is the root and every following one is issued by its predecessor.
type Certificates struct {
	ids []*Identity
}

// NewCertificates creates an empty certificate manager.
func NewCertificates() *Certificates {
	return &Certificates{}
}

// Create generates the next certificate of the chain. The first call must
// create a root certificate.
func (c *Certificates) Create(commonName string, certType CertType, validity cppki.Validity) error {
	var issuer *Identity
	if len(c.ids) == 0 {
		if certType != CertTypeRoot {
			return fmt.Errorf("cannot create %v certificate: missing root", certType)
		}
	} else {
		if certType == CertTypeRoot {
			return fmt.Errorf("cannot create root certificate: chain already has a root")
		}
		issuer = c.ids[len(c.ids)-1]
		if !issuer.Cert.IsCA {
			return fmt.Errorf("cannot create %v certificate: %s is not a CA",
				certType, issuer.Cert.Subject)
		}
	}

	id, err := Generate(Template{
		CommonName: commonName,
		Type:       certType,
		Validity:   validity,
	}, issuer)
	if err != nil {
		return err
	}
	c.ids = append(c.ids, id)
	return nil
}

// Chain returns the certificates ordered from the most recently created
// one up to the root.
func (c *Certificates) Chain() []*x509.Certificate {
	chain := make([]*x509.Certificate, 0, len(c.ids))
	for _, id := range slices.Backward(c.ids) {
		chain = append(chain, id.Cert)
	}
	return chain
}

// Signer returns the most recently created identity, nil if empty.
func (c *Certificates) Signer() *Identity {
	if len(c.ids) == 0 {
		return nil
	}
	return c.ids[len(c.ids)-1]
}

// Root returns the root identity, nil if empty.
func (c *Certificates) Root() *Identity {
	if len(c.ids) == 0 {
		return nil
	}
	return c.ids[0]
}

// HasCertificate returns true if the chain contains a certificate of the
// specified type.
func (c *Certificates) HasCertificate(t CertType) bool {
	return slices.ContainsFunc(c.ids, func(id *Identity) bool {
		return certTypeOf(id.Cert) == t
	})
}

func certTypeOf(cert *x509.Certificate) CertType {
	switch {
	case cert.IsCA && string(cert.RawSubject) == string(cert.RawIssuer):
		return CertTypeRoot
	case cert.IsCA:
		return CertTypeIntermediate
	case slices.Contains(cert.ExtKeyUsage, x509.ExtKeyUsageCodeSigning):
		return CertTypeSigning
	default:
		return CertTypeUnknown
	}
}
