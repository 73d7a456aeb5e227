package security

import (
	"bytes"
	"crypto/x509"
	"time"

	"github.com/fancl20/sigtrust/pkg/pki"
)

// CheckCert checks that cert is valid at the given time and, if issuer is
// not nil, that it was issued by issuer: the issuer name of cert must equal
// the subject of issuer and issuer's key must verify the signature on cert.
func CheckCert(cert, issuer *x509.Certificate, at time.Time) error {
	if err := checkValidity(cert, at); err != nil {
		return err
	}
	if issuer == nil {
		return nil
	}
	if !bytes.Equal(cert.RawIssuer, issuer.RawSubject) || !signedBy(cert, issuer) {
		return &IssuerError{
			Subject: cert.Subject.String(),
			Issuer:  issuer.Subject.String(),
		}
	}
	return nil
}

// CheckChain checks every link of chain, ordered from the signing
// certificate to the root candidate. The first failing link is reported as
// a *ChainError naming both certificates.
func CheckChain(chain []*x509.Certificate, at time.Time) error {
	for i := 0; i+1 < len(chain); i++ {
		cert, issuer := chain[i], chain[i+1]
		if err := CheckCert(cert, issuer, at); err != nil {
			return &ChainError{
				Subject: cert.Subject.String(),
				Issuer:  issuer.Subject.String(),
				Err:     err,
			}
		}
	}
	return nil
}

// CheckRoot checks that the last certificate of chain is a valid
// self-signed root.
func CheckRoot(chain []*x509.Certificate, at time.Time) error {
	if len(chain) == 0 {
		return ErrEmptyChain
	}
	root := chain[len(chain)-1]
	if !bytes.Equal(root.RawSubject, root.RawIssuer) {
		return &RootError{
			Subject: root.Subject.String(),
			Issuer:  root.Issuer.String(),
		}
	}
	if !signedBy(root, root) {
		return &IssuerError{
			Subject: root.Subject.String(),
			Issuer:  root.Issuer.String(),
			Root:    true,
		}
	}
	return CheckCert(root, nil, at)
}

func checkValidity(cert *x509.Certificate, at time.Time) error {
	v := pki.ValidityOf(cert)
	if v.Contains(at) {
		return nil
	}
	if at.After(v.NotAfter) {
		return &ValidityError{Subject: cert.Subject.String(), Boundary: v.NotAfter, Expired: true}
	}
	return &ValidityError{Subject: cert.Subject.String(), Boundary: v.NotBefore}
}

// signedBy reports whether the key of issuer verifies the signature on cert.
// CA constraints of issuer are not evaluated.
func signedBy(cert, issuer *x509.Certificate) bool {
	return issuer.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature) == nil
}
