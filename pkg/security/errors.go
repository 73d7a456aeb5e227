package security

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrCertExpired          = errors.New("certificate expired")
	ErrCertNotYetValid      = errors.New("certificate not yet valid")
	ErrInvalidIssuer        = errors.New("invalid issuer")
	ErrInvalidSigningChain  = errors.New("invalid signing chain")
	ErrRootNotSelfSigned    = errors.New("root certificate not self-signed")
	ErrInvalidRootSignature = errors.New("invalid root signature")
	ErrRootNotTrusted       = errors.New("root certificate not trusted")
	ErrTrustedRootMismatch  = errors.New("trusted root checksum mismatch")
	ErrMissingSignature     = errors.New("missing signature")
	ErrMissingDigest        = errors.New("missing digest")
	ErrUnsigned             = errors.New("unsigned package")
	ErrEmptyChain           = errors.New("empty certificate chain")
	ErrUnsupportedKey       = errors.New("unsupported public key type")
	ErrUnsupportedDigest    = errors.New("unsupported digest algorithm")
)

// ValidityError reports a certificate used outside of its validity window.
// It matches ErrCertExpired or ErrCertNotYetValid.
type ValidityError struct {
	Subject string
	// Boundary is NotAfter for expired certificates and NotBefore for
	// certificates that are not valid yet.
	Boundary time.Time
	Expired  bool
}

func (e *ValidityError) Error() string {
	if e.Expired {
		return fmt.Sprintf("certificate %s not valid after %s", e.Subject, e.Boundary)
	}
	return fmt.Sprintf("certificate %s not valid before %s", e.Subject, e.Boundary)
}

func (e *ValidityError) Unwrap() error {
	if e.Expired {
		return ErrCertExpired
	}
	return ErrCertNotYetValid
}

// IssuerError reports a certificate that was not issued by the expected
// certificate. Root is set when a self-issued root fails its own
// signature check, in which case it matches ErrInvalidRootSignature.
type IssuerError struct {
	Subject string
	Issuer  string
	Root    bool
}

func (e *IssuerError) Error() string {
	return fmt.Sprintf("certificate %s was not issued by %s", e.Subject, e.Issuer)
}

func (e *IssuerError) Unwrap() error {
	if e.Root {
		return ErrInvalidRootSignature
	}
	return ErrInvalidIssuer
}

// ChainError reports the first broken link of a signing chain.
type ChainError struct {
	// Subject of the certificate failing the check.
	Subject string
	// Issuer is the subject of the next certificate up the chain.
	Issuer string
	Err    error
}

func (e *ChainError) Error() string {
	return "invalid signing chain: " + e.Err.Error()
}

func (e *ChainError) Unwrap() []error {
	return []error{ErrInvalidSigningChain, e.Err}
}

// RootError reports a root candidate whose subject differs from its issuer.
type RootError struct {
	Subject string
	Issuer  string
}

func (e *RootError) Error() string {
	return fmt.Sprintf("root certificate %s is not self-signed (issuer %s)", e.Subject, e.Issuer)
}

func (e *RootError) Unwrap() error { return ErrRootNotSelfSigned }

// TrustError reports a root that is not in the trust store or differs
// from the stored one.
type TrustError struct {
	Subject string
	// Signer is the subject of the leaf certificate, empty for chains of
	// length one.
	Signer   string
	Mismatch bool
}

func (e *TrustError) Error() string {
	if e.Mismatch {
		return fmt.Sprintf("trusted root certificate %s checksum does not match signing root certificate checksum", e.Subject)
	}
	if e.Signer != "" {
		return fmt.Sprintf("root cert %s is not trusted (root of signing cert %s)", e.Subject, e.Signer)
	}
	return fmt.Sprintf("root cert %s is not trusted", e.Subject)
}

func (e *TrustError) Unwrap() error {
	if e.Mismatch {
		return ErrTrustedRootMismatch
	}
	return ErrRootNotTrusted
}

// MissingSignatureError reports a packaged file without a signature under a
// policy that only accepts signed content.
type MissingSignatureError struct {
	Name string
}

func (e *MissingSignatureError) Error() string {
	return "missing signature for " + e.Name
}

func (e *MissingSignatureError) Unwrap() error { return ErrMissingSignature }

// MissingDigestError reports a signature for a file the package has no
// digest of.
type MissingDigestError struct {
	Name string
}

func (e *MissingDigestError) Error() string {
	return "missing digest for " + e.Name
}

func (e *MissingDigestError) Unwrap() error { return ErrMissingDigest }

// UnsignedError reports a package without any signature under a policy
// that only accepts signed packages.
type UnsignedError struct {
	Policy string
}

func (e *UnsignedError) Error() string {
	return fmt.Sprintf("unsigned packages are not allowed by the %s policy", e.Policy)
}

func (e *UnsignedError) Unwrap() error { return ErrUnsigned }

// FileError attaches the packaged file name to a verification failure.
type FileError struct {
	Name string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
