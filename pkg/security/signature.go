package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/opencontainers/go-digest"
)

// cryptoHash maps a digest algorithm to the hash identifier expected by
// the signature primitives.
func cryptoHash(alg digest.Algorithm) (crypto.Hash, error) {
	switch alg {
	case digest.SHA256:
		return crypto.SHA256, nil
	case digest.SHA384:
		return crypto.SHA384, nil
	case digest.SHA512:
		return crypto.SHA512, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedDigest, alg)
}

// hashData digests data with alg and returns the raw hash output.
func hashData(alg digest.Algorithm, data []byte) (crypto.Hash, []byte, error) {
	h, err := cryptoHash(alg)
	if err != nil {
		return 0, nil, err
	}
	d, err := Sum(alg, data)
	if err != nil {
		return 0, nil, err
	}
	sum, err := DigestBytes(d)
	if err != nil {
		return 0, nil, err
	}
	return h, sum, nil
}

// Sign digests data with alg and signs the digest with signer. RSA keys
// produce PKCS#1 v1.5 signatures, ECDSA keys ASN.1 encoded signatures and
// Ed25519 keys sign the digest bytes directly.
func Sign(signer crypto.Signer, alg digest.Algorithm, data []byte) ([]byte, error) {
	h, sum, err := hashData(alg, data)
	if err != nil {
		return nil, err
	}
	var opts crypto.SignerOpts = h
	switch signer.Public().(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
	case ed25519.PublicKey:
		opts = crypto.Hash(0)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, signer.Public())
	}
	sig, err := signer.Sign(rand.Reader, sum, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to sign data: %w", err)
	}
	return sig, nil
}

// CheckData verifies that sig is a signature over the alg digest of data made
// by the private key belonging to pub. A signature that does not verify is
// reported as ErrInvalidSignature.
func CheckData(pub crypto.PublicKey, alg digest.Algorithm, sig, data []byte) error {
	h, sum, err := hashData(alg, data)
	if err != nil {
		return err
	}
	var ok bool
	switch k := pub.(type) {
	case *rsa.PublicKey:
		ok = rsa.VerifyPKCS1v15(k, h, sum, sig) == nil
	case *ecdsa.PublicKey:
		ok = ecdsa.VerifyASN1(k, sum, sig)
	case ed25519.PublicKey:
		ok = ed25519.Verify(k, sum, sig)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}
