package security

import (
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/hex"
	"fmt"

	"github.com/opencontainers/go-digest"
)

// DefaultAlgorithm is the digest algorithm used when none is configured.
const DefaultAlgorithm = digest.Canonical

// Sum returns the digest of data computed with alg.
func Sum(alg digest.Algorithm, data []byte) (digest.Digest, error) {
	if !alg.Available() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDigest, alg)
	}
	return alg.FromBytes(data), nil
}

// DigestBytes returns the raw hash output held by d.
func DigestBytes(d digest.Digest) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid digest %q: %w", d, err)
	}
	return hex.DecodeString(d.Encoded())
}
