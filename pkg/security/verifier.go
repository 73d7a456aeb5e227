package security

import (
	"context"
	"crypto/x509"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/opencontainers/go-digest"
	"go.uber.org/zap"

	"github.com/fancl20/sigtrust/pkg/trust"
)

// ErrNoTrustDB is returned when a policy requires trusted roots but the
// verifier has no trust DB.
var ErrNoTrustDB = errors.New("policy requires a trust database")

// Verifier applies a Policy to signatures.
//
// A Verifier does not modify its fields and may be used concurrently.
type Verifier struct {
	Policy Policy
	// Algorithm digests the signed data. Defaults to DefaultAlgorithm.
	Algorithm digest.Algorithm
	// Trust holds the trusted roots. Required if the policy verifies roots
	// or only accepts trusted roots.
	Trust trust.DB
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Now is used when no verification time is given. Defaults to time.Now.
	Now func() time.Time
}

func (v *Verifier) algorithm() digest.Algorithm {
	if v.Algorithm == "" {
		return DefaultAlgorithm
	}
	return v.Algorithm
}

func (v *Verifier) logger() *zap.Logger {
	if v.Logger == nil {
		return zap.NewNop()
	}
	return v.Logger
}

func (v *Verifier) time(at time.Time) time.Time {
	if !at.IsZero() {
		return at
	}
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// VerifySignature checks sig over data made by the first certificate of
// chain, ordered from the signer up to the root candidate. The enabled
// steps run in a fixed order and the first failure is returned unchanged:
//
//  1. data:   the signature verifies with the signer's public key
//  2. signer: the signer is valid at at and issued by chain[1], if present
//  3. chain:  every link of the chain is valid
//  4. root:   the chain ends in a valid self-signed root
//  5. trust:  the root is trusted (if root or only-trusted is enabled)
//
// A zero at verifies at the current time.
func (v *Verifier) VerifySignature(ctx context.Context, sig, data []byte, chain []*x509.Certificate, at time.Time) error {
	p := v.Policy
	logger := v.logger().With(zap.String("policy", p.Name()))
	if !p.needsChain() {
		logger.Debug("No verification required")
		return nil
	}
	if len(chain) == 0 {
		return ErrEmptyChain
	}
	at = v.time(at)
	signer := chain[0]
	logger = logger.With(zap.String("signer", signer.Subject.String()))

	reject := func(step string, err error) error {
		logger.Info("Signature rejected", zap.String("step", step), zap.Error(err))
		return err
	}

	if p.VerifyData() {
		logger.Debug("Verifying data signature")
		if err := CheckData(signer.PublicKey, v.algorithm(), sig, data); err != nil {
			return reject("data", err)
		}
	}
	if p.VerifySigner() {
		logger.Debug("Verifying signer")
		var issuer *x509.Certificate
		if len(chain) > 1 {
			issuer = chain[1]
		}
		if err := CheckCert(signer, issuer, at); err != nil {
			return reject("signer", err)
		}
	}
	if p.VerifyChain() {
		logger.Debug("Verifying chain", zap.Int("length", len(chain)))
		if err := CheckChain(chain, at); err != nil {
			return reject("chain", err)
		}
	}
	if p.VerifyRoot() {
		logger.Debug("Verifying root")
		if err := CheckRoot(chain, at); err != nil {
			return reject("root", err)
		}
	}
	if p.checksTrust() {
		logger.Debug("Verifying trust")
		if v.Trust == nil {
			return reject("trust", ErrNoTrustDB)
		}
		if err := CheckTrust(ctx, chain, v.algorithm(), v.Trust); err != nil {
			return reject("trust", err)
		}
	}
	logger.Debug("Signature accepted")
	return nil
}

// VerifySignatures verifies the signatures of a package's files. digests
// maps every packaged file to its digest and signatures maps signed files
// to the signature over the raw digest bytes.
//
// If the policy only accepts signed packages, the package must carry at
// least one signature, every signature must have a digest and every file
// must be signed. These are checked before any signature is verified.
// Otherwise unsigned files and signatures without a digest are skipped.
// Signatures are checked in file name order and the first failure is
// returned.
func (v *Verifier) VerifySignatures(ctx context.Context, chain []*x509.Certificate,
	digests map[string]digest.Digest, signatures map[string][]byte, at time.Time) error {

	at = v.time(at)
	logger := v.logger()

	if v.Policy.OnlySigned() {
		if len(signatures) == 0 {
			return &UnsignedError{Policy: v.Policy.Name()}
		}
		for _, name := range sortedKeys(signatures) {
			if _, ok := digests[name]; !ok {
				return &MissingDigestError{Name: name}
			}
		}
		for _, name := range sortedKeys(digests) {
			if _, ok := signatures[name]; !ok {
				return &MissingSignatureError{Name: name}
			}
		}
	}
	for _, name := range sortedKeys(signatures) {
		if _, ok := digests[name]; !ok {
			logger.Debug("Skipping signature without digest", zap.String("file", name))
		}
	}
	for _, name := range sortedKeys(digests) {
		sig, ok := signatures[name]
		if !ok {
			logger.Debug("Skipping unsigned file", zap.String("file", name))
			continue
		}
		data, err := DigestBytes(digests[name])
		if err != nil {
			return &FileError{Name: name, Err: err}
		}
		if err := v.VerifySignature(ctx, sig, data, chain, at); err != nil {
			return &FileError{Name: name, Err: err}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
