package security_test

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"

	"github.com/opencontainers/go-digest"

	"github.com/fancl20/sigtrust/pkg/pki/pkitest"
	"github.com/fancl20/sigtrust/pkg/security"
)

func hello(t *testing.T, s string) []byte {
	t.Helper()
	raw, err := security.DigestBytes(digest.SHA256.FromString(s))
	if err != nil {
		t.Fatalf("DigestBytes failed: %v", err)
	}
	return raw
}

// wantErr fails the test unless err matches target.
func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("got error %v, want %v", err, target)
	}
}

func wantMessage(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("got no error, want %q", want)
	}
	if err.Error() != want {
		t.Errorf("got message %q, want %q", err.Error(), want)
	}
}

func TestCheckData(t *testing.T) {
	f := pkitest.Load(t)
	data := hello(t, "hello")

	sig, err := security.Sign(f.Root.Key, digest.SHA256, data)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if err := security.CheckData(f.Root.Cert.PublicKey, digest.SHA256, sig, data); err != nil {
		t.Errorf("CheckData failed: %v", err)
	}
}

func TestCheckDataInvalid(t *testing.T) {
	f := pkitest.Load(t)
	data := hello(t, "hello")

	sig, err := security.Sign(f.Root.Key, digest.SHA256, data)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	err = security.CheckData(f.Root.Cert.PublicKey, digest.SHA256, sig, hello(t, "hello!"))
	wantErr(t, err, security.ErrInvalidSignature)
	wantMessage(t, err, "invalid signature")
}

func TestCheckDataWrongKey(t *testing.T) {
	f := pkitest.Load(t)
	data := hello(t, "hello")

	sig, err := security.Sign(f.Alternate.Key, digest.SHA256, data)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	err = security.CheckData(f.Root.Cert.PublicKey, digest.SHA256, sig, data)
	wantErr(t, err, security.ErrInvalidSignature)
}

func TestSignRoundTrip(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	ecKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate ECDSA key: %v", err)
	}
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate Ed25519 key: %v", err)
	}

	keys := map[string]crypto.Signer{
		"rsa":     rsaKey,
		"ecdsa":   ecKey,
		"ed25519": edKey,
	}
	algs := []digest.Algorithm{digest.SHA256, digest.SHA384, digest.SHA512}

	for name, key := range keys {
		for _, alg := range algs {
			t.Run(name+"/"+alg.String(), func(t *testing.T) {
				data := hello(t, "round trip")
				sig, err := security.Sign(key, alg, data)
				if err != nil {
					t.Fatalf("Sign failed: %v", err)
				}
				if err := security.CheckData(key.Public(), alg, sig, data); err != nil {
					t.Fatalf("CheckData failed: %v", err)
				}

				for i := range data {
					flipped := append([]byte(nil), data...)
					flipped[i] ^= 0x01
					err := security.CheckData(key.Public(), alg, sig, flipped)
					if !errors.Is(err, security.ErrInvalidSignature) {
						t.Fatalf("CheckData with byte %d flipped = %v, want %v", i, err, security.ErrInvalidSignature)
					}
				}
			})
		}
	}
}

func TestCheckDataUnsupported(t *testing.T) {
	f := pkitest.Load(t)
	data := hello(t, "hello")

	_, err := security.Sign(f.Root.Key, digest.Algorithm("md5"), data)
	wantErr(t, err, security.ErrUnsupportedDigest)

	err = security.CheckData(f.Root.Cert.PublicKey, digest.Algorithm("md5"), nil, data)
	wantErr(t, err, security.ErrUnsupportedDigest)

	err = security.CheckData("not a key", digest.SHA256, nil, data)
	wantErr(t, err, security.ErrUnsupportedKey)
}

func TestDigestBytes(t *testing.T) {
	raw, err := security.DigestBytes(digest.SHA256.FromString("hello"))
	if err != nil {
		t.Fatalf("DigestBytes failed: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("DigestBytes returned %d bytes, want 32", len(raw))
	}

	if _, err := security.DigestBytes(digest.Digest("sha256:zz")); err == nil {
		t.Error("DigestBytes should fail for a malformed digest")
	}
}
