package pki

import (
	"bytes"
	"encoding/pem"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
)

func TestChainPEM(t *testing.T) {
	certs := NewCertificates()
	if err := certs.Create("root", CertTypeRoot, testValidity()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := certs.Create("signing", CertTypeSigning, testValidity()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	chain := certs.Chain()

	parsed, err := ParseChain(EncodeChain(chain))
	if err != nil {
		t.Fatalf("ParseChain failed: %v", err)
	}
	if len(parsed) != len(chain) {
		t.Fatalf("expected %d certificates, got %d", len(chain), len(parsed))
	}
	for i := range chain {
		if !parsed[i].Equal(chain[i]) {
			t.Errorf("certificate %d changed in round trip", i)
		}
	}
}

func TestParseChainInvalid(t *testing.T) {
	tests := map[string][]byte{
		"empty":      nil,
		"not pem":    []byte("garbage"),
		"wrong type": pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1}}),
		"bad der":    pem.EncodeToMemory(&pem.Block{Type: CertificatePEMBlockType, Bytes: []byte{1, 2, 3}}),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseChain(data); err == nil {
				t.Error("ParseChain should fail")
			}
		})
	}
}

func TestValidityAndFingerprint(t *testing.T) {
	certs := NewCertificates()
	valid := testValidity()
	if err := certs.Create("root", CertTypeRoot, valid); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	cert := certs.Root().Cert

	v := ValidityOf(cert)
	if !v.NotBefore.Equal(valid.NotBefore.Truncate(time.Second)) ||
		!v.NotAfter.Equal(valid.NotAfter.Truncate(time.Second)) {
		t.Errorf("ValidityOf = %v, want %v", v, valid)
	}
	if !v.Contains(time.Now()) {
		t.Error("validity should contain the current time")
	}

	fp := Fingerprint(cert)
	if fp.Algorithm() != digest.SHA256 {
		t.Errorf("expected sha256 fingerprint, got %v", fp.Algorithm())
	}
	if fp != digest.SHA256.FromBytes(cert.Raw) {
		t.Error("fingerprint is not the digest of the DER encoding")
	}
	if !bytes.Contains(EncodeCert(cert), []byte("BEGIN CERTIFICATE")) {
		t.Error("EncodeCert did not produce a certificate PEM block")
	}
}
