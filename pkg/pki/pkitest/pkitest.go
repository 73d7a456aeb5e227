// Package pkitest provides certificate fixtures for tests.
package pkitest

import (
	"crypto/x509/pkix"
	"sync"
	"testing"
	"time"

	"github.com/scionproto/scion/pkg/scrypto/cppki"

	"github.com/fancl20/sigtrust/pkg/pki"
)

// Fixtures is a set of certificates covering valid and broken chains.
type Fixtures struct {
	// Root is a valid self-signed root.
	Root *pki.Identity
	// Child is an intermediate issued by Root.
	Child *pki.Identity
	// Grandchild is a signing certificate issued by Child.
	Grandchild *pki.Identity
	// Alternate is a valid self-signed root unrelated to Root.
	Alternate *pki.Identity
	// InvalidChild names Child as issuer but is signed by Alternate's key.
	InvalidChild *pki.Identity
	// Expired is a self-signed root whose validity ended.
	Expired *pki.Identity
	// Future is a self-signed root whose validity has not started.
	Future *pki.Identity
	// InvalidIssuer is signed by its own key but names another issuer.
	InvalidIssuer *pki.Identity
	// InvalidSigner claims to be self-signed but is signed by Alternate's
	// key.
	InvalidSigner *pki.Identity
	// WrongKey has the subject of Root but a different key.
	WrongKey *pki.Identity
}

// Valid is the validity window of all non expired, non future fixtures.
func Valid() cppki.Validity {
	return cppki.Validity{
		NotBefore: time.Now().Add(-time.Hour).Truncate(time.Second),
		NotAfter:  time.Now().Add(24 * time.Hour).Truncate(time.Second),
	}
}

var (
	once     sync.Once
	fixtures *Fixtures
	loadErr  error
)

// Load returns the shared fixtures, generating them on first use.
func Load(t testing.TB) *Fixtures {
	t.Helper()
	once.Do(func() { fixtures, loadErr = generate() })
	if loadErr != nil {
		t.Fatalf("failed to generate certificate fixtures: %v", loadErr)
	}
	return fixtures
}

func generate() (*Fixtures, error) {
	var f Fixtures
	valid := Valid()
	var err error

	gen := func(dst **pki.Identity, tpl pki.Template, issuer *pki.Identity) {
		if err != nil {
			return
		}
		if tpl.Validity == (cppki.Validity{}) {
			tpl.Validity = valid
		}
		*dst, err = pki.Generate(tpl, issuer)
	}

	gen(&f.Root, pki.Template{CommonName: "root", Type: pki.CertTypeRoot}, nil)
	gen(&f.Child, pki.Template{CommonName: "child", Type: pki.CertTypeIntermediate}, f.Root)
	gen(&f.Grandchild, pki.Template{CommonName: "grandchild", Type: pki.CertTypeSigning}, f.Child)
	gen(&f.Alternate, pki.Template{CommonName: "alternate", Type: pki.CertTypeRoot}, nil)
	if err != nil {
		return nil, err
	}
	gen(&f.InvalidChild, pki.Template{
		CommonName: "invalidchild",
		Type:       pki.CertTypeSigning,
		SignerKey:  f.Alternate.Key,
	}, f.Child)
	gen(&f.Expired, pki.Template{
		CommonName: "expired",
		Type:       pki.CertTypeRoot,
		Validity: cppki.Validity{
			NotBefore: valid.NotBefore.Add(-72 * time.Hour),
			NotAfter:  valid.NotBefore.Add(-48 * time.Hour),
		},
	}, nil)
	gen(&f.Future, pki.Template{
		CommonName: "future",
		Type:       pki.CertTypeRoot,
		Validity: cppki.Validity{
			NotBefore: valid.NotAfter.Add(48 * time.Hour),
			NotAfter:  valid.NotAfter.Add(72 * time.Hour),
		},
	}, nil)
	gen(&f.InvalidIssuer, pki.Template{
		CommonName: "invalid_issuer",
		Type:       pki.CertTypeRoot,
		IssuerName: &pkix.Name{Organization: []string{pki.Organization}, CommonName: "nobody"},
	}, nil)
	gen(&f.InvalidSigner, pki.Template{
		CommonName: "invalid_signer",
		Type:       pki.CertTypeRoot,
		SignerKey:  f.Alternate.Key,
	}, nil)
	gen(&f.WrongKey, pki.Template{CommonName: "root", Type: pki.CertTypeRoot}, nil)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
