package dbtest

import (
	"bytes"
	"context"
	"crypto/x509"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/fancl20/sigtrust/pkg/pki"
	"github.com/fancl20/sigtrust/pkg/pki/pkitest"
	"github.com/fancl20/sigtrust/pkg/trust"
)

// certsEqual compares two sets of certificates for equality, ignoring order
func certsEqual(a, b []*x509.Certificate) bool {
	f := func(i, j *x509.Certificate) int {
		return bytes.Compare(i.Raw, j.Raw)
	}

	a, b = slices.Clone(a), slices.Clone(b)
	slices.SortFunc(a, f)
	slices.SortFunc(b, f)

	return slices.EqualFunc(a, b, func(ca, cb *x509.Certificate) bool {
		return ca.Equal(cb)
	})
}

var (
	// DefaultTimeout is the default timeout for running the test harness.
	DefaultTimeout = 5 * time.Second
)

// Config holds the configuration for the trust database testing harness.
type Config struct {
	Timeout time.Duration
}

// InitDefaults initializes the default values for the config.
func (cfg *Config) InitDefaults() {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
}

// TestableDB extends the trust db interface with methods that are needed for testing.
type TestableDB interface {
	trust.DB
	// Prepare should reset the internal state so that the db is empty and is ready to be tested.
	Prepare(*testing.T, context.Context)
}

// Run should be used to test any implementation of the trust.DB interface.
// An implementation interface should at least have one test method that calls
// this test-suite.
func Run(t *testing.T, db TestableDB, cfg Config) {
	cfg.InitDefaults()
	tests := map[string]func(*testing.T, trust.DB, Config){
		"test insert": testInsert,
		"test lookup": testLookup,
		"test roots":  testRoots,
	}
	// Run test suite on DB directly.
	for name, test := range tests {
		t.Run("DB: "+name, func(t *testing.T) {
			ctx, cancelF := context.WithTimeout(context.Background(), cfg.Timeout)
			defer cancelF()
			db.Prepare(t, ctx)
			test(t, db, cfg)
			db.Close()
		})
	}
}

func testInsert(t *testing.T, db trust.DB, cfg Config) {
	f := pkitest.Load(t)

	ctx, cancelF := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancelF()

	in, err := db.InsertRoot(ctx, f.Root.Cert)
	if err != nil {
		t.Fatalf("InsertRoot failed: %v", err)
	}
	if !in {
		t.Fatal("InsertRoot should return true for new root")
	}

	t.Run("Insert existing", func(t *testing.T) {
		in, err := db.InsertRoot(ctx, f.Root.Cert)
		if err != nil {
			t.Errorf("InsertRoot failed: %v", err)
		}
		if in {
			t.Error("InsertRoot should return false for existing root")
		}
	})
	t.Run("Insert same subject different key", func(t *testing.T) {
		in, err := db.InsertRoot(ctx, f.WrongKey.Cert)
		if err != nil {
			t.Errorf("InsertRoot failed: %v", err)
		}
		if !in {
			t.Error("InsertRoot should return true for a root with a new fingerprint")
		}
	})
}

func testLookup(t *testing.T, db trust.DB, cfg Config) {
	f := pkitest.Load(t)

	ctx, cancelF := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancelF()

	if _, err := db.InsertRoot(ctx, f.Root.Cert); err != nil {
		t.Fatalf("InsertRoot failed: %v", err)
	}

	t.Run("Root", func(t *testing.T) {
		t.Run("Non existing root", func(t *testing.T) {
			cert, err := db.Root(ctx, pki.Fingerprint(f.Alternate.Cert))
			if err != nil {
				t.Errorf("Root failed: %v", err)
			}
			if cert != nil {
				t.Errorf("Root should return nil for non-existing root, got %v", cert.Subject)
			}
		})
		t.Run("Existing root", func(t *testing.T) {
			cert, err := db.Root(ctx, pki.Fingerprint(f.Root.Cert))
			if err != nil {
				t.Fatalf("Root failed: %v", err)
			}
			if cert == nil || !cert.Equal(f.Root.Cert) {
				t.Errorf("Root should return the inserted root, got %v", cert)
			}
		})
	})
	t.Run("RootBySubject", func(t *testing.T) {
		t.Run("Non existing subject", func(t *testing.T) {
			cert, err := db.RootBySubject(ctx, f.Alternate.Cert.RawSubject)
			if err != nil {
				t.Errorf("RootBySubject failed: %v", err)
			}
			if cert != nil {
				t.Errorf("RootBySubject should return nil for non-existing subject, got %v", cert.Subject)
			}
		})
		t.Run("Existing subject", func(t *testing.T) {
			cert, err := db.RootBySubject(ctx, f.Root.Cert.RawSubject)
			if err != nil {
				t.Fatalf("RootBySubject failed: %v", err)
			}
			if cert == nil || !cert.Equal(f.Root.Cert) {
				t.Errorf("RootBySubject should return the inserted root, got %v", cert)
			}
		})
		t.Run("Latest root with subject", func(t *testing.T) {
			if _, err := db.InsertRoot(ctx, f.WrongKey.Cert); err != nil {
				t.Fatalf("InsertRoot failed: %v", err)
			}
			cert, err := db.RootBySubject(ctx, f.Root.Cert.RawSubject)
			if err != nil {
				t.Fatalf("RootBySubject failed: %v", err)
			}
			if cert == nil || !cert.Equal(f.WrongKey.Cert) {
				t.Errorf("RootBySubject should return the latest root, got %v", cert)
			}
			// Both roots stay trusted by fingerprint.
			cert, err = db.Root(ctx, pki.Fingerprint(f.Root.Cert))
			if err != nil {
				t.Fatalf("Root failed: %v", err)
			}
			if cert == nil {
				t.Error("Root should still return the first root")
			}
		})
	})
}

func testRoots(t *testing.T, db trust.DB, cfg Config) {
	f := pkitest.Load(t)

	ctx, cancelF := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancelF()

	roots, err := db.Roots(ctx)
	if err != nil {
		t.Fatalf("Roots failed: %v", err)
	}
	if len(roots) != 0 {
		t.Errorf("Roots should be empty for a new DB, got %d", len(roots))
	}

	expected := []*x509.Certificate{f.Root.Cert, f.Alternate.Cert, f.WrongKey.Cert}
	for _, cert := range expected {
		if _, err := db.InsertRoot(ctx, cert); err != nil {
			t.Fatalf("InsertRoot failed: %v", err)
		}
	}
	roots, err = db.Roots(ctx)
	if err != nil {
		t.Fatalf("Roots failed: %v", err)
	}
	if !certsEqual(roots, expected) {
		t.Errorf("Roots should return all roots, got %v, want %v", subjects(roots), subjects(expected))
	}

	var fps []string
	for _, cert := range roots {
		fps = append(fps, pki.Fingerprint(cert).String())
	}
	if diff := cmp.Diff(slices.Sorted(slices.Values(fps)), fps); diff != "" {
		t.Errorf("Roots should be ordered by fingerprint (-want +got):\n%s", diff)
	}
}

func subjects(certs []*x509.Certificate) []string {
	var s []string
	for _, c := range certs {
		s = append(s, c.Subject.String())
	}
	return s
}
