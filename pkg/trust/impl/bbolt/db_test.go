package bbolt_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap/zaptest"

	"github.com/fancl20/sigtrust/pkg/pki"
	"github.com/fancl20/sigtrust/pkg/pki/pkitest"
	"github.com/fancl20/sigtrust/pkg/trust"
	"github.com/fancl20/sigtrust/pkg/trust/impl/bbolt"
	"github.com/fancl20/sigtrust/pkg/trust/impl/dbtest"
)

type testDB struct {
	trust.DB
}

func (db *testDB) Prepare(t *testing.T, ctx context.Context) {
	b, err := bbolt.New(filepath.Join(t.TempDir(), "test.db"), nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.DB = b
}

func TestDB(t *testing.T) {
	dbtest.Run(t, &testDB{}, dbtest.Config{})
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	f := pkitest.Load(t)
	path := filepath.Join(t.TempDir(), "trust.db")

	db, err := bbolt.New(path, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := db.InsertRoot(ctx, f.Root.Cert); err != nil {
		t.Fatalf("InsertRoot failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err = bbolt.New(path, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer db.Close()
	cert, err := db.Root(ctx, pki.Fingerprint(f.Root.Cert))
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}
	if cert == nil || !cert.Equal(f.Root.Cert) {
		t.Errorf("Root should return the root inserted before reopening, got %v", cert)
	}
}

func TestLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trust.db")
	db, err := bbolt.New(path, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer db.Close()

	if _, err := bbolt.New(path, &bolt.Options{Timeout: 50 * time.Millisecond}, nil); err == nil {
		t.Error("New should fail while another handle holds the lock")
	}
}
