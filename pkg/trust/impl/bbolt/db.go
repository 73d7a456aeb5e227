package bbolt

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"slices"

	"github.com/opencontainers/go-digest"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/fancl20/sigtrust/pkg/pki"
	"github.com/fancl20/sigtrust/pkg/trust"
)

var (
	rootsBucket    = []byte("roots")
	subjectsBucket = []byte("subjects")
)

type bboltDB struct {
	db     *bbolt.DB
	logger *zap.Logger
}

// New opens the trust database at path, creating it if needed. A nil
// logger disables logging.
func New(path string, opts *bbolt.Options, logger *zap.Logger) (trust.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := bbolt.Open(path, 0600, opts)
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, s := range [][]byte{rootsBucket, subjectsBucket} {
			if _, err := tx.CreateBucketIfNotExists(s); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &bboltDB{
		db:     db,
		logger: logger.With(zap.String("path", path)),
	}, nil
}

// Root looks up the root certificate with the given fingerprint.
func (b *bboltDB) Root(ctx context.Context, fingerprint digest.Digest) (*x509.Certificate, error) {
	var cert *x509.Certificate
	err := b.db.View(func(tx *bbolt.Tx) (err error) {
		cert, err = lookup(tx, []byte(fingerprint))
		return err
	})
	return cert, err
}

// RootBySubject looks up the most recently inserted root with the subject.
func (b *bboltDB) RootBySubject(ctx context.Context, rawSubject []byte) (*x509.Certificate, error) {
	var cert *x509.Certificate
	err := b.db.View(func(tx *bbolt.Tx) (err error) {
		fp := tx.Bucket(subjectsBucket).Get(subjectKey(rawSubject))
		if fp == nil {
			return nil
		}
		cert, err = lookup(tx, fp)
		return err
	})
	return cert, err
}

// Roots returns all trusted roots ordered by fingerprint.
func (b *bboltDB) Roots(ctx context.Context) ([]*x509.Certificate, error) {
	var roots []*x509.Certificate
	if err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(rootsBucket).ForEach(func(k, v []byte) error {
			cert, err := x509.ParseCertificate(slices.Clone(v))
			if err != nil {
				return fmt.Errorf("corrupt root %s: %w", k, err)
			}
			roots = append(roots, cert)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return roots, nil
}

// InsertRoot inserts the given root. Returns true if the root was not yet
// in the DB.
func (b *bboltDB) InsertRoot(ctx context.Context, cert *x509.Certificate) (bool, error) {
	key := []byte(pki.Fingerprint(cert))

	var existed bool
	if err := b.db.Update(func(tx *bbolt.Tx) error {
		roots := tx.Bucket(rootsBucket)
		if roots.Get(key) != nil {
			existed = true
			return nil
		}
		if err := roots.Put(key, cert.Raw); err != nil {
			return err
		}
		return tx.Bucket(subjectsBucket).Put(subjectKey(cert.RawSubject), key)
	}); err != nil {
		return false, err
	}

	if !existed {
		b.logger.Info("Trusted root inserted", zap.Stringer("root", trust.Info(cert)))
	}
	return !existed, nil
}

func (b *bboltDB) Close() error {
	return b.db.Close()
}

func lookup(tx *bbolt.Tx, fingerprint []byte) (*x509.Certificate, error) {
	raw := tx.Bucket(rootsBucket).Get(fingerprint)
	if raw == nil {
		return nil, nil
	}
	// Values are only valid for the lifetime of the transaction.
	return x509.ParseCertificate(slices.Clone(raw))
}

func subjectKey(rawSubject []byte) []byte {
	h := sha256.Sum256(rawSubject)
	return h[:]
}
