package bbolt

import (
	"errors"
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/authlab/storage"
)

func newTestDB(t *testing.T) *bbolt.DB {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "state.db"), 0600, nil)
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sealed(payload string, version uint64) *storage.Envelope {
	return &storage.Envelope{Ver: 1, Scheme: "aes256gcm", Nonce: make([]byte, 12), Ciphertext: []byte(payload), Version: version}
}

func TestBBoltStorage(t *testing.T) {
	s := NewRepository(newTestDB(t))
	bucket := "sessions"
	recordType := "SESSION"

	t.Run("PutGet", func(t *testing.T) {
		if err := s.Put(bucket, recordType, "s1", sealed("a", 0)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := s.Get(bucket, recordType, "s1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got.Ciphertext) != "a" {
			t.Errorf("expected ciphertext 'a', got %q", got.Ciphertext)
		}
	})

	t.Run("List is ordered and prefix scoped", func(t *testing.T) {
		s.Put(bucket, recordType, "s3", sealed("c", 0))
		s.Put(bucket, recordType, "s2", sealed("b", 0))
		s.Put(bucket, "SESSIONX", "other", sealed("x", 0))
		s.Put(bucket, "Z", "", sealed("z", 0))

		ids, err := s.List(bucket, recordType)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		want := []string{"s1", "s2", "s3"}
		if len(ids) != len(want) {
			t.Fatalf("expected %v, got %v", want, ids)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
			}
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.Delete(bucket, recordType, "s3"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := s.Get(bucket, recordType, "s3"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := s.Delete(bucket, recordType, "s3"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound for second delete, got %v", err)
		}
		if err := s.Delete("missing", recordType, "s3"); !errors.Is(err, storage.ErrBucketNotFound) {
			t.Errorf("expected ErrBucketNotFound, got %v", err)
		}
	})

	t.Run("PutCAS create-only", func(t *testing.T) {
		if err := s.PutCAS(bucket, "SEQ", "next", 0, sealed("", 1)); err != nil {
			t.Fatalf("PutCAS (new) failed: %v", err)
		}
		if err := s.PutCAS(bucket, "SEQ", "next", 0, sealed("", 1)); err != storage.ErrCASFailed {
			t.Errorf("expected ErrCASFailed, got %v", err)
		}
	})

	t.Run("PutCAS version match and mismatch", func(t *testing.T) {
		if err := s.PutCAS(bucket, "SEQ", "next", 1, sealed("", 2)); err != nil {
			t.Fatalf("PutCAS (version match) failed: %v", err)
		}
		if err := s.PutCAS(bucket, "SEQ", "next", 1, sealed("", 3)); err != storage.ErrCASFailed {
			t.Errorf("expected ErrCASFailed, got %v", err)
		}
		if err := s.PutCAS(bucket, "SEQ", "missing", 1, sealed("", 2)); err != storage.ErrCASFailed {
			t.Errorf("expected ErrCASFailed for non-zero version on missing record, got %v", err)
		}
	})

	t.Run("Get Errors", func(t *testing.T) {
		if _, err := s.Get("nonexistent", recordType, "s1"); !errors.Is(err, storage.ErrBucketNotFound) {
			t.Errorf("expected ErrBucketNotFound, got %v", err)
		}
		if _, err := s.Get(bucket, recordType, "nonexistent"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("List Nonexistent Bucket", func(t *testing.T) {
		ids, err := s.List("nonexistent", recordType)
		if err != nil {
			t.Errorf("expected no error for nonexistent bucket in List, got %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("expected 0 ids, got %d", len(ids))
		}
	})
}

func TestNewRepositoryFromFile(t *testing.T) {
	repo, err := NewRepositoryFromFile(filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Fatalf("NewRepositoryFromFile failed: %v", err)
	}
	defer repo.Close()

	if _, err := NewRepositoryFromFile("/nonexistent/path/to/db", nil); err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestBBoltBatch(t *testing.T) {
	s := NewRepository(newTestDB(t))
	bucket := "guestbook"

	t.Run("atomic batch write", func(t *testing.T) {
		err := s.Batch(bucket, func(tx storage.BatchTx) error {
			if _, err := tx.Get("SEQ", "msg"); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("expected ErrNotFound inside batch, got %v", err)
			}
			if err := tx.PutCAS("SEQ", "msg", 0, sealed("", 1)); err != nil {
				return err
			}
			return tx.Put("MSG", "0000000001", sealed("hello", 0))
		})
		if err != nil {
			t.Fatalf("Batch failed: %v", err)
		}

		seq, err := s.Get(bucket, "SEQ", "msg")
		if err != nil {
			t.Fatalf("Get seq failed: %v", err)
		}
		if seq.Version != 1 {
			t.Errorf("expected seq version 1, got %d", seq.Version)
		}
		msg, err := s.Get(bucket, "MSG", "0000000001")
		if err != nil {
			t.Fatalf("Get msg failed: %v", err)
		}
		if string(msg.Ciphertext) != "hello" {
			t.Errorf("expected ciphertext 'hello', got %q", msg.Ciphertext)
		}
	})

	t.Run("batch rollback on error", func(t *testing.T) {
		err := s.Batch(bucket, func(tx storage.BatchTx) error {
			tx.Put("MSG", "rollback-test", sealed("should-not-exist", 0))
			return storage.ErrCASFailed
		})
		if err != storage.ErrCASFailed {
			t.Fatalf("expected ErrCASFailed, got %v", err)
		}
		if _, err := s.Get(bucket, "MSG", "rollback-test"); err == nil {
			t.Error("expected record to not exist after rollback")
		}
	})
}
