// Package storage provides the sealed record store that backs server-side
// lab state (sessions and guestbook entries).
package storage

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrBucketNotFound is returned when a bucket has never been written.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrCASFailed is returned when a compare-and-swap version check fails.
	ErrCASFailed = errors.New("CAS version mismatch")
)

// BatchTx provides record access within an atomic transaction.
// The bucket is scoped to the batch, so methods don't require it.
type BatchTx interface {
	Get(recordType string, recordID string) (*Envelope, error)
	Put(recordType string, recordID string, envelope *Envelope) error
	PutCAS(recordType string, recordID string, expectedVersion uint64, envelope *Envelope) error
	Delete(recordType string, recordID string) error
}

// Repository defines the interface for sealed record storage. Records are
// addressed by bucket, record type and record ID. List returns IDs in
// ascending byte order.
type Repository interface {
	Put(bucket string, recordType string, recordID string, envelope *Envelope) error
	Get(bucket string, recordType string, recordID string) (*Envelope, error)
	Delete(bucket string, recordType string, recordID string) error
	List(bucket string, recordType string) ([]string, error)
	PutCAS(bucket string, recordType string, recordID string, expectedVersion uint64, envelope *Envelope) error
	Batch(bucket string, fn func(tx BatchTx) error) error
}
