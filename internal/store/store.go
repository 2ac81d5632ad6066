// Package store defines the record store contract the rest of the service
// is written against: an ordered, prefix-scannable key-value store with a
// single-key compare-and-set primitive. Backends do not retry; callers own
// retry policy.
package store

import "context"

// KeyValue is one scanned record.
type KeyValue struct {
	Key   string
	Value []byte
}

// RecordStore is the storage contract. Scan returns records ordered by key;
// it is finite for a bounded prefix and restartable per call. Get returns
// domain.ErrKeyNotFound for an absent key. CompareAndSet succeeds iff the
// precondition on the key's current state matches: expectAbsent=true is a
// first-write-wins insert, expectAbsent=false asserts the key exists before
// overwriting. Set is an unconditional last-write-wins overwrite.
type RecordStore interface {
	Scan(ctx context.Context, prefix string) ([]KeyValue, error)
	Get(ctx context.Context, key string) ([]byte, error)
	CompareAndSet(ctx context.Context, key string, expectAbsent bool, value []byte) (bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}
