package recorder

import (
	"context"
	"time"
)

// NoopStore discards records. It is used when storage is not configured.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (n *NoopStore) Ping(_ context.Context) error { return nil }
func (n *NoopStore) InsertBatch(_ context.Context, _ string, records []Record) (int, error) {
	return len(records), nil
}
func (n *NoopStore) DeleteOlderThan(_ context.Context, _ string, _ time.Time) (int64, error) {
	return 0, nil
}
func (n *NoopStore) Close() error { return nil }
