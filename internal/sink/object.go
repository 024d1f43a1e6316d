// Package sink persists built records to the object-store boundary. The
// write path is deliberately decoupled from the intercepted traffic: callers
// hand records to a bounded queue and a persistence failure is only ever
// visible in logs and counters.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sliink/capture/internal/model"
	"github.com/sliink/capture/internal/store"
)

// DefaultNamespace is the storage prefix shared by all captured records.
const DefaultNamespace = "traffic-logs"

// Sink persists a single record.
type Sink interface {
	Persist(ctx context.Context, record model.LogRecord) error
}

// ObjectSink writes records as JSON objects keyed by
// {namespace}/{host}/{timestamp}_{id}_{kind}.json. The timestamp and random
// suffix are both embedded in the record ID, so concurrent writers against
// the same host in the same second cannot collide.
type ObjectSink struct {
	store     store.ObjectStore
	namespace string
	source    string
}

// NewObjectSink creates a sink writing into the given store. An empty
// namespace falls back to DefaultNamespace; source tags the stored objects
// with their logical origin.
func NewObjectSink(st store.ObjectStore, namespace, source string) *ObjectSink {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if source == "" {
		source = "capture"
	}
	return &ObjectSink{store: st, namespace: namespace, source: source}
}

// Persist serializes the record and writes it to the store with descriptive
// metadata.
func (s *ObjectSink) Persist(ctx context.Context, record model.LogRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", record.ID, err)
	}

	meta := store.Metadata{
		"source":      s.source,
		"kind":        string(record.Kind),
		"uploaded_at": time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.store.Put(ctx, s.Key(record), data, meta); err != nil {
		return fmt.Errorf("storing record %s: %w", record.ID, err)
	}
	return nil
}

// Key builds the storage key for a record. The host partition keeps
// per-destination analysis a single prefix away.
func (s *ObjectSink) Key(record model.LogRecord) string {
	host := record.Host
	if host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s/%s/%s_%s.json", s.namespace, host, record.ID, record.Kind)
}
