package sink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sliink/capture/internal/model"
	"github.com/sliink/capture/internal/store"
)

// memoryStore is an in-memory ObjectStore for sink tests.
type memoryStore struct {
	mutex   sync.Mutex
	objects map[string][]byte
	meta    map[string]store.Metadata
	putErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		objects: make(map[string][]byte),
		meta:    make(map[string]store.Metadata),
	}
}

func (m *memoryStore) Put(_ context.Context, key string, data []byte, meta store.Metadata) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = data
	m.meta[key] = meta
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var keys []string
	for k := range m.objects {
		if len(prefix) == 0 || (len(k) >= len(prefix) && k[:len(prefix)] == prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memoryStore) Close() error { return nil }

func testRecord(id string) model.LogRecord {
	return model.LogRecord{
		ID:        id,
		Timestamp: time.Date(2025, 8, 14, 10, 30, 0, 0, time.UTC),
		Kind:      model.RequestKind,
		Method:    "POST",
		URL:       "https://api.anthropic.com/v1/messages",
		Headers:   map[string]string{"Content-Type": "application/json"},
		Body:      `{"model":"claude-sonnet-4"}`,
		Host:      "api.anthropic.com",
	}
}

func TestObjectSinkKey(t *testing.T) {
	sink := NewObjectSink(newMemoryStore(), "", "")

	rec := testRecord("20250814_103000_a1b2c3d4")
	assert.Equal(t,
		"traffic-logs/api.anthropic.com/20250814_103000_a1b2c3d4_request.json",
		sink.Key(rec))

	rec.Host = ""
	assert.Equal(t,
		"traffic-logs/unknown/20250814_103000_a1b2c3d4_request.json",
		sink.Key(rec))

	custom := NewObjectSink(newMemoryStore(), "archive", "")
	rec.Host = "statsig.anthropic.com"
	rec.Kind = model.ResponseKind
	assert.Equal(t,
		"archive/statsig.anthropic.com/20250814_103000_a1b2c3d4_response.json",
		custom.Key(rec))
}

func TestObjectSinkPersist(t *testing.T) {
	st := newMemoryStore()
	sink := NewObjectSink(st, "", "proxy")

	rec := testRecord("20250814_103000_a1b2c3d4")
	require.NoError(t, sink.Persist(context.Background(), rec))

	key := sink.Key(rec)
	data, ok := st.objects[key]
	require.True(t, ok)

	var stored model.LogRecord
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, rec, stored)

	meta := st.meta[key]
	assert.Equal(t, "proxy", meta["source"])
	assert.Equal(t, "request", meta["kind"])
	assert.NotEmpty(t, meta["uploaded_at"])
}

func TestObjectSinkPersistWrapsStoreError(t *testing.T) {
	st := newMemoryStore()
	st.putErr = errors.New("bucket unavailable")
	sink := NewObjectSink(st, "", "")

	err := sink.Persist(context.Background(), testRecord("rec-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rec-1")
	assert.Contains(t, err.Error(), "bucket unavailable")
}
