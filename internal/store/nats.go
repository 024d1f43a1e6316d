package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSStore is an ObjectStore backed by a NATS JetStream object store
// bucket. Object names are the record keys; sink metadata maps onto
// ObjectMeta metadata so stored records can be filtered without a download.
type NATSStore struct {
	nc     *nats.Conn
	bucket jetstream.ObjectStore
	name   string
}

// Ensure NATSStore implements ObjectStore
var _ ObjectStore = (*NATSStore)(nil)

// NewNATSStore connects to the given NATS URL and binds the bucket,
// creating it when absent.
func NewNATSStore(url, bucket string) (*NATSStore, error) {
	nc, err := nats.Connect(url, nats.Name("capture"))
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	obs, err := js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "captured traffic records",
	})
	if errors.Is(err, jetstream.ErrBucketExists) {
		obs, err = js.ObjectStore(ctx, bucket)
	}
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &NATSStore{nc: nc, bucket: obs, name: bucket}, nil
}

// Put stores an object under key.
func (s *NATSStore) Put(ctx context.Context, key string, data []byte, meta Metadata) error {
	objMeta := jetstream.ObjectMeta{Name: key}
	if len(meta) > 0 {
		objMeta.Metadata = meta
	}
	_, err := s.bucket.Put(ctx, objMeta, bytes.NewReader(data))
	return err
}

// Get retrieves an object by key.
func (s *NATSStore) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := s.bucket.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer res.Close()
	return io.ReadAll(res)
}

// List returns all object names under prefix. An empty bucket is an empty
// result, not an error.
func (s *NATSStore) List(ctx context.Context, prefix string) ([]string, error) {
	infos, err := s.bucket.List(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoObjectsFound) {
			return nil, nil
		}
		return nil, err
	}

	var keys []string
	for _, info := range infos {
		if info.Deleted {
			continue
		}
		if prefix == "" || strings.HasPrefix(info.Name, prefix) {
			keys = append(keys, info.Name)
		}
	}
	return keys, nil
}

// Close drains the NATS connection.
func (s *NATSStore) Close() error {
	return s.nc.Drain()
}
