// Package ingest bulk-fetches persisted records from the remote store into
// local working storage and decodes them into an in-memory snapshot. All
// analysis runs over the snapshot; the remote store is listed once per
// fetch, never per query.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sliink/capture/internal/model"
	"github.com/sliink/capture/internal/store"
)

var (
	// ErrNoObjects signals that the remote prefix exists but holds nothing
	// to fetch. Distinct from a fetch mechanism failure.
	ErrNoObjects = errors.New("no objects to fetch")
	// ErrFetchFailed signals that the fetch mechanism itself failed, for
	// example an unreachable store or a failed listing.
	ErrFetchFailed = errors.New("fetch failed")
)

const defaultFetchTimeout = 5 * time.Minute

// Source copies remote objects into a local directory, partition by
// partition. Partitions (host prefixes) are independent, so they are
// fetched concurrently and merged only after every fetch completes.
type Source struct {
	store     store.ObjectStore
	localDir  string
	namespace string
	timeout   time.Duration
	log       zerolog.Logger
}

// NewSource creates an ingestion source. An empty namespace defaults to the
// shared traffic-logs prefix; a zero timeout defaults to five minutes.
func NewSource(st store.ObjectStore, localDir, namespace string, timeout time.Duration, log zerolog.Logger) *Source {
	if namespace == "" {
		namespace = "traffic-logs"
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Source{
		store:     st,
		localDir:  localDir,
		namespace: namespace,
		timeout:   timeout,
		log:       log.With().Str("component", "ingest").Logger(),
	}
}

// LocalDir returns the local working directory objects are fetched into.
func (s *Source) LocalDir() string {
	return s.localDir
}

// FetchAll downloads every object in the namespace. Per-object failures are
// tolerated and counted; a failed listing or an empty namespace surface as
// explicit errors so the caller can tell "nothing there" from "could not
// look".
func (s *Source) FetchAll(ctx context.Context) (model.FetchStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	keys, err := s.store.List(ctx, s.namespace+"/")
	if err != nil {
		return model.FetchStats{}, fmt.Errorf("%w: listing %s: %v", ErrFetchFailed, s.namespace, err)
	}
	if len(keys) == 0 {
		return model.FetchStats{}, fmt.Errorf("%w: namespace %s", ErrNoObjects, s.namespace)
	}

	return s.fetch(ctx, keys)
}

// FetchPartition downloads a single host partition and returns its local
// path.
func (s *Source) FetchPartition(ctx context.Context, host string) (string, model.FetchStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prefix := s.namespace + "/" + host + "/"
	keys, err := s.store.List(ctx, prefix)
	if err != nil {
		return "", model.FetchStats{}, fmt.Errorf("%w: listing %s: %v", ErrFetchFailed, prefix, err)
	}
	if len(keys) == 0 {
		return "", model.FetchStats{}, fmt.Errorf("%w: host %s", ErrNoObjects, host)
	}

	stats, err := s.fetch(ctx, keys)
	if err != nil {
		return "", stats, err
	}
	localPath := filepath.Join(s.localDir, filepath.FromSlash(s.namespace), host)
	return localPath, stats, nil
}

// fetch copies the given keys into local storage, one goroutine per host
// partition. Results merge after all partitions finish.
func (s *Source) fetch(ctx context.Context, keys []string) (model.FetchStats, error) {
	partitions := partitionKeys(keys)

	var (
		wg    sync.WaitGroup
		mutex sync.Mutex
		stats = model.FetchStats{Listed: len(keys), Partitions: len(partitions)}
	)

	for host, hostKeys := range partitions {
		wg.Add(1)
		go func(host string, hostKeys []string) {
			defer wg.Done()

			fetched, failed := 0, 0
			for _, key := range hostKeys {
				if err := s.copyObject(ctx, key); err != nil {
					failed++
					s.log.Warn().Err(err).Str("key", key).Msg("object fetch failed")
					continue
				}
				fetched++
			}

			mutex.Lock()
			stats.Fetched += fetched
			stats.Failed += failed
			mutex.Unlock()

			s.log.Info().Str("host", host).Int("fetched", fetched).Int("failed", failed).Msg("partition fetched")
		}(host, hostKeys)
	}

	wg.Wait()
	return stats, nil
}

func (s *Source) copyObject(ctx context.Context, key string) error {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	path := filepath.Join(s.localDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// partitionKeys groups keys by their host segment, the second path element.
func partitionKeys(keys []string) map[string][]string {
	partitions := make(map[string][]string)
	for _, key := range keys {
		parts := strings.Split(key, "/")
		host := "unknown"
		if len(parts) >= 3 {
			host = parts[1]
		}
		partitions[host] = append(partitions[host], key)
	}
	for _, hostKeys := range partitions {
		sort.Strings(hostKeys)
	}
	return partitions
}
