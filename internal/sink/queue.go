package sink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sliink/capture/internal/model"
)

const (
	defaultQueueSize    = 1000
	defaultWorkers      = 4
	defaultPersistTime  = 15 * time.Second
	defaultDrainTimeout = 10 * time.Second
)

// QueueOptions configures the persistence queue.
type QueueOptions struct {
	// Size is the maximum number of records waiting to be persisted.
	Size int
	// Workers is the number of concurrent persist goroutines.
	Workers int
	// PersistTimeout bounds a single persist attempt.
	PersistTimeout time.Duration
	// DrainTimeout bounds how long Stop waits for in-flight persists.
	DrainTimeout time.Duration
}

func (o QueueOptions) withDefaults() QueueOptions {
	if o.Size <= 0 {
		o.Size = defaultQueueSize
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = defaultPersistTime
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = defaultDrainTimeout
	}
	return o
}

// Queue is a bounded, asynchronous buffer in front of a Sink. Enqueue never
// blocks the caller: when the queue is full the oldest waiting record is
// dropped and counted. Persist failures are logged and swallowed so that a
// storage outage can never stall traffic interception.
type Queue struct {
	sink Sink
	opts QueueOptions
	log  zerolog.Logger

	ch chan model.LogRecord
	wg sync.WaitGroup

	mutex  sync.RWMutex
	status model.ComponentStatus

	persisted atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewQueue creates a persistence queue over the given sink.
func NewQueue(s Sink, opts QueueOptions, log zerolog.Logger) *Queue {
	opts = opts.withDefaults()
	return &Queue{
		sink:   s,
		opts:   opts,
		log:    log.With().Str("component", "sink_queue").Logger(),
		ch:     make(chan model.LogRecord, opts.Size),
		status: model.StatusInitialized,
	}
}

// Start launches the persist workers.
func (q *Queue) Start() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.status == model.StatusRunning {
		return true
	}

	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	q.status = model.StatusRunning
	return true
}

// Stop closes the queue and waits for in-flight persists up to the drain
// timeout. Reports whether the drain completed before the deadline.
func (q *Queue) Stop() bool {
	q.mutex.Lock()
	if q.status != model.StatusRunning {
		q.mutex.Unlock()
		return true
	}
	q.status = model.StatusStopped
	close(q.ch)
	q.mutex.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(q.opts.DrainTimeout):
		q.log.Warn().Msg("drain timeout, abandoning queued records")
		return false
	}
}

// Enqueue hands a record to the queue. It never blocks: a full queue drops
// the oldest waiting record to make room. Returns false only when the queue
// is not running.
func (q *Queue) Enqueue(record model.LogRecord) bool {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	if q.status != model.StatusRunning {
		return false
	}

	select {
	case q.ch <- record:
		return true
	default:
	}

	// Full: drop the oldest queued record, then retry once. A worker may
	// have raced us to it, in which case the retry succeeds anyway.
	select {
	case old := <-q.ch:
		q.dropped.Add(1)
		q.log.Warn().Str("id", old.ID).Msg("queue full, dropped oldest record")
	default:
	}

	select {
	case q.ch <- record:
		return true
	default:
		q.dropped.Add(1)
		return true
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for record := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), q.opts.PersistTimeout)
		err := q.sink.Persist(ctx, record)
		cancel()

		if err != nil {
			q.failed.Add(1)
			q.log.Error().Err(err).Str("id", record.ID).Str("host", record.Host).Msg("persist failed")
			continue
		}
		q.persisted.Add(1)
	}
}

// Status returns a snapshot of the queue state.
func (q *Queue) Status() model.QueueStatus {
	q.mutex.RLock()
	status := q.status
	q.mutex.RUnlock()

	return model.QueueStatus{
		Status:     status,
		Depth:      len(q.ch),
		Capacity:   q.opts.Size,
		Persisted:  q.persisted.Load(),
		Failed:     q.failed.Load(),
		Dropped:    q.dropped.Load(),
		LastUpdate: time.Now(),
	}
}
