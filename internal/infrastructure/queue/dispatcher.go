package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskflow/portal/internal/api/metrics"
	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	writeTimeout   = 5 * time.Second
)

// Dispatcher writes lifecycle journal entries on a fixed set of workers
// using consistent hashing on the visitor ID, guaranteeing per-visitor
// ordering. Record never blocks: when a worker's buffer is full the entry is
// dropped and counted.
type Dispatcher struct {
	workers []chan domain.LifecycleEvent
	repo    ports.LifecycleRepository
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, repo ports.LifecycleRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.LifecycleEvent, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.LifecycleEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers drain their queues and stop
// when ctx is cancelled; Wait blocks until they have.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Record enqueues event on the worker responsible for its visitor.
func (d *Dispatcher) Record(event domain.LifecycleEvent) {
	idx := d.shardIndex(event.VisitorID)
	select {
	case d.workers[idx] <- event:
		metrics.JournalQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.JournalErrorsTotal.Inc()
		d.log.Warn().
			Str("visitor_id", event.VisitorID).
			Str("kind", event.Kind).
			Int("worker_id", idx).
			Msg("journal queue full, dropping lifecycle event")
	}
}

// shardIndex maps a visitor ID deterministically to a worker index.
func (d *Dispatcher) shardIndex(visitorID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(visitorID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.LifecycleEvent) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			d.drain(id, ch)
			return
		case event := <-ch:
			metrics.JournalQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			d.write(context.WithoutCancel(ctx), id, event)
		}
	}
}

// drain flushes whatever is still buffered after shutdown was requested.
func (d *Dispatcher) drain(id int, ch <-chan domain.LifecycleEvent) {
	for {
		select {
		case event := <-ch:
			d.write(context.Background(), id, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) write(ctx context.Context, id int, event domain.LifecycleEvent) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := d.repo.Insert(ctx, &event); err != nil {
		metrics.JournalErrorsTotal.Inc()
		d.log.Error().Err(err).
			Str("visitor_id", event.VisitorID).
			Str("kind", event.Kind).
			Int("worker_id", id).
			Msg("lifecycle journal write failed")
	}
}
