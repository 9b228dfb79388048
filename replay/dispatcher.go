package replay

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/featurebasedb/edp/logger"
	"github.com/featurebasedb/edp/metrics"
)

const defaultWorkers = 4

// Report counts what a replay did.
type Report struct {
	Read   int
	Sent   int
	Failed int
}

// DispatcherConfig configures a Dispatcher. Zero Workers takes the default;
// zero QueueSize is twice the worker count.
type DispatcherConfig struct {
	Invoker   Invoker
	Workers   int
	QueueSize int
	Log       logger.Logger
}

// Dispatcher hands payloads to a fixed set of workers through a bounded
// queue. Delivery is best effort: a failed invocation is counted and logged,
// never retried.
type Dispatcher struct {
	inv    Invoker
	log    logger.Logger
	ch     chan []byte
	eg     *errgroup.Group
	sent   int64
	failed int64
}

func NewDispatcher(ctx context.Context, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 2 * cfg.Workers
	}
	if cfg.Log == nil {
		cfg.Log = logger.NopLogger
	}
	d := &Dispatcher{
		inv: cfg.Invoker,
		log: cfg.Log,
		ch:  make(chan []byte, cfg.QueueSize),
		eg:  &errgroup.Group{},
	}
	for i := 0; i < cfg.Workers; i++ {
		d.eg.Go(func() error {
			for payload := range d.ch {
				d.deliver(ctx, payload)
			}
			return nil
		})
	}
	return d
}

func (d *Dispatcher) deliver(ctx context.Context, payload []byte) {
	if err := d.inv.Invoke(ctx, payload); err != nil {
		atomic.AddInt64(&d.failed, 1)
		metrics.CounterReplayFailed.Inc()
		d.log.Errorf("Error invoking Lambda: %v", err)
		return
	}
	atomic.AddInt64(&d.sent, 1)
	metrics.CounterReplaySent.Inc()
	d.log.Debugf("Lambda invoked successfully")
}

// Submit queues payload, blocking while the queue is full. It must not be
// called after Wait.
func (d *Dispatcher) Submit(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case d.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait closes the queue, waits for queued payloads to be delivered and
// returns the delivery counts.
func (d *Dispatcher) Wait() Report {
	close(d.ch)
	_ = d.eg.Wait()
	return Report{
		Sent:   int(atomic.LoadInt64(&d.sent)),
		Failed: int(atomic.LoadInt64(&d.failed)),
	}
}
