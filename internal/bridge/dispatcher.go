package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/relaymind/voicegate/internal/telnyx"
	"github.com/relaymind/voicegate/pkg/logging"
)

const defaultWorkers = 8

type bridger interface {
	Bridge(ctx context.Context, evt telnyx.Event) Outcome
}

// Dispatcher decouples bridging from the webhook response path. Jobs go into
// a bounded buffer consumed by a fixed worker pool; when the buffer is full
// the job is dropped and logged rather than delaying the provider's
// acknowledgment.
type Dispatcher struct {
	orchestrator bridger
	jobs         chan telnyx.Event
	timeout      time.Duration
	logger       *logging.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts the worker pool immediately.
func NewDispatcher(orchestrator bridger, capacity int, timeout time.Duration, logger *logging.Logger) *Dispatcher {
	if orchestrator == nil {
		panic("bridge: orchestrator required")
	}
	if capacity <= 0 {
		capacity = 64
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		orchestrator: orchestrator,
		jobs:         make(chan telnyx.Event, capacity),
		timeout:      timeout,
		logger:       logger.Named("bridge_dispatcher"),
	}
	for i := 0; i < defaultWorkers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Dispatch enqueues a bridge job without blocking. It returns false when the
// dispatcher is saturated or shut down; the call then simply goes unbridged,
// which the caller experiences as an unanswered ring.
func (d *Dispatcher) Dispatch(evt telnyx.Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("dispatch after shutdown, dropping", "call_id", evt.CallControlID)
		return false
	}
	select {
	case d.jobs <- evt:
		return true
	default:
		d.logger.Error("bridge queue saturated, dropping call", "call_id", evt.CallControlID)
		return false
	}
}

// Close stops intake and waits for in-flight jobs to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for evt := range d.jobs {
		d.runJob(evt)
	}
}

// runJob bounds each bridge with its own timeout and contains panics so one
// bad job cannot take a worker down.
func (d *Dispatcher) runJob(evt telnyx.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("bridge job panicked", "call_id", evt.CallControlID, "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	d.orchestrator.Bridge(ctx, evt)
}
