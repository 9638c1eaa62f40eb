package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/relaymind/voicegate/internal/telnyx"
	"github.com/relaymind/voicegate/pkg/logging"
)

type countingBridger struct {
	mu      sync.Mutex
	seen    []string
	block   chan struct{}
	panicOn string
}

func (b *countingBridger) Bridge(_ context.Context, evt telnyx.Event) Outcome {
	if b.block != nil {
		<-b.block
	}
	if evt.CallControlID == b.panicOn {
		panic("boom")
	}
	b.mu.Lock()
	b.seen = append(b.seen, evt.CallControlID)
	b.mu.Unlock()
	return OutcomeBridged
}

func (b *countingBridger) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.seen)
}

func TestDispatcherRunsJobs(t *testing.T) {
	b := &countingBridger{}
	d := NewDispatcher(b, 8, time.Second, logging.Default())

	for i := 0; i < 5; i++ {
		if !d.Dispatch(telnyx.Event{Kind: telnyx.EventInitiated, CallControlID: "cc"}) {
			t.Fatal("dispatch must accept while under capacity")
		}
	}
	d.Close()
	if got := b.count(); got != 5 {
		t.Fatalf("expected 5 bridged jobs, got %d", got)
	}
}

func TestDispatcherDropsWhenSaturated(t *testing.T) {
	b := &countingBridger{block: make(chan struct{})}
	d := NewDispatcher(b, 1, time.Second, logging.Default())

	// Fill every worker plus the single buffer slot.
	accepted := 0
	for i := 0; i < defaultWorkers+1+10; i++ {
		if d.Dispatch(telnyx.Event{CallControlID: "cc"}) {
			accepted++
		}
	}
	if accepted > defaultWorkers+1 {
		t.Fatalf("accepted %d jobs past capacity", accepted)
	}
	close(b.block)
	d.Close()
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(&countingBridger{}, 8, time.Second, logging.Default())
	d.Close()
	if d.Dispatch(telnyx.Event{CallControlID: "cc"}) {
		t.Fatal("dispatch after close must be rejected")
	}
	d.Close()
}

func TestDispatcherContainsPanics(t *testing.T) {
	b := &countingBridger{panicOn: "cc_bad"}
	d := NewDispatcher(b, 8, time.Second, logging.Default())

	d.Dispatch(telnyx.Event{CallControlID: "cc_bad"})
	d.Dispatch(telnyx.Event{CallControlID: "cc_ok"})
	d.Close()
	if got := b.count(); got != 1 {
		t.Fatalf("expected the non-panicking job to finish, got %d", got)
	}
}
