package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	failN    int // number of initial calls to fail
	calls    int
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failN {
		return errors.New("simulated broker outage")
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestPublisherDeliversSessionEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := &fakeWriter{}
	p := NewPublisher(ctx, w, 16, 3)
	p.PublishSession(ctx, "123456789012345", SessionRecord{Kind: "connected", IMEI: "123456789012345"})

	waitFor(t, time.Second, func() bool { return w.count() == 1 })
}

func TestPublisherShedsNewestTelemetryUnderBackpressure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := &fakeWriter{}
	p := NewPublisher(ctx, w, 1, 3)

	// Fill and overflow the queue quickly, before the pump can drain it.
	for i := 0; i < 50; i++ {
		p.PublishTelemetry("123456789012345", TelemetryRecord{IMEI: "123456789012345", MessageKind: "heartbeat"})
	}

	waitFor(t, time.Second, func() bool { return p.Dropped() > 0 })
}

func TestPublisherRetriesThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := &fakeWriter{failN: 2}
	p := NewPublisher(ctx, w, 16, 5)
	p.PublishSession(ctx, "123456789012345", SessionRecord{Kind: "connected"})

	waitFor(t, 2*time.Second, func() bool { return p.Published() == 1 })
}

func TestPublisherDropsAfterRetriesExhausted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := &fakeWriter{failN: 100}
	p := NewPublisher(ctx, w, 16, 2)
	p.PublishSession(ctx, "123456789012345", SessionRecord{Kind: "connected"})

	waitFor(t, 2*time.Second, func() bool { return p.Failed() == 1 })
}
