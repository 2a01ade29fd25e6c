package bus

import (
	"context"
	"sync/atomic"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// outbound is one queued record awaiting publication.
type outbound struct {
	topic string
	key   string
	value interface{}
	// sheddable records (TelemetryEvents) may be dropped under
	// backpressure; SessionEvents never are.
	sheddable bool
}

// Publisher is the Telemetry Publisher (C5). It owns a bounded send queue
// and a single pump goroutine, so the caller — the Connection Handler —
// never awaits the network (spec.md §9's "async callbacks for publish"
// re-architecture note).
type Publisher struct {
	writer   Writer
	queue    chan outbound
	retryMax int
	log      *logrus.Entry

	dropped  int64 // sheddable records dropped for queue-full
	failed   int64 // records dropped after exhausting retries
	published int64
}

// NewPublisher starts the pump goroutine against ctx; it stops as soon as
// ctx is cancelled, and records still in the queue at that point are not
// delivered.
func NewPublisher(ctx context.Context, writer Writer, queueCapacity, retryMax int) *Publisher {
	p := &Publisher{
		writer:   writer,
		queue:    make(chan outbound, queueCapacity),
		retryMax: retryMax,
		log:      logrus.WithField("component", "telemetry_publisher"),
	}
	go p.pump(ctx)
	return p
}

// PublishSession enqueues a SessionEvent. SessionEvents are never shed
// under backpressure; if the queue is momentarily full the call blocks
// until ctx is done or room frees up.
func (p *Publisher) PublishSession(ctx context.Context, imei string, rec SessionRecord) {
	select {
	case p.queue <- outbound{topic: TopicSession, key: imei, value: rec, sheddable: false}:
	case <-ctx.Done():
	}
}

// PublishTelemetry enqueues a TelemetryEvent. Under backpressure (a full
// queue) the newest telemetry record is dropped rather than blocking the
// caller, preserving the last successfully queued position.
func (p *Publisher) PublishTelemetry(imei string, rec TelemetryRecord) {
	select {
	case p.queue <- outbound{topic: TopicTelemetry, key: imei, value: rec, sheddable: true}:
	default:
		atomic.AddInt64(&p.dropped, 1)
		p.log.WithField("imei", imei).Warn("telemetry queue full, dropping newest event")
	}
	if rec.Location != nil {
		select {
		case p.queue <- outbound{topic: TopicLocation, key: imei, value: *rec.Location, sheddable: true}:
		default:
			atomic.AddInt64(&p.dropped, 1)
		}
	}
}

// Dropped returns the count of sheddable records dropped for queue-full.
func (p *Publisher) Dropped() int64 { return atomic.LoadInt64(&p.dropped) }

// Failed returns the count of records dropped after exhausting retries.
func (p *Publisher) Failed() int64 { return atomic.LoadInt64(&p.failed) }

// Published returns the count of records successfully written to the bus.
func (p *Publisher) Published() int64 { return atomic.LoadInt64(&p.published) }

func (p *Publisher) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-p.queue:
			p.deliver(ctx, item)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, item outbound) {
	value, err := msgpack.Marshal(item.value)
	if err != nil {
		p.log.WithError(err).Error("failed to marshal bus record")
		return
	}

	backoff := 50 * time.Millisecond
	for attempt := 0; attempt <= p.retryMax; attempt++ {
		err := p.writer.WriteMessages(ctx, kafka.Message{
			Topic: item.topic,
			Key:   []byte(item.key),
			Value: value,
		})
		if err == nil {
			atomic.AddInt64(&p.published, 1)
			return
		}
		if attempt == p.retryMax {
			atomic.AddInt64(&p.failed, 1)
			p.log.WithError(err).WithField("topic", item.topic).Error("publish retries exhausted, dropping event")
			return
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
	}
}
