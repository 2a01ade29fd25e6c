package bus

import (
	"container/heap"
	"context"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// SessionLookup is the narrow slice of the Session Registry (C3) the
// Command Consumer needs.
type SessionLookup interface {
	GetByIMEI(ctx context.Context, imei string) (channelID string, ok bool, err error)
}

// FrameSender writes an already-encoded frame to the connection identified
// by channelID. It is implemented by the Connection Handler (C4); C6 never
// touches a socket directly.
type FrameSender interface {
	SendFrame(ctx context.Context, channelID string, frame []byte) error
}

// Encoder is the subset of pkg/gt06/codec.Encoder the consumer needs.
type Encoder interface {
	OnlineCommand(serial uint16, serverFlag uint32, command string, language uint16) []byte
}

// Consumer is the Command Consumer (C6): bus → session lookup → encode →
// connection write, with bounded per-IMEI retry and priority ordering
// that never reorders across IMEIs.
type Consumer struct {
	reader   Reader
	sessions SessionLookup
	sender   FrameSender
	encoder  Encoder
	pub      *Publisher
	log      *logrus.Entry

	mu    sync.Mutex
	queues map[string]*imeiQueue
}

// NewConsumer starts consuming from reader in a background goroutine.
func NewConsumer(ctx context.Context, reader Reader, sessions SessionLookup, sender FrameSender, encoder Encoder, pub *Publisher) *Consumer {
	c := &Consumer{
		reader:   reader,
		sessions: sessions,
		sender:   sender,
		encoder:  encoder,
		pub:      pub,
		log:      logrus.WithField("component", "command_consumer"),
		queues:   make(map[string]*imeiQueue),
	}
	go c.run(ctx)
	return c
}

func (c *Consumer) run(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.WithError(err).Warn("command consumer: read failed, retrying")
			time.Sleep(time.Second)
			continue
		}

		var rec CommandRecord
		if err := msgpack.Unmarshal(msg.Value, &rec); err != nil {
			c.log.WithError(err).Error("command consumer: malformed record, dropping")
			continue
		}
		c.enqueue(ctx, rec, msg)
	}
}

func (c *Consumer) enqueue(ctx context.Context, rec CommandRecord, msg kafka.Message) {
	c.mu.Lock()
	q, ok := c.queues[rec.IMEI]
	if !ok {
		q = newIMEIQueue()
		c.queues[rec.IMEI] = q
		go c.drain(ctx, rec.IMEI, q)
	}
	c.mu.Unlock()

	q.push(queuedCommand{record: rec, raw: msg})
}

// drain serialises delivery for one IMEI, highest priority first and in
// arrival order within a priority, while different IMEIs proceed fully
// independently.
func (c *Consumer) drain(ctx context.Context, imei string, q *imeiQueue) {
	for {
		item, ok := q.pop(ctx)
		if !ok {
			return
		}
		c.deliver(ctx, item.record)
		if err := c.reader.CommitMessages(ctx, item.raw); err != nil {
			c.log.WithError(err).Warn("command consumer: commit failed")
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, rec CommandRecord) {
	channelID, ok, err := c.sessions.GetByIMEI(ctx, rec.IMEI)
	if err != nil || !ok {
		c.requeue(ctx, rec, "no live session")
		return
	}

	frame := c.encoder.OnlineCommand(uint16(rec.Priority), 0, rec.CommandText, 0)
	if err := c.sender.SendFrame(ctx, channelID, frame); err != nil {
		c.requeue(ctx, rec, "write failed")
		return
	}
}

func (c *Consumer) requeue(ctx context.Context, rec CommandRecord, reason string) {
	rec.RetryCount++
	if rec.RetryCount > rec.MaxRetries {
		c.log.WithFields(logrus.Fields{"imei": rec.IMEI, "command_id": rec.CommandID, "reason": reason}).
			Error("command_consumer: max retries exceeded, emitting CommandFailed")
		if c.pub != nil {
			c.pub.PublishTelemetry(rec.IMEI, TelemetryRecord{
				IMEI:        rec.IMEI,
				MessageKind: "command_failed",
				Attributes:  map[string]string{"command_id": rec.CommandID, "reason": reason},
				At:          time.Now(),
			})
		}
		return
	}
	c.enqueue(ctx, rec, kafka.Message{})
}

type queuedCommand struct {
	record CommandRecord
	raw    kafka.Message
}

// imeiQueue is a priority queue (highest Priority first, FIFO within a
// priority) feeding one IMEI's serial delivery goroutine.
type imeiQueue struct {
	mu     sync.Mutex
	items  priorityHeap
	seq    int64 // arrival counter, never reused
	notify chan struct{}
}

func newIMEIQueue() *imeiQueue {
	return &imeiQueue{notify: make(chan struct{}, 1)}
}

func (q *imeiQueue) push(item queuedCommand) {
	q.mu.Lock()
	heap.Push(&q.items, heapItem{cmd: item, seq: q.seq})
	q.seq++
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *imeiQueue) pop(ctx context.Context) (queuedCommand, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := heap.Pop(&q.items).(heapItem)
			q.mu.Unlock()
			return item.cmd, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return queuedCommand{}, false
		case <-q.notify:
		}
	}
}

type heapItem struct {
	cmd queuedCommand
	seq int64
}

type priorityHeap []heapItem

func (h priorityHeap) nextSeq() int64 { return int64(len(h)) }
func (h priorityHeap) Len() int       { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].cmd.record.Priority != h[j].cmd.record.Priority {
		return h[i].cmd.record.Priority > h[j].cmd.record.Priority
	}
	return h[i].seq < h[j].seq
}
func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *priorityHeap) Push(x interface{}) {
	*h = append(*h, x.(heapItem))
}
func (h *priorityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
