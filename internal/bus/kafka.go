package bus

import (
	"context"

	kafka "github.com/segmentio/kafka-go"
)

// Writer is the narrow interface the publisher depends on, satisfied by
// *kafka.Writer. Tests supply a fake so the publisher's shedding and
// retry behaviour can be exercised without a broker.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Reader is the narrow interface the command consumer depends on,
// satisfied by *kafka.Reader.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter builds a *kafka.Writer keyed by message, hash-partitioned
// so that all records for one IMEI land on the same partition and
// therefore preserve order downstream.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// NewKafkaReader builds a *kafka.Reader subscribed to topic under groupID,
// used by the Command Consumer (C6).
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
}
