// Package notify streams completed pipeline outcomes to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/pdfcal/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes each outcome as a JSON message keyed by run id.
type KafkaNotifier struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafka creates a notifier writing to topic on brokers.
func NewKafka(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			MaxAttempts:  3,
			RequiredAcks: kafka.RequireOne,
		},
		timeout: 10 * time.Second,
	}
}

// Notify writes outcome to the topic.
func (n *KafkaNotifier) Notify(ctx context.Context, outcome *models.PipelineOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(outcome.RunID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "stage", Value: []byte(outcome.Stage)},
			{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		},
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write outcome %s: %w", outcome.RunID, err)
	}
	return nil
}

// Close flushes pending messages and releases the writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
