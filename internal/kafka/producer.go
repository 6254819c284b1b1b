package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"ms-visitpass/internal/models"

	"github.com/segmentio/kafka-go"
)

// Producer streams visit lifecycle events. Each event kind goes to its own
// topic so downstream consumers (badge printers, audit, rewards) subscribe
// independently.
type Producer struct {
	CheckedInWriter *kafka.Writer
	OverrideWriter  *kafka.Writer
	DiscountWriter  *kafka.Writer
}

func NewProducer(brokers []string, checkedInTopic, overrideTopic, discountTopic string) *Producer {
	newWriter := func(topic string) *kafka.Writer {
		return kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   topic,
		})
	}
	return &Producer{
		CheckedInWriter: newWriter(checkedInTopic),
		OverrideWriter:  newWriter(overrideTopic),
		DiscountWriter:  newWriter(discountTopic),
	}
}

// PublishVisitCheckedIn streams a plain admission event to Kafka
func (p *Producer) PublishVisitCheckedIn(visit models.Visit) error {
	msgBytes, err := json.Marshal(visit)
	if err != nil {
		return err
	}

	fmt.Printf("Publishing to Kafka [visit_checked_in]: %s\n", string(msgBytes))

	return p.CheckedInWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(visit.VisitID),
			Value: msgBytes,
		},
	)
}

// PublishOverrideRecorded streams an admission that bypassed the host
// capacity rule, with the audit fields set
func (p *Producer) PublishOverrideRecorded(visit models.Visit) error {
	msgBytes, err := json.Marshal(visit)
	if err != nil {
		return err
	}

	fmt.Printf("Publishing to Kafka [override_recorded]: %s\n", string(msgBytes))

	return p.OverrideWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(visit.VisitID),
			Value: msgBytes,
		},
	)
}

// PublishDiscountIssued streams the reward event for a guest's 3rd visit
func (p *Producer) PublishDiscountIssued(discount models.Discount) error {
	msgBytes, err := json.Marshal(discount)
	if err != nil {
		return err
	}

	fmt.Printf("Publishing to Kafka [discount_issued]: %s\n", string(msgBytes))

	return p.DiscountWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(discount.GuestID),
			Value: msgBytes,
		},
	)
}

// Close shuts down all writers, returning the first error seen.
func (p *Producer) Close() error {
	var firstErr error
	for _, w := range []*kafka.Writer{p.CheckedInWriter, p.OverrideWriter, p.DiscountWriter} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
