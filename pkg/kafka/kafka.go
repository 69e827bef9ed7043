package kafka

import (
	"context"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"bookshop/pkg/outbox"
)

type Client struct {
	Brokers []string
}

func NewClient(brokersCSV string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers}
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

// NewWriter returns a writer that takes the topic from each message.
func (c *Client) NewWriter() *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// Publisher sends outbox records to Kafka, keyed by the record key.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(writer *kafka.Writer) *Publisher {
	return &Publisher{writer: writer}
}

func (p *Publisher) Publish(ctx context.Context, rec outbox.Record) error {
	return p.writer.WriteMessages(ctx, Message(rec))
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func Message(rec outbox.Record) kafka.Message {
	return kafka.Message{
		Topic:   rec.Topic,
		Key:     []byte(rec.Key),
		Value:   rec.Payload,
		Time:    time.Now().UTC(),
		Headers: []kafka.Header{{Key: "event_id", Value: []byte(rec.EventID)}},
	}
}
