package events

import (
	"context"
	"encoding/json"
	"time"

	"go-marketplace-pos/pkg/logger"

	"github.com/segmentio/kafka-go"
)

const (
	envelopeVersion = 1
	producerName    = "marketplace-pos-api"
)

// Envelope is the wire shape written to the topic.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher buffers events and writes them from a single goroutine.
type KafkaPublisher struct {
	w       messageWriter
	log     *logger.Logger
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewKafkaPublisher(brokers []string, topic string, buf int, log *logger.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaPublisher(w, buf, log)
}

func newKafkaPublisher(w messageWriter, buf int, log *logger.Logger) *KafkaPublisher {
	if buf <= 0 {
		buf = 256
	}
	if log == nil {
		log = logger.Nop()
	}
	return &KafkaPublisher{
		w:       w,
		log:     log,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the writer loop until ctx is cancelled, then flushes what is queued.
func (p *KafkaPublisher) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				if err := p.w.Close(); err != nil {
					p.log.Error(context.Background(), "kafka writer close failed", err)
				}
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *KafkaPublisher) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			return
		}
	}
}

func (p *KafkaPublisher) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Error(p.log.WithField(ctx, "event_key", string(m.Key)), "kafka write failed", err)
	}
}

// Publish enqueues evt. When the buffer is full the event is dropped and logged.
func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		p.log.Error(ctx, "marshal event payload", err)
		return
	}
	value, err := json.Marshal(Envelope{
		EventID:       evt.ID,
		EventType:     evt.Type,
		EventVersion:  envelopeVersion,
		OccurredAt:    evt.OccurredAt,
		Producer:      producerName,
		CorrelationID: evt.Key,
		Payload:       payload,
	})
	if err != nil {
		p.log.Error(ctx, "marshal event envelope", err)
		return
	}

	msg := kafka.Message{
		Key:     []byte(evt.Key),
		Value:   value,
		Time:    evt.OccurredAt,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(evt.Type)}},
	}
	select {
	case p.inbox <- msg:
	default:
		p.log.Warn(p.log.WithField(ctx, "event_type", evt.Type), "event buffer full, dropping event")
	}
}

// WaitClosed blocks until the writer loop has flushed and exited.
func (p *KafkaPublisher) WaitClosed() {
	<-p.closeCh
}
