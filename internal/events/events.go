// Package events publishes shipment lifecycle events to kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/nurpe/freight-booking/internal/config"
	"github.com/nurpe/freight-booking/internal/model"
)

type Type string

const (
	TypeShipmentBooked         Type = "shipment.booked"
	TypeShipmentCancelled      Type = "shipment.cancelled"
	TypeShipmentStatusChanged  Type = "shipment.status_changed"
	TypeRateConfirmationIssued Type = "rate_confirmation.issued"
)

type Event struct {
	Type           Type                 `json:"type"`
	ShipmentNumber string               `json:"shipmentNumber"`
	ShipmentID     uuid.UUID            `json:"shipmentId"`
	Status         model.ShipmentStatus `json:"status"`
	ActorID        uuid.UUID            `json:"actorId"`
	StorageKey     string               `json:"storageKey,omitempty"`
	OccurredAt     time.Time            `json:"occurredAt"`
}

// Message encodes e keyed by shipment number so one shipment's events stay
// on one partition.
func (e Event) Message() (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	return kafka.Message{
		Key:   []byte(e.ShipmentNumber),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}, nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           cfg.BatchTimeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := e.Message()
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for %s: %w", e.Type, e.ShipmentNumber, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards events; used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }
