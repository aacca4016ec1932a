package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/freight-booking/internal/model"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w}
	at := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	e := Event{
		Type:           TypeRateConfirmationIssued,
		ShipmentNumber: "F-12345",
		ShipmentID:     uuid.New(),
		Status:         model.ShipmentStatusBooked,
		ActorID:        uuid.New(),
		StorageKey:     "rate-confirmations/F-12345_RateConfirmation.pdf",
		OccurredAt:     at,
	}

	require.NoError(t, p.Publish(context.Background(), e))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "F-12345", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, "rate_confirmation.issued", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "Booked", decoded["status"])
	assert.Equal(t, e.StorageKey, decoded["storageKey"])
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &recordingWriter{err: errors.New("broker down")}}

	err := p.Publish(context.Background(), Event{Type: TypeShipmentBooked, ShipmentNumber: "F-10000"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shipment.booked for F-10000")
}

func TestEvent_OmitsEmptyStorageKey(t *testing.T) {
	msg, err := Event{Type: TypeShipmentCancelled, ShipmentNumber: "F-10000"}.Message()
	require.NoError(t, err)
	assert.NotContains(t, string(msg.Value), "storageKey")
}
