package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"virtualbank-gateway/config"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaPublisherWritesMessage(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaPublisher(w, "virtualbank", quietLogger())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), DomainEvent{
		Type:       TypeTransferInitiated,
		Key:        "t-1",
		Version:    1,
		Payload:    map[string]any{"transferId": "t-1", "status": "pending"},
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if msg.Topic != "virtualbank.transfers.initiated" {
		t.Fatalf("unexpected topic %q", msg.Topic)
	}
	if string(msg.Key) != "t-1" {
		t.Fatalf("unexpected key %q", msg.Key)
	}
	var payload map[string]any
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		t.Fatalf("value is not json: %v", err)
	}
	if payload["transferId"] != "t-1" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if header(msg, "x-domain-event-type") != TypeTransferInitiated {
		t.Fatalf("missing type header: %+v", msg.Headers)
	}
	if header(msg, "x-domain-event-version") != "1" {
		t.Fatalf("missing version header: %+v", msg.Headers)
	}
	if header(msg, "x-domain-event-timestamp") != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected timestamp header %q", header(msg, "x-domain-event-timestamp"))
	}
}

func TestKafkaPublisherStampsMissingTime(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaPublisher(w, "vb", quietLogger())
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	if err := p.Publish(context.Background(), DomainEvent{Type: TypeCreditReceived, Key: "c-1", Payload: json.RawMessage(`{"a":1}`)}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	msg := w.msgs[0]
	if header(msg, "x-domain-event-timestamp") != "2026-01-02T03:04:05.000Z" {
		t.Fatalf("expected publish time, got %q", header(msg, "x-domain-event-timestamp"))
	}
	if header(msg, "x-domain-event-version") != "1" {
		t.Fatalf("expected default version 1, got %q", header(msg, "x-domain-event-version"))
	}
	if string(msg.Value) != `{"a":1}` {
		t.Fatalf("raw payload must pass through, got %s", msg.Value)
	}
}

func TestKafkaPublisherReturnsWriterError(t *testing.T) {
	boom := errors.New("broker unreachable")
	p := NewKafkaPublisher(&recordingWriter{err: boom}, "vb", quietLogger())
	err := p.Publish(context.Background(), DomainEvent{Type: TypeMarketOrderAccepted, Key: "o-1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected writer error, got %v", err)
	}
}

func TestNewDisabledWithoutBrokers(t *testing.T) {
	p := New(config.EventsConfig{Enabled: true}, quietLogger())
	if p.Enabled() {
		t.Fatal("expected disabled publisher without brokers")
	}
	if err := p.Publish(context.Background(), DomainEvent{Type: TypeTransferInitiated}); err != nil {
		t.Fatalf("disabled publish must succeed: %v", err)
	}
	p = New(config.EventsConfig{Enabled: false, Brokers: []string{"localhost:9092"}}, quietLogger())
	if p.Enabled() {
		t.Fatal("expected disabled publisher when events are off")
	}
}

func TestSerializeKeepsExplicitTime(t *testing.T) {
	at := time.Date(2025, 12, 31, 23, 59, 59, 0, time.FixedZone("CET", 3600))
	env := Serialize(DomainEvent{Type: "x", Key: "k", Version: 3, OccurredAt: at}, time.Now())
	if env.OccurredAt != "2025-12-31T22:59:59.000Z" || env.Version != 3 {
		t.Fatalf("unexpected envelope %+v", env)
	}
}
