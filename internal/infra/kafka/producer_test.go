package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/infra/config"
	"github.com/wizlearn/account-service/internal/infra/events"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
	closed bool
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error {
	f.closed = true
	return nil
}

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func TestPublishAccountRegisteredThroughKafka(t *testing.T) {
	async := newFakeAsyncProducer()
	producer := newProducer(async, "wiz", zaptest.NewLogger(t))
	defer producer.Close()

	publisher := events.NewPublisher(producer, config.AppSettings{Name: "account-service", Env: "test"})
	code := "WIZ20260314/1001"
	registeredAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	err := publisher.PublishAccountRegistered(context.Background(), domain.AccountRegisteredEvent{
		EventID:      "evt-1",
		AccountID:    "acc-1",
		Email:        "tutor@example.com",
		Role:         domain.RoleTutor,
		Status:       domain.AccountStatusPending,
		TutorCode:    &code,
		RegisteredAt: registeredAt,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	msg := <-async.input
	if msg.Topic != "wiz.account.registered" {
		t.Fatalf("unexpected topic %q", msg.Topic)
	}
	key, _ := msg.Key.Encode()
	if string(key) != "acc-1" {
		t.Fatalf("expected account id key, got %q", key)
	}
	raw, _ := msg.Value.Encode()
	var envelope events.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.EventID != "evt-1" || envelope.EventType != events.TypeAccountRegistered || envelope.Version != "1.0" {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
	if envelope.Metadata["service"] != "account-service" {
		t.Fatalf("expected service metadata, got %v", envelope.Metadata)
	}
	var payload map[string]any
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["tutor_code"] != code || payload["status"] != "PENDING" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestEmitHonoursContext(t *testing.T) {
	async := newFakeAsyncProducer()
	async.input = make(chan *sarama.ProducerMessage)
	producer := newProducer(async, "", nil)
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := producer.Emit(ctx, "account.locked", "acc-1", []byte("{}")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestTopicName(t *testing.T) {
	producer := &Producer{prefix: "wiz"}
	if got := producer.TopicName("account.locked"); got != "wiz.account.locked" {
		t.Fatalf("unexpected topic %q", got)
	}
	if got := producer.TopicName("wiz.account.locked"); got != "wiz.account.locked" {
		t.Fatalf("prefix must not be doubled, got %q", got)
	}
	if got := (&Producer{}).TopicName("account.locked"); got != "account.locked" {
		t.Fatalf("unexpected unprefixed topic %q", got)
	}
}

func TestProducerLogsDeliveryErrorsAndCloses(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	async := newFakeAsyncProducer()
	producer := newProducer(async, "wiz", zap.New(core))

	async.errors <- &sarama.ProducerError{
		Msg: &sarama.ProducerMessage{Topic: "wiz.account.locked"},
		Err: errors.New("leader not available"),
	}
	deadline := time.Now().Add(time.Second)
	for logs.FilterMessage("kafka delivery failed").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected delivery failure to be logged")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := producer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := producer.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !async.closed {
		t.Fatalf("expected underlying producer closed")
	}
	if err := producer.Emit(context.Background(), "account.locked", "", nil); err == nil {
		t.Fatalf("expected emit after close to fail")
	}
}
