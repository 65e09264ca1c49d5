// Package notifier best-effort публикация уведомлений в Kafka.
// Доставкой и рендерингом шаблонов занимается notification-service;
// этот сервис только публикует события и никогда не считает их
// ошибки фатальными для бизнес-операции.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// Channel канал доставки уведомления
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Известные виды уведомлений
const (
	KindCancellationConfirmed = "appointment.cancelled.v1"
	KindWaitlistSlotOffered   = "waitlist.slot_filled.v1"
)

// Dispatcher публикует уведомления в топик Kafka
type Dispatcher struct {
	writer *kafka.Writer
	log    Logger
}

// NewDispatcher создает новый диспетчер уведомлений
func NewDispatcher(brokers []string, topic string, writeTimeout time.Duration, log Logger) *Dispatcher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &Dispatcher{
		writer: writer,
		log:    log,
	}
}

// Close закрывает соединение с брокером
func (d *Dispatcher) Close() error {
	return d.writer.Close()
}

// Notify публикует уведомление. Ошибка возвращается вызывающему
// только для логирования — доставка best-effort.
func (d *Dispatcher) Notify(ctx context.Context, channel Channel, kind string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notifier: marshal payload for %s: %w", kind, err)
	}

	eventID := uuid.NewString()
	msg := kafka.Message{
		Key:   []byte(eventID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte(kind)},
			{Key: "channel", Value: []byte(channel)},
		},
	}

	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("notifier: publish %s: %w", kind, err)
	}

	d.log.Info("Notify: published %s event_id=%s channel=%s", kind, eventID, channel)
	return nil
}
