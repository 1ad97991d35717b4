package events

import (
	"context"
)

// MessageProducer - отправка сообщения в топик брокера
type MessageProducer interface {
	Send(key string, value []byte, headers map[string]string) error
}

// KafkaHandler зеркалирует события в топик Kafka
type KafkaHandler struct {
	producer MessageProducer
}

func NewKafkaHandler(producer MessageProducer) *KafkaHandler {
	return &KafkaHandler{producer: producer}
}

func (k *KafkaHandler) Name() string { return "kafka" }

func (k *KafkaHandler) Handle(_ context.Context, event Event, raw []byte) error {
	return k.producer.Send(event.Key(), raw, map[string]string{
		"event_type": string(event.Type),
		"event_id":   event.ID.String(),
	})
}
