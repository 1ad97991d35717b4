package kafka

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"
)

// Config - параметры подключения к брокеру
type Config struct {
	BootstrapServers string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
	Topic            string
}

// Producer - потокобезопасный продюсер с обработкой отчетов о доставке
type Producer struct {
	producer     *kafka.Producer
	topic        string
	logger       *logrus.Logger
	deliveryChan chan kafka.Event

	messagesSent   atomic.Int64
	messagesAcked  atomic.Int64
	messagesFailed atomic.Int64

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	maxRetries  int
	baseBackoff time.Duration
}

// NewProducer создает продюсер и запускает обработчик отчетов о доставке
func NewProducer(cfg Config, logger *logrus.Logger) (*Producer, error) {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers":  cfg.BootstrapServers,
		"security.protocol":  cfg.SecurityProtocol,
		"acks":               "all",
		"enable.idempotence": true,
		"linger.ms":          10,
		"request.timeout.ms": 30000,
	}
	if cfg.SASLMechanism != "" {
		_ = configMap.SetKey("sasl.mechanism", cfg.SASLMechanism)
		_ = configMap.SetKey("sasl.username", cfg.SASLUsername)
		_ = configMap.SetKey("sasl.password", cfg.SASLPassword)
	}

	p, err := kafka.NewProducer(configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	kp := &Producer{
		producer:     p,
		topic:        cfg.Topic,
		logger:       logger,
		deliveryChan: make(chan kafka.Event, 1000),
		ctx:          ctx,
		cancel:       cancel,
		maxRetries:   3,
		baseBackoff:  100 * time.Millisecond,
	}

	kp.wg.Add(1)
	go kp.handleDeliveryReports()

	logger.WithFields(logrus.Fields{
		"topic":   cfg.Topic,
		"servers": cfg.BootstrapServers,
	}).Info("Kafka producer initialized")
	return kp, nil
}

func (kp *Producer) handleDeliveryReports() {
	defer kp.wg.Done()

	for {
		select {
		case <-kp.ctx.Done():
			return
		case e := <-kp.deliveryChan:
			m, ok := e.(*kafka.Message)
			if !ok {
				continue
			}
			if m.TopicPartition.Error != nil {
				kp.messagesFailed.Add(1)
				kp.logger.WithError(m.TopicPartition.Error).Warn("Kafka delivery failed")
				continue
			}
			kp.messagesAcked.Add(1)
		}
	}
}

// Send ставит сообщение в очередь продюсера с повторами на временных ошибках
func (kp *Producer) Send(key string, value []byte, headers map[string]string) error {
	message := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &kp.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(key),
		Value: value,
	}
	for k, v := range headers {
		message.Headers = append(message.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	var lastErr error
	for attempt := 0; attempt <= kp.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(kp.baseBackoff * time.Duration(1<<uint(attempt-1)))
		}

		err := kp.producer.Produce(message, kp.deliveryChan)
		if err == nil {
			kp.messagesSent.Add(1)
			return nil
		}
		lastErr = err

		if kafkaErr, ok := err.(kafka.Error); ok && !kafkaErr.IsRetriable() {
			return fmt.Errorf("non-retriable kafka error: %w", err)
		}
	}

	kp.messagesFailed.Add(1)
	return fmt.Errorf("kafka produce failed after %d retries: %w", kp.maxRetries, lastErr)
}

// Metrics возвращает счетчики продюсера
func (kp *Producer) Metrics() map[string]int64 {
	return map[string]int64{
		"messages_sent":   kp.messagesSent.Load(),
		"messages_acked":  kp.messagesAcked.Load(),
		"messages_failed": kp.messagesFailed.Load(),
	}
}

// Close дожидается доставки оставшихся сообщений и закрывает продюсер
func (kp *Producer) Close(timeout time.Duration) {
	remaining := kp.producer.Flush(int(timeout.Milliseconds()))
	if remaining > 0 {
		kp.logger.WithField("remaining", remaining).Warn("Kafka messages still queued after flush timeout")
	}
	kp.cancel()
	kp.wg.Wait()
	kp.producer.Close()

	kp.logger.WithFields(logrus.Fields{
		"sent":   kp.messagesSent.Load(),
		"acked":  kp.messagesAcked.Load(),
		"failed": kp.messagesFailed.Load(),
	}).Info("Kafka producer closed")
}
