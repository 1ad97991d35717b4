package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	popRetryDelay = time.Second
	popTimeout    = time.Second
)

// Dispatcher забирает события из очереди Redis и раздает их обработчикам.
// Если задана очередь повторов, неудачная доставка повторяется только для упавшего обработчика.
type Dispatcher struct {
	redisClient *redis.Client
	logger      *logrus.Logger
	handlers    []Handler
	retries     RetryQueue
	policy      RetryPolicy
	now         func() time.Time
	wg          sync.WaitGroup
}

// NewDispatcher создает новый Dispatcher
func NewDispatcher(redisClient *redis.Client, logger *logrus.Logger, handlers ...Handler) *Dispatcher {
	return &Dispatcher{
		redisClient: redisClient,
		logger:      logger,
		handlers:    handlers,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithRetry включает повторную доставку через очередь q
func (d *Dispatcher) WithRetry(q RetryQueue, policy RetryPolicy) *Dispatcher {
	d.retries = q
	d.policy = policy
	return d
}

// Start запускает горутину для обработки очереди событий
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting event dispatcher...")
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				d.logger.Info("Stopping event dispatcher.")
				return
			default:
				d.ProcessRetries(ctx)

				// BRPOP с таймаутом, чтобы периодически проверять ctx и очередь повторов
				result, err := d.redisClient.BRPop(ctx, popTimeout, eventQueueKey).Result()
				if err != nil {
					if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
						continue
					}
					d.logger.WithError(err).Error("Failed to pop event from Redis")
					select {
					case <-ctx.Done():
					case <-time.After(popRetryDelay):
					}
					continue
				}

				// result[0] - ключ, result[1] - значение
				d.Dispatch(ctx, []byte(result[1]))
			}
		}
	}()
}

// Wait ждет завершения горутины после отмены контекста
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Dispatch передает событие всем обработчикам; ошибка одного не мешает остальным
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		d.logger.WithError(err).Error("Failed to unmarshal event from Redis")
		return
	}

	log := d.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	})
	log.Debug("Dispatching event...")

	for _, h := range d.handlers {
		if err := h.Handle(ctx, event, raw); err != nil {
			log.WithError(err).WithField("handler", h.Name()).Error("Event handler failed")
			d.scheduleRetry(ctx, Retry{
				ID:      uuid.New(),
				Handler: h.Name(),
				Payload: raw,
			}, err, log)
		}
	}
}

// ProcessRetries доставляет просроченные повторы
func (d *Dispatcher) ProcessRetries(ctx context.Context) {
	if d.retries == nil {
		return
	}

	due, err := d.retries.Due(ctx, d.now(), retryBatchSize)
	if err != nil {
		d.logger.WithError(err).Error("Failed to fetch due event retries")
	}
	for _, r := range due {
		log := d.logger.WithFields(logrus.Fields{
			"handler": r.Handler,
			"attempt": r.Attempt,
		})

		h := d.handler(r.Handler)
		if h == nil {
			log.Warn("Retry for unknown handler discarded")
			continue
		}
		var event Event
		if err := json.Unmarshal(r.Payload, &event); err != nil {
			log.WithError(err).Error("Failed to unmarshal retried event")
			continue
		}
		log = log.WithFields(logrus.Fields{"event_id": event.ID, "event_type": event.Type})

		if err := h.Handle(ctx, event, r.Payload); err != nil {
			log.WithError(err).Warn("Event handler failed again")
			d.scheduleRetry(ctx, r, err, log)
			continue
		}
		log.Info("Event delivered on retry")
	}
}

func (d *Dispatcher) handler(name string) Handler {
	for _, h := range d.handlers {
		if h.Name() == name {
			return h
		}
	}
	return nil
}

func (d *Dispatcher) scheduleRetry(ctx context.Context, r Retry, cause error, log *logrus.Entry) {
	if d.retries == nil {
		return
	}

	r.Attempt++
	r.LastError = cause.Error()
	if d.policy.MaxAttempts > 0 && r.Attempt > d.policy.MaxAttempts {
		log.WithField("attempts", r.Attempt-1).Error("Event delivery retries exhausted, moving to dead letter queue")
		if err := d.retries.DeadLetter(ctx, r); err != nil {
			log.WithError(err).Error("Failed to store dead letter")
		}
		return
	}

	r.DueAt = d.now().Add(d.policy.delay(r.Attempt))
	if err := d.retries.Schedule(ctx, r); err != nil {
		log.WithError(err).Error("Failed to schedule event retry")
	}
}
