package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	retryQueueKey      = "incident_events:retry"
	deadLetterQueueKey = "incident_events:dead"
	retryBatchSize     = 20
)

// Retry - повторная доставка события одному обработчику
type Retry struct {
	ID        uuid.UUID       `json:"id"`
	Handler   string          `json:"handler"`
	Attempt   int             `json:"attempt"`
	DueAt     time.Time       `json:"due_at"`
	LastError string          `json:"last_error,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// RetryQueue хранит отложенные доставки.
// Due забирает просроченные записи: каждая запись выдается только одному вызывающему.
type RetryQueue interface {
	Schedule(ctx context.Context, r Retry) error
	Due(ctx context.Context, now time.Time, limit int) ([]Retry, error)
	DeadLetter(ctx context.Context, r Retry) error
}

// RetryPolicy - число попыток и базовая задержка, задержка удваивается с каждой попыткой
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

// RedisRetryQueue - отложенные доставки в sorted set, score - время в мс
type RedisRetryQueue struct {
	redisClient *redis.Client
}

func NewRedisRetryQueue(client *redis.Client) *RedisRetryQueue {
	return &RedisRetryQueue{redisClient: client}
}

func (q *RedisRetryQueue) Schedule(ctx context.Context, r Retry) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal retry: %w", err)
	}
	if err := q.redisClient.ZAdd(ctx, retryQueueKey, redis.Z{
		Score:  float64(r.DueAt.UnixMilli()),
		Member: payload,
	}).Err(); err != nil {
		return fmt.Errorf("failed to schedule retry in Redis: %w", err)
	}
	return nil
}

// Due возвращает просроченные записи; запись принадлежит тому, чей ZREM ее удалил
func (q *RedisRetryQueue) Due(ctx context.Context, now time.Time, limit int) ([]Retry, error) {
	members, err := q.redisClient.ZRangeByScore(ctx, retryQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due retries from Redis: %w", err)
	}

	retries := make([]Retry, 0, len(members))
	for _, m := range members {
		removed, err := q.redisClient.ZRem(ctx, retryQueueKey, m).Result()
		if err != nil {
			return retries, fmt.Errorf("failed to claim retry in Redis: %w", err)
		}
		if removed == 0 {
			continue
		}
		var r Retry
		if err := json.Unmarshal([]byte(m), &r); err != nil {
			continue
		}
		retries = append(retries, r)
	}
	return retries, nil
}

func (q *RedisRetryQueue) DeadLetter(ctx context.Context, r Retry) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal retry: %w", err)
	}
	if err := q.redisClient.LPush(ctx, deadLetterQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to push dead letter to Redis: %w", err)
	}
	return nil
}
