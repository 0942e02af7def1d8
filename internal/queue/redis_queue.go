package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a Queue backed by a Redis list: LPUSH on one end, BRPOP on the other.
type RedisQueue struct {
	rdb       *redis.Client
	queueName string
	wait      time.Duration
}

// NewRedisQueue creates a queue on the list queueName. Pop blocks for at most
// wait; zero blocks until a message arrives or the context is done.
func NewRedisQueue(rdb *redis.Client, queueName string, wait time.Duration) *RedisQueue {
	return &RedisQueue{rdb: rdb, queueName: queueName, wait: wait}
}

// Name returns the Redis key of the list.
func (q *RedisQueue) Name() string {
	return q.queueName
}

// Push adds msg to the head of the list.
func (q *RedisQueue) Push(ctx context.Context, msg string) error {
	return q.rdb.LPush(ctx, q.queueName, msg).Err()
}

// Pop blocks until an element exists (BRPOP).
func (q *RedisQueue) Pop(ctx context.Context) (string, error) {
	res, err := q.rdb.BRPop(ctx, q.wait, q.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrEmpty
		}
		return "", err
	}
	if len(res) < 2 {
		return "", ErrEmpty
	}
	return res[1], nil
}

// Len reports the number of pending messages.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.queueName).Result()
}
