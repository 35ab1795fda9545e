package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// CommandQueue holds per-host agent commands such as "BLOCK_IP 1.2.3.4".
// Agents pull them one at a time.
type CommandQueue interface {
	Push(ctx context.Context, hostID, command string) error
	// Pop returns false when the host has nothing queued.
	Pop(ctx context.Context, hostID string) (string, bool, error)
	Len(ctx context.Context, hostID string) (int64, error)
}

type MemoryQueue struct {
	mu       sync.Mutex
	commands map[string][]string
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{commands: make(map[string][]string)}
}

func (q *MemoryQueue) Push(_ context.Context, hostID, command string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.commands[hostID] = append(q.commands[hostID], command)
	return nil
}

func (q *MemoryQueue) Pop(_ context.Context, hostID string) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.commands[hostID]
	if len(pending) == 0 {
		return "", false, nil
	}
	cmd := pending[0]
	if len(pending) == 1 {
		delete(q.commands, hostID)
	} else {
		q.commands[hostID] = pending[1:]
	}
	return cmd, true, nil
}

func (q *MemoryQueue) Len(_ context.Context, hostID string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.commands[hostID])), nil
}

const redisCommandPrefix = "sentinel:commands:"

// RedisQueue keeps each host's commands in a Redis list.
type RedisQueue struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

func NewRedisQueue(addr string, db int, logger *logrus.Logger) (*RedisQueue, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Infof("Command queue connected to Redis: %s", addr)
	return &RedisQueue{rdb: rdb, logger: logger}, nil
}

func (q *RedisQueue) Push(ctx context.Context, hostID, command string) error {
	if err := q.rdb.RPush(ctx, redisCommandPrefix+hostID, command).Err(); err != nil {
		return fmt.Errorf("failed to queue command for %s: %w", hostID, err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, hostID string) (string, bool, error) {
	cmd, err := q.rdb.LPop(ctx, redisCommandPrefix+hostID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to pop command for %s: %w", hostID, err)
	}
	return cmd, true, nil
}

func (q *RedisQueue) Len(ctx context.Context, hostID string) (int64, error) {
	n, err := q.rdb.LLen(ctx, redisCommandPrefix+hostID).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length for %s: %w", hostID, err)
	}
	return n, nil
}

func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}
