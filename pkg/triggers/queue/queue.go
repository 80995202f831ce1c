// Package queue provides the Redis run-queue trigger, letting external
// systems enqueue manual workflow runs.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/acctcare/careops/pkg/triggers"
)

// DefaultQueue is the Redis list polled for run requests.
const DefaultQueue = "careops:runs"

// Trigger consumes run requests from a Redis list. Each popped message
// fires one workflow run; malformed payloads still fire with the raw
// message attached.
type Trigger struct {
	Addr     string
	Password string
	DB       int
	Queue    string

	client   redis.UniversalClient
	callback triggers.Callback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewTrigger(addr, password string, db int, queueName string, logger *slog.Logger) (*Trigger, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	if queueName == "" {
		queueName = DefaultQueue
	}

	return &Trigger{
		Addr:     addr,
		Password: password,
		DB:       db,
		Queue:    queueName,
		stopCh:   make(chan struct{}),
		logger: logger.With(
			"module", "queue_trigger",
			"queue", queueName,
		),
	}, nil
}

func (t *Trigger) Start(ctx context.Context, callback triggers.Callback) error {
	t.logger.InfoContext(ctx, "Starting queue trigger")
	t.callback = callback

	if err := t.initializeClient(ctx); err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	t.wg.Add(1)

	go t.consume(ctx)

	return nil
}

func (t *Trigger) initializeClient(ctx context.Context) error {
	t.client = redis.NewClient(&redis.Options{
		Addr:     t.Addr,
		Password: t.Password,
		DB:       t.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := t.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	t.logger.InfoContext(ctx, "Connected to Redis", "addr", t.Addr, "db", t.DB)

	return nil
}

func (t *Trigger) consume(ctx context.Context) {
	defer t.wg.Done()

	t.logger.InfoContext(ctx, "Starting queue consumer")

	for {
		select {
		case <-t.stopCh:
			t.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			t.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			if err := t.processMessage(ctx); err != nil {
				t.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (t *Trigger) processMessage(ctx context.Context) error {
	result, err := t.client.BLPop(ctx, 1*time.Second, t.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	message := result[1]
	t.logger.InfoContext(ctx, "Received run request", "message", message)

	var data map[string]any
	if err := json.Unmarshal([]byte(message), &data); err != nil {
		data = map[string]any{
			"message":   message,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
	} else if data["timestamp"] == nil {
		data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}
	data["trigger_type"] = "queue"

	go func() {
		if err := t.callback(ctx, data); err != nil {
			t.logger.ErrorContext(ctx, "Error executing queued workflow", "error", err)
		}
	}()

	return nil
}

func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping queue trigger")

	close(t.stopCh)
	t.wg.Wait()

	if t.client != nil {
		if err := t.client.Close(); err != nil {
			t.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
