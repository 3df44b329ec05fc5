package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/adamstavely/cautious-lamp-sub001/common/logger"
	rediscommon "github.com/adamstavely/cautious-lamp-sub001/common/redis"
)

// envelope is the pub/sub payload; Value is base64 in JSON
type envelope struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// RedisQueue implements Queue on top of Redis pub/sub.
// Delivery is at-most-once: messages published while no subscriber is connected are lost.
type RedisQueue struct {
	client *rediscommon.Client
	log    *logger.Logger
	wg     sync.WaitGroup
	cancel []context.CancelFunc
	mu     sync.Mutex
}

// NewRedisQueue creates a queue backed by Redis pub/sub channels (topic == channel)
func NewRedisQueue(client *rediscommon.Client, log *logger.Logger) *RedisQueue {
	return &RedisQueue{
		client: client,
		log:    log,
	}
}

// Publish publishes a message to the topic channel
func (q *RedisQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	payload, err := json.Marshal(envelope{Key: key, Value: message})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return q.client.PublishEvent(ctx, topic, string(payload))
}

// Subscribe subscribes to the topic channel and dispatches messages to handler in a goroutine
func (q *RedisQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	pubsub, err := q.client.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	q.mu.Lock()
	q.cancel = append(q.cancel, cancel)
	q.mu.Unlock()

	q.log.Info("subscribed to redis channel", "topic", topic)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				q.log.Info("redis subscription stopping", "topic", topic)
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg == nil {
					continue
				}

				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					q.log.Warn("dropping malformed message", "topic", topic, "error", err)
					continue
				}

				if err := handler(ctx, env.Key, env.Value); err != nil {
					q.log.Error("message handler error", "topic", topic, "key", env.Key, "error", err)
				}
			}
		}
	}()

	return nil
}

// Close stops all subscriptions. The Redis client itself is owned by bootstrap.
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	for _, cancel := range q.cancel {
		cancel()
	}
	q.cancel = nil
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}
