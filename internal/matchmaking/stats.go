// internal/matchmaking/stats.go
// Mirrors queue statistics into Redis for dashboards and sibling services.
// The mirror is observability only; the in-memory queue stays authoritative.

package matchmaking

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	queueSizeKey       = "videodating:queue:size"
	queueEventsChannel = "videodating:queue:events"
)

// QueueEvent is the payload published on every queue size change
type QueueEvent struct {
	QueueSize int       `json:"queueSize"`
	Timestamp time.Time `json:"timestamp"`
}

// RedisStats publishes queue stats to Redis
type RedisStats struct {
	client *redis.Client
}

// NewRedisStats creates a Redis-backed stats mirror
func NewRedisStats(client *redis.Client) *RedisStats {
	return &RedisStats{client: client}
}

// PublishQueueSize writes the current size and notifies subscribers
func (s *RedisStats) PublishQueueSize(size int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.client.Set(ctx, queueSizeKey, size, 0).Err(); err != nil {
		log.Printf("Failed to mirror queue size to Redis: %v", err)
		return
	}

	payload, err := json.Marshal(QueueEvent{QueueSize: size, Timestamp: time.Now()})
	if err != nil {
		return
	}

	if err := s.client.Publish(ctx, queueEventsChannel, payload).Err(); err != nil {
		log.Printf("Failed to publish queue event: %v", err)
	}
}

// QueueSize reads the mirrored size back, 0 if unset
func (s *RedisStats) QueueSize(ctx context.Context) (int, error) {
	val, err := s.client.Get(ctx, queueSizeKey).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(val)
}
