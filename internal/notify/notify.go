package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Level distinguishes success from failure events.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Event is a fire-and-forget notification for the presentation layer. It has
// no effect on upload state.
type Event struct {
	Title     string    `json:"title"`
	Detail    string    `json:"detail"`
	Level     Level     `json:"level"`
	Owner     string    `json:"owner,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Notifier publishes events. Implementations must not block the upload flow
// on delivery; a lost event is logged, never surfaced.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// RedisNotifier publishes events to a Redis pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisNotifier constructs a Redis-backed notifier.
func NewRedisNotifier(client *redis.Client, channel string, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel, logger: logger.Named("notifier")}
}

// Publish serializes the event and publishes it on the configured channel.
func (n *RedisNotifier) Publish(ctx context.Context, event Event) error {
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("failed to serialize event", zap.Error(err))
		return err
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		n.logger.Error("failed to publish event", zap.Error(err), zap.String("channel", n.channel))
		return err
	}
	return nil
}
