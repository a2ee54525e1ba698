package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studyhub-backend/internal/models"
)

// RedisNotifier pushes per-user messages onto the Redis pub/sub channel
// the websocket hub subscribes to. Session trackers and background
// workers share this path so the client sees one message stream.
type RedisNotifier struct {
	redis *redis.Client
}

func NewRedisNotifier(redisClient *redis.Client) *RedisNotifier {
	return &RedisNotifier{redis: redisClient}
}

func (n *RedisNotifier) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, _ := json.Marshal(msg)
	n.redis.Publish(ctx, fmt.Sprintf("user_updates:%s", userID.String()), string(data))
}
