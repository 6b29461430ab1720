package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/uteop23/askara-ai-app/internal/models"
)

// ProgressSink receives stage updates from the pipeline. The delivery
// mechanism behind it is a collaborator concern.
type ProgressSink interface {
	Report(ctx context.Context, userID uuid.UUID, taskID, stage, message string)
	Completed(ctx context.Context, userID uuid.UUID, taskID, title string, clipsCreated int)
	Failed(ctx context.Context, userID uuid.UUID, taskID, errMsg string)
}

// RedisProgress publishes progress events on a per-user pub/sub channel
// consumed by the websocket hub; the polling status endpoint reads the
// persisted job row instead.
type RedisProgress struct {
	redis *redis.Client
}

func NewRedisProgress(redisClient *redis.Client) *RedisProgress {
	return &RedisProgress{redis: redisClient}
}

func (p *RedisProgress) publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := p.redis.Publish(ctx, fmt.Sprintf("job_updates:%s", userID), string(data)).Err(); err != nil {
		log.Printf("Failed to publish progress update: %v", err)
	}
}

func (p *RedisProgress) Report(ctx context.Context, userID uuid.UUID, taskID, stage, message string) {
	p.publish(ctx, userID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			TaskID:  taskID,
			Stage:   stage,
			Message: message,
		},
	})
}

func (p *RedisProgress) Completed(ctx context.Context, userID uuid.UUID, taskID, title string, clipsCreated int) {
	p.publish(ctx, userID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			TaskID:        taskID,
			ClipsCreated:  clipsCreated,
			OriginalTitle: title,
		},
	})
}

func (p *RedisProgress) Failed(ctx context.Context, userID uuid.UUID, taskID, errMsg string) {
	p.publish(ctx, userID, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			TaskID:       taskID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}
