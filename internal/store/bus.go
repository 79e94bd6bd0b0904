package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"lexpipe/internal/models"
	"lexpipe/internal/tasks"
)

// AsynqBus is the concrete MessageBus. Each pipeline message becomes an
// Asynq task on the pipeline queue; redelivery on handler error gives the
// at-least-once semantics the coordinator's idempotence guard absorbs.
//
// Asynq's own retry is capped low: the task runtime already retries inside
// one delivery, so bus-level redelivery only covers crashes and transient
// handler errors, not task failures.
var _ MessageBus = (*AsynqBus)(nil)

type AsynqBus struct {
	client *asynq.Client
}

func NewAsynqBus(redisAddr, password string, db int) *AsynqBus {
	cli := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
	return &AsynqBus{client: cli}
}

func (b *AsynqBus) Publish(ctx context.Context, msg models.PipelineMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal pipeline message for %s: %w", msg.DocumentID, err)
	}
	t := asynq.NewTask(tasks.TypeForStage(msg.Stage), payload)
	info, err := b.client.EnqueueContext(ctx, t,
		asynq.Queue(tasks.PipelineQueue),
		asynq.MaxRetry(5),
	)
	if err != nil {
		return fmt.Errorf("publish %s message for document %s: %w", msg.Stage, msg.DocumentID, err)
	}
	log.WithFields(log.Fields{
		"task_id":     info.ID,
		"stage":       msg.Stage,
		"document_id": msg.DocumentID,
		"trace_id":    msg.TraceID,
	}).Debug("published pipeline message")
	return nil
}

func (b *AsynqBus) Close() error {
	return b.client.Close()
}
