package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"lexpipe/internal/models"
	"lexpipe/internal/pipeline"
	"lexpipe/internal/tasks"
)

// Processor handles one pipeline message. Satisfied by
// *pipeline.Coordinator.
type Processor interface {
	Process(ctx context.Context, msg models.PipelineMessage) error
}

// RegisterHandlers wires every pipeline stage's task type into the mux. The
// handler acknowledges by returning nil, asks for redelivery by returning an
// error, and short-circuits to the dead letter path with asynq.SkipRetry for
// messages no retry can fix.
func RegisterHandlers(mux *asynq.ServeMux, processor Processor) {
	for _, stage := range tasks.PipelineStages() {
		mux.HandleFunc(tasks.TypeForStage(stage), Handle(processor))
	}
}

// Handle adapts a Processor to an asynq handler.
func Handle(processor Processor) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		var msg models.PipelineMessage
		if err := json.Unmarshal(t.Payload(), &msg); err != nil {
			log.WithError(err).WithField("type", t.Type()).Error("undecodable pipeline message")
			return fmt.Errorf("unmarshal %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
		}

		if err := processor.Process(ctx, msg); err != nil {
			if errors.Is(err, pipeline.ErrDeadLetter) {
				log.WithError(err).WithFields(log.Fields{
					"type":        t.Type(),
					"document_id": msg.DocumentID,
				}).Error("pipeline message dead-lettered")
				return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
			}
			return err
		}
		return nil
	}
}

// NewServer builds the asynq server the worker command runs. All pipeline
// stages share one queue; fairness across documents comes from asynq's
// round-robin within it.
func NewServer(redisOpt asynq.RedisClientOpt, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			tasks.PipelineQueue: 10,
		},
		Logger: log.StandardLogger(),
	})
}
