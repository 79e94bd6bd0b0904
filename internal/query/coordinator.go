package query

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"lexpipe/internal/models"
	"lexpipe/internal/task"
	"lexpipe/internal/tasks"
)

// Coordinator answers questions synchronously by chaining the retrieve and
// reason tasks. It shares the registry and runtime with the pipeline worker,
// so both tasks get the same retry, timeout and tracing treatment as the
// ingestion stages.
type Coordinator struct {
	registry *task.Registry
	runtime  *task.Runtime
	policy   task.Policy
	logger   *log.Entry
}

func NewCoordinator(registry *task.Registry, runtime *task.Runtime, policy task.Policy) *Coordinator {
	return &Coordinator{
		registry: registry,
		runtime:  runtime,
		policy:   policy,
		logger:   log.WithField("component", "query_coordinator"),
	}
}

// Answer runs retrieval and, when there is evidence to reason over,
// generation. Zero retrieved chunks short-circuits to a NoEvidence result
// with confidence 0; the generator is never asked to answer from nothing.
func (c *Coordinator) Answer(ctx context.Context, q models.Query) (*models.QueryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	traceID := uuid.NewString()
	logger := c.logger.WithFields(log.Fields{"trace_id": traceID, "owner_id": q.OwnerID})

	result := &models.QueryResult{
		Query:   q.Text,
		TraceID: traceID,
	}

	retrieved, err := c.run(ctx, tasks.StageRetrieve, traceID, q.OwnerID, task.Input{
		"query":        q.Text,
		"owner_id":     q.OwnerID,
		"document_ids": q.DocumentIDs,
		"top_k":        q.TopK,
	})
	if err != nil {
		return nil, err
	}

	chunks, _ := retrieved.Output["chunks"].([]models.ScoredChunk)
	if len(chunks) == 0 {
		logger.Info("no evidence retrieved, skipping generation")
		result.NoEvidence = true
		result.Confidence = 0
		return result, nil
	}

	reasoned, err := c.run(ctx, tasks.StageReason, traceID, q.OwnerID, task.Input{
		"query":  q.Text,
		"chunks": chunks,
	})
	if err != nil {
		return nil, err
	}

	result.Answer, _ = reasoned.Output["answer"].(string)
	result.Confidence, _ = reasoned.Output["confidence"].(float64)
	result.Citations, _ = reasoned.Output["citations"].([]models.Citation)
	result.Warnings = reasoned.Warnings

	logger.WithFields(log.Fields{
		"chunks":     len(chunks),
		"confidence": result.Confidence,
	}).Info("query answered")
	return result, nil
}

func (c *Coordinator) run(ctx context.Context, name, traceID, ownerID string, input task.Input) (task.Result, error) {
	descriptor, err := c.registry.Resolve(name)
	if err != nil {
		return task.Result{}, fmt.Errorf("resolve %s: %w", name, err)
	}
	ec := task.ExecutionContext{
		TaskID:  fmt.Sprintf("%s_%s", name, uuid.NewString()[:8]),
		TraceID: traceID,
		ActorID: ownerID,
	}
	res := c.runtime.Run(ctx, descriptor, ec, input, c.policy)
	if res.Failed() {
		return task.Result{}, fmt.Errorf("%s failed (%s): %s", name, res.ErrorKind, res.Message)
	}
	return res, nil
}
