package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexpipe/internal/models"
	"lexpipe/internal/pipeline"
	"lexpipe/internal/tasks"
)

type stubProcessor struct {
	err  error
	seen []models.PipelineMessage
}

func (s *stubProcessor) Process(_ context.Context, msg models.PipelineMessage) error {
	s.seen = append(s.seen, msg)
	return s.err
}

func pipelineTask(t *testing.T, msg models.PipelineMessage) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	return asynq.NewTask(tasks.TypeForStage(msg.Stage), payload)
}

func TestHandleDecodesAndAcknowledges(t *testing.T) {
	p := &stubProcessor{}
	msg := models.PipelineMessage{
		DocumentID: "doc-1",
		OwnerID:    "owner-1",
		Stage:      tasks.StageExtract,
		TraceID:    "trace-abc",
	}

	err := Handle(p)(context.Background(), pipelineTask(t, msg))
	require.NoError(t, err)
	require.Len(t, p.seen, 1)
	assert.Equal(t, msg, p.seen[0])
}

func TestHandleRequestsRedeliveryOnTransientError(t *testing.T) {
	p := &stubProcessor{err: errors.New("metadata store unavailable")}
	msg := models.PipelineMessage{DocumentID: "doc-1", Stage: tasks.StageExtract}

	err := Handle(p)(context.Background(), pipelineTask(t, msg))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry, "transient errors must be retried by the queue")
}

func TestHandleSkipsRetryOnDeadLetter(t *testing.T) {
	p := &stubProcessor{err: fmt.Errorf("unknown stage: %w", pipeline.ErrDeadLetter)}
	msg := models.PipelineMessage{DocumentID: "doc-1", Stage: tasks.StageExtract}

	err := Handle(p)(context.Background(), pipelineTask(t, msg))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleSkipsRetryOnGarbagePayload(t *testing.T) {
	p := &stubProcessor{}

	err := Handle(p)(context.Background(), asynq.NewTask(tasks.TypeForStage(tasks.StageExtract), []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, p.seen)
}
