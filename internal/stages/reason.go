package stages

import (
	"context"
	"fmt"

	"lexpipe/internal/models"
	"lexpipe/internal/services"
	"lexpipe/internal/task"
	"lexpipe/internal/tasks"
)

// lowConfidenceThreshold marks answers whose grounding evidence scored so
// poorly that the caller should present them with a caveat.
const lowConfidenceThreshold = 0.25

// ReasonTask generates a cited answer from previously retrieved chunks. It
// never runs without evidence: the query coordinator skips it entirely when
// retrieval came back empty.
type ReasonTask struct {
	Generator services.GenerationProvider
}

var _ task.Task = (*ReasonTask)(nil)

func (t *ReasonTask) Name() string { return tasks.StageReason }

func (t *ReasonTask) Validate(input task.Input) bool {
	if input.String("query") == "" {
		return false
	}
	chunks, ok := input["chunks"].([]models.ScoredChunk)
	return ok && len(chunks) > 0
}

func (t *ReasonTask) Execute(ctx context.Context, ec task.ExecutionContext, input task.Input) task.Result {
	query := input.String("query")
	chunks := input["chunks"].([]models.ScoredChunk)

	answer, confidence, err := t.Generator.Generate(ctx, query, chunks)
	if err != nil {
		return task.Failure(classify(err), fmt.Sprintf("generate answer: %v", err))
	}

	citations := make([]models.Citation, len(chunks))
	for i, c := range chunks {
		citations[i] = models.Citation{
			DocumentID: c.DocumentID,
			ChunkID:    c.ChunkID,
			Text:       c.Text,
			PageNumber: c.PageNumber,
			Score:      c.Score,
		}
	}

	output := map[string]any{
		"answer":     answer,
		"confidence": confidence,
		"citations":  citations,
	}
	if confidence < lowConfidenceThreshold {
		return task.Partial(output, fmt.Sprintf("evidence confidence %.2f below %.2f", confidence, lowConfidenceThreshold))
	}
	return task.Success(output)
}
