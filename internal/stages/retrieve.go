package stages

import (
	"context"
	"fmt"

	"lexpipe/internal/models"
	"lexpipe/internal/services"
	"lexpipe/internal/store"
	"lexpipe/internal/task"
	"lexpipe/internal/tasks"
)

const DefaultTopK = 5

// RetrieveTask embeds the query text and searches the vector index. Zero
// hits is a success with an empty chunk list, not a failure; the query
// coordinator decides what to do about missing evidence.
type RetrieveTask struct {
	Embedder services.EmbeddingProvider
	Index    store.VectorIndex
}

var _ task.Task = (*RetrieveTask)(nil)

func (t *RetrieveTask) Name() string { return tasks.StageRetrieve }

func (t *RetrieveTask) Validate(input task.Input) bool {
	return input.String("query") != "" && input.String("owner_id") != ""
}

func (t *RetrieveTask) Execute(ctx context.Context, ec task.ExecutionContext, input task.Input) task.Result {
	query := input.String("query")
	topK := input.Int("top_k")
	if topK <= 0 {
		topK = DefaultTopK
	}

	vectors, err := t.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return task.Failure(classify(err), fmt.Sprintf("embed query: %v", err))
	}
	if len(vectors) != 1 {
		return task.Failure(task.KindUnknown, fmt.Sprintf("embedder returned %d vectors for one query", len(vectors)))
	}

	chunks, err := t.Index.Search(ctx, vectors[0], topK, input.String("owner_id"), input.Strings("document_ids"))
	if err != nil {
		return task.Failure(classify(err), fmt.Sprintf("vector search: %v", err))
	}
	if chunks == nil {
		chunks = []models.ScoredChunk{}
	}

	return task.Success(map[string]any{"chunks": chunks})
}
