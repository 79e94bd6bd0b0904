package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"lexpipe/internal/chunking"
	"lexpipe/internal/models"
	"lexpipe/internal/services"
	"lexpipe/internal/store"
	"lexpipe/internal/task"
	"lexpipe/internal/tasks"
)

// IndexTask chunks the extraction artifact, embeds the chunks and upserts
// them into the vector index. Deterministic chunk ids plus index-level
// upsert make the whole stage safe to re-run.
type IndexTask struct {
	Blob     store.BlobStore
	Chunker  *chunking.Chunker
	Embedder services.EmbeddingProvider
	Index    store.VectorIndex
}

var _ task.Task = (*IndexTask)(nil)

func (t *IndexTask) Name() string { return tasks.StageIndex }

func (t *IndexTask) Validate(input task.Input) bool {
	return input.String("document_id") != "" &&
		input.String("owner_id") != "" &&
		input.String("text_location") != ""
}

func (t *IndexTask) Execute(ctx context.Context, ec task.ExecutionContext, input task.Input) task.Result {
	documentID := input.String("document_id")
	ownerID := input.String("owner_id")

	payload, err := t.Blob.Get(ctx, input.String("text_location"))
	if err != nil {
		return task.Failure(classify(err), fmt.Sprintf("load extraction artifact: %v", err))
	}
	var extraction services.Extraction
	if err := json.Unmarshal(payload, &extraction); err != nil {
		return task.Failure(task.KindUnknown, fmt.Sprintf("decode extraction artifact: %v", err))
	}

	chunks := t.Chunker.Chunk(documentID, &extraction)
	if len(chunks) == 0 {
		return task.Failure(task.KindUnknown, "extraction produced no indexable text")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := t.Embedder.Embed(ctx, texts)
	if err != nil {
		return task.Failure(classify(err), fmt.Sprintf("embed %d chunks: %v", len(chunks), err))
	}
	if len(vectors) != len(chunks) {
		return task.Failure(task.KindUnknown, fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	entries := make([]models.ChunkEmbedding, len(chunks))
	for i, c := range chunks {
		entries[i] = models.ChunkEmbedding{Chunk: c, OwnerID: ownerID, Vector: vectors[i]}
	}
	if err := t.Index.Upsert(ctx, entries); err != nil {
		return task.Failure(classify(err), fmt.Sprintf("upsert chunk embeddings: %v", err))
	}

	return task.Success(map[string]any{"chunk_count": len(chunks)})
}
