package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"lexpipe/internal/services"
	"lexpipe/internal/store"
	"lexpipe/internal/task"
	"lexpipe/internal/tasks"
)

// ExtractTask pulls the raw document from blob storage, runs the extraction
// capability and writes the extraction artifact back. Output locations embed
// a fresh uuid so a rerun produces a new artifact version instead of
// touching the old one.
type ExtractTask struct {
	Blob      store.BlobStore
	Extractor services.Extractor
}

var _ task.Task = (*ExtractTask)(nil)

func (t *ExtractTask) Name() string { return tasks.StageExtract }

func (t *ExtractTask) Validate(input task.Input) bool {
	return input.String("document_id") != "" && input.String("raw_location") != ""
}

func (t *ExtractTask) Execute(ctx context.Context, ec task.ExecutionContext, input task.Input) task.Result {
	documentID := input.String("document_id")

	data, err := t.Blob.Get(ctx, input.String("raw_location"))
	if err != nil {
		return task.Failure(classify(err), fmt.Sprintf("load raw document: %v", err))
	}

	extraction, err := t.Extractor.Extract(ctx, data)
	if err != nil {
		return task.Failure(classify(err), fmt.Sprintf("extract text: %v", err))
	}

	payload, err := json.Marshal(extraction)
	if err != nil {
		return task.Failure(task.KindUnknown, fmt.Sprintf("encode extraction: %v", err))
	}
	location := fmt.Sprintf("processed/%s/%s/extraction.json", documentID, uuid.NewString())
	if _, err := t.Blob.Put(ctx, location, payload); err != nil {
		return task.Failure(classify(err), fmt.Sprintf("store extraction artifact: %v", err))
	}

	output := map[string]any{
		"text_location": location,
		"page_count":    len(extraction.Pages) + extraction.SkippedPages,
	}
	if extraction.SkippedPages > 0 {
		return task.Partial(output, fmt.Sprintf("%d pages could not be extracted", extraction.SkippedPages))
	}
	return task.Success(output)
}
