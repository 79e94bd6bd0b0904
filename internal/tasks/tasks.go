package tasks

// Defines the stage/task identifiers shared by the task registry and the
// message bus. The stage name is the registry key; the Asynq task type is
// derived from it so that one worker mux can route every pipeline stage.

const (
	// StageExtract pulls the raw document from blob storage and extracts text.
	StageExtract = "extract"
	// StageIndex chunks extracted text, embeds it and upserts the vectors.
	StageIndex = "index"
	// StageRetrieve embeds a query and searches the vector index.
	StageRetrieve = "retrieve"
	// StageReason generates a cited answer from retrieved chunks.
	StageReason = "reason"
)

// PipelineQueue is the Asynq queue all stage messages are published to.
const PipelineQueue = "pipeline"

// TypeForStage returns the Asynq task type for a pipeline stage,
// e.g. "pipeline:extract".
func TypeForStage(stage string) string {
	return "pipeline:" + stage
}

// PipelineStages lists the stages driven by the message bus, in chain order.
// Retrieve and reason run synchronously on the query path and are never
// published as messages.
func PipelineStages() []string {
	return []string{StageExtract, StageIndex}
}
