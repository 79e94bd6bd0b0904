package stages

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"lexpipe/internal/chunking"
	"lexpipe/internal/services"
	"lexpipe/internal/store"
	"lexpipe/internal/task"
)

// Deps carries the external capabilities the stage tasks are built from.
type Deps struct {
	Blob      store.BlobStore
	Index     store.VectorIndex
	Extractor services.Extractor
	Chunker   *chunking.Chunker
	Embedder  services.EmbeddingProvider
	Generator services.GenerationProvider
}

// RegisterAll binds every stage task into the registry and seals it. Called
// once during process initialization, before any message is handled.
func RegisterAll(r *task.Registry, deps Deps) error {
	descriptors := []task.Descriptor{
		withAudit(&ExtractTask{Blob: deps.Blob, Extractor: deps.Extractor}),
		withAudit(&IndexTask{Blob: deps.Blob, Chunker: deps.Chunker, Embedder: deps.Embedder, Index: deps.Index}),
		withAudit(&RetrieveTask{Embedder: deps.Embedder, Index: deps.Index}),
		withAudit(&ReasonTask{Generator: deps.Generator}),
	}
	for _, d := range descriptors {
		d := d
		if err := r.Register(d.Task.Name(), func() task.Descriptor { return d }); err != nil {
			return fmt.Errorf("register stage tasks: %w", err)
		}
	}
	r.Seal()
	return nil
}

// withAudit attaches the audit hooks every stage shares: a start line and a
// completion line with the terminal outcome. Pure observability; the runtime
// guarantees hook failures never fail the task.
func withAudit(t task.Task) task.Descriptor {
	return task.Descriptor{
		Task: t,
		Before: func(ec task.ExecutionContext) {
			log.WithFields(log.Fields{
				"task":        t.Name(),
				"trace_id":    ec.TraceID,
				"document_id": ec.DocumentID,
				"actor_id":    ec.ActorID,
				"attempt":     ec.Attempt,
			}).Info("task attempt started")
		},
		After: func(ec task.ExecutionContext, res task.Result) {
			entry := log.WithFields(log.Fields{
				"task":        t.Name(),
				"trace_id":    ec.TraceID,
				"status":      res.Status.String(),
				"duration_ms": res.Metadata["duration_ms"],
			})
			if res.Failed() {
				entry.WithField("kind", res.ErrorKind).Warn("task finished")
				return
			}
			entry.Info("task finished")
		},
	}
}
