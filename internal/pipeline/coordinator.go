package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"lexpipe/internal/models"
	"lexpipe/internal/store"
	"lexpipe/internal/task"
	"lexpipe/internal/tasks"
)

// ErrDeadLetter marks a message that must not be redelivered: no amount of
// retrying will make an unknown stage or a missing document processable.
// The worker maps it to the queue's skip-retry path.
var ErrDeadLetter = errors.New("pipeline: message routed to dead letter")

// errSuperseded means a concurrent delivery applied the transition first.
var errSuperseded = errors.New("pipeline: transition already applied by another delivery")

// Coordinator drives documents through the state machine, one stage per
// message. It owns all status writes: tasks compute, the coordinator
// transitions. Any number of coordinator instances may run concurrently;
// the metadata store's compare-and-write is the only synchronization.
type Coordinator struct {
	registry *task.Registry
	runtime  *task.Runtime
	meta     store.MetadataStore
	bus      store.MessageBus
	policies map[string]task.Policy
	logger   *log.Entry
}

func NewCoordinator(registry *task.Registry, runtime *task.Runtime, meta store.MetadataStore, bus store.MessageBus, policies map[string]task.Policy) *Coordinator {
	return &Coordinator{
		registry: registry,
		runtime:  runtime,
		meta:     meta,
		bus:      bus,
		policies: policies,
		logger:   log.WithField("component", "pipeline_coordinator"),
	}
}

// Process handles one pipeline message end to end. A nil return acknowledges
// the message; a non-nil return (other than ErrDeadLetter) asks the bus to
// redeliver it. The status guard at the top makes duplicate deliveries
// no-ops, which is what lets acknowledgment wait until after the state
// transition is durably persisted.
func (c *Coordinator) Process(ctx context.Context, msg models.PipelineMessage) error {
	logger := c.logger.WithFields(log.Fields{
		"stage":       msg.Stage,
		"document_id": msg.DocumentID,
		"trace_id":    msg.TraceID,
	})

	spec, ok := SpecFor(msg.Stage)
	if !ok {
		logger.Error("no stage registered for message")
		return fmt.Errorf("unknown stage %q: %w", msg.Stage, ErrDeadLetter)
	}

	rec, version, err := c.meta.Read(ctx, msg.DocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Error("message references unknown document")
			return fmt.Errorf("document %s: %w", msg.DocumentID, ErrDeadLetter)
		}
		return fmt.Errorf("load document %s: %w", msg.DocumentID, err)
	}

	switch rec.Status {
	case spec.PreState:
		next, err := Next(rec.Status, spec.Accepted)
		if err != nil {
			return err
		}
		rec.Status = next
		if err := c.meta.CompareAndWrite(ctx, msg.DocumentID, version, rec); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				// A concurrent delivery accepted the stage first.
				logger.Info("discarding duplicate delivery, stage already accepted")
				return nil
			}
			return fmt.Errorf("accept stage %s: %w", msg.Stage, err)
		}
	case spec.ActiveState:
		// A previous worker accepted this stage and died before finishing.
		// The task contract requires idempotent execution, so run it again.
		logger.Warn("resuming stage abandoned by a previous delivery")
	default:
		logger.WithField("status", rec.Status).Info("discarding duplicate or stale delivery")
		return nil
	}

	descriptor, err := c.registry.Resolve(spec.Name)
	if err != nil {
		// Fatal configuration error for this message: report it, fail the
		// document and dead-letter instead of retrying forever.
		logger.WithError(err).Error("cannot resolve task for stage")
		message := err.Error()
		if terr := c.applyTransition(ctx, msg.DocumentID, spec, spec.Failed, func(r *models.DocumentRecord) {
			r.LastError = &message
		}); terr != nil && !errors.Is(terr, errSuperseded) {
			logger.WithError(terr).Error("failed to record task resolution failure")
		}
		return fmt.Errorf("stage %s: %w", msg.Stage, ErrDeadLetter)
	}

	ec := task.ExecutionContext{
		TaskID:     fmt.Sprintf("%s_%s", spec.Name, uuid.NewString()[:8]),
		TraceID:    msg.TraceID,
		ActorID:    rec.OwnerID,
		DocumentID: rec.DocumentID,
		Attempt:    msg.Attempt,
	}
	res := c.runtime.Run(ctx, descriptor, ec, c.inputFor(spec, rec, msg), c.policyFor(spec.Name))

	if res.Failed() {
		err := c.applyTransition(ctx, msg.DocumentID, spec, spec.Failed, func(r *models.DocumentRecord) {
			message := res.Message
			r.LastError = &message
		})
		if errors.Is(err, errSuperseded) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("record failure of stage %s: %w", msg.Stage, err)
		}
		logger.WithFields(log.Fields{"kind": res.ErrorKind, "error": res.Message}).
			Warn("stage failed terminally, pipeline halted for document")
		return nil
	}

	// Partial results advance the pipeline like successes, but loudly.
	if res.Status == task.StatusPartial {
		logger.WithField("warnings", res.Warnings).Warn("stage completed partially")
	}

	err = c.applyTransition(ctx, msg.DocumentID, spec, spec.Succeeded, func(r *models.DocumentRecord) {
		c.recordOutput(r, res.Output)
		r.LastError = nil
	})
	if errors.Is(err, errSuperseded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("commit transition for stage %s: %w", msg.Stage, err)
	}

	if spec.NextStage != "" {
		next := models.PipelineMessage{
			DocumentID: msg.DocumentID,
			OwnerID:    rec.OwnerID,
			Stage:      spec.NextStage,
			Attempt:    0,
			TraceID:    msg.TraceID, // propagated unchanged down the chain
		}
		if err := c.bus.Publish(ctx, next); err != nil {
			return fmt.Errorf("publish %s message for %s: %w", spec.NextStage, msg.DocumentID, err)
		}
	}

	logger.WithField("status", res.Status.String()).Info("stage completed")
	return nil
}

// applyTransition performs the optimistic-version-checked status write. A
// version conflict is retried exactly once against a fresh read; finding the
// document outside the stage's active state means another delivery already
// applied the transition.
func (c *Coordinator) applyTransition(ctx context.Context, documentID string, spec StageSpec, event Event, mutate func(*models.DocumentRecord)) error {
	for attempt := 0; attempt < 2; attempt++ {
		rec, version, err := c.meta.Read(ctx, documentID)
		if err != nil {
			return err
		}
		if rec.Status != spec.ActiveState {
			return fmt.Errorf("document %s is %s: %w", documentID, rec.Status, errSuperseded)
		}
		next, err := Next(rec.Status, event)
		if err != nil {
			return err
		}
		rec.Status = next
		mutate(rec)
		err = c.meta.CompareAndWrite(ctx, documentID, version, rec)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("transition %s for document %s: %w", event, documentID, store.ErrVersionConflict)
}

// inputFor assembles the task input from the record and message. Artifact
// locations come from the record's append-only map, always the latest
// version.
func (c *Coordinator) inputFor(spec StageSpec, rec *models.DocumentRecord, msg models.PipelineMessage) task.Input {
	input := task.Input{
		"document_id": rec.DocumentID,
		"owner_id":    rec.OwnerID,
	}
	switch spec.Name {
	case tasks.StageExtract:
		input["raw_location"] = rec.LatestLocation("raw")
	case tasks.StageIndex:
		input["text_location"] = rec.LatestLocation("text")
	}
	return input
}

// recordOutput folds a stage's output into the record. New artifacts are
// appended, never overwritten.
func (c *Coordinator) recordOutput(rec *models.DocumentRecord, output map[string]any) {
	if loc, ok := output["text_location"].(string); ok && loc != "" {
		rec.AppendLocation("text", loc)
	}
	if pages, ok := output["page_count"].(int); ok && pages > 0 {
		rec.PageCount = pages
	}
}

func (c *Coordinator) policyFor(stage string) task.Policy {
	if pol, ok := c.policies[stage]; ok {
		return pol
	}
	return task.DefaultPolicy()
}
