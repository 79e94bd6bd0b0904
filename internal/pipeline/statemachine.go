package pipeline

import (
	"errors"
	"fmt"

	"lexpipe/internal/models"
	"lexpipe/internal/tasks"
)

// ErrIllegalTransition is returned for any status/event pair outside the
// transition table. Statuses only ever move along defined edges; no stage
// writes a status it does not own.
var ErrIllegalTransition = errors.New("pipeline: illegal document status transition")

// Event is a pipeline occurrence that may move a document's status.
type Event string

const (
	EventExtractAccepted  Event = "extract_accepted"
	EventExtractSucceeded Event = "extract_succeeded"
	EventExtractFailed    Event = "extract_failed"
	EventIndexAccepted    Event = "index_accepted"
	EventIndexSucceeded   Event = "index_succeeded"
	EventIndexFailed      Event = "index_failed"
)

// transitions is the authoritative table. ready and failed are terminal:
// they appear as targets only.
var transitions = map[models.DocumentStatus]map[Event]models.DocumentStatus{
	models.StatusUploaded: {
		EventExtractAccepted: models.StatusExtracting,
	},
	models.StatusExtracting: {
		EventExtractSucceeded: models.StatusExtracted,
		EventExtractFailed:    models.StatusFailed,
	},
	models.StatusExtracted: {
		EventIndexAccepted: models.StatusIndexing,
	},
	models.StatusIndexing: {
		EventIndexSucceeded: models.StatusReady,
		EventIndexFailed:    models.StatusFailed,
	},
}

// Next returns the status reached by applying event to from.
func Next(from models.DocumentStatus, event Event) (models.DocumentStatus, error) {
	if edges, ok := transitions[from]; ok {
		if to, ok := edges[event]; ok {
			return to, nil
		}
	}
	return "", fmt.Errorf("%w: %s on %s", ErrIllegalTransition, event, from)
}

// StageSpec ties one message-driven stage to its place in the state machine.
type StageSpec struct {
	Name string
	// PreState is the status a fresh delivery must find; anything else is a
	// duplicate or stale message.
	PreState models.DocumentStatus
	// ActiveState is the status while the stage runs. A delivery that finds
	// it resumes work abandoned by a crashed worker.
	ActiveState models.DocumentStatus
	Accepted    Event
	Succeeded   Event
	Failed      Event
	// NextStage is published after the success transition; empty for the
	// last stage.
	NextStage string
}

var stageSpecs = map[string]StageSpec{
	tasks.StageExtract: {
		Name:        tasks.StageExtract,
		PreState:    models.StatusUploaded,
		ActiveState: models.StatusExtracting,
		Accepted:    EventExtractAccepted,
		Succeeded:   EventExtractSucceeded,
		Failed:      EventExtractFailed,
		NextStage:   tasks.StageIndex,
	},
	tasks.StageIndex: {
		Name:        tasks.StageIndex,
		PreState:    models.StatusExtracted,
		ActiveState: models.StatusIndexing,
		Accepted:    EventIndexAccepted,
		Succeeded:   EventIndexSucceeded,
		Failed:      EventIndexFailed,
		NextStage:   "",
	},
}

// SpecFor returns the stage spec for a message-driven stage name.
func SpecFor(stage string) (StageSpec, bool) {
	spec, ok := stageSpecs[stage]
	return spec, ok
}
