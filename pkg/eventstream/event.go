package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeRunCompleted is emitted after a pipeline run finishes.
	EventTypeRunCompleted = "lector.run.completed"
)

// RunCompletedEvent is a transport-neutral event payload for a completed
// pipeline run.
type RunCompletedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Run           RunMeta     `json:"run"`
}

// EventSource identifies which pipeline and model produced the run.
type EventSource struct {
	Pipeline string `json:"pipeline"`
	Model    string `json:"model,omitempty"`
}

// RunMeta captures run lifecycle metadata for the event.
type RunMeta struct {
	Query      string   `json:"query,omitempty"`
	Stages     []string `json:"stages"`
	DurationMs int64    `json:"duration_ms"`
	Documents  int      `json:"documents"`
	Clusters   int      `json:"clusters,omitempty"`
	Orphans    int      `json:"orphans,omitempty"`
}

// NewRunCompletedEvent stamps a run payload with identity and timing.
func NewRunCompletedEvent(source EventSource, run RunMeta) *RunCompletedEvent {
	return &RunCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeRunCompleted,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Run:           run,
	}
}
