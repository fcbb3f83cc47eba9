// Package progress fans batch events out to websocket clients.
package progress

import "time"

// Kind names a batch event.
type Kind string

const (
	Queued    Kind = "queued"
	Started   Kind = "started"
	Completed Kind = "completed"
	Failed    Kind = "failed"
	Skipped   Kind = "skipped"
	BatchDone Kind = "batch-done"
)

// Event is one progress notification. Counters are set on BatchDone only.
type Event struct {
	Kind    Kind      `json:"kind"`
	BatchID string    `json:"batch_id"`
	Design  string    `json:"design,omitempty"`
	Index   int       `json:"index"`
	Total   int       `json:"total"`
	RunID   string    `json:"run_id,omitempty"`
	Worker  int       `json:"worker"`
	Attempt int       `json:"attempt,omitempty"`
	Steps   int       `json:"steps,omitempty"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`

	Completed int           `json:"completed,omitempty"`
	Skipped   int           `json:"skipped,omitempty"`
	Failures  int           `json:"failed,omitempty"`
	Elapsed   time.Duration `json:"elapsed,omitempty"`
}
