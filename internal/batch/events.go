package batch

import (
	"time"

	"github.com/fpang/wildlife-vision/internal/aggregate"
)

// State is the lifecycle state of a Run.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// EventKind tags an Event.
type EventKind int

const (
	EventProgress EventKind = iota
	EventCompleted
	EventCancelled
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventCancelled:
		return "cancelled"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is published on Run.Events. Progress events carry Processed, Total
// and a Snapshot of the running tally. Completed carries Result, Failed
// carries Err. Cancelled carries neither.
type Event struct {
	Kind  EventKind
	RunID string

	Input     string
	Processed int
	Total     int
	Snapshot  aggregate.Result

	Result aggregate.Result
	Err    error
}

// Outcome is the terminal summary of a Run.
type Outcome struct {
	State  State
	Result aggregate.Result
	Err    error

	Processed int
	Images    int
	Skipped   int
	Duration  time.Duration
}
