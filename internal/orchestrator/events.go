package orchestrator

import "time"

// EventType classifies orchestrator lifecycle events.
type EventType int

const (
	EventProjectInit EventType = iota // project initialized
	EventStepStart                    // run loop entering a step
	EventTurnStart                    // agent turn begins
	EventMessageSent                  // downstream message routed
	EventTurnEnd                      // agent turn finished
	EventStepEnd                      // step checkpointed
	EventError                        // error captured (turn or run level)
)

// Event carries data about an orchestrator lifecycle event.
type Event struct {
	Type         EventType
	Time         time.Time
	Step         int    // 1-based step counter within the run call
	Role         Role   // agent role for turn events
	AgentID      string
	ProjectID    string
	MessageID    string // for EventMessageSent
	CheckpointID string // for EventStepEnd
	Message      string // human-readable message
	Error        string // error message if applicable
}

// EventHandler is a callback that receives orchestrator events. Events are
// delivered in order, after the originating call releases the orchestrator
// lock, so handlers may query the orchestrator freely.
type EventHandler func(Event)
