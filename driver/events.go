package driver

import "github.com/deepresearchhq/engine/state"

// EventType tags the variant of a stream event (spec section 6.3).
type EventType string

const (
	EventNodeUpdate EventType = "node_update"
	EventInterrupt  EventType = "interrupt"
	EventError      EventType = "error"
	EventDone       EventType = "done"
)

// InterruptReason names why a run paused for human input.
const ReasonAwaitingPlanConfirmation = "awaiting_plan_confirmation"

// Event is the tagged union of shapes a stream() or resume() call emits,
// per spec section 6.3. Only the fields relevant to Type are populated.
type Event struct {
	Type EventType

	// EventNodeUpdate
	Node       string
	StateDelta state.Delta

	// EventInterrupt
	Reason           string
	PlanningSteps    []state.PlanStep
	PlanningFeedback []string

	// EventError
	ErrorKind string
	Message   string

	// EventDone
	MessageID string
}
