package model

import "time"

// TRIGGER_TYPE_SCHEDULED marks events emitted by the scheduler. The
// dispatcher routes them straight to the job's target workflow in
// addition to any bindings on the type.
const TRIGGER_TYPE_SCHEDULED = "scheduled"

// Event is a single externally observed occurrence or scheduler firing.
// Events are immutable once emitted; the dispatcher copies the payload
// before seeding a run context from it.
type Event struct {
	TriggerType string         `json:"triggerType"`
	Source      string         `json:"source"`
	Payload     map[string]any `json:"payload"`
	Timestamp   time.Time      `json:"timestamp"`
}

// TriggerBinding connects events of one trigger type to a workflow.
// Match is an equality predicate over payload fields; Expression is an
// optional javascript predicate evaluated with the payload bound to $.
type TriggerBinding struct {
	TriggerType string         `json:"triggerType"`
	Match       map[string]any `json:"match"`
	Expression  string         `json:"expression"`
	Workflow    string         `json:"workflow"`
}
