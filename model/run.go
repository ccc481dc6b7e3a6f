package model

import "time"

type RunState int

const PENDING RunState = 1
const RUNNING RunState = 2
const SUCCESS RunState = 3
const FAILED RunState = 4

func (s RunState) String() string {
	switch s {
	case PENDING:
		return "PENDING"
	case RUNNING:
		return "RUNNING"
	case SUCCESS:
		return "SUCCESS"
	case FAILED:
		return "FAILED"
	}
	return "UNDEFINED"
}

// Terminal reports whether a run in this state may never change state again.
func (s RunState) Terminal() bool {
	return s == SUCCESS || s == FAILED
}

// ErrorsKey is the reserved context key under which failures absorbed by
// continue_on_error are recorded, keyed by step key.
const ErrorsKey = "_errors"

// WorkflowRun is one execution instance of a workflow. The context map is
// owned exclusively by the worker executing the run; nothing else may
// mutate it while the run is in flight.
type WorkflowRun struct {
	Id           string         `json:"id"`
	WorkflowName string         `json:"workflowName"`
	// Definition is pinned at submission so a config reload never
	// changes the semantics of an in-flight run.
	Definition   *WorkflowDefinition `json:"-"`
	Context      map[string]any `json:"context"`
	State        RunState       `json:"state"`
	StepIndex    int            `json:"stepIndex"`
	Attempt      int            `json:"attempt"`
	FailedStep   int            `json:"failedStep"`
	ErrorMessage string         `json:"errorMessage"`
	SubmittedAt  time.Time      `json:"submittedAt"`
	FinishedAt   time.Time      `json:"finishedAt"`
}

// RunStatus is the external view of a run returned by status queries.
type RunStatus struct {
	Id           string         `json:"id"`
	WorkflowName string         `json:"workflowName"`
	State        string         `json:"state"`
	StepIndex    int            `json:"stepIndex"`
	Attempt      int            `json:"attempt"`
	FailedStep   int            `json:"failedStep,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
}

func (r *WorkflowRun) Status() RunStatus {
	return RunStatus{
		Id:           r.Id,
		WorkflowName: r.WorkflowName,
		State:        r.State.String(),
		StepIndex:    r.StepIndex,
		Attempt:      r.Attempt,
		FailedStep:   r.FailedStep,
		ErrorMessage: r.ErrorMessage,
		Context:      r.Context,
	}
}
