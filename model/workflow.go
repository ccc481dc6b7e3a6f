package model

type StepType string

const STEP_TYPE_AI StepType = "ai"
const STEP_TYPE_ACTION StepType = "external-action"
const STEP_TYPE_LOG StepType = "log"

func IsValidStepType(t string) bool {
	switch StepType(t) {
	case STEP_TYPE_AI, STEP_TYPE_ACTION, STEP_TYPE_LOG:
		return true
	}
	return false
}

type Step struct {
	Name            string         `json:"name"`
	Type            StepType       `json:"type"`
	Action          string         `json:"action"`
	Params          map[string]any `json:"params"`
	ContinueOnError bool           `json:"continueOnError"`
	TimeoutSeconds  int            `json:"timeoutSeconds"`
}

type WorkflowDefinition struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

type WorkflowRunRequest struct {
	TriggerType string         `json:"triggerType"`
	Source      string         `json:"source"`
	Payload     map[string]any `json:"payload"`
}
