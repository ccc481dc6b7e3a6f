package metadata

import (
	"strings"
	"sync/atomic"

	"github.com/automaton-io/automaton/model"
	"github.com/dop251/goja"
)

// Service holds the current definition registry behind an atomic pointer.
// Reads never block; Load swaps the whole generation at once.
type Service struct {
	current atomic.Pointer[Registry]
}

func NewService() *Service {
	s := &Service{}
	s.current.Store(&Registry{Workflows: map[string]*model.WorkflowDefinition{}})
	return s
}

func (s *Service) Load(reg *Registry) {
	s.current.Store(reg)
}

func (s *Service) GetWorkflow(name string) (*model.WorkflowDefinition, error) {
	wf, ok := s.current.Load().Workflows[name]
	if !ok {
		return nil, model.NewConfigError("workflow %s not found", name)
	}
	return wf, nil
}

func (s *Service) Bindings() []model.TriggerBinding {
	return s.current.Load().Bindings
}

func (s *Service) Jobs() []model.ScheduledJob {
	return s.current.Load().Jobs
}

// Validate checks every cross reference in a registry before it may be
// loaded: binding and job workflow names must resolve, step types must be
// known, binding expressions must compile, action steps must name a
// registered handler. scheduleCheck validates a schedule spec; handlers
// may be nil to skip handler checks.
func Validate(reg *Registry, handlers HandlerLookup, scheduleCheck func(spec string) error) error {
	for name, wf := range reg.Workflows {
		if len(wf.Steps) == 0 {
			return model.NewConfigError("workflow %s has no steps", name)
		}
		for i, step := range wf.Steps {
			if !model.IsValidStepType(string(step.Type)) {
				return model.NewConfigError("workflow %s step %d has unknown type %q", name, i, step.Type)
			}
			if step.Type == model.STEP_TYPE_ACTION {
				if step.Action == "" {
					return model.NewConfigError("workflow %s step %d has no action", name, i)
				}
				if handlers != nil && !handlers.Has(HandlerName(step.Action)) {
					return model.NewConfigError("workflow %s step %d references unknown handler %q", name, i, HandlerName(step.Action))
				}
			}
		}
	}
	for _, b := range reg.Bindings {
		if b.TriggerType == "" {
			return model.NewConfigError("trigger binding for workflow %s has no trigger type", b.Workflow)
		}
		if _, ok := reg.Workflows[b.Workflow]; !ok {
			return model.NewConfigError("trigger %s references unknown workflow %s", b.TriggerType, b.Workflow)
		}
		if b.Expression != "" {
			if _, err := goja.Compile("binding", b.Expression, true); err != nil {
				return model.NewConfigError("trigger %s has invalid expression: %v", b.TriggerType, err)
			}
		}
	}
	for _, j := range reg.Jobs {
		if _, ok := reg.Workflows[j.Workflow]; !ok {
			return model.NewConfigError("scheduled task %s references unknown workflow %s", j.Name, j.Workflow)
		}
		if scheduleCheck != nil {
			if err := scheduleCheck(j.Schedule); err != nil {
				return err
			}
		}
	}
	return nil
}

// HandlerName extracts the handler part of an action identifier such as
// "slack.send_message".
func HandlerName(action string) string {
	if i := strings.Index(action, "."); i > 0 {
		return action[:i]
	}
	return action
}

// ActionName extracts the operation part of an action identifier.
func ActionName(action string) string {
	if i := strings.Index(action, "."); i > 0 {
		return action[i+1:]
	}
	return action
}
