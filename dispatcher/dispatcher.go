package dispatcher

import (
	"errors"
	"fmt"
	"sync"

	"github.com/automaton-io/automaton/logger"
	"github.com/automaton-io/automaton/metadata"
	"github.com/automaton-io/automaton/model"
	"github.com/automaton-io/automaton/util"
	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Submitter accepts new runs. Satisfied by executor.TaskQueue.
type Submitter interface {
	Submit(run *model.WorkflowRun) error
}

// Dispatcher fans incoming events out into independent workflow runs,
// one per matching trigger binding.
type Dispatcher struct {
	metadata *metadata.Service
	queue    Submitter

	mu       sync.Mutex
	programs map[string]*goja.Program
}

func New(metadataService *metadata.Service, queue Submitter) *Dispatcher {
	return &Dispatcher{
		metadata: metadataService,
		queue:    queue,
		programs: make(map[string]*goja.Program),
	}
}

// Dispatch submits one run for every binding whose trigger type matches
// and whose predicate holds over the event payload. Each run gets its own
// deep copy of the payload so sibling runs never observe each other.
// Zero matches is a logged no-op.
func (d *Dispatcher) Dispatch(event model.Event) ([]string, error) {
	var runIds []string
	var errs []error
	for _, binding := range d.metadata.Bindings() {
		if binding.TriggerType != event.TriggerType {
			continue
		}
		if !d.matches(binding, event) {
			continue
		}
		run, err := d.newRun(binding.Workflow, event)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := d.submit(run, event); err != nil {
			errs = append(errs, err)
			continue
		}
		runIds = append(runIds, run.Id)
	}
	// scheduler events carry their target workflow directly and need no
	// binding
	if event.TriggerType == model.TRIGGER_TYPE_SCHEDULED {
		if wfName, ok := event.Payload["workflow"].(string); ok {
			run, err := d.newRun(wfName, event)
			if err != nil {
				errs = append(errs, err)
			} else if err := d.submit(run, event); err != nil {
				errs = append(errs, err)
			} else {
				runIds = append(runIds, run.Id)
			}
		}
	}
	if len(runIds) == 0 && len(errs) == 0 {
		logger.Debug("no binding matched event", zap.String("triggerType", event.TriggerType), zap.String("source", event.Source))
	}
	return runIds, errors.Join(errs...)
}

func (d *Dispatcher) submit(run *model.WorkflowRun, event model.Event) error {
	if err := d.queue.Submit(run); err != nil {
		logger.Error("can not submit run",
			zap.String("workflow", run.WorkflowName),
			zap.String("triggerType", event.TriggerType),
			zap.Error(err))
		return err
	}
	logger.Info("dispatched workflow run",
		zap.String("runId", run.Id),
		zap.String("workflow", run.WorkflowName),
		zap.String("triggerType", event.TriggerType),
		zap.String("source", event.Source))
	return nil
}

func (d *Dispatcher) newRun(workflow string, event model.Event) (*model.WorkflowRun, error) {
	wf, err := d.metadata.GetWorkflow(workflow)
	if err != nil {
		return nil, err
	}
	return &model.WorkflowRun{
		Id:           uuid.New().String(),
		WorkflowName: wf.Name,
		Definition:   wf,
		Context:      util.DeepCopyMap(event.Payload),
		State:        model.PENDING,
	}, nil
}

func (d *Dispatcher) matches(binding model.TriggerBinding, event model.Event) bool {
	for key, want := range binding.Match {
		got, ok := event.Payload[key]
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	if binding.Expression == "" {
		return true
	}
	ok, err := d.evalExpression(binding.Expression, event.Payload)
	if err != nil {
		// a broken predicate only skips this binding, never the event
		logger.Error("error evaluating binding expression",
			zap.String("triggerType", binding.TriggerType),
			zap.String("workflow", binding.Workflow),
			zap.Error(err))
		return false
	}
	return ok
}

// evalExpression runs a javascript predicate with the payload bound to $.
// Programs are compiled once per expression; each evaluation gets a fresh
// runtime because goja runtimes are not safe for concurrent use.
func (d *Dispatcher) evalExpression(expression string, payload map[string]any) (bool, error) {
	prog, err := d.program(expression)
	if err != nil {
		return false, err
	}
	vm := goja.New()
	if err := vm.Set("$", payload); err != nil {
		return false, err
	}
	value, err := vm.RunProgram(prog)
	if err != nil {
		return false, err
	}
	return value.ToBoolean(), nil
}

func (d *Dispatcher) program(expression string) (*goja.Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if prog, ok := d.programs[expression]; ok {
		return prog, nil
	}
	prog, err := goja.Compile("binding", expression, true)
	if err != nil {
		return nil, err
	}
	d.programs[expression] = prog
	return prog, nil
}
