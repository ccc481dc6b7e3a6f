package service

import (
	"time"

	"github.com/automaton-io/automaton/dispatcher"
	"github.com/automaton-io/automaton/executor"
	"github.com/automaton-io/automaton/model"
	"github.com/automaton-io/automaton/scheduler"
)

// ExecutionService is the facade the admin surface talks to. It exposes
// exactly the operations the core offers to any outer surface.
type ExecutionService struct {
	dispatcher *dispatcher.Dispatcher
	queue      *executor.TaskQueue
	scheduler  *scheduler.Scheduler
	reload     func() error
	status     func() map[string]any
}

func NewExecutionService(d *dispatcher.Dispatcher, q *executor.TaskQueue, s *scheduler.Scheduler, reload func() error, status func() map[string]any) *ExecutionService {
	return &ExecutionService{
		dispatcher: d,
		queue:      q,
		scheduler:  s,
		reload:     reload,
		status:     status,
	}
}

// SubmitRun dispatches an externally submitted event and returns the ids
// of the runs it produced.
func (s *ExecutionService) SubmitRun(req model.WorkflowRunRequest) ([]string, error) {
	event := model.Event{
		TriggerType: req.TriggerType,
		Source:      req.Source,
		Payload:     req.Payload,
		Timestamp:   time.Now(),
	}
	if event.Source == "" {
		event.Source = "api"
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	return s.dispatcher.Dispatch(event)
}

func (s *ExecutionService) GetRun(id string) (model.RunStatus, bool) {
	return s.queue.GetRun(id)
}

func (s *ExecutionService) RegisterJob(job model.ScheduledJob) error {
	return s.scheduler.Register(job)
}

func (s *ExecutionService) Jobs() []model.ScheduledJob {
	return s.scheduler.Jobs()
}

func (s *ExecutionService) Reload() error {
	return s.reload()
}

func (s *ExecutionService) Status() map[string]any {
	return s.status()
}
