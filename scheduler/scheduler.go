package scheduler

import (
	"sync"
	"time"

	"github.com/automaton-io/automaton/logger"
	"github.com/automaton-io/automaton/model"
	"github.com/automaton-io/automaton/util"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventSink receives the events fired by due jobs, normally the
// dispatcher's Dispatch wrapped by the agent.
type EventSink func(event model.Event)

// Scheduler fires registered jobs at or after their due time. A missed
// job fires exactly once on catch-up; the next fire time is always
// recomputed forward from the current time, never from the missed tick.
type Scheduler struct {
	emit     EventSink
	interval time.Duration

	mu     sync.Mutex
	jobs   map[string]*model.ScheduledJob
	firing map[string]bool

	stop chan struct{}
	tick *util.TickWorker
	wg   sync.WaitGroup
	now  func() time.Time
}

func New(emit EventSink, checkInterval time.Duration) *Scheduler {
	return &Scheduler{
		emit:     emit,
		interval: checkInterval,
		jobs:     make(map[string]*model.ScheduledJob),
		firing:   make(map[string]bool),
		stop:     make(chan struct{}),
		now:      time.Now,
	}
}

// Register validates the schedule spec, computes the initial fire time
// and stores the job. A job with the same id is replaced.
func (s *Scheduler) Register(job model.ScheduledJob) error {
	next, err := NextAfter(job.Schedule, s.now())
	if err != nil {
		return err
	}
	if job.Id == "" {
		job.Id = uuid.New().String()
	}
	job.NextFireAt = next
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Id] = &job
	logger.Info("registered scheduled job",
		zap.String("id", job.Id),
		zap.String("name", job.Name),
		zap.String("schedule", job.Schedule),
		zap.Time("nextFireAt", next))
	return nil
}

// ReplaceAll swaps the whole job set atomically, validating every spec
// first so a reload never leaves the scheduler half configured.
func (s *Scheduler) ReplaceAll(jobs []model.ScheduledJob) error {
	now := s.now()
	fresh := make(map[string]*model.ScheduledJob, len(jobs))
	for _, job := range jobs {
		next, err := NextAfter(job.Schedule, now)
		if err != nil {
			return err
		}
		if job.Id == "" {
			job.Id = uuid.New().String()
		}
		job.NextFireAt = next
		j := job
		fresh[job.Id] = &j
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = fresh
	s.firing = make(map[string]bool)
	return nil
}

func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	return true
}

func (s *Scheduler) Pause(id string) bool {
	return s.setPaused(id, true)
}

func (s *Scheduler) Resume(id string) bool {
	return s.setPaused(id, false)
}

func (s *Scheduler) setPaused(id string, paused bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	job.Paused = paused
	return true
}

// Jobs returns a snapshot of every registered job.
func (s *Scheduler) Jobs() []model.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	return out
}

func (s *Scheduler) Name() string {
	return "scheduler"
}

func (s *Scheduler) Start() error {
	s.tick = util.NewTickWorker("scheduler", s.interval, s.stop, s.CheckNow, &s.wg)
	s.tick.Start()
	return nil
}

func (s *Scheduler) Stop() error {
	if s.tick != nil {
		s.tick.Stop()
		s.wg.Wait()
	}
	return nil
}

// CheckNow fires every due job once. Firings for one job id are
// serialized through the firing guard; a failure recomputing one job's
// schedule disables only that job.
func (s *Scheduler) CheckNow() {
	now := s.now()
	for _, job := range s.collectDue(now) {
		s.fire(job, now)
	}
}

func (s *Scheduler) collectDue(now time.Time) []*model.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*model.ScheduledJob
	for id, job := range s.jobs {
		if job.Paused || job.Disabled || s.firing[id] {
			continue
		}
		if !job.NextFireAt.After(now) {
			s.firing[id] = true
			due = append(due, job)
		}
	}
	return due
}

func (s *Scheduler) fire(job *model.ScheduledJob, now time.Time) {
	logger.Info("firing scheduled job", zap.String("id", job.Id), zap.String("name", job.Name), zap.String("workflow", job.Workflow))
	s.emit(model.Event{
		TriggerType: model.TRIGGER_TYPE_SCHEDULED,
		Source:      "scheduler",
		Payload: map[string]any{
			"job":      job.Name,
			"jobId":    job.Id,
			"workflow": job.Workflow,
		},
		Timestamp: now,
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	defer delete(s.firing, job.Id)
	job.LastFiredAt = now
	next, err := NextAfter(job.Schedule, s.now())
	if err != nil {
		job.Disabled = true
		logger.Error("disabling job, can not compute next fire time",
			zap.String("id", job.Id),
			zap.String("name", job.Name),
			zap.Error(err))
		return
	}
	job.NextFireAt = next
}
