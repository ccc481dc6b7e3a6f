package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RussellLuo/timingwheel"
	"github.com/automaton-io/automaton/logger"
	"github.com/automaton-io/automaton/model"
	"github.com/automaton-io/automaton/util"
	c "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

type Config struct {
	NumWorkers  int
	Capacity    int
	BlockOnFull bool
	// MaxAttempts bounds how often a retryable failure is re-run,
	// counting the first attempt.
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	RetentionTTL time.Duration
}

// RunExecutor executes one attempt of a run. Satisfied by engine.Engine.
type RunExecutor interface {
	Execute(ctx context.Context, run *model.WorkflowRun) error
}

// inflightEntry is the queue's own record of an accepted, unfinished run.
// The run itself is owned by the worker executing it; status queries read
// only this entry, never the live run or its context map.
type inflightEntry struct {
	id           string
	workflowName string
	state        atomic.Int32
	attempt      atomic.Int32
}

func (e *inflightEntry) status() model.RunStatus {
	return model.RunStatus{
		Id:           e.id,
		WorkflowName: e.workflowName,
		State:        model.RunState(e.state.Load()).String(),
		Attempt:      int(e.attempt.Load()),
	}
}

// TaskQueue is the bounded multi-producer queue and fixed worker pool.
// A fault inside one run is converted into a FAILED run at the worker
// boundary and never takes the worker down with it.
type TaskQueue struct {
	conf     Config
	executor RunExecutor

	taskChan chan util.Task
	workers  []*util.Worker
	wg       sync.WaitGroup
	timers   *timingwheel.TimingWheel
	archive  *c.Cache
	inflight sync.Map

	ctx    context.Context
	cancel context.CancelFunc

	stopped       atomic.Bool
	inflightCount atomic.Int64
	submitted     atomic.Int64
	completed     atomic.Int64
	failed        atomic.Int64
	retried       atomic.Int64
}

func NewTaskQueue(conf Config, executor RunExecutor) *TaskQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskQueue{
		conf:     conf,
		executor: executor,
		taskChan: make(chan util.Task, conf.Capacity),
		timers:   timingwheel.NewTimingWheel(100*time.Millisecond, 512),
		archive:  c.New(conf.RetentionTTL, 10*time.Minute),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (q *TaskQueue) Name() string {
	return "task-queue"
}

func (q *TaskQueue) Start() error {
	q.timers.Start()
	for i := 0; i < q.conf.NumWorkers; i++ {
		w := util.NewWorker(fmt.Sprintf("task-worker-%d", i), &q.wg, q.taskChan, q.process)
		w.Start()
		q.workers = append(q.workers, w)
	}
	logger.Info("task queue started", zap.Int("workers", q.conf.NumWorkers), zap.Int("capacity", q.conf.Capacity))
	return nil
}

// Submit enqueues a run. With BlockOnFull the caller waits for a slot;
// otherwise a full queue rejects with CapacityError.
func (q *TaskQueue) Submit(run *model.WorkflowRun) error {
	if q.stopped.Load() {
		return fmt.Errorf("task queue stopped")
	}
	run.State = model.PENDING
	if run.SubmittedAt.IsZero() {
		run.SubmittedAt = time.Now()
	}
	entry := &inflightEntry{id: run.Id, workflowName: run.WorkflowName}
	entry.state.Store(int32(model.PENDING))
	q.inflight.Store(run.Id, entry)
	q.inflightCount.Add(1)
	if q.conf.BlockOnFull {
		q.taskChan <- run
	} else {
		select {
		case q.taskChan <- run:
		default:
			q.inflight.Delete(run.Id)
			q.inflightCount.Add(-1)
			return model.CapacityError{Capacity: q.conf.Capacity}
		}
	}
	q.submitted.Add(1)
	return nil
}

func (q *TaskQueue) process(task util.Task) error {
	run, ok := task.(*model.WorkflowRun)
	if !ok {
		return fmt.Errorf("unexpected task type %T", task)
	}
	q.runOnce(run)
	return nil
}

func (q *TaskQueue) runOnce(run *model.WorkflowRun) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("recovered panic in workflow run",
				zap.String("runId", run.Id),
				zap.String("workflow", run.WorkflowName),
				zap.Any("panic", r))
			run.ErrorMessage = fmt.Sprintf("panic: %v", r)
			q.finish(run, model.FAILED)
		}
	}()
	entry, _ := q.entry(run.Id)
	run.Attempt++
	if entry != nil {
		entry.state.Store(int32(model.RUNNING))
		entry.attempt.Store(int32(run.Attempt))
	}
	err := q.executor.Execute(q.ctx, run)
	if err == nil {
		q.finish(run, model.SUCCESS)
		return
	}
	if model.IsRetryable(err) && run.Attempt < q.conf.MaxAttempts {
		delay := q.backoff(run.Attempt)
		logger.Warn("scheduling run retry",
			zap.String("runId", run.Id),
			zap.String("workflow", run.WorkflowName),
			zap.Int("attempt", run.Attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		run.State = model.PENDING
		if entry != nil {
			entry.state.Store(int32(model.PENDING))
		}
		q.retried.Add(1)
		q.timers.AfterFunc(delay, func() {
			go q.resubmit(run)
		})
		return
	}
	q.finish(run, model.FAILED)
}

func (q *TaskQueue) resubmit(run *model.WorkflowRun) {
	if q.stopped.Load() {
		run.ErrorMessage = "task queue stopped before retry"
		q.finish(run, model.FAILED)
		return
	}
	// retries always get a slot, even when new submissions would be
	// rejected for capacity
	q.taskChan <- run
}

func (q *TaskQueue) backoff(attempt int) time.Duration {
	delay := q.conf.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= q.conf.BackoffCap {
			return q.conf.BackoffCap
		}
	}
	if delay > q.conf.BackoffCap {
		delay = q.conf.BackoffCap
	}
	return delay
}

func (q *TaskQueue) finish(run *model.WorkflowRun, state model.RunState) {
	run.State = state
	run.FinishedAt = time.Now()
	q.inflight.Delete(run.Id)
	q.inflightCount.Add(-1)
	q.archive.Set(run.Id, run, c.DefaultExpiration)
	switch state {
	case model.SUCCESS:
		q.completed.Add(1)
	case model.FAILED:
		q.failed.Add(1)
		logger.Error("workflow run failed",
			zap.String("runId", run.Id),
			zap.String("workflow", run.WorkflowName),
			zap.Int("failedStep", run.FailedStep),
			zap.Int("attempts", run.Attempt),
			zap.String("error", run.ErrorMessage))
	}
}

func (q *TaskQueue) entry(id string) (*inflightEntry, bool) {
	if v, ok := q.inflight.Load(id); ok {
		return v.(*inflightEntry), true
	}
	return nil, false
}

// GetRun returns the status of an in-flight or recently finished run. An
// in-flight run reports a coarse snapshot (state, attempt) without
// context; the full context appears once the run is terminal.
func (q *TaskQueue) GetRun(id string) (model.RunStatus, bool) {
	if e, ok := q.entry(id); ok {
		return e.status(), true
	}
	if v, ok := q.archive.Get(id); ok {
		return v.(*model.WorkflowRun).Status(), true
	}
	return model.RunStatus{}, false
}

func (q *TaskQueue) Stats() map[string]any {
	return map[string]any{
		"workers":   q.conf.NumWorkers,
		"queueSize": len(q.taskChan),
		"inflight":  q.inflightCount.Load(),
		"submitted": q.submitted.Load(),
		"completed": q.completed.Load(),
		"failed":    q.failed.Load(),
		"retried":   q.retried.Load(),
	}
}

// Drain waits until every accepted run reaches a terminal state or the
// timeout passes.
func (q *TaskQueue) Drain(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if q.inflightCount.Load() == 0 && len(q.taskChan) == 0 {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

// Stop rejects new submissions, drains in-flight work and tears the pool
// down.
func (q *TaskQueue) Stop() error {
	if q.stopped.Swap(true) {
		return nil
	}
	q.Drain(5 * time.Second)
	q.cancel()
	for _, w := range q.workers {
		w.Stop()
	}
	q.wg.Wait()
	q.timers.Stop()
	logger.Info("task queue stopped")
	return nil
}
