package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/automaton-io/automaton/action"
	"github.com/automaton-io/automaton/analytics"
	"github.com/automaton-io/automaton/cache"
	"github.com/automaton-io/automaton/logger"
	"github.com/automaton-io/automaton/metadata"
	"github.com/automaton-io/automaton/model"
	"github.com/automaton-io/automaton/ratelimit"
	"github.com/automaton-io/automaton/util"
	"go.uber.org/zap"
)

type Config struct {
	// DefaultStepTimeout applies to steps with no timeout of their own.
	// Zero disables the default.
	DefaultStepTimeout time.Duration
	// FailFastRateLimit makes ai steps fail with RateLimitError instead
	// of blocking when the call budget is exhausted.
	FailFastRateLimit bool
}

// Engine executes the steps of one run strictly in order. A run is owned
// by exactly one worker at a time, so the engine mutates run state and
// context without synchronization; the limiter and cache it consults are
// the shared, internally synchronized resources.
type Engine struct {
	registry *action.Registry
	provider action.AIProvider
	limiter  *ratelimit.Limiter
	cache    *cache.ResponseCache
	conf     Config
}

func New(registry *action.Registry, provider action.AIProvider, limiter *ratelimit.Limiter, responseCache *cache.ResponseCache, conf Config) *Engine {
	return &Engine{
		registry: registry,
		provider: provider,
		limiter:  limiter,
		cache:    responseCache,
		conf:     conf,
	}
}

// Execute runs the remaining steps of a run, starting at run.StepIndex so
// a retried run resumes at the step that failed. On error the failing
// step index and message are recorded on the run; the caller decides
// whether the error class warrants another attempt.
func (e *Engine) Execute(ctx context.Context, run *model.WorkflowRun) error {
	wf := run.Definition
	if wf == nil {
		return fmt.Errorf("run %s has no workflow definition", run.Id)
	}
	run.State = model.RUNNING
	// a fresh attempt owns the failure record of the previous one
	run.FailedStep = 0
	run.ErrorMessage = ""
	for run.StepIndex < len(wf.Steps) {
		if err := ctx.Err(); err != nil {
			run.FailedStep = run.StepIndex
			run.ErrorMessage = err.Error()
			return err
		}
		step := wf.Steps[run.StepIndex]
		key := stepKey(step, run.StepIndex)
		output, err := e.runStep(ctx, run, step, key)
		if err != nil {
			analytics.RecordStepFailure(run.WorkflowName, run.Id, key, run.StepIndex, err.Error())
			if step.ContinueOnError {
				logger.Warn("absorbing step failure",
					zap.String("workflow", run.WorkflowName),
					zap.String("runId", run.Id),
					zap.String("step", key),
					zap.Error(err))
				recordAbsorbedError(run.Context, key, err)
				run.StepIndex++
				continue
			}
			run.FailedStep = run.StepIndex
			run.ErrorMessage = err.Error()
			return err
		}
		analytics.RecordStepSuccess(run.WorkflowName, run.Id, key, run.StepIndex, output)
		if output != nil {
			run.Context[key] = output
		}
		run.StepIndex++
	}
	return nil
}

func (e *Engine) runStep(ctx context.Context, run *model.WorkflowRun, step model.Step, key string) (map[string]any, error) {
	params, err := util.ResolveParams(run.Context, step.Params)
	if err != nil {
		return nil, err
	}
	timeout := e.conf.DefaultStepTimeout
	if step.TimeoutSeconds > 0 {
		timeout = time.Duration(step.TimeoutSeconds) * time.Second
	}
	if timeout <= 0 {
		return e.invoke(ctx, run, step, params)
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type stepResult struct {
		out map[string]any
		err error
	}
	done := make(chan stepResult, 1)
	go func() {
		out, err := e.invoke(stepCtx, run, step, params)
		done <- stepResult{out: out, err: err}
	}()
	// A step that overruns is abandoned, not preempted; its goroutine
	// finishes against the cancelled context.
	select {
	case r := <-done:
		return r.out, r.err
	case <-stepCtx.Done():
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			return nil, model.TimeoutError{Step: key, Seconds: int(timeout.Seconds())}
		}
		return nil, stepCtx.Err()
	}
}

func (e *Engine) invoke(ctx context.Context, run *model.WorkflowRun, step model.Step, params map[string]any) (map[string]any, error) {
	switch step.Type {
	case model.STEP_TYPE_LOG:
		return e.executeLog(run, params)
	case model.STEP_TYPE_AI:
		return e.executeAI(ctx, step, params)
	case model.STEP_TYPE_ACTION:
		return e.executeAction(run, step, params)
	}
	// unreachable, step types are validated at load
	return nil, model.NewConfigError("unknown step type %q", step.Type)
}

func (e *Engine) executeLog(run *model.WorkflowRun, params map[string]any) (map[string]any, error) {
	message := fmt.Sprintf("%v", params["message"])
	logger.Info("workflow log",
		zap.String("workflow", run.WorkflowName),
		zap.String("runId", run.Id),
		zap.String("message", message))
	return map[string]any{"message": message}, nil
}

func (e *Engine) executeAI(ctx context.Context, step model.Step, params map[string]any) (map[string]any, error) {
	prompt, ok := params["prompt"]
	if !ok {
		prompt, ok = params["objective"]
	}
	if !ok {
		return nil, model.ActionError{Action: step.Action, Cause: fmt.Errorf("ai step needs a prompt or objective param")}
	}
	if e.provider == nil {
		return nil, model.ActionError{Action: step.Action, Cause: fmt.Errorf("no AI provider registered")}
	}
	promptStr := fmt.Sprintf("%v", prompt)
	key := cache.Key("ai", step.Action, promptStr)
	if value, found := e.cache.Get(key); found {
		return map[string]any{"response": value, "cached": true}, nil
	}
	if e.conf.FailFastRateLimit {
		if err := e.limiter.TryAcquire(); err != nil {
			return nil, err
		}
	} else {
		if err := e.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
	}
	response, err := e.provider.Complete(ctx, promptStr)
	if err != nil {
		var ae model.ActionError
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, model.ActionError{Action: step.Action, Transient: true, Cause: err}
	}
	e.cache.Put(key, response, 0)
	return map[string]any{"response": response}, nil
}

func (e *Engine) executeAction(run *model.WorkflowRun, step model.Step, params map[string]any) (map[string]any, error) {
	handler, ok := e.registry.Get(metadata.HandlerName(step.Action))
	if !ok {
		return nil, model.ActionError{Action: step.Action, Cause: fmt.Errorf("no handler registered for %s", step.Action)}
	}
	output, err := handler.Execute(metadata.ActionName(step.Action), params, run.Context)
	if err != nil {
		var ae model.ActionError
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, model.ActionError{Action: step.Action, Cause: err}
	}
	return output, nil
}

func stepKey(step model.Step, index int) string {
	if step.Name != "" {
		return step.Name
	}
	return fmt.Sprintf("step%d", index)
}

func recordAbsorbedError(context map[string]any, key string, err error) {
	errs, ok := context[model.ErrorsKey].(map[string]any)
	if !ok {
		errs = make(map[string]any)
		context[model.ErrorsKey] = errs
	}
	errs[key] = err.Error()
}
