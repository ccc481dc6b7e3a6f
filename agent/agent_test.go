package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/automaton-io/automaton/action"
	"github.com/automaton-io/automaton/model"
	"github.com/stretchr/testify/require"
)

const testConfig = `
triggers:
  - trigger_type: test
    workflow: log_test
  - trigger_type: wobble
    workflow: flaky

workflows:
  log_test:
    - name: greet
      type: log
      params:
        message: "hello {name}"
  flaky:
    - name: wobble
      type: external-action
      action: test.wobble

scheduled_tasks: []

task_queue:
  num_workers: 2
  max_queue_size: 10
  max_attempts: 3
  backoff_base_ms: 20
  backoff_cap_ms: 100
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func startAgent(t *testing.T, content string, setup func(a *Agent)) *Agent {
	t.Helper()
	a := New(writeConfig(t, content))
	if setup != nil {
		setup(a)
	}
	require.NoError(t, a.StartCore())
	t.Cleanup(func() { a.Shutdown() })
	return a
}

func waitForTerminal(t *testing.T, a *Agent, runId string) model.RunStatus {
	t.Helper()
	var status model.RunStatus
	require.Eventually(t, func() bool {
		s, ok := a.Queue().GetRun(runId)
		if !ok {
			return false
		}
		status = s
		return s.State == "SUCCESS" || s.State == "FAILED"
	}, 5*time.Second, 20*time.Millisecond)
	return status
}

func TestEventFlowsFromTriggerToCompletedRun(t *testing.T) {
	handler := action.NewFuncHandler("test", func(string, map[string]any, map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})
	a := startAgent(t, testConfig, func(a *Agent) {
		require.NoError(t, a.RegisterHandler(handler))
	})

	runIds, err := a.Dispatcher().Dispatch(model.Event{
		TriggerType: "test",
		Source:      "chat",
		Payload:     map[string]any{"name": "Ann"},
		Timestamp:   time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, runIds, 1)

	status := waitForTerminal(t, a, runIds[0])
	require.Equal(t, "SUCCESS", status.State)
	require.Equal(t, "log_test", status.WorkflowName)
	greet := status.Context["greet"].(map[string]any)
	require.Equal(t, "hello Ann", greet["message"])
}

func TestTransientFailureRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	flaky := action.NewFuncHandler("test", func(string, map[string]any, map[string]any) (map[string]any, error) {
		if calls.Add(1) <= 2 {
			return nil, model.ActionError{Action: "test.wobble", Transient: true, Cause: fmt.Errorf("try again")}
		}
		return map[string]any{"ok": true}, nil
	})
	a := startAgent(t, testConfig, func(a *Agent) {
		require.NoError(t, a.RegisterHandler(flaky))
	})

	runIds, err := a.ExecutionService().SubmitRun(model.WorkflowRunRequest{
		TriggerType: "wobble",
	})
	require.NoError(t, err)
	require.Len(t, runIds, 1)

	status := waitForTerminal(t, a, runIds[0])
	require.Equal(t, "SUCCESS", status.State)
	require.Equal(t, 3, status.Attempt)
}

func TestStartRefusesConfigReferencingUnknownHandler(t *testing.T) {
	a := New(writeConfig(t, testConfig))
	err := a.StartCore()
	require.Error(t, err)
	require.IsType(t, model.ConfigError{}, err)
}

func TestStartRefusesAIStepWithoutProvider(t *testing.T) {
	conf := `
workflows:
  review:
    - name: review
      type: ai
      action: review
      params:
        prompt: "review this"
`
	a := New(writeConfig(t, conf))
	err := a.StartCore()
	require.Error(t, err)
	require.Contains(t, err.Error(), "no AI provider")
}

func TestReloadSwapsDefinitions(t *testing.T) {
	handler := action.NewFuncHandler("test", func(string, map[string]any, map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})
	path := writeConfig(t, testConfig)
	a := New(path)
	require.NoError(t, a.RegisterHandler(handler))
	require.NoError(t, a.StartCore())
	t.Cleanup(func() { a.Shutdown() })

	updated := `
triggers:
  - trigger_type: test
    workflow: log_test
  - trigger_type: extra
    workflow: log_test

workflows:
  log_test:
    - name: greet
      type: log
      params:
        message: "hello {name}"
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, a.ReloadConfig())

	runIds, err := a.Dispatcher().Dispatch(model.Event{
		TriggerType: "extra",
		Payload:     map[string]any{"name": "Bob"},
	})
	require.NoError(t, err)
	require.Len(t, runIds, 1)
}

func TestReloadRejectsInvalidConfigAndKeepsRunning(t *testing.T) {
	handler := action.NewFuncHandler("test", func(string, map[string]any, map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})
	path := writeConfig(t, testConfig)
	a := New(path)
	require.NoError(t, a.RegisterHandler(handler))
	require.NoError(t, a.StartCore())
	t.Cleanup(func() { a.Shutdown() })

	broken := `
triggers:
  - trigger_type: test
    workflow: ghost
workflows:
  log_test:
    - name: greet
      type: log
      params:
        message: "hi"
`
	require.NoError(t, os.WriteFile(path, []byte(broken), 0o644))
	require.Error(t, a.ReloadConfig())

	// the old definitions are still live
	runIds, err := a.Dispatcher().Dispatch(model.Event{
		TriggerType: "test",
		Payload:     map[string]any{"name": "Ann"},
	})
	require.NoError(t, err)
	require.Len(t, runIds, 1)
}

func TestShutdownIsIdempotent(t *testing.T) {
	handler := action.NewFuncHandler("test", func(string, map[string]any, map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})
	a := startAgent(t, testConfig, func(a *Agent) {
		require.NoError(t, a.RegisterHandler(handler))
	})
	require.NoError(t, a.Shutdown())
	require.NoError(t, a.Shutdown())

	// shutdown tore the queue down, new submissions are refused
	require.Error(t, a.Queue().Submit(&model.WorkflowRun{Id: "late"}))
}
