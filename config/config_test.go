package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
http_port: 9090
analytics_file: /tmp/automaton-analytics.log

triggers:
  - trigger_type: keyword
    match:
      command: deploy
    workflow: deploy_service
  - trigger_type: pr
    expression: "$.approvals >= 2"
    workflow: merge_pr

workflows:
  deploy_service:
    - name: announce
      type: log
      params:
        message: "deploying {service}"
    - name: ship
      type: external-action
      action: deployer.rollout
      timeout: 120
      continue_on_error: true
  merge_pr:
    - name: review
      type: ai
      action: review
      params:
        prompt: "review PR {pr.number}"

scheduled_tasks:
  - name: nightly-report
    schedule: "0 6 * * *"
    workflow: deploy_service

rate_limit:
  limit_per_window: 5
  window_seconds: 30
  fail_fast: true

cache:
  ttl_seconds: 120
  max_entries: 50

task_queue:
  num_workers: 8
  max_queue_size: 200
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesFullConfig(t *testing.T) {
	conf, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	require.Equal(t, 9090, conf.HttpPort)
	require.Equal(t, "/tmp/automaton-analytics.log", conf.AnalyticsFile)

	require.Len(t, conf.Triggers, 2)
	require.Equal(t, "keyword", conf.Triggers[0].TriggerType)
	require.Equal(t, "deploy", conf.Triggers[0].Match["command"])
	require.Equal(t, "$.approvals >= 2", conf.Triggers[1].Expression)

	require.Len(t, conf.Workflows, 2)
	steps := conf.Workflows["deploy_service"]
	require.Len(t, steps, 2)
	require.Equal(t, "external-action", steps[1].Type)
	require.Equal(t, 120, steps[1].TimeoutSeconds)
	require.True(t, steps[1].ContinueOnError)

	require.Len(t, conf.ScheduledTasks, 1)
	require.Equal(t, "0 6 * * *", conf.ScheduledTasks[0].Schedule)

	require.Equal(t, 5, conf.RateLimit.LimitPerWindow)
	require.Equal(t, 30*time.Second, conf.RateLimit.Window())
	require.True(t, conf.RateLimit.FailFast)

	require.Equal(t, 120*time.Second, conf.Cache.TTL())
	require.Equal(t, 50, conf.Cache.MaxEntries)

	require.Equal(t, 8, conf.TaskQueue.NumWorkers)
	require.Equal(t, 200, conf.TaskQueue.MaxQueueSize)
}

func TestLoadAppliesDefaults(t *testing.T) {
	conf, err := Load(writeConfig(t, "workflows: {}\n"))
	require.NoError(t, err)

	require.Equal(t, 8080, conf.HttpPort)
	require.Equal(t, 15, conf.RateLimit.LimitPerWindow)
	require.Equal(t, time.Minute, conf.RateLimit.Window())
	require.Equal(t, 3600*time.Second, conf.Cache.TTL())
	require.Equal(t, 1000, conf.Cache.MaxEntries)
	require.Equal(t, 3, conf.TaskQueue.NumWorkers)
	require.Equal(t, 100, conf.TaskQueue.MaxQueueSize)
	require.Equal(t, 3, conf.TaskQueue.MaxAttempts)
	require.Equal(t, 500, conf.TaskQueue.BackoffBaseMs)
	require.Equal(t, 30000, conf.TaskQueue.BackoffCapMs)
	require.Equal(t, 3600, conf.TaskQueue.RetentionSeconds)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestToRegistry(t *testing.T) {
	conf, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	reg := conf.ToRegistry()
	require.Len(t, reg.Workflows, 2)
	wf := reg.Workflows["deploy_service"]
	require.Equal(t, "deploy_service", wf.Name)
	require.Equal(t, "announce", wf.Steps[0].Name)
	require.Equal(t, "deployer.rollout", wf.Steps[1].Action)

	require.Len(t, reg.Bindings, 2)
	require.Equal(t, "merge_pr", reg.Bindings[1].Workflow)

	require.Len(t, reg.Jobs, 1)
	require.Equal(t, "nightly-report", reg.Jobs[0].Name)
	require.Equal(t, "deploy_service", reg.Jobs[0].Workflow)
}
