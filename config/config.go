package config

import (
	"time"

	"github.com/automaton-io/automaton/metadata"
	"github.com/automaton-io/automaton/model"
	"github.com/spf13/viper"
)

type Config struct {
	HttpPort       int                     `mapstructure:"http_port"`
	Triggers       []TriggerConfig         `mapstructure:"triggers"`
	Workflows      map[string][]StepConfig `mapstructure:"workflows"`
	ScheduledTasks []ScheduledTaskConfig   `mapstructure:"scheduled_tasks"`
	RateLimit      RateLimitConfig         `mapstructure:"rate_limit"`
	Cache          CacheConfig             `mapstructure:"cache"`
	TaskQueue      TaskQueueConfig         `mapstructure:"task_queue"`
	AnalyticsFile  string                  `mapstructure:"analytics_file"`
}

type TriggerConfig struct {
	TriggerType string         `mapstructure:"trigger_type"`
	Match       map[string]any `mapstructure:"match"`
	Expression  string         `mapstructure:"expression"`
	Workflow    string         `mapstructure:"workflow"`
}

type StepConfig struct {
	Name            string         `mapstructure:"name"`
	Type            string         `mapstructure:"type"`
	Action          string         `mapstructure:"action"`
	Params          map[string]any `mapstructure:"params"`
	ContinueOnError bool           `mapstructure:"continue_on_error"`
	TimeoutSeconds  int            `mapstructure:"timeout"`
}

type ScheduledTaskConfig struct {
	Name     string `mapstructure:"name"`
	Schedule string `mapstructure:"schedule"`
	Workflow string `mapstructure:"workflow"`
}

type RateLimitConfig struct {
	LimitPerWindow int  `mapstructure:"limit_per_window"`
	WindowSeconds  int  `mapstructure:"window_seconds"`
	FailFast       bool `mapstructure:"fail_fast"`
}

func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
	MaxEntries int `mapstructure:"max_entries"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type TaskQueueConfig struct {
	NumWorkers       int  `mapstructure:"num_workers"`
	MaxQueueSize     int  `mapstructure:"max_queue_size"`
	BlockOnFull      bool `mapstructure:"block_on_full"`
	MaxAttempts      int  `mapstructure:"max_attempts"`
	BackoffBaseMs    int  `mapstructure:"backoff_base_ms"`
	BackoffCapMs     int  `mapstructure:"backoff_cap_ms"`
	RetentionSeconds int  `mapstructure:"retention_seconds"`
}

// Load reads a YAML config file and applies defaults. Structural problems
// surface here; cross-reference validation happens against the built
// registry in metadata.Validate.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, model.NewConfigError("can not read config file %s: %v", path, err)
	}
	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, model.NewConfigError("can not parse config file %s: %v", path, err)
	}
	return &conf, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 8080)
	v.SetDefault("rate_limit.limit_per_window", 15)
	v.SetDefault("rate_limit.window_seconds", 60)
	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("task_queue.num_workers", 3)
	v.SetDefault("task_queue.max_queue_size", 100)
	v.SetDefault("task_queue.block_on_full", false)
	v.SetDefault("task_queue.max_attempts", 3)
	v.SetDefault("task_queue.backoff_base_ms", 500)
	v.SetDefault("task_queue.backoff_cap_ms", 30000)
	v.SetDefault("task_queue.retention_seconds", 3600)
}

// ToRegistry converts the raw config into a definition registry.
func (c *Config) ToRegistry() *metadata.Registry {
	reg := &metadata.Registry{
		Workflows: make(map[string]*model.WorkflowDefinition, len(c.Workflows)),
	}
	for name, steps := range c.Workflows {
		wf := &model.WorkflowDefinition{Name: name, Steps: make([]model.Step, 0, len(steps))}
		for _, sc := range steps {
			wf.Steps = append(wf.Steps, model.Step{
				Name:            sc.Name,
				Type:            model.StepType(sc.Type),
				Action:          sc.Action,
				Params:          sc.Params,
				ContinueOnError: sc.ContinueOnError,
				TimeoutSeconds:  sc.TimeoutSeconds,
			})
		}
		reg.Workflows[name] = wf
	}
	for _, t := range c.Triggers {
		reg.Bindings = append(reg.Bindings, model.TriggerBinding{
			TriggerType: t.TriggerType,
			Match:       t.Match,
			Expression:  t.Expression,
			Workflow:    t.Workflow,
		})
	}
	for _, st := range c.ScheduledTasks {
		reg.Jobs = append(reg.Jobs, model.ScheduledJob{
			Name:     st.Name,
			Schedule: st.Schedule,
			Workflow: st.Workflow,
		})
	}
	return reg
}
