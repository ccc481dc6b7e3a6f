package agent

import (
	"sync"
	"time"

	"github.com/automaton-io/automaton/action"
	"github.com/automaton-io/automaton/analytics"
	"github.com/automaton-io/automaton/cache"
	"github.com/automaton-io/automaton/config"
	"github.com/automaton-io/automaton/dispatcher"
	"github.com/automaton-io/automaton/engine"
	"github.com/automaton-io/automaton/executor"
	"github.com/automaton-io/automaton/logger"
	"github.com/automaton-io/automaton/metadata"
	"github.com/automaton-io/automaton/model"
	"github.com/automaton-io/automaton/monitor"
	"github.com/automaton-io/automaton/ratelimit"
	"github.com/automaton-io/automaton/rest"
	"github.com/automaton-io/automaton/scheduler"
	"github.com/automaton-io/automaton/service"
	"go.uber.org/zap"
)

const defaultStepTimeout = 60 * time.Second
const schedulerCheckInterval = time.Second

// Agent owns every core component and is the single initialization and
// teardown path of the daemon. Handlers, the AI provider and monitors
// must be registered before Start so configuration can be validated
// against them; an invalid configuration refuses to start.
type Agent struct {
	configPath string
	conf       *config.Config

	metadata *metadata.Service
	registry *action.Registry
	provider action.AIProvider
	monitors []monitor.Monitor

	limiter          *ratelimit.Limiter
	executors        []executor.Executor
	cache            *cache.ResponseCache
	engine           *engine.Engine
	queue            *executor.TaskQueue
	dispatcher       *dispatcher.Dispatcher
	scheduler        *scheduler.Scheduler
	monitorManager   *monitor.Manager
	executionService *service.ExecutionService
	httpServer       *rest.Server

	shutdown     bool
	shutdownLock sync.Mutex
}

func New(configPath string) *Agent {
	return &Agent{
		configPath: configPath,
		metadata:   metadata.NewService(),
		registry:   action.NewRegistry(),
	}
}

func (a *Agent) RegisterHandler(h action.Handler) error {
	return a.registry.Register(h)
}

func (a *Agent) SetAIProvider(p action.AIProvider) {
	a.provider = p
}

func (a *Agent) RegisterMonitor(m monitor.Monitor) {
	a.monitors = append(a.monitors, m)
}

// StartCore loads and validates configuration and brings up every core
// component except the HTTP listener.
func (a *Agent) StartCore() error {
	conf, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.conf = conf
	reg := conf.ToRegistry()
	if err := metadata.Validate(reg, a.registry, scheduler.ValidateSpec); err != nil {
		return err
	}
	if err := a.validateAIProvider(reg); err != nil {
		return err
	}
	if conf.AnalyticsFile != "" {
		if err := analytics.InitDataCollector(analytics.DataCollectorConfig{
			FileName:      conf.AnalyticsFile,
			CollectorType: analytics.LOG_FILE_DATA_COLLECTOR,
		}); err != nil {
			return err
		}
	}
	a.metadata.Load(reg)

	setup := []func() error{
		a.setupEngine,
		a.setupTaskQueue,
		a.setupDispatcher,
		a.setupScheduler,
		a.setupMonitors,
		a.setupServices,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("agent core started",
		zap.Int("workflows", len(reg.Workflows)),
		zap.Int("bindings", len(reg.Bindings)),
		zap.Int("scheduledJobs", len(reg.Jobs)))
	return nil
}

// Start brings up the core and serves the admin API.
func (a *Agent) Start() error {
	if err := a.StartCore(); err != nil {
		return err
	}
	go func() {
		if err := a.httpServer.Start(); err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (a *Agent) validateAIProvider(reg *metadata.Registry) error {
	if a.provider != nil {
		return nil
	}
	for name, wf := range reg.Workflows {
		for i, step := range wf.Steps {
			if step.Type == model.STEP_TYPE_AI {
				return model.NewConfigError("workflow %s step %d is an ai step but no AI provider is registered", name, i)
			}
		}
	}
	return nil
}

func (a *Agent) setupEngine() error {
	a.limiter = ratelimit.NewLimiter(a.conf.RateLimit.LimitPerWindow, a.conf.RateLimit.Window())
	a.cache = cache.NewResponseCache(a.conf.Cache.TTL(), a.conf.Cache.MaxEntries)
	a.engine = engine.New(a.registry, a.provider, a.limiter, a.cache, engine.Config{
		DefaultStepTimeout: defaultStepTimeout,
		FailFastRateLimit:  a.conf.RateLimit.FailFast,
	})
	return nil
}

func (a *Agent) setupTaskQueue() error {
	qc := a.conf.TaskQueue
	a.queue = executor.NewTaskQueue(executor.Config{
		NumWorkers:   qc.NumWorkers,
		Capacity:     qc.MaxQueueSize,
		BlockOnFull:  qc.BlockOnFull,
		MaxAttempts:  qc.MaxAttempts,
		BackoffBase:  time.Duration(qc.BackoffBaseMs) * time.Millisecond,
		BackoffCap:   time.Duration(qc.BackoffCapMs) * time.Millisecond,
		RetentionTTL: time.Duration(qc.RetentionSeconds) * time.Second,
	}, a.engine)
	return a.startExecutor(a.queue)
}

func (a *Agent) setupDispatcher() error {
	a.dispatcher = dispatcher.New(a.metadata, a.queue)
	return nil
}

func (a *Agent) setupScheduler() error {
	a.scheduler = scheduler.New(a.emitEvent, schedulerCheckInterval)
	if err := a.scheduler.ReplaceAll(a.metadata.Jobs()); err != nil {
		return err
	}
	return a.startExecutor(a.scheduler)
}

// startExecutor starts a component and records it for teardown in
// reverse start order.
func (a *Agent) startExecutor(e executor.Executor) error {
	if err := e.Start(); err != nil {
		return err
	}
	a.executors = append(a.executors, e)
	return nil
}

func (a *Agent) setupMonitors() error {
	a.monitorManager = monitor.NewManager(a.emitEvent)
	for _, m := range a.monitors {
		if err := a.monitorManager.Register(m); err != nil {
			return err
		}
	}
	a.monitorManager.StartAll()
	return nil
}

func (a *Agent) setupServices() error {
	a.executionService = service.NewExecutionService(a.dispatcher, a.queue, a.scheduler, a.ReloadConfig, a.Status)
	var err error
	a.httpServer, err = rest.NewServer(a.conf.HttpPort, a.executionService)
	return err
}

// emitEvent is the single entry point through which the scheduler and
// every monitor feed events into the dispatcher.
func (a *Agent) emitEvent(event model.Event) {
	if _, err := a.dispatcher.Dispatch(event); err != nil {
		logger.Error("error dispatching event",
			zap.String("triggerType", event.TriggerType),
			zap.String("source", event.Source),
			zap.Error(err))
	}
}

// ReloadConfig re-reads the config file, validates it fully and swaps
// the definition registry and job set atomically. In-flight runs keep
// executing under the definitions they started with.
func (a *Agent) ReloadConfig() error {
	conf, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	reg := conf.ToRegistry()
	if err := metadata.Validate(reg, a.registry, scheduler.ValidateSpec); err != nil {
		return err
	}
	if err := a.validateAIProvider(reg); err != nil {
		return err
	}
	if err := a.scheduler.ReplaceAll(reg.Jobs); err != nil {
		return err
	}
	a.metadata.Load(reg)
	logger.Info("configuration reloaded",
		zap.Int("workflows", len(reg.Workflows)),
		zap.Int("bindings", len(reg.Bindings)),
		zap.Int("scheduledJobs", len(reg.Jobs)))
	return nil
}

func (a *Agent) Status() map[string]any {
	return map[string]any{
		"taskQueue":     a.queue.Stats(),
		"scheduledJobs": a.scheduler.Jobs(),
		"monitors":      a.monitorManager.Running(),
		"rateLimiter": map[string]any{
			"limit":    a.limiter.Limit(),
			"window":   a.limiter.Window().String(),
			"inFlight": a.limiter.InFlight(),
		},
		"cacheEntries": a.cache.Size(),
	}
}

func (a *Agent) ExecutionService() *service.ExecutionService {
	return a.executionService
}

func (a *Agent) Dispatcher() *dispatcher.Dispatcher {
	return a.dispatcher
}

func (a *Agent) Queue() *executor.TaskQueue {
	return a.queue
}

func (a *Agent) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Shutdown stops event intake first, then drains the queue and tears
// everything down. Safe to call more than once.
func (a *Agent) Shutdown() error {
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	logger.Info("shutting down agent")
	if a.httpServer != nil {
		_ = a.httpServer.Stop()
	}
	if a.monitorManager != nil {
		a.monitorManager.StopAll()
	}
	for i := len(a.executors) - 1; i >= 0; i-- {
		e := a.executors[i]
		if err := e.Stop(); err != nil {
			logger.Error("error stopping executor", zap.String("executor", e.Name()), zap.Error(err))
		}
	}
	logger.Info("agent stopped")
	return nil
}
