package metadata

import "github.com/automaton-io/automaton/model"

// Registry is one immutable generation of loaded definitions. A reload
// builds and validates a fresh Registry and swaps it in atomically;
// in-flight runs keep executing against the generation they started with.
type Registry struct {
	Workflows map[string]*model.WorkflowDefinition
	Bindings  []model.TriggerBinding
	Jobs      []model.ScheduledJob
}

// HandlerLookup reports whether an external-action handler is registered.
// Used at load time so an unknown handler is a ConfigError, not a
// runtime surprise.
type HandlerLookup interface {
	Has(name string) bool
}
