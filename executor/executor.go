package executor

// Executor is a long-running component with explicit lifecycle, used by
// the agent for anything it starts and stops as a unit.
type Executor interface {
	Start() error
	Stop() error
	Name() string
}
