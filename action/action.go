package action

import "context"

// Handler is the single synchronous contract an external integration
// exposes to the core. The core owns retry and timeout policy; a handler
// only executes one named action against its platform and reports the
// result. A transient failure should be returned as a model.ActionError
// with Transient set so the queue can retry it.
type Handler interface {
	Name() string
	Execute(action string, params map[string]any, context map[string]any) (map[string]any, error)
}

// AIProvider is the scarce external completion capability. Every call is
// guarded by the rate limiter and memoized through the response cache.
type AIProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type funcHandler struct {
	name string
	fn   func(action string, params map[string]any, context map[string]any) (map[string]any, error)
}

func NewFuncHandler(name string, fn func(action string, params map[string]any, context map[string]any) (map[string]any, error)) Handler {
	return &funcHandler{name: name, fn: fn}
}

func (h *funcHandler) Name() string {
	return h.name
}

func (h *funcHandler) Execute(action string, params map[string]any, context map[string]any) (map[string]any, error) {
	return h.fn(action, params, context)
}
