package model

import (
	"errors"
	"fmt"
)

// ConfigError marks configuration that cannot be run: unresolvable
// workflow references, malformed schedules, unknown step types. It is
// the only error class fatal to the process, and only at load time.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Message)
}

func NewConfigError(format string, args ...any) ConfigError {
	return ConfigError{Message: fmt.Sprintf(format, args...)}
}

// TemplatingError is an unresolved substitution token in step params.
// It fails the step and is never retried.
type TemplatingError struct {
	Token string
}

func (e TemplatingError) Error() string {
	return fmt.Sprintf("unresolved template token %s", e.Token)
}

// ActionError is a failed external handler call. Transient errors are
// eligible for the queue's backoff-retry path.
type ActionError struct {
	Action    string
	Transient bool
	Cause     error
}

func (e ActionError) Error() string {
	return fmt.Sprintf("action %s failed: %v", e.Action, e.Cause)
}

func (e ActionError) Unwrap() error {
	return e.Cause
}

// TimeoutError is a step exceeding its configured duration. Retryable.
type TimeoutError struct {
	Step    string
	Seconds int
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("step %s timed out after %ds", e.Step, e.Seconds)
}

// CapacityError is a submission rejected by a full task queue.
type CapacityError struct {
	Capacity int
}

func (e CapacityError) Error() string {
	return fmt.Sprintf("task queue full, capacity %d", e.Capacity)
}

// IsRetryable reports whether an error class may take the queue's
// backoff-retry path. Timeouts and transient action failures qualify;
// config and templating errors never do.
func IsRetryable(err error) bool {
	var te TimeoutError
	if errors.As(err, &te) {
		return true
	}
	var ae ActionError
	if errors.As(err, &ae) {
		return ae.Transient
	}
	return false
}

// RateLimitError is returned only when acquire is configured fail-fast.
type RateLimitError struct {
	Limit  int
	Window string
}

func (e RateLimitError) Error() string {
	return fmt.Sprintf("rate limit of %d per %s exhausted", e.Limit, e.Window)
}
