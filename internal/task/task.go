package task

import (
	"context"
	"time"
)

// Input is the named-field envelope handed to a task. Keys are unique by
// construction; each task owns the schema it accepts and rejects everything
// else in Validate.
type Input map[string]any

// String returns the string value under key, or "" if absent or not a string.
func (in Input) String(key string) string {
	v, _ := in[key].(string)
	return v
}

// Strings returns the string-slice value under key, tolerating []any from
// JSON decoding.
func (in Input) Strings(key string) []string {
	switch v := in[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Int returns the int value under key, tolerating float64 from JSON decoding.
func (in Input) Int(key string) int {
	switch v := in[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// ExecutionContext describes one task invocation. It is constructed by the
// runtime, immutable for the duration of that invocation, and never shared
// across concurrent invocations.
type ExecutionContext struct {
	// TaskID uniquely identifies this invocation chain, e.g. "extract_1f9a03bc".
	TaskID string
	// TraceID correlates every task run in one document chain or query.
	TraceID string
	// ActorID is the user or tenant on whose behalf the task runs.
	ActorID string
	// DocumentID is set for pipeline stages, empty on the query path.
	DocumentID string
	// Deadline is the absolute time after which the attempt is abandoned.
	Deadline time.Time
	// Attempt is zero-based and incremented by the runtime on retry.
	Attempt int
}

// WithAttempt returns a copy of the context for the given attempt number.
func (ec ExecutionContext) WithAttempt(attempt int) ExecutionContext {
	ec.Attempt = attempt
	return ec
}

// Task is the uniform contract every unit of work satisfies.
type Task interface {
	// Name identifies the task; it is also the registry key.
	Name() string

	// Validate is pure and side-effect free. It returns false for
	// well-formed-but-semantically-invalid input instead of failing the
	// task; no resource is touched before it passes.
	Validate(input Input) bool

	// Execute performs the unit of work. It must be safe to invoke more
	// than once with the same input because the runtime may retry it, and
	// it must never panic across the runtime boundary: every outcome is an
	// explicit Result.
	Execute(ctx context.Context, ec ExecutionContext, input Input) Result
}

// Descriptor wraps a task with its optional lifecycle hooks. Hooks are plain
// function fields rather than interface methods so a task without hooks is
// just a nil field, not an empty override. Hook failures are logged by the
// runtime and never escalate into task failure.
type Descriptor struct {
	Task Task

	// Before runs at the start of every attempt, after validation.
	Before func(ec ExecutionContext)
	// After runs once per invocation with the terminal result. It is not
	// called for attempts that will be retried, nor when validation fails.
	After func(ec ExecutionContext, res Result)
}

// Factory produces a fresh task descriptor. Registered once at process
// start; tasks themselves are stateless functions over their input, so a
// factory may also return a shared instance.
type Factory func() Descriptor
