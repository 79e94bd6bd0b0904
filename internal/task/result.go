package task

// Status is the tag of a task result.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusPartial
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// ErrorKind classifies a task failure. The runtime's retry decision is based
// solely on the kind, never on the message text.
type ErrorKind string

const (
	KindInvalidInput ErrorKind = "invalid_input"
	KindTimeout      ErrorKind = "timeout"
	KindRateLimited  ErrorKind = "rate_limited"
	KindNetwork      ErrorKind = "network"
	KindPermission   ErrorKind = "permission"
	KindNotFound     ErrorKind = "not_found"
	KindUnknown      ErrorKind = "unknown"
)

// Result is the tagged outcome of a task invocation. Tasks never throw
// across the runtime boundary; every outcome, including timeout and panic,
// is an explicit Result.
type Result struct {
	Status Status

	// Output carries the task's product on success and partial results.
	Output map[string]any

	// ErrorKind and Message are set on failure only.
	ErrorKind ErrorKind
	Message   string

	// Warnings is set on partial results.
	Warnings []string

	// Metadata holds free-form observability annotations (timing, attempt
	// count). The runtime adds its own entries before returning.
	Metadata map[string]any
}

// Success builds a success result.
func Success(output map[string]any) Result {
	return Result{Status: StatusSuccess, Output: output, Metadata: map[string]any{}}
}

// Failure builds a failure result of the given kind.
func Failure(kind ErrorKind, message string) Result {
	return Result{Status: StatusFailure, ErrorKind: kind, Message: message, Metadata: map[string]any{}}
}

// Partial builds a partial-success result. Partial results are terminal for
// retry purposes but surfaced distinctly so callers can decide whether to
// advance or pause.
func Partial(output map[string]any, warnings ...string) Result {
	return Result{Status: StatusPartial, Output: output, Warnings: warnings, Metadata: map[string]any{}}
}

// Failed reports whether the result is a failure.
func (r Result) Failed() bool { return r.Status == StatusFailure }

// Terminal reports whether the result ends the invocation from the
// pipeline's point of view; partial counts as terminal success.
func (r Result) Terminal() bool { return r.Status != StatusFailure }

func (r Result) annotate(key string, value any) Result {
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	r.Metadata[key] = value
	return r
}
