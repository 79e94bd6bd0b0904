package task

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Runtime wraps task execution with timeout enforcement, retry-with-backoff
// and trace-span creation. It is the single place failure policy is decided:
// tasks return classified results and never retry themselves.
type Runtime struct {
	tracer trace.Tracer
	logger *log.Entry
}

// NewRuntime builds a runtime using the globally configured otel tracer
// provider. With no provider installed the spans are no-ops, which keeps the
// runtime usable in tests and one-shot CLI invocations.
func NewRuntime() *Runtime {
	return &Runtime{
		tracer: otel.Tracer("lexpipe/task"),
		logger: log.WithField("component", "task_runtime"),
	}
}

// Run executes one task invocation under the given policy and returns its
// terminal result. Invalid input fails immediately with no hook invocation
// and no retry. Retryable failures are re-executed with jittered exponential
// backoff until the policy's attempt budget is exhausted.
func (rt *Runtime) Run(ctx context.Context, d Descriptor, ec ExecutionContext, input Input, pol Policy) Result {
	name := d.Task.Name()
	if !d.Task.Validate(input) {
		return Failure(KindInvalidInput, fmt.Sprintf("invalid input for task %s", name)).
			annotate("attempts", 0)
	}

	started := time.Now()
	attempt := ec.Attempt
	var res Result
loop:
	for {
		res = rt.attempt(ctx, d, ec.WithAttempt(attempt), input, pol)
		attempt++
		if !res.Failed() || !pol.Retryable(res.ErrorKind) || attempt >= pol.maxAttempts() {
			break
		}
		delay := pol.Backoff(attempt - 1)
		rt.logger.WithFields(log.Fields{
			"task":     name,
			"trace_id": ec.TraceID,
			"attempt":  attempt - 1,
			"kind":     res.ErrorKind,
			"backoff":  delay.String(),
		}).Warn("retryable task failure, backing off")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			// The caller is gone; stop retrying and surface the last
			// failure as terminal.
			res = res.annotate("aborted", ctx.Err().Error())
			break loop
		}
	}

	res = res.annotate("attempts", attempt-ec.Attempt).
		annotate("duration_ms", time.Since(started).Milliseconds())
	rt.invokeAfter(d, ec.WithAttempt(attempt-1), res)
	return res
}

// attempt runs a single execution under its own span and deadline.
func (rt *Runtime) attempt(ctx context.Context, d Descriptor, ec ExecutionContext, input Input, pol Policy) Result {
	name := d.Task.Name()
	attrs := []attribute.KeyValue{
		attribute.String("task.id", ec.TaskID),
		attribute.String("trace.id", ec.TraceID),
		attribute.String("actor.id", ec.ActorID),
		attribute.Int("task.attempt", ec.Attempt),
	}
	if ec.DocumentID != "" {
		attrs = append(attrs, attribute.String("document.id", ec.DocumentID))
	}
	ctx, span := rt.tracer.Start(ctx, "task."+name, trace.WithAttributes(attrs...))
	defer span.End()

	execCtx, cancel := context.WithTimeout(ctx, pol.timeout())
	defer cancel()
	deadline, _ := execCtx.Deadline()
	ec.Deadline = deadline

	rt.invokeBefore(d, ec)

	resCh := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- Failure(KindUnknown, fmt.Sprintf("task %s panicked: %v", name, r))
			}
		}()
		resCh <- d.Task.Execute(execCtx, ec, input)
	}()

	var res Result
	select {
	case res = <-resCh:
	case <-execCtx.Done():
		// The attempt is abandoned; execCtx cancellation tells the task
		// goroutine to release whatever it acquired on its way out.
		res = Failure(KindTimeout, fmt.Sprintf("task %s exceeded %s deadline", name, pol.timeout()))
	}

	if res.Failed() {
		span.SetStatus(codes.Error, string(res.ErrorKind))
		span.SetAttributes(attribute.String("task.error_kind", string(res.ErrorKind)))
	} else {
		span.SetStatus(codes.Ok, res.Status.String())
	}
	return res
}

func (rt *Runtime) invokeBefore(d Descriptor, ec ExecutionContext) {
	if d.Before == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			rt.logger.WithFields(log.Fields{
				"task":     d.Task.Name(),
				"trace_id": ec.TraceID,
			}).Warnf("before hook panicked: %v", r)
		}
	}()
	d.Before(ec)
}

func (rt *Runtime) invokeAfter(d Descriptor, ec ExecutionContext, res Result) {
	if d.After == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			rt.logger.WithFields(log.Fields{
				"task":     d.Task.Name(),
				"trace_id": ec.TraceID,
			}).Warnf("after hook panicked: %v", r)
		}
	}()
	d.After(ec, res)
}
