// Package metrics translates task lifecycle events into StatsD emissions.
package metrics

import (
	"time"

	apperrors "github.com/commercekit/orderworker/internal/errors"
	"github.com/commercekit/orderworker/internal/observability/statsd"
)

// Transition names the lifecycle step a task just went through.
type Transition string

const (
	TransitionDequeued   Transition = "dequeued"
	TransitionStarted    Transition = "started"
	TransitionCompleted  Transition = "completed"
	TransitionFailed     Transition = "failed"
	TransitionRetried    Transition = "retried"
	TransitionDeadLetter Transition = "dead_letter"
	TransitionTimedOut   Transition = "timed_out"
)

// TaskEvent carries everything needed to emit lifecycle metrics for one task.
type TaskEvent struct {
	Task       string
	Transition Transition
	Attempt    int
	Duration   time.Duration
	Err        error
}

// Recorder emits task lifecycle counters and timings to a StatsD sink.
type Recorder struct {
	sink statsd.Sink
}

// NewRecorder wraps the given sink. A nil sink yields a no-op recorder.
func NewRecorder(sink statsd.Sink) *Recorder {
	return &Recorder{sink: sink}
}

// TaskLifecycle emits one counter per lifecycle transition, tagged with the
// task name and, for failures, the error class. Terminal transitions with a
// non-zero duration also emit a timing.
func (r *Recorder) TaskLifecycle(ev TaskEvent) {
	if r == nil || r.sink == nil {
		return
	}

	tags := map[string]string{
		"task": ev.Task,
	}
	if ev.Err != nil {
		tags["error_class"] = string(apperrors.CodeOf(ev.Err))
	}

	r.sink.Count("tasks."+string(ev.Transition), 1, tags)

	if ev.Duration > 0 {
		switch ev.Transition {
		case TransitionCompleted, TransitionFailed, TransitionTimedOut:
			r.sink.Timing("tasks.duration", ev.Duration, tags)
		}
	}
}

// QueueDepth reports the current length of the pending stream.
func (r *Recorder) QueueDepth(stream string, depth int64) {
	if r == nil || r.sink == nil {
		return
	}
	r.sink.Gauge("queue.depth", float64(depth), map[string]string{"stream": stream})
}

// WorkersActive reports how many workers are currently executing tasks.
func (r *Recorder) WorkersActive(n int64) {
	if r == nil || r.sink == nil {
		return
	}
	r.sink.Gauge("workers.active", float64(n), nil)
}
