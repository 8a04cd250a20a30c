package tasks

import "fmt"

// TaskError wraps a task execution failure together with the outcome of the
// failure-recording write. Err is always the original task failure; when the
// jobs-table write failed too, RecordErr carries that secondary error so the
// caller can log it instead of it being silently dropped.
type TaskError struct {
	Err       error
	RecordErr error
	JobID     *int64
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	if e.RecordErr != nil {
		return fmt.Sprintf("%v (recording failure also failed: %v)", e.Err, e.RecordErr)
	}
	return e.Err.Error()
}

// Unwrap returns the original task failure.
func (e *TaskError) Unwrap() error {
	return e.Err
}
