package app

import "time"

// Operation tracks one CLI command run. Its ID tags every log line the run
// writes so a single invocation can be picked out of mlib.log.
type Operation struct {
	ID      string
	Name    string
	Status  string // "success" or "error"
	Started time.Time
}

// NewOperation creates an operation that started at now.
func NewOperation(name string, now time.Time) *Operation {
	return &Operation{
		ID:      now.UTC().Format("20060102T150405Z"),
		Name:    name,
		Status:  "success",
		Started: now,
	}
}

// Fail marks the operation as failed. A nil err leaves it untouched.
func (op *Operation) Fail(err error) {
	if err != nil {
		op.Status = "error"
	}
}

// Elapsed returns the time since the operation started.
func (op *Operation) Elapsed(now time.Time) time.Duration {
	return now.Sub(op.Started)
}
