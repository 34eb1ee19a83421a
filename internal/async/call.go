// Package async tracks the lifecycle of one component's backend call: an
// in-flight flag, the last error and the last successful result.
package async

import (
	"errors"
	"sync"
)

// ErrInFlight is returned when a call is started while another is pending.
var ErrInFlight = errors.New("a request is already in progress")

type Status string

const (
	Idle      Status = "idle"
	Loading   Status = "loading"
	Succeeded Status = "succeeded"
	Failed    Status = "failed"
)

// Snapshot is a copy of a call's state.
type Snapshot[T any] struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   T      `json:"data"`
	err    error
}

// Err returns the failure behind Error, for errors.Is checks.
func (s Snapshot[T]) Err() error { return s.err }

// Pending reports whether a call is in flight.
func (s Snapshot[T]) Pending() bool { return s.Status == Loading }

// Call owns the {status, error, data} record for one component instance.
// The zero value is ready to use.
type Call[T any] struct {
	mu      sync.Mutex
	pending bool
	status  Status
	err     error
	data    T
}

// Begin marks a call in flight and clears the previous error. It returns
// ErrInFlight, leaving the record untouched, if a call is already pending.
func (c *Call[T]) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return ErrInFlight
	}
	c.pending = true
	c.status = Loading
	c.err = nil
	return nil
}

// Succeed settles the pending call with data.
func (c *Call[T]) Succeed(data T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	c.status = Succeeded
	c.err = nil
	c.data = data
}

// Fail settles the pending call with err. Data from the last success is kept.
func (c *Call[T]) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	c.status = Failed
	c.err = err
}

// Dismiss clears a surfaced error.
func (c *Call[T]) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = nil
	if c.status == Failed {
		c.status = Idle
	}
}

// Update replaces the data without changing status or error.
func (c *Call[T]) Update(fn func(T) T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = fn(c.data)
}

func (c *Call[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot[T]{Status: c.status, Data: c.data, err: c.err}
	if s.Status == "" {
		s.Status = Idle
	}
	if c.err != nil {
		s.Error = c.err.Error()
	}
	return s
}

// WithError returns a copy of s reporting err as a failure.
func (s Snapshot[T]) WithError(err error) Snapshot[T] {
	s.Status = Failed
	s.err = err
	s.Error = err.Error()
	return s
}
