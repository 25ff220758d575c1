package testutil

import (
	"fmt"
	"sync"
)

// Call is one recorded callback invocation.
type Call struct {
	Kind   string // "scalar" or "big"
	Handle int
	Value  float64
}

func (c Call) String() string {
	if c.Kind == "big" {
		return fmt.Sprintf("big:%d", c.Handle)
	}
	return fmt.Sprintf("scalar:%d=%g", c.Handle, c.Value)
}

// Recorder logs callback invocations in the order they happen. Its Scalar
// and Big methods match the registry's callback function types.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) Scalar(h int, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Kind: "scalar", Handle: h, Value: v})
}

func (r *Recorder) Big(h int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Kind: "big", Handle: h})
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Strings returns the recorded calls in their String form.
func (r *Recorder) Strings() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Reset forgets every recorded call.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
