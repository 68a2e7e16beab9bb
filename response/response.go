// Package response implements the single-use Response façade returned by
// every provider's Generate call: one canonical event stream viewable as
// a raw stream, a buffered CompleteResponse, or aggregate text.
package response

import (
	"context"
	"sync"

	"github.com/llmclient/llmclient/accumulator"
	"github.com/llmclient/llmclient/llmtypes"
)

// StreamItem wraps one canonical event alongside a terminal error, the
// way the teacher's StreamChunk folds its own error into the chunk
// instead of using a second error channel.
type StreamItem struct {
	Event llmtypes.StreamEvent
	Err   error
}

// Response is single-use: exactly one of Stream, Buffer, or Text may be
// called on it, and only once.
type Response struct {
	ch     <-chan StreamItem
	cancel context.CancelFunc

	mu    sync.Mutex
	taken bool
}

// New wraps a raw event channel and the cancel function that releases its
// underlying HTTP body/auth state, into a Response.
func New(ch <-chan StreamItem, cancel context.CancelFunc) *Response {
	return &Response{ch: ch, cancel: cancel}
}

func (r *Response) take() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.taken {
		return false
	}
	r.taken = true
	return true
}

// Stream hands ownership of the event channel to the caller. The caller
// MUST drain it to completion or call Cancel to release resources early.
func (r *Response) Stream() <-chan StreamItem {
	if !r.take() {
		panic("response: Stream/Buffer/Text called more than once")
	}
	return r.ch
}

// Cancel releases the HTTP body and any scoped auth state without
// draining the stream. Safe to call whether or not Stream/Buffer/Text
// was ever invoked; subsequent calls are no-ops.
func (r *Response) Cancel() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Buffer drives an internal accumulator to completion and returns the
// CompleteResponse. No partial CompleteResponse is ever returned: a
// terminal error event (or upstream cancellation) yields a nil response
// and non-nil error instead.
func (r *Response) Buffer() (*llmtypes.CompleteResponse, error) {
	if !r.take() {
		panic("response: Stream/Buffer/Text called more than once")
	}
	acc := accumulator.New()
	for item := range r.ch {
		if item.Err != nil {
			r.Cancel()
			return nil, item.Err
		}
		acc.ProcessEvent(item.Event)
	}
	return acc.Finalize()
}

// Text calls Buffer and returns its aggregate text content.
func (r *Response) Text() (string, error) {
	resp, err := r.Buffer()
	if err != nil {
		return "", err
	}
	return resp.Content(), nil
}
