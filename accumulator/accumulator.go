// Package accumulator folds a canonical event stream into a buffered
// llmtypes.CompleteResponse, the way the teacher's providers build up a
// full response from streamed chunks before returning it non-streaming.
package accumulator

import (
	"github.com/llmclient/llmclient/llmtypes"
)

// Accumulator is single-use: create one per response, feed it every
// event in order, then call Finalize exactly once.
type Accumulator struct {
	items        []llmtypes.OutputItem
	pendingCall  *llmtypes.OutputItemInfo
	finishReason llmtypes.FinishReason
	usage        llmtypes.Usage
	err          error
}

// New returns an empty Accumulator.
func New() *Accumulator {
	return &Accumulator{finishReason: llmtypes.FinishStop}
}

// ProcessEvent folds one canonical event into the accumulator's state. It
// never returns an error itself; an EventError event instead latches a
// terminal failure that Finalize reports.
func (a *Accumulator) ProcessEvent(ev llmtypes.StreamEvent) {
	if a.err != nil {
		return
	}
	switch ev.Type {
	case llmtypes.EventOutputItemAdded:
		if ev.Item.Kind == llmtypes.OutputItemInfoText {
			a.items = append(a.items, llmtypes.OutputItem{Kind: llmtypes.OutputItemText})
		}
		// FunctionCall announcements don't push an item yet; the item is
		// pushed on FunctionCallComplete, which carries the full call.
	case llmtypes.EventContentDelta:
		if ev.Delta == "" {
			return
		}
		if n := len(a.items); n > 0 && a.items[n-1].Kind == llmtypes.OutputItemText {
			a.items[n-1].Content += ev.Delta
		} else {
			a.items = append(a.items, llmtypes.OutputItem{Kind: llmtypes.OutputItemText, Content: ev.Delta})
		}
	case llmtypes.EventFunctionCallComplete:
		a.items = append(a.items, llmtypes.OutputItem{Kind: llmtypes.OutputItemFunctionCall, Call: ev.Call})
	case llmtypes.EventDone:
		a.finishReason = ev.FinishReason
		a.usage = ev.Usage
	case llmtypes.EventError:
		a.err = ev.Err
	}
}

// Finalize produces the CompleteResponse. If an EventError was fed in, it
// returns that error instead — no partial CompleteResponse ever escapes.
func (a *Accumulator) Finalize() (*llmtypes.CompleteResponse, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &llmtypes.CompleteResponse{
		Output:       a.items,
		FinishReason: a.finishReason,
		Usage:        a.usage,
	}, nil
}

// Drain consumes every event on ch until it closes and returns the
// finalized response.
func Drain(ch <-chan llmtypes.StreamEvent) (*llmtypes.CompleteResponse, error) {
	acc := New()
	for ev := range ch {
		acc.ProcessEvent(ev)
	}
	return acc.Finalize()
}
