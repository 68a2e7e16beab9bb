// Package stream writes the canonical StreamEvent sequence back to an
// HTTP client as Server-Sent Events, the reverse direction of the
// sse.Framer decoding a provider's wire stream.
package stream

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/llmclient/llmclient/llmtypes"
	"github.com/llmclient/llmclient/response"
)

// wireEvent is the JSON shape written for each SSE data line. Only the
// fields relevant to Type are populated; omitempty keeps each event
// minimal, mirroring the sparse-payload shape of llmtypes.StreamEvent
// itself.
type wireEvent struct {
	Type         string     `json:"type"`
	Delta        string     `json:"delta,omitempty"`
	Item         *wireItem  `json:"item,omitempty"`
	Call         *wireCall  `json:"call,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        *wireUsage `json:"usage,omitempty"`
	Error        string     `json:"error,omitempty"`
}

type wireItem struct {
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`
}

type wireCall struct {
	ID        string `json:"id,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	CachedTokens int `json:"cached_tokens,omitempty"`
}

func eventTypeName(t llmtypes.StreamEventType) string {
	switch t {
	case llmtypes.EventContentDelta:
		return "content_delta"
	case llmtypes.EventOutputItemAdded:
		return "output_item_added"
	case llmtypes.EventFunctionCallComplete:
		return "function_call_complete"
	case llmtypes.EventDone:
		return "done"
	case llmtypes.EventError:
		return "error"
	default:
		return "unknown"
	}
}

func itemKindName(k llmtypes.OutputItemInfoKind) string {
	if k == llmtypes.OutputItemInfoFunctionCall {
		return "function_call"
	}
	return "text"
}

func toWire(ev llmtypes.StreamEvent) wireEvent {
	out := wireEvent{Type: eventTypeName(ev.Type)}
	switch ev.Type {
	case llmtypes.EventContentDelta:
		out.Delta = ev.Delta
	case llmtypes.EventOutputItemAdded:
		out.Item = &wireItem{Kind: itemKindName(ev.Item.Kind), Name: ev.Item.Name, ID: ev.Item.ID}
	case llmtypes.EventFunctionCallComplete:
		out.Call = &wireCall{ID: ev.Call.ID, CallID: ev.Call.CallID, Name: ev.Call.Name, Arguments: ev.Call.Arguments}
	case llmtypes.EventDone:
		out.FinishReason = ev.FinishReason.String()
		out.Usage = &wireUsage{InputTokens: ev.Usage.InputTokens, OutputTokens: ev.Usage.OutputTokens, CachedTokens: ev.Usage.CachedTokens}
	case llmtypes.EventError:
		if ev.Err != nil {
			out.Error = ev.Err.Error()
		}
	}
	return out
}

// Write reads StreamItems from items and writes them to w as
// Server-Sent Events, one "data: {json}\n\n" line per canonical
// StreamEvent, followed by a trailing "data: [DONE]\n\n" sentinel once
// the channel closes. A mid-stream StreamItem.Err aborts the write
// without a [DONE] sentinel, since the client can detect its absence.
func Write(w http.ResponseWriter, items <-chan response.StreamItem) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("response writer does not support flushing (http.Flusher)")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for item := range items {
		if item.Err != nil {
			log.Printf("stream error: %v", item.Err)
			return item.Err
		}

		jsonBytes, err := json.Marshal(toWire(item.Event))
		if err != nil {
			return fmt.Errorf("marshaling SSE event: %w", err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonBytes); err != nil {
			return fmt.Errorf("writing SSE event: %w", err)
		}
		flusher.Flush()
	}

	if _, err := fmt.Fprintf(w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("writing SSE done marker: %w", err)
	}
	flusher.Flush()

	return nil
}
