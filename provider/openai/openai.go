// Package openai implements the Provider adapter for OpenAI's Responses
// API: request translation, the streaming HTTP call, and the
// response.* SSE dialect normalizer.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/llmclient/llmclient/llmerr"
	"github.com/llmclient/llmclient/llmtypes"
	"github.com/llmclient/llmclient/response"
	"github.com/llmclient/llmclient/sse"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Provider implements provider.Provider for OpenAI's Responses API.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New constructs a Provider. client must be non-nil; callers share one
// *http.Client across providers (see internal/httpclient).
func New(apiKey, baseURL string, client *http.Client) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{apiKey: apiKey, baseURL: baseURL, client: client}
}

// Name returns "openai".
func (p *Provider) Name() string { return "openai" }

// Endpoint returns the full Responses API URL this provider posts to.
func (p *Provider) Endpoint() string {
	return p.baseURL + "/responses"
}

// --- outgoing wire types -----------------------------------------------

type outgoingRequest struct {
	Model             string         `json:"model"`
	Input             []inputMessage `json:"input"`
	Temperature       *float64       `json:"temperature,omitempty"`
	MaxOutputTokens   *int           `json:"max_output_tokens,omitempty"`
	TopP              *float64       `json:"top_p,omitempty"`
	Tools             []outgoingTool `json:"tools,omitempty"`
	ParallelToolCalls bool           `json:"parallel_tool_calls"`
	Store             bool           `json:"store"`
	Stream            bool           `json:"stream"`
}

// inputMessage is a tagged union over the three item shapes the
// Responses API accepts in its "input" array: type:"message",
// type:"function_call", type:"function_call_output".
type inputMessage struct {
	Type      string `json:"type"`
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`
}

type outgoingTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// BuildRequest translates req into the Responses API wire shape.
// System messages are transmitted in-band as input items, not as a
// top-level instructions field; store is always false;
// parallel_tool_calls is always true; stream is always true.
func BuildRequest(req *llmtypes.LLMRequest) *outgoingRequest {
	out := &outgoingRequest{
		Model:             req.Model,
		Temperature:       req.Temperature,
		MaxOutputTokens:   req.MaxTokens,
		TopP:              req.TopP,
		ParallelToolCalls: true,
		Store:             false,
		Stream:            true,
	}
	for _, item := range req.Input {
		out.Input = append(out.Input, convertInputItem(item))
	}
	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, outgoingTool{
			Type:        "function",
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	return out
}

func convertInputItem(item llmtypes.InputItem) inputMessage {
	switch item.Kind {
	case llmtypes.InputItemFunctionCall:
		return inputMessage{
			Type:      "function_call",
			CallID:    item.FunctionCall.CallID,
			Name:      item.FunctionCall.Name,
			Arguments: item.FunctionCall.Arguments,
		}
	case llmtypes.InputItemFunctionCallOutput:
		return inputMessage{
			Type:   "function_call_output",
			CallID: item.CallID,
			Output: item.OutputText,
		}
	default:
		return inputMessage{
			Type:    "message",
			Role:    item.Message.Role.String(),
			Content: item.Message.Content,
		}
	}
}

// --- incoming wire types -------------------------------------------------

type incomingEvent struct {
	Type     string          `json:"type"`
	Delta    string          `json:"delta"`
	Item     *incomingItem   `json:"item"`
	Response *incomingResult `json:"response"`
}

type incomingItem struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type incomingResult struct {
	Output []incomingItem `json:"output"`
	Usage  incomingUsage  `json:"usage"`
}

type incomingUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	InputTokensDetails struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"input_tokens_details"`
}

// Normalizer is the single-owner state machine for one response's SSE
// events. Not safe for concurrent use.
type Normalizer struct {
	// completedCallIDs tracks call_ids already emitted via
	// response.output_item.done, so a repeated done event for the same
	// call (OpenAI has been observed to resend one on reconnect) never
	// emits a second FunctionCallComplete for it.
	completedCallIDs map[string]bool
}

// NewNormalizer returns a fresh Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{completedCallIDs: make(map[string]bool)}
}

// Normalize converts one SSE event's data payload into zero or more
// canonical StreamEvents. A data payload of "[DONE]" returns no events;
// callers should stop reading afterward.
func (n *Normalizer) Normalize(ev sse.Event) ([]llmtypes.StreamEvent, error) {
	if ev.Data == "[DONE]" {
		return nil, nil
	}

	var wire incomingEvent
	if err := json.Unmarshal([]byte(ev.Data), &wire); err != nil {
		return nil, nil // unparseable frames (keep-alives, comments) are ignored
	}

	switch wire.Type {
	case "response.output_item.added":
		if wire.Item == nil {
			return nil, nil
		}
		switch wire.Item.Type {
		case "function_call":
			name := wire.Item.Name
			if name == "" {
				name = "unknown"
			}
			return []llmtypes.StreamEvent{llmtypes.OutputItemAddedFunctionCall(name, wire.Item.ID)}, nil
		case "message":
			return []llmtypes.StreamEvent{llmtypes.OutputItemAddedText()}, nil
		default:
			return nil, nil
		}

	case "response.output_text.delta":
		if wire.Delta == "" {
			return nil, nil
		}
		return []llmtypes.StreamEvent{llmtypes.ContentDelta(wire.Delta)}, nil

	case "response.output_item.done":
		if wire.Item == nil || wire.Item.Type != "function_call" {
			return nil, nil
		}
		if wire.Item.Name == "" || wire.Item.Arguments == "" {
			return nil, nil
		}
		callID := wire.Item.CallID
		if callID == "" {
			callID = wire.Item.ID
		}
		if n.completedCallIDs[callID] {
			return nil, nil
		}
		n.completedCallIDs[callID] = true
		return []llmtypes.StreamEvent{llmtypes.FunctionCallComplete(llmtypes.FunctionCall{
			ID:        wire.Item.ID,
			CallID:    callID,
			Name:      wire.Item.Name,
			Arguments: wire.Item.Arguments,
		})}, nil

	case "response.completed":
		if wire.Response == nil {
			return []llmtypes.StreamEvent{llmtypes.Done(llmtypes.FinishStop, llmtypes.Usage{})}, nil
		}
		finish := llmtypes.FinishStop
		for _, item := range wire.Response.Output {
			if item.Type == "function_call" {
				finish = llmtypes.FinishToolCalls
				break
			}
		}
		usage := llmtypes.Usage{
			InputTokens:  wire.Response.Usage.InputTokens,
			OutputTokens: wire.Response.Usage.OutputTokens,
			CachedTokens: wire.Response.Usage.InputTokensDetails.CachedTokens,
		}
		return []llmtypes.StreamEvent{llmtypes.Done(finish, usage)}, nil

	default:
		return nil, nil
	}
}

// --- HTTP transport -------------------------------------------------------

// Generate sends req to the Responses API and returns a Response wrapping
// the normalized canonical event stream.
func (p *Provider) Generate(ctx context.Context, req *llmtypes.LLMRequest) (*response.Response, error) {
	wireReq := BuildRequest(req)
	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, llmerr.Normalizer("openai", fmt.Sprintf("marshal request: %v", err))
	}

	ctx, cancel := context.WithCancel(ctx)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint(), bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, llmerr.Transport("openai", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		cancel()
		return nil, llmerr.Transport("openai", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		defer cancel()
		b, _ := io.ReadAll(httpResp.Body)
		isRateLimit := httpResp.StatusCode == http.StatusTooManyRequests
		if httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden {
			return nil, llmerr.Auth("openai", "request rejected", llmerr.ProviderAPI("openai", httpResp.StatusCode, string(b), false))
		}
		return nil, llmerr.ProviderAPI("openai", httpResp.StatusCode, string(b), isRateLimit)
	}

	ch := make(chan response.StreamItem)
	go pump(ctx, httpResp.Body, ch)
	return response.New(ch, cancel), nil
}

func pump(ctx context.Context, body io.ReadCloser, ch chan<- response.StreamItem) {
	defer close(ch)
	defer body.Close()

	framer := sse.NewFramer()
	normalizer := NewNormalizer()
	buf := make([]byte, 32*1024)
	doneEmitted := false

	emit := func(ev llmtypes.StreamEvent) bool {
		if ev.Type == llmtypes.EventDone {
			doneEmitted = true
		}
		select {
		case ch <- response.StreamItem{Event: ev}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			events, err := framer.Feed(buf[:n])
			if err != nil {
				emit(llmtypes.StreamError(err))
				return
			}
			for _, raw := range events {
				canonical, err := normalizer.Normalize(raw)
				if err != nil {
					emit(llmtypes.StreamError(err))
					return
				}
				for _, ev := range canonical {
					if !emit(ev) {
						return
					}
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				if !doneEmitted {
					if _, closeErr := framer.Close(); closeErr != nil {
						emit(llmtypes.StreamError(closeErr))
						return
					}
					emit(llmtypes.Done(llmtypes.FinishStop, llmtypes.Usage{}))
				}
				return
			}
			emit(llmtypes.StreamError(llmerr.Transport("openai", readErr)))
			return
		}
	}
}
