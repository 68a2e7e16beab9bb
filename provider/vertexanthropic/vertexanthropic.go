// Package vertexanthropic implements the Provider adapter for Claude
// models served through Vertex AI: request translation, the streaming
// HTTP call, and the message/content-block SSE dialect normalizer.
package vertexanthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/llmclient/llmclient/internal/gauth"
	"github.com/llmclient/llmclient/llmerr"
	"github.com/llmclient/llmclient/llmtypes"
	"github.com/llmclient/llmclient/response"
	"github.com/llmclient/llmclient/sse"
)

const anthropicVersion = "vertex-2023-10-16"

const defaultMaxTokens = 1024

// Provider implements provider.Provider for Claude-on-Vertex.
type Provider struct {
	projectID string
	location  string
	baseURL   string // override for tests; empty uses the public Vertex host
	tokens    gauth.TokenSource
	client    *http.Client
}

// New constructs a Provider. tokens supplies the bearer token for every
// request; baseURL overrides the public Vertex host for tests.
func New(projectID, location, baseURL string, tokens gauth.TokenSource, client *http.Client) *Provider {
	return &Provider{projectID: projectID, location: location, baseURL: baseURL, tokens: tokens, client: client}
}

// Name returns "anthropic".
func (p *Provider) Name() string { return "anthropic" }

// Endpoint returns the streamRawPredict URL for model.
func (p *Provider) Endpoint(model string) string {
	host := p.baseURL
	if host == "" {
		host = fmt.Sprintf("https://%s-aiplatform.googleapis.com", p.location)
	}
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/anthropic/models/%s:streamRawPredict?alt=sse",
		host, p.projectID, p.location, model)
}

// --- outgoing wire types -----------------------------------------------

type outgoingRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	Messages         []message `json:"messages"`
	System           string    `json:"system,omitempty"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      *float64  `json:"temperature,omitempty"`
	TopP             *float64  `json:"top_p,omitempty"`
	Tools            []tool    `json:"tools,omitempty"`
	Stream           bool      `json:"stream"`
}

// message's Content is either a plain string (text-only turn) or a block
// array (tool_use/tool_result present). We always marshal the block-array
// shape once any block has been attached, and the plain-string shape
// otherwise, matching the teacher's pattern of promoting to a structured
// shape only when needed.
type message struct {
	Role   string  `json:"role"`
	Text   string  `json:"-"`
	Blocks []block `json:"-"`
}

func (m message) MarshalJSON() ([]byte, error) {
	if m.Blocks != nil {
		return json.Marshal(struct {
			Role    string  `json:"role"`
			Content []block `json:"content"`
		}{Role: m.Role, Content: m.Blocks})
	}
	return json.Marshal(struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{Role: m.Role, Content: m.Text})
}

type block struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// BuildRequest translates req into Anthropic's messages wire shape.
// System text becomes the top-level system field. A FunctionCall item is
// attached as a tool_use block to the most recent assistant message
// (promoting its content to a block array if needed), creating a new
// assistant message if none exists. A FunctionCallOutput becomes a
// tool_result block attached to the most recent user message that
// already holds tool results (coalesced), else a new user message.
func BuildRequest(req *llmtypes.LLMRequest) (*outgoingRequest, error) {
	out := &outgoingRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        defaultMaxTokens,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		Stream:           true,
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}

	for _, item := range req.Input {
		switch item.Kind {
		case llmtypes.InputItemMessage:
			if item.Message.Role == llmtypes.RoleSystem {
				if out.System != "" {
					out.System += "\n"
				}
				out.System += item.Message.Content
				continue
			}
			role := "user"
			if item.Message.Role == llmtypes.RoleAssistant {
				role = "assistant"
			}
			out.Messages = append(out.Messages, message{Role: role, Text: item.Message.Content})

		case llmtypes.InputItemFunctionCall:
			var input map[string]any
			if item.FunctionCall.Arguments != "" {
				if err := json.Unmarshal([]byte(item.FunctionCall.Arguments), &input); err != nil {
					return nil, llmerr.Normalizer("anthropic", fmt.Sprintf("invalid function arguments: %v", err))
				}
			}
			toolUse := block{Type: "tool_use", ID: item.FunctionCall.CallID, Name: item.FunctionCall.Name, Input: input}
			if n := len(out.Messages); n > 0 && out.Messages[n-1].Role == "assistant" {
				promoteToBlocks(&out.Messages[n-1])
				out.Messages[n-1].Blocks = append(out.Messages[n-1].Blocks, toolUse)
			} else {
				out.Messages = append(out.Messages, message{Role: "assistant", Blocks: []block{toolUse}})
			}

		case llmtypes.InputItemFunctionCallOutput:
			result := block{Type: "tool_result", ToolUseID: item.CallID, Content: item.OutputText}
			if n := len(out.Messages); n > 0 && out.Messages[n-1].Role == "user" && hasToolResult(out.Messages[n-1]) {
				out.Messages[n-1].Blocks = append(out.Messages[n-1].Blocks, result)
			} else {
				out.Messages = append(out.Messages, message{Role: "user", Blocks: []block{result}})
			}
		}
	}

	if len(req.Tools) > 0 {
		for _, t := range req.Tools {
			out.Tools = append(out.Tools, tool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
		}
	}
	return out, nil
}

func promoteToBlocks(m *message) {
	if m.Blocks != nil {
		return
	}
	if m.Text != "" {
		m.Blocks = []block{{Type: "text", Text: m.Text}}
		m.Text = ""
	}
}

func hasToolResult(m message) bool {
	for _, b := range m.Blocks {
		if b.Type == "tool_result" {
			return true
		}
	}
	return false
}

// --- incoming wire types -------------------------------------------------

type incomingEvent struct {
	Type         string           `json:"type"`
	Message      *incomingMessage `json:"message"`
	ContentBlock *incomingBlock   `json:"content_block"`
	Index        int              `json:"index"`
	Delta        *incomingDelta   `json:"delta"`
	Usage        *incomingUsage   `json:"usage"`
}

type incomingMessage struct {
	Usage incomingUsage `json:"usage"`
}

type incomingBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type incomingDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	PartialJSON string `json:"partial_json"`
	StopReason  string `json:"stop_reason"`
}

type incomingUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type inProgressCall struct {
	id              string
	name            string
	buffer          string
	hadInitialInput bool
}

// Normalizer is the single-owner state machine for one response's SSE
// events. Not safe for concurrent use.
type Normalizer struct {
	inProgress   map[int]*inProgressCall
	stopReason   string
	usage        llmtypes.Usage
	haveStopInfo bool
}

// NewNormalizer returns a fresh Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{inProgress: make(map[int]*inProgressCall)}
}

func mapStopReason(s string) llmtypes.FinishReason {
	switch s {
	case "max_tokens":
		return llmtypes.FinishLength
	case "tool_use":
		return llmtypes.FinishToolCalls
	default:
		return llmtypes.FinishStop
	}
}

// Normalize converts one SSE event's data payload into zero or more
// canonical StreamEvents.
func (n *Normalizer) Normalize(ev sse.Event) ([]llmtypes.StreamEvent, error) {
	if ev.Data == "" {
		return nil, nil
	}

	var wire incomingEvent
	if err := json.Unmarshal([]byte(ev.Data), &wire); err != nil {
		return nil, nil
	}

	switch wire.Type {
	case "message_start", "ping":
		return nil, nil

	case "content_block_start":
		if wire.ContentBlock == nil {
			return nil, nil
		}
		switch wire.ContentBlock.Type {
		case "text":
			events := []llmtypes.StreamEvent{llmtypes.OutputItemAddedText()}
			if wire.ContentBlock.Text != "" {
				events = append(events, llmtypes.ContentDelta(wire.ContentBlock.Text))
			}
			return events, nil
		case "tool_use":
			call := &inProgressCall{id: wire.ContentBlock.ID, name: wire.ContentBlock.Name}
			if isEmptyJSONInput(wire.ContentBlock.Input) {
				call.buffer, call.hadInitialInput = "", false
			} else {
				call.buffer, call.hadInitialInput = string(wire.ContentBlock.Input), true
			}
			n.inProgress[wire.Index] = call
			return []llmtypes.StreamEvent{llmtypes.OutputItemAddedFunctionCall(wire.ContentBlock.Name, wire.ContentBlock.ID)}, nil
		default:
			return nil, nil
		}

	case "content_block_delta":
		if wire.Delta == nil {
			return nil, nil
		}
		switch wire.Delta.Type {
		case "text_delta":
			if wire.Delta.Text == "" {
				return nil, nil
			}
			return []llmtypes.StreamEvent{llmtypes.ContentDelta(wire.Delta.Text)}, nil
		case "input_json_delta":
			call, ok := n.inProgress[wire.Index]
			if !ok {
				return nil, nil
			}
			if call.hadInitialInput {
				call.buffer = wire.Delta.PartialJSON
			} else {
				call.buffer += wire.Delta.PartialJSON
			}
			return nil, nil
		default:
			return nil, nil
		}

	case "content_block_stop":
		call, ok := n.inProgress[wire.Index]
		if !ok {
			return nil, nil
		}
		delete(n.inProgress, wire.Index)
		return []llmtypes.StreamEvent{llmtypes.FunctionCallComplete(llmtypes.FunctionCall{
			ID:        call.id,
			CallID:    call.id,
			Name:      call.name,
			Arguments: call.buffer,
		})}, nil

	case "message_delta":
		if wire.Delta != nil && wire.Delta.StopReason != "" {
			n.stopReason = wire.Delta.StopReason
			n.haveStopInfo = true
		}
		if wire.Usage != nil {
			n.usage.OutputTokens = wire.Usage.OutputTokens
			if wire.Usage.InputTokens > 0 {
				n.usage.InputTokens = wire.Usage.InputTokens
			}
		}
		return nil, nil

	case "message_stop":
		finish := llmtypes.FinishStop
		if n.haveStopInfo {
			finish = mapStopReason(n.stopReason)
		}
		return []llmtypes.StreamEvent{llmtypes.Done(finish, n.usage)}, nil

	default:
		return nil, nil
	}
}

func isEmptyJSONInput(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return true
	}
	if v == nil {
		return true
	}
	if m, ok := v.(map[string]any); ok {
		return len(m) == 0
	}
	return false
}

// --- HTTP transport -------------------------------------------------------

// Generate sends req to the streamRawPredict endpoint and returns a
// Response wrapping the normalized canonical event stream.
func (p *Provider) Generate(ctx context.Context, req *llmtypes.LLMRequest) (*response.Response, error) {
	wireReq, err := BuildRequest(req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, llmerr.Normalizer("anthropic", fmt.Sprintf("marshal request: %v", err))
	}

	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint(req.Model), bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, llmerr.Transport("anthropic", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		cancel()
		return nil, llmerr.Transport("anthropic", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		defer cancel()
		b, _ := io.ReadAll(httpResp.Body)
		isRateLimit := httpResp.StatusCode == http.StatusTooManyRequests
		if httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden {
			return nil, llmerr.Auth("anthropic", "request rejected", llmerr.ProviderAPI("anthropic", httpResp.StatusCode, string(b), false))
		}
		return nil, llmerr.ProviderAPI("anthropic", httpResp.StatusCode, string(b), isRateLimit)
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
			emit(llmtypes.StreamError(llmerr.Transport("anthropic", readErr)))
			return
		}
	}
}
