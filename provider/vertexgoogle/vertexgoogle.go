// Package vertexgoogle implements the Provider adapter for Gemini models
// served through Vertex AI: request translation, the streaming HTTP call,
// and the GenerateContentResponse SSE dialect normalizer.
package vertexgoogle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/llmclient/llmclient/internal/gauth"
	"github.com/llmclient/llmclient/llmerr"
	"github.com/llmclient/llmclient/llmtypes"
	"github.com/llmclient/llmclient/response"
	"github.com/llmclient/llmclient/sse"
)

// Provider implements provider.Provider for Gemini-on-Vertex.
type Provider struct {
	projectID string
	location  string
	baseURL   string // override for tests; empty uses the public Vertex host
	tokens    gauth.TokenSource
	client    *http.Client
}

// New constructs a Provider. tokens supplies the bearer token for every
// request (gauth.Static for a pre-minted token, gauth.Ambient for
// GOOGLE_APPLICATION_CREDENTIALS). baseURL overrides the public Vertex
// host, for tests; pass "" in production.
func New(projectID, location, baseURL string, tokens gauth.TokenSource, client *http.Client) *Provider {
	return &Provider{projectID: projectID, location: location, baseURL: baseURL, tokens: tokens, client: client}
}

// Name returns "google".
func (p *Provider) Name() string { return "google" }

// Endpoint returns the streamGenerateContent URL for model.
func (p *Provider) Endpoint(model string) string {
	host := p.baseURL
	if host == "" {
		host = fmt.Sprintf("https://%s-aiplatform.googleapis.com", p.location)
	}
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:streamGenerateContent?alt=sse",
		host, p.projectID, p.location, model)
}

// --- outgoing wire types -----------------------------------------------

type outgoingRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"system_instruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	Tools             []tool            `json:"tools,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *functionCallPart `json:"functionCall,omitempty"`
	FunctionResponse *functionRespPart `json:"functionResponse,omitempty"`
}

type functionCallPart struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type functionRespPart struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
}

type tool struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// BuildRequest translates req into Gemini's content-array wire shape.
// System turns become a top-level system_instruction (role=user content);
// user turns map to role=user, assistant turns to role=model. A
// FunctionCall item is appended to the most recent model content
// (creating one if absent); a FunctionCallOutput is appended to the most
// recent user content that already holds function responses (coalesced),
// with its function name recovered by positional matching against prior
// model function calls — a known limitation when calls/responses
// interleave out of order.
func BuildRequest(req *llmtypes.LLMRequest) (*outgoingRequest, error) {
	out := &outgoingRequest{}

	for _, item := range req.Input {
		switch item.Kind {
		case llmtypes.InputItemMessage:
			switch item.Message.Role {
			case llmtypes.RoleSystem:
				out.SystemInstruction = &content{Role: "user", Parts: []part{{Text: item.Message.Content}}}
			case llmtypes.RoleUser:
				out.Contents = append(out.Contents, content{Role: "user", Parts: []part{{Text: item.Message.Content}}})
			case llmtypes.RoleAssistant:
				out.Contents = append(out.Contents, content{Role: "model", Parts: []part{{Text: item.Message.Content}}})
			}

		case llmtypes.InputItemFunctionCall:
			var args map[string]any
			if item.FunctionCall.Arguments != "" {
				if err := json.Unmarshal([]byte(item.FunctionCall.Arguments), &args); err != nil {
					return nil, llmerr.Normalizer("google", fmt.Sprintf("invalid function arguments: %v", err))
				}
			}
			fcPart := part{FunctionCall: &functionCallPart{Name: item.FunctionCall.Name, Args: args}}
			if n := len(out.Contents); n > 0 && out.Contents[n-1].Role == "model" {
				out.Contents[n-1].Parts = append(out.Contents[n-1].Parts, fcPart)
			} else {
				out.Contents = append(out.Contents, content{Role: "model", Parts: []part{fcPart}})
			}

		case llmtypes.InputItemFunctionCallOutput:
			name := functionNameForCallPosition(out.Contents)
			respPart := part{FunctionResponse: &functionRespPart{Name: name, Response: map[string]any{"result": item.OutputText}}}
			if n := len(out.Contents); n > 0 && out.Contents[n-1].Role == "user" && hasFunctionResponse(out.Contents[n-1]) {
				out.Contents[n-1].Parts = append(out.Contents[n-1].Parts, respPart)
			} else {
				out.Contents = append(out.Contents, content{Role: "user", Parts: []part{respPart}})
			}
		}
	}

	out.GenerationConfig = &generationConfig{
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
		TopP:            req.TopP,
	}
	if len(req.Tools) > 0 {
		decls := make([]functionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, functionDeclaration{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
		}
		out.Tools = []tool{{FunctionDeclarations: decls}}
	}
	return out, nil
}

func hasFunctionResponse(c content) bool {
	for _, p := range c.Parts {
		if p.FunctionResponse != nil {
			return true
		}
	}
	return false
}

// functionNameForCallPosition recovers the function name for the next
// FunctionCallOutput by position: the N-th function response in history
// corresponds to the N-th function call already present. Call IDs are not
// consulted, so a response supplied in a different order from its call
// gets the name of whichever call sits at its position.
func functionNameForCallPosition(contents []content) string {
	responseCount := 0
	for _, c := range contents {
		if c.Role != "user" {
			continue
		}
		for _, p := range c.Parts {
			if p.FunctionResponse != nil {
				responseCount++
			}
		}
	}
	callCount := 0
	for _, c := range contents {
		if c.Role != "model" {
			continue
		}
		for _, p := range c.Parts {
			if p.FunctionCall != nil {
				if callCount == responseCount {
					return p.FunctionCall.Name
				}
				callCount++
			}
		}
	}
	return "unknown"
}

// --- incoming wire types -------------------------------------------------

type incomingResponse struct {
	Candidates    []incomingCandidate `json:"candidates"`
	UsageMetadata *incomingUsage      `json:"usageMetadata"`
}

type incomingCandidate struct {
	Content      incomingContent `json:"content"`
	FinishReason string          `json:"finishReason"`
}

type incomingContent struct {
	Parts []incomingPart `json:"parts"`
}

type incomingPart struct {
	Text             string                   `json:"text"`
	FunctionCall     *incomingFunctionCall    `json:"functionCall"`
	FunctionResponse *incomingFunctionRespRaw `json:"functionResponse"`
}

type incomingFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type incomingFunctionRespRaw struct {
	Name string `json:"name"`
}

type incomingUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

// Normalizer is the single-owner state machine for one response's SSE
// events. Not safe for concurrent use.
type Normalizer struct {
	hasTextOutput bool
	// sawFunctionCall turns a STOP finish into ToolCalls once the
	// response has carried at least one functionCall part.
	sawFunctionCall bool
	// callIDs maps a function-call fingerprint to the synthetic ID
	// minted for it on first sight, so repeated chunks carrying the
	// same call reuse one identity instead of reannouncing it.
	callIDs map[string]string
}

// NewNormalizer returns a fresh Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{callIDs: make(map[string]string)}
}

// fingerprint returns the deterministic dedup key for a functionCall part:
// name + NUL + canonical (alphabetically-keyed) re-marshal of its args, so
// repeated chunks carrying the same call announce only once.
func fingerprint(name string, args map[string]any) (string, error) {
	canonical, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return name + "\x00" + string(canonical), nil
}

func mapFinishReason(s string) llmtypes.FinishReason {
	switch s {
	case "STOP":
		return llmtypes.FinishStop
	case "MAX_TOKENS":
		return llmtypes.FinishLength
	case "SAFETY":
		return llmtypes.FinishContentFilter
	default:
		return llmtypes.FinishStop
	}
}

// Normalize converts one SSE event's data payload into zero or more
// canonical StreamEvents. The [DONE] sentinel is ignored, matching
// Gemini's convention of using an empty candidates list plus usageMetadata
// (not a textual sentinel) to signal the end.
func (n *Normalizer) Normalize(ev sse.Event) ([]llmtypes.StreamEvent, error) {
	if ev.Data == "" || ev.Data == "[DONE]" {
		return nil, nil
	}

	var wire incomingResponse
	if err := json.Unmarshal([]byte(ev.Data), &wire); err != nil {
		return nil, nil
	}

	var events []llmtypes.StreamEvent

	if len(wire.Candidates) == 0 && wire.UsageMetadata != nil {
		return []llmtypes.StreamEvent{llmtypes.Done(llmtypes.FinishStop, usageFrom(wire.UsageMetadata))}, nil
	}

	for _, cand := range wire.Candidates {
		for _, p := range cand.Content.Parts {
			switch {
			case p.FunctionCall != nil:
				fp, err := fingerprint(p.FunctionCall.Name, p.FunctionCall.Args)
				if err != nil {
					return nil, llmerr.Normalizer("google", fmt.Sprintf("serialize function call args: %v", err))
				}
				argsJSON, err := json.Marshal(p.FunctionCall.Args)
				if err != nil {
					return nil, llmerr.Normalizer("google", fmt.Sprintf("serialize function call args: %v", err))
				}
				n.sawFunctionCall = true
				fcID, seen := n.callIDs[fp]
				if !seen {
					fcID = uuid.NewString()
					n.callIDs[fp] = fcID
					events = append(events, llmtypes.OutputItemAddedFunctionCall(p.FunctionCall.Name, fcID))
				}
				events = append(events, llmtypes.FunctionCallComplete(llmtypes.FunctionCall{
					ID:        fcID,
					CallID:    fcID,
					Name:      p.FunctionCall.Name,
					Arguments: string(argsJSON),
				}))

			case p.FunctionResponse != nil:
				// Outputs come from the caller, not the model; ignore.

			default:
				if !n.hasTextOutput {
					events = append(events, llmtypes.OutputItemAddedText())
					n.hasTextOutput = true
				}
				if p.Text != "" {
					events = append(events, llmtypes.ContentDelta(p.Text))
				}
			}
		}

		if cand.FinishReason != "" {
			finish := mapFinishReason(cand.FinishReason)
			if finish == llmtypes.FinishStop && n.sawFunctionCall {
				finish = llmtypes.FinishToolCalls
			}
			events = append(events, llmtypes.Done(finish, usageFrom(wire.UsageMetadata)))
		}
	}

	return events, nil
}

func usageFrom(u *incomingUsage) llmtypes.Usage {
	if u == nil {
		return llmtypes.Usage{}
	}
	return llmtypes.Usage{InputTokens: u.PromptTokenCount, OutputTokens: u.CandidatesTokenCount}
}

// --- HTTP transport -------------------------------------------------------

// Generate sends req to the streamGenerateContent endpoint and returns a
// Response wrapping the normalized canonical event stream.
func (p *Provider) Generate(ctx context.Context, req *llmtypes.LLMRequest) (*response.Response, error) {
	wireReq, err := BuildRequest(req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, llmerr.Normalizer("google", fmt.Sprintf("marshal request: %v", err))
	}

	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint(req.Model), bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, llmerr.Transport("google", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		cancel()
		return nil, llmerr.Transport("google", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		defer cancel()
		b, _ := io.ReadAll(httpResp.Body)
		isRateLimit := httpResp.StatusCode == http.StatusTooManyRequests
		if httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden {
			return nil, llmerr.Auth("google", "request rejected", llmerr.ProviderAPI("google", httpResp.StatusCode, string(b), false))
		}
		return nil, llmerr.ProviderAPI("google", httpResp.StatusCode, string(b), isRateLimit)
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
			emit(llmtypes.StreamError(llmerr.Transport("google", readErr)))
			return
		}
	}
}
