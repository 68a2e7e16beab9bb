// Package llmtypes defines the canonical, provider-agnostic data model:
// the request/response shapes every adapter translates to and from, and
// the StreamEvent union that normalizers emit. Nothing in this package
// talks to the network — it's pure data plus the small invariant-bearing
// methods attached to it.
package llmtypes

// Role identifies who is speaking in a conversation turn.
type Role int

const (
	RoleSystem Role = iota
	RoleUser
	RoleAssistant
)

func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// Message is one plain-text conversation turn.
type Message struct {
	Role    Role
	Content string
}

// FunctionCall is a model-issued tool invocation. Arguments is the raw
// JSON-encoded argument string — this layer never parses it into a richer
// value. ID is the provider-internal item identifier (OpenAI's "fc_..."),
// distinct from CallID, which is the stable identifier a caller echoes
// back in a FunctionCallOutput.
type FunctionCall struct {
	ID        string
	CallID    string
	Name      string
	Arguments string
}

// InputItemKind discriminates the InputItem union.
type InputItemKind int

const (
	InputItemMessage InputItemKind = iota
	InputItemFunctionCall
	InputItemFunctionCallOutput
)

// InputItem is a tagged union: a Message, a FunctionCall the assistant
// issued in a prior turn, or the caller's output for such a call. Order in
// an []InputItem sequence is significant — it carries turn semantics.
type InputItem struct {
	Kind InputItemKind

	Message      Message
	FunctionCall FunctionCall

	// Populated only when Kind == InputItemFunctionCallOutput.
	CallID     string
	OutputText string
}

// NewMessageItem builds an InputItem wrapping a Message.
func NewMessageItem(role Role, content string) InputItem {
	return InputItem{Kind: InputItemMessage, Message: Message{Role: role, Content: content}}
}

// NewFunctionCallItem builds an InputItem wrapping a FunctionCall.
func NewFunctionCallItem(call FunctionCall) InputItem {
	return InputItem{Kind: InputItemFunctionCall, FunctionCall: call}
}

// NewFunctionCallOutputItem builds an InputItem carrying a tool result.
func NewFunctionCallOutputItem(callID, output string) InputItem {
	return InputItem{Kind: InputItemFunctionCallOutput, CallID: callID, OutputText: output}
}

// Tool is a function the model may call, described by a JSON-Schema
// parameters object (left as a generic map so callers can hand-author
// schemas without depending on a particular JSON-Schema struct package).
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// LLMRequest is the provider-agnostic completion request. All numeric/
// slice knobs are pointer-or-nil-slice so "absent" (provider default) is
// distinguishable from an explicit zero value.
type LLMRequest struct {
	Model   string
	Input   []InputItem
	Tools   []Tool
	Stream  bool

	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	Stop             []string
	PresencePenalty  *float64
	FrequencyPenalty *float64
}

// OutputItemKind discriminates the OutputItem union.
type OutputItemKind int

const (
	OutputItemText OutputItemKind = iota
	OutputItemFunctionCall
)

// OutputItem is one entry in a CompleteResponse's ordered output list.
type OutputItem struct {
	Kind    OutputItemKind
	Content string       // valid when Kind == OutputItemText
	Call    FunctionCall // valid when Kind == OutputItemFunctionCall
}

// FinishReason is why the model stopped generating.
type FinishReason int

const (
	FinishStop FinishReason = iota
	FinishLength
	FinishToolCalls
	FinishContentFilter
)

func (f FinishReason) String() string {
	switch f {
	case FinishStop:
		return "stop"
	case FinishLength:
		return "length"
	case FinishToolCalls:
		return "tool_calls"
	case FinishContentFilter:
		return "content_filter"
	default:
		return "unknown"
	}
}

// Usage holds token counters. Missing values default to 0.
type Usage struct {
	InputTokens  int
	OutputTokens int
	CachedTokens int
}

// CompleteResponse is a fully buffered completion.
type CompleteResponse struct {
	Output       []OutputItem
	FinishReason FinishReason
	Usage        Usage
}

// Content concatenates every Text output item's content in order. This is
// the authoritative aggregate-text view (see spec open question on
// whether adjacent Text items should be merged at finalization: they are
// not merged in the list, but Content always reads as if they were).
func (r *CompleteResponse) Content() string {
	var out string
	for _, item := range r.Output {
		if item.Kind == OutputItemText {
			out += item.Content
		}
	}
	return out
}

// FunctionCalls returns every FunctionCall output item, in order.
func (r *CompleteResponse) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, item := range r.Output {
		if item.Kind == OutputItemFunctionCall {
			calls = append(calls, item.Call)
		}
	}
	return calls
}

// ToItems turns a CompleteResponse into the InputItems a follow-up request
// would append to history: every Text item becomes an assistant Message,
// every FunctionCall item becomes an InputItemFunctionCall, in order.
func (r *CompleteResponse) ToItems() []InputItem {
	items := make([]InputItem, 0, len(r.Output))
	for _, item := range r.Output {
		switch item.Kind {
		case OutputItemText:
			items = append(items, NewMessageItem(RoleAssistant, item.Content))
		case OutputItemFunctionCall:
			items = append(items, NewFunctionCallItem(item.Call))
		}
	}
	return items
}

// OutputItemInfoKind discriminates the payload of a StreamEvent's
// OutputItemAdded variant.
type OutputItemInfoKind int

const (
	OutputItemInfoText OutputItemInfoKind = iota
	OutputItemInfoFunctionCall
)

// OutputItemInfo describes the kind of output item that just began.
type OutputItemInfo struct {
	Kind OutputItemInfoKind
	Name string // valid when Kind == OutputItemInfoFunctionCall
	ID   string // valid when Kind == OutputItemInfoFunctionCall
}

// StreamEventType discriminates the StreamEvent union.
type StreamEventType int

const (
	EventContentDelta StreamEventType = iota
	EventOutputItemAdded
	EventFunctionCallComplete
	EventDone
	EventError
)

// StreamEvent is the canonical event every normalizer emits. Only the
// field(s) relevant to Type are populated; the rest are zero values,
// mirroring the teacher's StreamChunk (one struct, sparse fields) rather
// than a Go interface-based sum type.
type StreamEvent struct {
	Type StreamEventType

	Delta string         // EventContentDelta
	Item  OutputItemInfo // EventOutputItemAdded
	Call  FunctionCall   // EventFunctionCallComplete

	FinishReason FinishReason // EventDone
	Usage        Usage        // EventDone

	Err error // EventError
}

// ContentDelta builds an EventContentDelta StreamEvent.
func ContentDelta(delta string) StreamEvent {
	return StreamEvent{Type: EventContentDelta, Delta: delta}
}

// OutputItemAddedText builds an EventOutputItemAdded StreamEvent for a new
// text output item.
func OutputItemAddedText() StreamEvent {
	return StreamEvent{Type: EventOutputItemAdded, Item: OutputItemInfo{Kind: OutputItemInfoText}}
}

// OutputItemAddedFunctionCall builds an EventOutputItemAdded StreamEvent
// for a new function-call output item.
func OutputItemAddedFunctionCall(name, id string) StreamEvent {
	return StreamEvent{
		Type: EventOutputItemAdded,
		Item: OutputItemInfo{Kind: OutputItemInfoFunctionCall, Name: name, ID: id},
	}
}

// FunctionCallComplete builds an EventFunctionCallComplete StreamEvent.
func FunctionCallComplete(call FunctionCall) StreamEvent {
	return StreamEvent{Type: EventFunctionCallComplete, Call: call}
}

// Done builds a terminal EventDone StreamEvent.
func Done(reason FinishReason, usage Usage) StreamEvent {
	return StreamEvent{Type: EventDone, FinishReason: reason, Usage: usage}
}

// StreamError builds a terminal EventError StreamEvent.
func StreamError(err error) StreamEvent {
	return StreamEvent{Type: EventError, Err: err}
}
