// Package prompt implements the conversation/history builder: the
// caller-facing type that accumulates InputItems across turns, including
// folding a prior CompleteResponse's output back in for follow-up calls.
package prompt

import "github.com/llmclient/llmclient/llmtypes"

// Prompt is a mutable builder for an ordered []llmtypes.InputItem
// sequence. Methods return the Prompt itself so calls can be chained.
type Prompt struct {
	items []llmtypes.InputItem
}

// New returns an empty Prompt.
func New() *Prompt {
	return &Prompt{}
}

// System appends a system-role message.
func (p *Prompt) System(text string) *Prompt {
	p.items = append(p.items, llmtypes.NewMessageItem(llmtypes.RoleSystem, text))
	return p
}

// WithUser appends a user-role message.
func (p *Prompt) WithUser(text string) *Prompt {
	p.items = append(p.items, llmtypes.NewMessageItem(llmtypes.RoleUser, text))
	return p
}

// WithAssistant appends an assistant-role message.
func (p *Prompt) WithAssistant(text string) *Prompt {
	p.items = append(p.items, llmtypes.NewMessageItem(llmtypes.RoleAssistant, text))
	return p
}

// WithItem appends a single InputItem verbatim.
func (p *Prompt) WithItem(item llmtypes.InputItem) *Prompt {
	p.items = append(p.items, item)
	return p
}

// WithItems appends a sequence of InputItems in order.
func (p *Prompt) WithItems(items []llmtypes.InputItem) *Prompt {
	p.items = append(p.items, items...)
	return p
}

// WithResponse appends resp.ToItems(): every Text output item becomes an
// assistant Message, every FunctionCall output item becomes an
// InputItemFunctionCall, in order. This is how a caller feeds a model's
// own turn back into history before the next request.
func (p *Prompt) WithResponse(resp *llmtypes.CompleteResponse) *Prompt {
	return p.WithItems(resp.ToItems())
}

// Items returns the accumulated InputItem sequence. The returned slice
// shares the Prompt's backing array; callers should treat it as
// read-only or copy it before mutating.
func (p *Prompt) Items() []llmtypes.InputItem {
	return p.items
}
