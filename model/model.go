// Package model defines provider-agnostic conversation and LLM request/
// response types shared by every model.Client implementation.
package model

import (
	"context"
	"errors"
)

// ConversationRole identifies the speaker of a Message.
type ConversationRole string

const (
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"
	RoleSystem    ConversationRole = "system"
)

// Part is implemented by every message content fragment. A Message carries
// an ordered slice of Parts rather than a single string so grounding
// metadata, tool calls, and plain text can be interleaved.
type Part interface{ isPart() }

// TextPart is plain conversational text.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// CitationLocation pins a Citation to a character range of the part that
// produced it.
type CitationLocation struct {
	StartChar int
	EndChar   int
}

// Citation maps a span of generated text to a grounding source.
type Citation struct {
	OriginalURL string
	Label       string
	Location    CitationLocation
}

// CitationsPart carries grounding metadata returned alongside generated
// text by providers that natively ground responses (e.g. search-grounded
// Claude/Gemini calls).
type CitationsPart struct {
	Citations []Citation
}

func (CitationsPart) isPart() {}

// ToolUsePart represents a model-issued tool/function call.
type ToolUsePart struct {
	ID    string
	Name  string
	Input map[string]any
}

func (ToolUsePart) isPart() {}

// Message is one turn of a conversation.
type Message struct {
	Role  ConversationRole
	Parts []Part
	Meta  map[string]any
}

// Text concatenates every TextPart in the message, in order.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// TokenUsage records token accounting for a single collaborator call.
type TokenUsage struct {
	InputTokens     int
	OutputTokens    int
	TotalTokens     int
	CacheReadTokens int
}

// ModelClass distinguishes the collaborator role a request targets, so a
// single Client implementation can serve several node kinds.
type ModelClass string

const (
	ClassStructured     ModelClass = "structured"
	ClassText           ModelClass = "text"
	ClassGroundedSearch ModelClass = "grounded_search"
)

// Request is a single completion request to an LLM collaborator.
type Request struct {
	Model    string
	Class    ModelClass
	Messages []Message
	// Schema is a JSON Schema document constraining output; required when
	// Class == ClassStructured.
	Schema map[string]any
	// SearchTool names the provider-side web-search tool for a
	// ClassGroundedSearch call. The adapters in llm/ select grounded search
	// from Class and do not read this field.
	SearchTool string
}

// Response is a single completion response from an LLM collaborator.
type Response struct {
	Message Message
	Usage   TokenUsage
	// GroundingCitations exposes (segment, url, label) triples when Request
	// asked for grounded search; empty otherwise.
	GroundingCitations []Citation
}

// Client is the contract the core requires of an LLM collaborator:
// generate_structured and generate_with_search both route through
// Complete with the appropriate Class; generate_text uses ClassText.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ErrRateLimited is returned by a Client when the provider itself signals
// exhaustion (distinct from the engine's own token-bucket rate limiter).
var ErrRateLimited = errors.New("model: provider rate limited")
