// Package anthropic provides a model.Client implementation backed by the
// Anthropic Claude Messages API, used for generate_with_search via Claude's
// server-side web-search tool. Adapted from the teacher's
// features/model/anthropic/client.go, narrowed to the three request
// classes this engine issues (structured, text, grounded search).
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/deepresearchhq/engine/model"
)

// MessagesClient captures the subset of the Anthropic SDK used by the
// adapter, satisfied by *sdk.MessageService or a test double.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures the Anthropic adapter.
type Options struct {
	DefaultModel string
	MaxTokens    int64
	Temperature  float64
}

// Client implements model.Client over Anthropic Claude Messages.
type Client struct {
	msg          MessagesClient
	defaultModel string
	maxTokens    int64
	temperature  float64
}

// New builds an Anthropic-backed Client.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{msg: msg, defaultModel: opts.DefaultModel, maxTokens: maxTokens, temperature: opts.Temperature}, nil
}

// Complete implements model.Client.
func (c *Client) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: c.maxTokens,
		Messages:  encodeMessages(req.Messages),
	}

	if req.Class == model.ClassGroundedSearch {
		params.Tools = []sdk.ToolUnionParam{
			{OfWebSearchTool20250305: &sdk.WebSearchTool20250305Param{Name: "web_search"}},
		}
	}
	if req.Class == model.ClassStructured && req.Schema != nil {
		schemaJSON, err := json.Marshal(req.Schema)
		if err != nil {
			return model.Response{}, fmt.Errorf("anthropic: marshal schema: %w", err)
		}
		params.System = []sdk.TextBlockParam{
			{Text: "Respond with JSON only, conforming to this schema: " + string(schemaJSON)},
		}
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return model.Response{}, classifyError(err)
	}

	return decodeResponse(msg), nil
}

func encodeMessages(msgs []model.Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		role := sdk.MessageParamRoleUser
		if m.Role == model.RoleAssistant {
			role = sdk.MessageParamRoleAssistant
		}
		out = append(out, sdk.MessageParam{
			Role:    role,
			Content: []sdk.ContentBlockParamUnion{sdk.NewTextBlock(m.Text())},
		})
	}
	return out
}

func decodeResponse(msg *sdk.Message) model.Response {
	var text string
	var citations []model.Citation
	for _, block := range msg.Content {
		if tb := block.AsAny(); tb != nil {
			if t, ok := tb.(sdk.TextBlock); ok {
				offset := len(text)
				text += t.Text
				for _, cit := range t.Citations {
					if web, ok := cit.AsAny().(sdk.CitationWebSearchResultLocation); ok {
						citations = append(citations, model.Citation{
							OriginalURL: web.URL,
							Label:       web.Title,
							Location:    model.CitationLocation{StartChar: offset, EndChar: offset + len(t.Text)},
						})
					}
				}
			}
		}
	}

	return model.Response{
		Message: model.Message{
			Role:  model.RoleAssistant,
			Parts: []model.Part{model.TextPart{Text: text}, model.CitationsPart{Citations: citations}},
		},
		Usage: model.TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		GroundingCitations: citations,
	}
}
