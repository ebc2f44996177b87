// Package openai provides a model.Client implementation backed by the OpenAI
// Chat Completions API, used for generate_structured (JSON-schema
// constrained output) in generate_query and reflection. Adapted from the
// teacher's features/model/openai/client.go shape (a thin ChatClient
// interface wrapping one SDK call), retargeted to
// github.com/openai/openai-go, the SDK the teacher's go.mod actually
// depends on.
package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	engineerrors "github.com/deepresearchhq/engine/errors"
	"github.com/deepresearchhq/engine/model"
)

// ChatClient captures the subset of the OpenAI SDK used by the adapter.
type ChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// Options configures the OpenAI adapter.
type Options struct {
	Client       ChatClient
	DefaultModel string
}

// Client implements model.Client via OpenAI Chat Completions.
type Client struct {
	chat  ChatClient
	model string
}

// New builds an OpenAI-backed Client.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("openai client is required")
	}
	modelID := strings.TrimSpace(opts.DefaultModel)
	if modelID == "" {
		return nil, errors.New("default model is required")
	}
	return &Client{chat: opts.Client, model: modelID}, nil
}

// Complete implements model.Client.
func (c *Client) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	if len(req.Messages) == 0 {
		return model.Response{}, errors.New("messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == model.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(m.Text()))
		} else {
			messages = append(messages, openai.UserMessage(m.Text()))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelID),
		Messages: messages,
	}
	if req.Class == model.ClassStructured && req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "research_schema",
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return model.Response{}, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return model.Response{}, engineerrors.NewLLMError("openai", "empty choices", false, nil)
	}

	return model.Response{
		Message: model.Message{
			Role:  model.RoleAssistant,
			Parts: []model.Part{model.TextPart{Text: resp.Choices[0].Message.Content}},
		},
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}, nil
}
