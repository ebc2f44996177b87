// Package bedrock provides a model.Client implementation backed by the AWS
// Bedrock Converse API, used as a third interchangeable provider alongside
// llm/anthropic and llm/openai. Adapted from the teacher's
// features/model/bedrock/client.go request-encoding pipeline (split system
// vs. conversational messages, translate Converse output back into
// planner-friendly text), narrowed to the three request classes this engine
// issues and dropping the teacher's transcript-ledger and tool-call
// plumbing, which this engine does not use.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/deepresearchhq/engine/model"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client used by
// the adapter, satisfied by *bedrockruntime.Client or a test double.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the Bedrock adapter.
type Options struct {
	Runtime      RuntimeClient
	DefaultModel string
	MaxTokens    int32
	Temperature  float32
}

// Client implements model.Client over AWS Bedrock Converse.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	maxTokens    int32
	temperature  float32
}

// New builds a Bedrock-backed Client.
func New(opts Options) (*Client, error) {
	if opts.Runtime == nil {
		return nil, errors.New("bedrock runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{runtime: opts.Runtime, defaultModel: opts.DefaultModel, maxTokens: maxTokens, temperature: opts.Temperature}, nil
}

// Complete implements model.Client. Bedrock Converse has no server-side web
// search tool, so a ClassGroundedSearch request degrades to a plain text
// completion; callers needing provider-grounded citations should route
// those requests to llm/anthropic instead.
func (c *Client) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: encodeMessages(req.Messages),
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.maxTokens),
			Temperature: aws.Float32(c.temperature),
		},
	}

	if req.Class == model.ClassStructured && req.Schema != nil {
		schemaJSON, err := json.Marshal(req.Schema)
		if err != nil {
			return model.Response{}, fmt.Errorf("bedrock: marshal schema: %w", err)
		}
		input.System = []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{
				Value: "Respond with JSON only, conforming to this schema: " + string(schemaJSON),
			},
		}
	}

	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return model.Response{}, classifyError(err)
	}

	return decodeResponse(out), nil
}

func encodeMessages(msgs []model.Message) []brtypes.Message {
	out := make([]brtypes.Message, 0, len(msgs))
	for _, m := range msgs {
		role := brtypes.ConversationRoleUser
		if m.Role == model.RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		out = append(out, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Text()}},
		})
	}
	return out
}

func decodeResponse(out *bedrockruntime.ConverseOutput) model.Response {
	var text string
	var usage model.TokenUsage
	if msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			if tb, ok := block.(*brtypes.ContentBlockMemberText); ok {
				text += tb.Value
			}
		}
	}
	if out.Usage != nil {
		usage = model.TokenUsage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	return model.Response{
		Message: model.Message{
			Role:  model.RoleAssistant,
			Parts: []model.Part{model.TextPart{Text: text}},
		},
		Usage: usage,
	}
}
