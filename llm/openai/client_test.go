package openai

import (
	"context"
	"testing"

	sdk "github.com/openai/openai-go"
	"github.com/stretchr/testify/require"

	"github.com/deepresearchhq/engine/model"
)

type fakeChat struct {
	resp *sdk.ChatCompletion
	err  error
	got  sdk.ChatCompletionNewParams
}

func (f *fakeChat) New(_ context.Context, body sdk.ChatCompletionNewParams) (*sdk.ChatCompletion, error) {
	f.got = body
	return f.resp, f.err
}

func TestNewRejectsMissingClient(t *testing.T) {
	_, err := New(Options{DefaultModel: "gpt-4o"})
	require.Error(t, err)
}

func TestNewRejectsMissingModel(t *testing.T) {
	_, err := New(Options{Client: &fakeChat{}})
	require.Error(t, err)
}

func TestCompleteReturnsTextMessage(t *testing.T) {
	fc := &fakeChat{resp: &sdk.ChatCompletion{
		Choices: []sdk.ChatCompletionChoice{
			{Message: sdk.ChatCompletionMessage{Content: "Spain won Euro 2024"}},
		},
		Usage: sdk.CompletionUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
	c, err := New(Options{Client: fc, DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "who won euro 2024?"}}}},
	})
	require.NoError(t, err)
	require.Equal(t, "Spain won Euro 2024", resp.Message.Text())
	require.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestCompleteSetsJSONSchemaResponseFormat(t *testing.T) {
	fc := &fakeChat{resp: &sdk.ChatCompletion{
		Choices: []sdk.ChatCompletionChoice{{Message: sdk.ChatCompletionMessage{Content: "{}"}}},
	}}
	c, err := New(Options{Client: fc, DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	schema := map[string]any{"type": "object"}
	_, err = c.Complete(context.Background(), model.Request{
		Class:    model.ClassStructured,
		Schema:   schema,
		Messages: []model.Message{{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "plan next queries"}}}},
	})
	require.NoError(t, err)
	require.NotNil(t, fc.got.ResponseFormat.OfJSONSchema)
}

func TestCompleteRejectsEmptyMessages(t *testing.T) {
	c, err := New(Options{Client: &fakeChat{}, DefaultModel: "gpt-4o"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), model.Request{})
	require.Error(t, err)
}
