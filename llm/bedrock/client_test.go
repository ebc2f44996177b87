package bedrock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/require"

	"github.com/deepresearchhq/engine/model"
)

type mockRuntime struct {
	output   *bedrockruntime.ConverseOutput
	err      error
	captured *bedrockruntime.ConverseInput
}

func (m *mockRuntime) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.captured = params
	return m.output, m.err
}

func TestNewRequiresRuntime(t *testing.T) {
	_, err := New(Options{DefaultModel: "anthropic.claude-3"})
	require.Error(t, err)
}

func TestNewRequiresModel(t *testing.T) {
	_, err := New(Options{Runtime: &mockRuntime{}})
	require.Error(t, err)
}

func TestCompleteDecodesTextAndUsage(t *testing.T) {
	mock := &mockRuntime{output: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "Spain won Euro 2024"}},
		}},
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(100),
			OutputTokens: aws.Int32(20),
			TotalTokens:  aws.Int32(120),
		},
	}}
	client, err := New(Options{Runtime: mock, DefaultModel: "anthropic.claude-3"})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "who won euro 2024?"}}}},
	})
	require.NoError(t, err)
	require.Equal(t, "Spain won Euro 2024", resp.Message.Text())
	require.Equal(t, 120, resp.Usage.TotalTokens)
	require.Equal(t, "anthropic.claude-3", aws.ToString(mock.captured.ModelId))
}

func TestCompleteEmbedsSchemaForStructuredClass(t *testing.T) {
	mock := &mockRuntime{output: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "{}"}},
		}},
	}}
	client, err := New(Options{Runtime: mock, DefaultModel: "anthropic.claude-3"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), model.Request{
		Class:    model.ClassStructured,
		Schema:   map[string]any{"type": "object"},
		Messages: []model.Message{{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "plan"}}}},
	})
	require.NoError(t, err)
	require.Len(t, mock.captured.System, 1)
}
