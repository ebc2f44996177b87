package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	engineerrors "github.com/deepresearchhq/engine/errors"
	"github.com/deepresearchhq/engine/model"
)

var queriesSchema = map[string]any{
	"type":     "object",
	"required": []string{"queries"},
	"properties": map[string]any{
		"queries": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
}

func TestValidateAcceptsConformingJSON(t *testing.T) {
	compiled, err := Compile("queries", queriesSchema)
	require.NoError(t, err)

	value, err := Validate("queries", compiled, `{"queries": ["euro 2024 winner"]}`)
	require.NoError(t, err)
	require.NotNil(t, value)
}

func TestValidateRejectsMalformedJSON(t *testing.T) {
	compiled, err := Compile("queries", queriesSchema)
	require.NoError(t, err)

	_, err = Validate("queries", compiled, `not json`)
	require.Error(t, err)
	var verr *engineerrors.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestValidateRejectsSchemaMismatch(t *testing.T) {
	compiled, err := Compile("queries", queriesSchema)
	require.NoError(t, err)

	_, err = Validate("queries", compiled, `{"queries": "not an array"}`)
	require.Error(t, err)
}

type sequenceClient struct {
	responses []string
	calls     int
}

func (s *sequenceClient) Complete(_ context.Context, _ model.Request) (model.Response, error) {
	text := s.responses[s.calls]
	s.calls++
	return model.Response{Message: model.Message{Parts: []model.Part{model.TextPart{Text: text}}}}, nil
}

func TestCompleteStructuredRetriesOnceOnValidationFailure(t *testing.T) {
	compiled, err := Compile("queries", queriesSchema)
	require.NoError(t, err)

	client := &sequenceClient{responses: []string{"not json", `{"queries": ["a"]}`}}
	value, _, err := CompleteStructured(context.Background(), client, model.Request{}, "queries", compiled)
	require.NoError(t, err)
	require.NotNil(t, value)
	require.Equal(t, 2, client.calls)
}

func TestCompleteStructuredEscalatesAfterSecondFailure(t *testing.T) {
	compiled, err := Compile("queries", queriesSchema)
	require.NoError(t, err)

	client := &sequenceClient{responses: []string{"not json", "still not json"}}
	_, _, err = CompleteStructured(context.Background(), client, model.Request{}, "queries", compiled)
	require.Error(t, err)
	require.Equal(t, 2, client.calls)
}
