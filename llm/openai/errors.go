package openai

import (
	"errors"

	sdk "github.com/openai/openai-go"

	engineerrors "github.com/deepresearchhq/engine/errors"
)

// classifyError maps an OpenAI SDK error into the engine's LLMError
// taxonomy: rate limits and 5xx responses are transient; 4xx client errors
// are permanent.
func classifyError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		transient := status == 429 || status >= 500
		return engineerrors.NewLLMError("openai", apiErr.Error(), transient, err)
	}
	return engineerrors.NewLLMError("openai", err.Error(), true, err)
}
