package anthropic

import (
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"

	engineerrors "github.com/deepresearchhq/engine/errors"
)

// classifyError maps an Anthropic SDK error into the engine's LLMError
// taxonomy: rate limits, timeouts, and 5xx responses are transient; 4xx
// client errors (bad request, auth, not found) are permanent.
func classifyError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		transient := status == 429 || status >= 500
		return engineerrors.NewLLMError("anthropic", apiErr.Error(), transient, err)
	}
	return engineerrors.NewLLMError("anthropic", err.Error(), true, err)
}
