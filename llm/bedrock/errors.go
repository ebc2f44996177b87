package bedrock

import (
	"errors"

	smithy "github.com/aws/smithy-go"

	engineerrors "github.com/deepresearchhq/engine/errors"
)

// classifyError maps a Bedrock Converse error into the engine's LLMError
// taxonomy. Throttling and server faults are transient; client faults
// (validation, access denied, model not ready) are permanent.
func classifyError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceUnavailableException", "ModelTimeoutException", "InternalServerException":
			return engineerrors.NewLLMError("bedrock", apiErr.ErrorMessage(), true, err)
		default:
			return engineerrors.NewLLMError("bedrock", apiErr.ErrorMessage(), false, err)
		}
	}
	return engineerrors.NewLLMError("bedrock", err.Error(), true, err)
}
