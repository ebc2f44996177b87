// Package schema validates structured LLM output against a JSON Schema
// using github.com/santhosh-tekuri/jsonschema/v6, giving ValidationError
// concrete teeth instead of relying on dynamic typing when a node decodes a
// generate_structured response.
package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	engineerrors "github.com/deepresearchhq/engine/errors"
	"github.com/deepresearchhq/engine/model"
)

// StricterInstruction is appended to the prompt on the single permitted
// retry after a generate_structured response fails schema validation.
const StricterInstruction = "Your previous response did not conform to the required JSON schema. " +
	"Respond with a single JSON object matching the schema exactly, with no surrounding prose or markdown fences."

// CompleteStructured calls client.Complete for a ClassStructured request,
// validates the result against compiled, and retries once with
// StricterInstruction appended on a validation failure. A second failure is
// returned to the caller to escalate into a ResearchError.
func CompleteStructured(ctx context.Context, client model.Client, req model.Request, schemaName string, compiled *jsonschema.Schema) (any, model.Response, error) {
	resp, err := client.Complete(ctx, req)
	if err != nil {
		return nil, model.Response{}, err
	}
	value, verr := Validate(schemaName, compiled, resp.Message.Text())
	if verr == nil {
		return value, resp, nil
	}

	retryReq := req
	retryReq.Messages = append(append([]model.Message{}, req.Messages...), model.Message{
		Role:  model.RoleUser,
		Parts: []model.Part{model.TextPart{Text: StricterInstruction}},
	})
	resp, err = client.Complete(ctx, retryReq)
	if err != nil {
		return nil, model.Response{}, err
	}
	value, verr = Validate(schemaName, compiled, resp.Message.Text())
	if verr != nil {
		return nil, model.Response{}, verr
	}
	return value, resp, nil
}

// Compile parses a raw JSON Schema document (such as the schema documents
// in nodes/schema.go) into a
// reusable *jsonschema.Schema.
func Compile(name string, raw map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("schema %s: marshal: %w", name, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("schema %s: unmarshal: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("schema %s: add resource: %w", name, err)
	}
	return compiler.Compile(name)
}

// Validate decodes raw JSON text into a generic value and validates it
// against schema, returning a *errors.ValidationError on failure.
func Validate(schemaName string, compiled *jsonschema.Schema, rawJSON string) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(rawJSON), &value); err != nil {
		return nil, &engineerrors.ValidationError{Schema: schemaName, Message: "response is not valid JSON", Cause: err}
	}
	if err := compiled.Validate(value); err != nil {
		return nil, &engineerrors.ValidationError{Schema: schemaName, Message: "response does not conform to schema", Cause: err}
	}
	return value, nil
}
