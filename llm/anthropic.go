// Anthropic Messages adapter.
//
// Builds /v1/messages requests and parses their responses using the
// official anthropic-sdk-go wire types. The dialect differs from the
// OpenAI one in three user-visible ways: the system prompt is a
// top-level field, max_tokens is mandatory, and authentication uses
// the x-api-key header instead of a bearer token.
package llm

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
)

const (
	anthropicMessagesPath = "/v1/messages"
	anthropicVersion      = "2023-06-01"

	// anthropicDefaultMaxTokens fills the mandatory max_tokens field
	// when the caller did not supply one; the API rejects requests
	// lacking it.
	anthropicDefaultMaxTokens = 1024
)

func buildAnthropicRequest(apiKey string, req AskRequest) (RequestSpec, error) {
	maxTokens := int64(anthropicDefaultMaxTokens)
	if req.MaxTokens != nil {
		maxTokens = int64(*req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	payload, err := json.Marshal(params)
	if err != nil {
		return RequestSpec{}, configErr("build", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("anthropic-version", anthropicVersion)
	if apiKey != "" {
		header.Set("x-api-key", apiKey)
	}

	return RequestSpec{
		Method: http.MethodPost,
		Path:   anthropicMessagesPath,
		Header: header,
		Body:   payload,
	}, nil
}

// parseAnthropicResponse concatenates all text-typed content blocks in
// order and reads the top-level stop reason.
func parseAnthropicResponse(body []byte) (AskResult, error) {
	var msg anthropic.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return AskResult{}, malformedErr(FamilyAnthropic, err)
	}
	if len(msg.Content) == 0 && msg.StopReason == "" {
		return AskResult{}, malformedErr(FamilyAnthropic, fmt.Errorf("no content blocks in response"))
	}

	text := ""
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += variant.Text
		}
	}

	return AskResult{
		Text:         text,
		FinishReason: string(msg.StopReason),
		Raw:          body,
	}, nil
}
