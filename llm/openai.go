// OpenAI-compatible adapter.
//
// Builds Chat Completions requests and parses their responses using
// the go-openai wire types. This one dialect covers OpenAI itself plus
// Groq, OpenRouter, Together, DeepSeek, Mistral, Azure and most
// self-hosted gateways, which is also why unknown endpoints default
// here.
package llm

import (
	"encoding/json"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const openAIChatPath = "/v1/chat/completions"

// openAIChatRequest is the request envelope. go-openai's
// ChatCompletionRequest marks max_tokens and temperature omitempty on
// value fields, which would drop an explicitly supplied zero; pointer
// fields keep present-zero and absent distinguishable on the wire.
type openAIChatRequest struct {
	Model       string                         `json:"model"`
	Messages    []openai.ChatCompletionMessage `json:"messages"`
	MaxTokens   *int                           `json:"max_tokens,omitempty"`
	Temperature *float64                       `json:"temperature,omitempty"`
}

// buildOpenAIRequest shapes an AskRequest into a Chat Completions call.
// The optional system prompt becomes a leading system message; absent
// optionals are omitted from the body entirely.
func buildOpenAIRequest(apiKey string, req AskRequest) (RequestSpec, error) {
	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	body := openAIChatRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return RequestSpec{}, configErr("build", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	if apiKey != "" {
		header.Set("Authorization", "Bearer "+apiKey)
	}

	return RequestSpec{
		Method: http.MethodPost,
		Path:   openAIChatPath,
		Header: header,
		Body:   payload,
	}, nil
}

// parseOpenAIResponse extracts text and finish reason from the first
// choice. The caller has already rejected non-2xx statuses.
func parseOpenAIResponse(body []byte) (AskResult, error) {
	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return AskResult{}, malformedErr(FamilyOpenAICompatible, err)
	}
	if len(resp.Choices) == 0 {
		return AskResult{}, malformedErr(FamilyOpenAICompatible, fmt.Errorf("no choices in response"))
	}
	choice := resp.Choices[0]
	return AskResult{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Raw:          body,
	}, nil
}
