// Google Gemini adapter (Generative Language API).
//
// Builds /v1beta/models/{model}:generateContent requests and parses
// their responses using the google.golang.org/genai wire types. The
// system prompt travels as systemInstruction and sampling knobs live
// under generationConfig.
package llm

import (
	"encoding/json"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// geminiGenerateRequest is the REST request envelope. The genai SDK
// drives this endpoint through its own client, so the envelope itself
// is assembled here from the SDK's content types.
type geminiGenerateRequest struct {
	Contents          []*genai.Content        `json:"contents"`
	SystemInstruction *genai.Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *genai.GenerationConfig `json:"generationConfig,omitempty"`
}

func buildGeminiRequest(apiKey string, req AskRequest) (RequestSpec, error) {
	body := geminiGenerateRequest{
		Contents: []*genai.Content{
			genai.NewContentFromText(req.Prompt, genai.RoleUser),
		},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxTokens != nil || req.Temperature != nil {
		cfg := &genai.GenerationConfig{}
		if req.Temperature != nil {
			cfg.Temperature = genai.Ptr(float32(*req.Temperature))
		}
		if req.MaxTokens != nil {
			cfg.MaxOutputTokens = int32(*req.MaxTokens)
		}
		body.GenerationConfig = cfg
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return RequestSpec{}, configErr("build", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	if apiKey != "" {
		header.Set("x-goog-api-key", apiKey)
	}

	return RequestSpec{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/v1beta/models/%s:generateContent", req.Model),
		Header: header,
		Body:   payload,
	}, nil
}

// parseGeminiResponse reads the text parts of the first candidate.
func parseGeminiResponse(body []byte) (AskResult, error) {
	var resp genai.GenerateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return AskResult{}, malformedErr(FamilyGemini, err)
	}
	if len(resp.Candidates) == 0 {
		return AskResult{}, malformedErr(FamilyGemini, fmt.Errorf("no candidates in response"))
	}

	return AskResult{
		Text:         resp.Text(),
		FinishReason: string(resp.Candidates[0].FinishReason),
		Raw:          body,
	}, nil
}
