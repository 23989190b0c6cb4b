// Family-to-codec dispatch.
//
// Each family is a row in a dense table mapping to a request builder
// and a response parser, so adding a vendor that speaks an existing
// dialect never adds a type, only a host-table entry.
package llm

import (
	"fmt"
)

// familyCodec pairs a family's request builder with its response
// parser.
type familyCodec struct {
	build func(apiKey string, req AskRequest) (RequestSpec, error)
	parse func(body []byte) (AskResult, error)
}

var codecs = map[ProviderFamily]familyCodec{
	FamilyOpenAICompatible: {build: buildOpenAIRequest, parse: parseOpenAIResponse},
	FamilyAnthropic:        {build: buildAnthropicRequest, parse: parseAnthropicResponse},
	FamilyGemini:           {build: buildGeminiRequest, parse: parseGeminiResponse},
}

// effectiveFamily resolves the family actually used on the wire:
// unknown endpoints get the OpenAI-compatible shape, the de-facto
// standard among unidentified and self-hosted providers.
func effectiveFamily(family ProviderFamily) ProviderFamily {
	if family.Known() {
		return family
	}
	return FamilyOpenAICompatible
}

// BuildRequest shapes a normalized AskRequest into the family's exact
// HTTP request. The result is pure data; no network access happens
// here.
func BuildRequest(family ProviderFamily, apiKey string, req AskRequest) (RequestSpec, error) {
	if req.Prompt == "" {
		return RequestSpec{}, configErr("build", fmt.Errorf("prompt is empty"))
	}
	if req.Model == "" {
		return RequestSpec{}, configErr("build", fmt.Errorf("model is empty"))
	}
	codec := codecs[effectiveFamily(family)]
	return codec.build(apiKey, req)
}

// ParseResponse turns a family's HTTP response into a normalized
// AskResult. Non-2xx statuses fail with an HTTP error for every
// family; a 2xx body that does not match the family's schema fails as
// malformed, naming the assumed family.
func ParseResponse(family ProviderFamily, status int, body []byte) (AskResult, error) {
	if status < 200 || status > 299 {
		return AskResult{}, &ProviderError{Kind: ErrHTTP, Status: status, Family: effectiveFamily(family)}
	}
	codec := codecs[effectiveFamily(family)]
	return codec.parse(body)
}
