// Package llm implements the provider identification and request
// adaptation core: classify an endpoint into a wire-protocol family,
// translate a normalized ask request into that family's exact HTTP
// shape, and parse the family's response back into a normalized result.
package llm

import (
	"fmt"
	"strings"
)

// ProviderFamily is a wire-protocol dialect. It determines the
// request/response shape used to talk to an endpoint, not the vendor
// behind it: Groq, OpenRouter, Together, DeepSeek and most self-hosted
// gateways all speak the OpenAI dialect.
type ProviderFamily string

const (
	// FamilyOpenAICompatible is the OpenAI Chat Completions dialect.
	FamilyOpenAICompatible ProviderFamily = "openai_compatible"
	// FamilyAnthropic is the Anthropic Messages dialect.
	FamilyAnthropic ProviderFamily = "anthropic"
	// FamilyGemini is the Google Generative Language dialect.
	FamilyGemini ProviderFamily = "gemini"
	// FamilyUnknown means detection was inconclusive. Adapters treat it
	// as OpenAI-compatible, the de-facto standard for unidentified
	// endpoints.
	FamilyUnknown ProviderFamily = "unknown"
)

// String returns the family identifier.
func (f ProviderFamily) String() string {
	if f == "" {
		return string(FamilyUnknown)
	}
	return string(f)
}

// Known reports whether the family is a concrete, non-unknown dialect.
func (f ProviderFamily) Known() bool {
	switch f {
	case FamilyOpenAICompatible, FamilyAnthropic, FamilyGemini:
		return true
	default:
		return false
	}
}

// Family aliases map to canonical names.
var familyAliases = map[string]ProviderFamily{
	"openai":     FamilyOpenAICompatible,
	"gpt":        FamilyOpenAICompatible,
	"openrouter": FamilyOpenAICompatible,
	"groq":       FamilyOpenAICompatible,
	"together":   FamilyOpenAICompatible,
	"deepseek":   FamilyOpenAICompatible,
	"mistral":    FamilyOpenAICompatible,
	"azure":      FamilyOpenAICompatible,
	"claude":     FamilyAnthropic,
	"google":     FamilyGemini,
}

// ParseFamily parses a family from string (case-insensitive). Aliases
// like "claude" or "groq" normalize to their canonical family. The
// empty string parses to FamilyUnknown, meaning "detect at runtime".
func ParseFamily(s string) (ProviderFamily, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch ProviderFamily(s) {
	case "", FamilyUnknown:
		return FamilyUnknown, nil
	case FamilyOpenAICompatible, FamilyAnthropic, FamilyGemini:
		return ProviderFamily(s), nil
	}
	if f, ok := familyAliases[s]; ok {
		return f, nil
	}
	return FamilyUnknown, fmt.Errorf("unknown provider family: %q", s)
}

// hostRule maps a well-known host substring to a family.
type hostRule struct {
	substr string
	family ProviderFamily
}

// Well-known host substrings, matched case-insensitively against the
// base URL's host. Order matters only for readability; the entries are
// disjoint. Adding a new OpenAI-compatible vendor is a table entry.
var hostRules = []hostRule{
	{"api.openai.com", FamilyOpenAICompatible},
	{"openrouter.ai", FamilyOpenAICompatible},
	{"groq.com", FamilyOpenAICompatible},
	{"together.xyz", FamilyOpenAICompatible},
	{"api.deepseek.com", FamilyOpenAICompatible},
	{"api.mistral.ai", FamilyOpenAICompatible},
	{"api.x.ai", FamilyOpenAICompatible},
	{"azure", FamilyOpenAICompatible},
	{"api.anthropic.com", FamilyAnthropic},
	{"generativelanguage.googleapis.com", FamilyGemini},
}

// familyForHost looks up a host in the well-known substrings table.
func familyForHost(host string) (ProviderFamily, bool) {
	host = strings.ToLower(host)
	for _, rule := range hostRules {
		if strings.Contains(host, rule.substr) {
			return rule.family, true
		}
	}
	return FamilyUnknown, false
}
