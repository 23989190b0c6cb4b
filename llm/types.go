// Shared data models for the adaptation core.
package llm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AskRequest is the normalized, protocol-agnostic completion request.
// Optional scalars are pointers: nil means the field is omitted from
// the wire body entirely, never sent as null.
type AskRequest struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    *int
	Temperature  *float64
	Model        string
}

// AskResult is the normalized completion result. Text is always a
// plain string (empty on failure to extract, never "null"); hard
// failures travel on the error channel instead.
type AskResult struct {
	Text         string
	FinishReason string
	// Raw is the unmodified provider response body, kept for debugging.
	Raw json.RawMessage
}

// Confidence describes how a detection outcome was reached.
type Confidence string

const (
	// ConfidenceCertain: explicit hint or well-known host match, no
	// network access performed.
	ConfidenceCertain Confidence = "certain"
	// ConfidenceProbed: classified by the /v1/models probe.
	ConfidenceProbed Confidence = "probed"
	// ConfidenceFallback: all rules inconclusive; family is unknown.
	ConfidenceFallback Confidence = "fallback"
)

// DetectionOutcome is the result of classifying a base URL. It is never
// persisted; detection is recomputed per invocation unless the provider
// config pins a family.
type DetectionOutcome struct {
	Family       ProviderFamily
	Confidence   Confidence
	ProbeLatency time.Duration
}

// RequestSpec is a fully-shaped outbound HTTP request, relative to a
// provider base URL. It is pure data so adapters stay testable without
// a network.
type RequestSpec struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// DoctorReport is the outcome of a diagnostic run. Unreachability is
// reported data, not an error.
type DoctorReport struct {
	Provider   string
	Family     ProviderFamily
	Confidence Confidence
	Reachable  bool
	Status     int
	Latency    time.Duration
	Err        string
}

// ProviderConfig is one named provider entry as the core receives it:
// an immutable snapshot produced by the config layer. The core only
// reads it and never writes detection results back.
type ProviderConfig struct {
	Name      string         `mapstructure:"name" json:"name"`
	BaseURL   string         `mapstructure:"base_url" json:"base_url"`
	APIKey    string         `mapstructure:"api_key" json:"api_key"`
	Model     string         `mapstructure:"model" json:"model"`
	Family    ProviderFamily `mapstructure:"family" json:"family"`
	IsDefault bool           `mapstructure:"default" json:"default"`
}

// Validate checks that the snapshot is usable by the core.
func (c ProviderConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("provider name is empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("provider %q has no base URL", c.Name)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("provider %q base URL: %w", c.Name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provider %q base URL %q: scheme must be http or https", c.Name, c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("provider %q base URL %q has no host", c.Name, c.BaseURL)
	}
	return nil
}

// joinURL joins a base URL and a spec path, deduplicating a trailing
// "/v1" on the base so that both "https://host" and "https://host/v1"
// work as a base for "/v1/..." paths.
func joinURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/v1") && strings.HasPrefix(path, "/v1/") {
		base = strings.TrimSuffix(base, "/v1")
	}
	return base + path
}
