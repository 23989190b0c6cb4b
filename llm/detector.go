// Provider family detection.
//
// The pipeline is an ordered list of rules, each returning a confident
// outcome or falling through:
//
//	1. explicit hint            -> certain, no network
//	2. well-known host match    -> certain, no network
//	3. GET {base}/v1/models     -> probed (OpenAI-compatible only)
//	4. fallback                 -> unknown (terminal, not an error)
//
// The probe performs a single idempotent GET with a bounded timeout;
// probe failures disqualify the rule, they never fail detection.
package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultProbeTimeout bounds the detection probe. Detection must never
// hang on a dead endpoint.
const DefaultProbeTimeout = 8 * time.Second

// Detector classifies a (base URL, optional hint) pair into a family.
type Detector struct {
	client *http.Client
	logger zerolog.Logger
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithProbeClient replaces the probe HTTP client (tests inject a
// counting transport here).
func WithProbeClient(c *http.Client) DetectorOption {
	return func(d *Detector) { d.client = c }
}

// WithProbeTimeout bounds the probe with a custom finite timeout.
func WithProbeTimeout(timeout time.Duration) DetectorOption {
	return func(d *Detector) { d.client.Timeout = timeout }
}

// WithDetectorLogger sets the logger used for rule tracing.
func WithDetectorLogger(l zerolog.Logger) DetectorOption {
	return func(d *Detector) { d.logger = l }
}

// NewDetector creates a detector with a bounded probe timeout.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		client: &http.Client{Timeout: DefaultProbeTimeout},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// detectRule tries to classify the endpoint. ok=false falls through to
// the next rule.
type detectRule func(ctx context.Context, baseURL, apiKey string, hint ProviderFamily) (DetectionOutcome, bool)

// Detect resolves the family for a base URL. The first rule returning
// a confident answer wins; when every rule is inconclusive the outcome
// is FamilyUnknown with fallback confidence, which is a legitimate
// terminal result, never an error. apiKey is only used to authenticate
// the probe and may be empty.
func (d *Detector) Detect(ctx context.Context, baseURL, apiKey string, hint ProviderFamily) DetectionOutcome {
	rules := []detectRule{d.hintRule, d.hostRule, d.probeRule}
	for _, rule := range rules {
		if outcome, ok := rule(ctx, baseURL, apiKey, hint); ok {
			return outcome
		}
	}
	d.logger.Debug().Str("base_url", baseURL).Msg("detection fell through to unknown")
	return DetectionOutcome{Family: FamilyUnknown, Confidence: ConfidenceFallback}
}

// hintRule honors an explicit, known family hint without touching the
// network.
func (d *Detector) hintRule(_ context.Context, _, _ string, hint ProviderFamily) (DetectionOutcome, bool) {
	if !hint.Known() {
		return DetectionOutcome{}, false
	}
	return DetectionOutcome{Family: hint, Confidence: ConfidenceCertain}, true
}

// hostRule matches the base URL host against the well-known substring
// table.
func (d *Detector) hostRule(_ context.Context, baseURL, _ string, _ ProviderFamily) (DetectionOutcome, bool) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return DetectionOutcome{}, false
	}
	family, ok := familyForHost(u.Hostname())
	if !ok {
		return DetectionOutcome{}, false
	}
	d.logger.Debug().Str("host", u.Hostname()).Stringer("family", family).Msg("matched well-known host")
	return DetectionOutcome{Family: family, Confidence: ConfidenceCertain}, true
}

// probeRule issues GET {base}/v1/models and classifies the endpoint as
// OpenAI-compatible when the answer looks like an OpenAI models
// listing, or when a 401/403/404 carries the OpenAI error envelope
// (key missing or models listing disabled, but the dialect matches).
func (d *Detector) probeRule(ctx context.Context, baseURL, apiKey string, _ ProviderFamily) (DetectionOutcome, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(baseURL, "/v1/models"), nil)
	if err != nil {
		return DetectionOutcome{}, false
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		// Transport failure only disqualifies this rule.
		d.logger.Debug().Err(err).Msg("probe transport failure")
		return DetectionOutcome{}, false
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	body := json.RawMessage{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return DetectionOutcome{}, false
	}

	switch {
	case resp.StatusCode == http.StatusOK && isModelsListing(body):
		d.logger.Debug().Dur("latency", latency).Msg("probe classified models listing")
		return DetectionOutcome{Family: FamilyOpenAICompatible, Confidence: ConfidenceProbed, ProbeLatency: latency}, true
	case isAuthFingerprint(resp.StatusCode, body):
		d.logger.Debug().Int("status", resp.StatusCode).Msg("probe matched error fingerprint")
		return DetectionOutcome{Family: FamilyOpenAICompatible, Confidence: ConfidenceProbed, ProbeLatency: latency}, true
	}
	return DetectionOutcome{}, false
}

// isModelsListing reports whether body is an OpenAI-style models list:
// a mapping with a "data" sequence whose entries carry an "id".
func isModelsListing(body []byte) bool {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	raw, ok := envelope["data"]
	if !ok {
		return false
	}
	var models []openai.Model
	if err := json.Unmarshal(raw, &models); err != nil {
		return false
	}
	for _, m := range models {
		if m.ID == "" {
			return false
		}
	}
	return true
}

// isAuthFingerprint recognizes the OpenAI error envelope on auth-ish
// statuses: the endpoint exists and speaks the dialect, the key just
// didn't open it.
func isAuthFingerprint(status int, body []byte) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
	default:
		return false
	}
	var envelope struct {
		Error map[string]json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	return envelope.Error != nil
}
