// Dispatcher - orchestrates detector and adapters for one invocation.
//
// The pipeline is strictly sequential: resolve family, build request,
// perform one bounded HTTP call, parse response. No retries and no
// shared mutable state; a detection result is never written back into
// the provider config.
package llm

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultRequestTimeout bounds the completion HTTP call.
const DefaultRequestTimeout = 60 * time.Second

// Dispatcher executes ask and doctor invocations end-to-end.
type Dispatcher struct {
	client   *http.Client
	detector *Detector
	logger   zerolog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithHTTPClient replaces the completion-call HTTP client.
func WithHTTPClient(c *http.Client) DispatcherOption {
	return func(d *Dispatcher) { d.client = c }
}

// WithRequestTimeout bounds the completion call with a custom finite
// timeout.
func WithRequestTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.client.Timeout = timeout }
}

// WithDetector replaces the detector.
func WithDetector(det *Detector) DispatcherOption {
	return func(d *Dispatcher) { d.detector = det }
}

// WithLogger sets the logger on the dispatcher and its current
// detector.
func WithLogger(l zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = l
		d.detector.logger = l
	}
}

// NewDispatcher creates a dispatcher with bounded timeouts on both the
// detection probe and the completion call.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		client:   &http.Client{Timeout: DefaultRequestTimeout},
		detector: NewDetector(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detector returns the underlying detector.
func (d *Dispatcher) Detector() *Detector {
	return d.detector
}

// resolveFamily honors a pinned family and detects otherwise. The
// outcome is returned to the caller as data; it is never persisted.
func (d *Dispatcher) resolveFamily(ctx context.Context, cfg ProviderConfig) DetectionOutcome {
	if cfg.Family.Known() {
		return DetectionOutcome{Family: cfg.Family, Confidence: ConfidenceCertain}
	}
	return d.detector.Detect(ctx, cfg.BaseURL, cfg.APIKey, FamilyUnknown)
}

// RunAsk executes one normalized ask against the configured provider.
// Any stage failure short-circuits with a typed error carrying the
// failed stage; a partial AskResult is never returned.
func (d *Dispatcher) RunAsk(ctx context.Context, cfg ProviderConfig, req AskRequest) (AskResult, error) {
	if err := cfg.Validate(); err != nil {
		return AskResult{}, configErr("config", err)
	}
	if req.Model == "" {
		req.Model = cfg.Model
	}

	askID := uuid.NewString()
	outcome := d.resolveFamily(ctx, cfg)
	family := effectiveFamily(outcome.Family)

	d.logger.Info().
		Str("ask_id", askID).
		Str("provider", cfg.Name).
		Stringer("family", family).
		Str("confidence", string(outcome.Confidence)).
		Str("model", req.Model).
		Msg("dispatching ask")

	spec, err := BuildRequest(family, cfg.APIKey, req)
	if err != nil {
		return AskResult{}, stageErr("build", family, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, spec.Method, joinURL(cfg.BaseURL, spec.Path), bytes.NewReader(spec.Body))
	if err != nil {
		return AskResult{}, configErr("call", err)
	}
	httpReq.Header = spec.Header

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return AskResult{}, &ProviderError{Kind: ErrTransport, Family: family, Stage: "call", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AskResult{}, &ProviderError{Kind: ErrTransport, Family: family, Stage: "call", Err: err}
	}

	result, err := ParseResponse(family, resp.StatusCode, body)
	if err != nil {
		return AskResult{}, stageErr("parse", family, err)
	}

	d.logger.Info().
		Str("ask_id", askID).
		Str("finish_reason", result.FinishReason).
		Int("chars", len(result.Text)).
		Msg("ask complete")
	return result, nil
}

// RunDoctor diagnoses one provider: detection outcome plus a
// family-appropriate connectivity check. It never fails; an
// unreachable endpoint is reported data.
func (d *Dispatcher) RunDoctor(ctx context.Context, cfg ProviderConfig) DoctorReport {
	report := DoctorReport{Provider: cfg.Name}
	if err := cfg.Validate(); err != nil {
		report.Family = FamilyUnknown
		report.Confidence = ConfidenceFallback
		report.Err = err.Error()
		return report
	}

	outcome := d.resolveFamily(ctx, cfg)
	report.Family = outcome.Family
	report.Confidence = outcome.Confidence

	pingReq, err := d.pingRequest(ctx, cfg, effectiveFamily(outcome.Family))
	if err != nil {
		report.Err = err.Error()
		return report
	}

	start := time.Now()
	resp, err := d.client.Do(pingReq)
	report.Latency = time.Since(start)
	if err != nil {
		report.Err = err.Error()
		return report
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	// Any HTTP answer counts as reachable; an auth failure still proves
	// the endpoint is alive and speaking HTTP.
	report.Reachable = true
	report.Status = resp.StatusCode
	return report
}

// pingRequest builds the lightweight connectivity check for a family.
// Anthropic has no cheap models listing, so a minimal invalid request
// fingerprints the endpoint via its 4xx answer.
func (d *Dispatcher) pingRequest(ctx context.Context, cfg ProviderConfig, family ProviderFamily) (*http.Request, error) {
	switch family {
	case FamilyAnthropic:
		body := []byte(`{"model":"invalid","max_tokens":1,"messages":[]}`)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(cfg.BaseURL, anthropicMessagesPath), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("anthropic-version", anthropicVersion)
		if cfg.APIKey != "" {
			req.Header.Set("x-api-key", cfg.APIKey)
		}
		return req, nil
	case FamilyGemini:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(cfg.BaseURL, "/v1beta/models"), nil)
		if err != nil {
			return nil, err
		}
		if cfg.APIKey != "" {
			req.Header.Set("x-goog-api-key", cfg.APIKey)
		}
		return req, nil
	default:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(cfg.BaseURL, "/v1/models"), nil)
		if err != nil {
			return nil, err
		}
		if cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
		}
		return req, nil
	}
}

// stageErr stamps the failed stage onto a ProviderError without
// masking its kind.
func stageErr(stage string, family ProviderFamily, err error) error {
	if pe, ok := err.(*ProviderError); ok {
		if pe.Stage == "" {
			pe.Stage = stage
		}
		if pe.Family == "" {
			pe.Family = family
		}
		return pe
	}
	return &ProviderError{Kind: ErrConfig, Family: family, Stage: stage, Err: err}
}
