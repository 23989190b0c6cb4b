package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const openAIChatBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"choices": [{
		"index": 0,
		"message": {"role": "assistant", "content": "hello"},
		"finish_reason": "stop"
	}]
}`

func testProviderConfig(baseURL string, family ProviderFamily) ProviderConfig {
	return ProviderConfig{
		Name:    "test",
		BaseURL: baseURL,
		APIKey:  "sk-test",
		Model:   "test-model",
		Family:  family,
	}
}

func TestRunAskOpenAIEndToEnd(t *testing.T) {
	var sawAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		sawAuth = r.Header.Get("Authorization")

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("request body not decodable: %v", err)
		}
		if body.Model != "test-model" {
			t.Errorf("expected model test-model, got %s", body.Model)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(openAIChatBody))
	}))
	defer server.Close()

	d := NewDispatcher()
	result, err := d.RunAsk(context.Background(), testProviderConfig(server.URL, FamilyOpenAICompatible), AskRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hello" || result.FinishReason != "stop" {
		t.Errorf("unexpected result: %+v", result)
	}
	if sawAuth != "Bearer sk-test" {
		t.Errorf("expected bearer auth on the wire, got %q", sawAuth)
	}
}

func TestRunAskDetectsUnpinnedFamilyViaProbe(t *testing.T) {
	var probes, chats int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/models":
			atomic.AddInt32(&probes, 1)
			w.Write([]byte(`{"object":"list","data":[{"id":"test-model"}]}`))
		case "/v1/chat/completions":
			atomic.AddInt32(&chats, 1)
			w.Write([]byte(openAIChatBody))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	d := NewDispatcher()
	result, err := d.RunAsk(context.Background(), testProviderConfig(server.URL, FamilyUnknown), AskRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hello" {
		t.Errorf("unexpected text %q", result.Text)
	}
	if probes != 1 {
		t.Errorf("expected exactly one detection probe, got %d", probes)
	}
	if chats != 1 {
		t.Errorf("expected exactly one completion call, got %d", chats)
	}
}

func TestRunAskPinnedFamilySkipsDetection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models" {
			t.Error("pinned family must never be re-detected")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(openAIChatBody))
	}))
	defer server.Close()

	d := NewDispatcher()
	if _, err := d.RunAsk(context.Background(), testProviderConfig(server.URL, FamilyOpenAICompatible), AskRequest{Prompt: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunAskAnthropicEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-test" {
			t.Errorf("expected x-api-key on the wire, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"content": [{"type": "text", "text": "hey"}],
			"stop_reason": "end_turn"
		}`))
	}))
	defer server.Close()

	d := NewDispatcher()
	result, err := d.RunAsk(context.Background(), testProviderConfig(server.URL, FamilyAnthropic), AskRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hey" || result.FinishReason != "end_turn" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestRunAskSurfacesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	d := NewDispatcher()
	_, err := d.RunAsk(context.Background(), testProviderConfig(server.URL, FamilyOpenAICompatible), AskRequest{Prompt: "hi"})
	if !IsKind(err, ErrHTTP) {
		t.Fatalf("expected HTTP error, got %v", err)
	}
	if status := HTTPStatus(err); status != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", status)
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Errorf("expected stage context on the error, got %v", err)
	}
}

func TestRunAskSurfacesMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>totally not an API</html>"))
	}))
	defer server.Close()

	d := NewDispatcher()
	_, err := d.RunAsk(context.Background(), testProviderConfig(server.URL, FamilyOpenAICompatible), AskRequest{Prompt: "hi"})
	if !IsKind(err, ErrMalformedResponse) {
		t.Fatalf("expected malformed response error, got %v", err)
	}
	if !strings.Contains(err.Error(), string(FamilyOpenAICompatible)) {
		t.Errorf("malformed error must name the assumed family: %v", err)
	}
}

func TestRunAskTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := server.URL
	server.Close()

	d := NewDispatcher(WithRequestTimeout(2 * time.Second))
	_, err := d.RunAsk(context.Background(), testProviderConfig(deadURL, FamilyOpenAICompatible), AskRequest{Prompt: "hi"})
	if !IsKind(err, ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestRunAskRejectsInvalidSnapshot(t *testing.T) {
	d := NewDispatcher()
	_, err := d.RunAsk(context.Background(), ProviderConfig{Name: "bad", BaseURL: "ftp://nope"}, AskRequest{Prompt: "hi"})
	if !IsKind(err, ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestWithLoggerKeepsInstalledDetector(t *testing.T) {
	transport := &fakeTransport{handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"data":[{"id":"m"}]}`)
	}}
	det := newTestDetector(transport)

	d := NewDispatcher(WithDetector(det), WithLogger(zerolog.Nop()))

	if d.Detector() != det {
		t.Fatal("setting a logger must not replace an installed detector")
	}

	d.Detector().Detect(context.Background(), "https://llm.internal.example", "", FamilyUnknown)
	if transport.calls != 1 {
		t.Errorf("expected the installed probe transport to be used, got %d calls", transport.calls)
	}
}

func TestRunDoctorHealthyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"id":"m"}]}`))
	}))
	defer server.Close()

	d := NewDispatcher()
	report := d.RunDoctor(context.Background(), testProviderConfig(server.URL, FamilyUnknown))

	if !report.Reachable {
		t.Error("expected reachable report")
	}
	if report.Status != http.StatusOK {
		t.Errorf("expected status 200, got %d", report.Status)
	}
	if report.Family != FamilyOpenAICompatible || report.Confidence != ConfidenceProbed {
		t.Errorf("expected probed openai_compatible, got %s/%s", report.Family, report.Confidence)
	}
	if report.Latency <= 0 {
		t.Error("expected a measured latency")
	}
}

func TestRunDoctorUnreachableNeverFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := server.URL
	server.Close()

	d := NewDispatcher(WithRequestTimeout(2 * time.Second))
	d.Detector().client.Timeout = 2 * time.Second

	report := d.RunDoctor(context.Background(), testProviderConfig(deadURL, FamilyUnknown))

	if report.Reachable {
		t.Error("expected unreachable report")
	}
	if report.Err == "" {
		t.Error("expected a populated error field")
	}
	if report.Family != FamilyUnknown || report.Confidence != ConfidenceFallback {
		t.Errorf("expected unknown/fallback, got %s/%s", report.Family, report.Confidence)
	}
}

func TestRunDoctorPinnedAnthropicPingsMessages(t *testing.T) {
	var pingPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pingPath = r.URL.Path
		http.Error(w, `{"type":"error","error":{"type":"invalid_request_error"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	d := NewDispatcher()
	report := d.RunDoctor(context.Background(), testProviderConfig(server.URL, FamilyAnthropic))

	if pingPath != "/v1/messages" {
		t.Errorf("expected anthropic ping on /v1/messages, got %s", pingPath)
	}
	if !report.Reachable {
		t.Error("a 4xx answer still proves reachability")
	}
	if report.Family != FamilyAnthropic || report.Confidence != ConfidenceCertain {
		t.Errorf("expected pinned anthropic/certain, got %s/%s", report.Family, report.Confidence)
	}
}
