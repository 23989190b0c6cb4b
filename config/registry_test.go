package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/omni-cli/omni/llm"
)

func testProvider(name string) llm.ProviderConfig {
	return llm.ProviderConfig{
		Name:    name,
		BaseURL: "https://api.openai.com",
		APIKey:  "sk-" + name,
		Model:   "gpt-4o-mini",
		Family:  llm.FamilyOpenAICompatible,
	}
}

func TestAddFirstProviderBecomesDefault(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Add(testProvider("work"), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, ok := reg.Default()
	if !ok {
		t.Fatal("expected a default provider")
	}
	if p.Name != "work" {
		t.Errorf("expected 'work' as default, got %q", p.Name)
	}
}

func TestSetDefaultClearsPrevious(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Add(testProvider("a"), false); err != nil {
		t.Fatal(err)
	}
	if err := reg.Add(testProvider("b"), true); err != nil {
		t.Fatal(err)
	}

	if reg.Providers["a"].IsDefault {
		t.Error("previous default must be cleared")
	}
	if !reg.Providers["b"].IsDefault {
		t.Error("new default must be set")
	}
	if err := reg.Validate(); err != nil {
		t.Errorf("unexpected invariant violation: %v", err)
	}
}

func TestValidateRejectsMultipleDefaults(t *testing.T) {
	reg := NewRegistry()
	a := testProvider("a")
	a.IsDefault = true
	b := testProvider("b")
	b.IsDefault = true
	reg.Providers["a"] = a
	reg.Providers["b"] = b

	if err := reg.Validate(); err == nil {
		t.Error("expected error for two defaults")
	}
}

func TestValidateRejectsMismatchedName(t *testing.T) {
	reg := NewRegistry()
	reg.Providers["alias"] = testProvider("other")

	if err := reg.Validate(); err == nil {
		t.Error("expected error for mismatched entry name")
	}
}

func TestResolveEmptyNameUsesDefault(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Add(testProvider("work"), true); err != nil {
		t.Fatal(err)
	}

	p, err := reg.Resolve("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "work" {
		t.Errorf("expected default 'work', got %q", p.Name)
	}

	if _, err := reg.Resolve("missing"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	reg := NewRegistry()
	if err := reg.Add(testProvider("work"), true); err != nil {
		t.Fatal(err)
	}
	claude := llm.ProviderConfig{
		Name:    "claude",
		BaseURL: "https://api.anthropic.com",
		APIKey:  "sk-ant",
		Model:   "claude-sonnet-4-20250514",
		Family:  llm.FamilyAnthropic,
	}
	if err := reg.Add(claude, false); err != nil {
		t.Fatal(err)
	}

	if err := SaveTo(reg, path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(loaded.Providers))
	}
	got := loaded.Providers["claude"]
	if got.Family != llm.FamilyAnthropic {
		t.Errorf("expected anthropic family, got %s", got.Family)
	}
	if got.BaseURL != "https://api.anthropic.com" {
		t.Errorf("unexpected base URL %q", got.BaseURL)
	}
	def, ok := loaded.Default()
	if !ok || def.Name != "work" {
		t.Errorf("expected default 'work' after reload, got %+v", def)
	}
}

func TestLoadMissingFileYieldsEmptyRegistry(t *testing.T) {
	reg, err := LoadFrom(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg.Providers) != 0 {
		t.Errorf("expected empty registry, got %d entries", len(reg.Providers))
	}
}

func TestLoadExpandsEnvInAPIKey(t *testing.T) {
	t.Setenv("OMNI_TEST_KEY", "sk-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	reg := NewRegistry()
	p := testProvider("work")
	p.APIKey = "${OMNI_TEST_KEY}"
	if err := reg.Add(p, true); err != nil {
		t.Fatal(err)
	}
	if err := SaveTo(reg, path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := loaded.Providers["work"].APIKey; got != "sk-from-env" {
		t.Errorf("expected expanded key, got %q", got)
	}
}

func TestLoadNormalizesFamilyAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `providers:
  work:
    name: work
    base_url: https://api.example.com
    api_key: sk-x
    model: m
    family: claude
    default: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := loaded.Providers["work"].Family; got != llm.FamilyAnthropic {
		t.Errorf("expected alias normalization to anthropic, got %s", got)
	}
}
