// Package config persists the provider registry.
//
// The registry is a named set of provider entries with at most one
// default. The core never mutates it; only the config commands do, and
// every mutation re-validates the single-default invariant. Reads hand
// out value snapshots, so detection results can never leak back into
// the persisted file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/viper"

	"github.com/omni-cli/omni/llm"
)

const (
	configDirName  = "omni"
	configFileName = "config.yaml"

	// EnvConfigPath overrides the registry file location.
	EnvConfigPath = "OMNI_CONFIG"
)

// Registry holds the named provider configurations.
type Registry struct {
	Providers map[string]llm.ProviderConfig `mapstructure:"providers"`
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{Providers: map[string]llm.ProviderConfig{}}
}

// Validate enforces the registry invariants: entries keyed by their
// own name, every entry usable, and at most one default.
func (r *Registry) Validate() error {
	defaults := 0
	for name, p := range r.Providers {
		if p.Name != name {
			return fmt.Errorf("provider entry %q carries mismatched name %q", name, p.Name)
		}
		if err := p.Validate(); err != nil {
			return err
		}
		if p.IsDefault {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("registry has %d default providers, want at most 1", defaults)
	}
	return nil
}

// Add inserts or replaces a provider entry. The first entry ever added
// becomes the default; makeDefault moves the default explicitly,
// clearing the previous one.
func (r *Registry) Add(p llm.ProviderConfig, makeDefault bool) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if r.Providers == nil {
		r.Providers = map[string]llm.ProviderConfig{}
	}

	_, replacing := r.Providers[p.Name]
	if makeDefault || (len(r.Providers) == 0 && !replacing) {
		for name, other := range r.Providers {
			other.IsDefault = false
			r.Providers[name] = other
		}
		p.IsDefault = true
	} else if replacing {
		p.IsDefault = r.Providers[p.Name].IsDefault
	}

	r.Providers[p.Name] = p
	return r.Validate()
}

// SetDefault designates name as the sole default.
func (r *Registry) SetDefault(name string) error {
	if _, ok := r.Providers[name]; !ok {
		return fmt.Errorf("unknown provider: %q", name)
	}
	for n, p := range r.Providers {
		p.IsDefault = n == name
		r.Providers[n] = p
	}
	return nil
}

// Remove deletes a provider entry.
func (r *Registry) Remove(name string) error {
	if _, ok := r.Providers[name]; !ok {
		return fmt.Errorf("unknown provider: %q", name)
	}
	delete(r.Providers, name)
	return nil
}

// Default returns the default provider entry.
func (r *Registry) Default() (llm.ProviderConfig, bool) {
	for _, p := range r.Providers {
		if p.IsDefault {
			return p, true
		}
	}
	return llm.ProviderConfig{}, false
}

// Resolve returns the entry for name, or the default when name is
// empty. The returned value is a snapshot; mutating it does not touch
// the registry.
func (r *Registry) Resolve(name string) (llm.ProviderConfig, error) {
	if name == "" {
		p, ok := r.Default()
		if !ok {
			return llm.ProviderConfig{}, fmt.Errorf("no default provider configured; add one with 'omni config-add --default'")
		}
		return p, nil
	}
	p, ok := r.Providers[name]
	if !ok {
		return llm.ProviderConfig{}, fmt.Errorf("unknown provider: %q", name)
	}
	return p, nil
}

// Names returns the provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Providers))
	for name := range r.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Path returns the registry file location, honoring OMNI_CONFIG.
func Path() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", configDirName, configFileName), nil
}

// Load reads the registry from disk. A missing file yields an empty
// registry, not an error. API key values support ${ENV_VAR} expansion
// so the file never has to hold plaintext secrets.
func Load() (*Registry, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the registry from an explicit path.
func LoadFrom(path string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return NewRegistry(), nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	reg := NewRegistry()
	if err := v.Unmarshal(reg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	for name, p := range reg.Providers {
		if p.Name == "" {
			p.Name = name
		}
		family, err := llm.ParseFamily(string(p.Family))
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		p.Family = family
		p.APIKey = os.ExpandEnv(p.APIKey)
		reg.Providers[name] = p
	}

	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return reg, nil
}

// Save writes the registry to disk, creating parent directories.
func Save(r *Registry) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(r, path)
}

// SaveTo writes the registry to an explicit path.
func SaveTo(r *Registry, path string) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	providers := map[string]any{}
	for name, p := range r.Providers {
		providers[name] = map[string]any{
			"name":     p.Name,
			"base_url": p.BaseURL,
			"api_key":  p.APIKey,
			"model":    p.Model,
			"family":   string(p.Family),
			"default":  p.IsDefault,
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.Set("providers", providers)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
