package settings_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bruwbird/codex/internal/settings"
	"github.com/google/go-cmp/cmp"
)

func TestLoadParams_DefaultsWhenUnset(t *testing.T) {
	t.Parallel()

	store := settings.NewMemory()

	want := settings.Params{
		Temperature:      0,
		MaxTokens:        128,
		TopP:             1,
		FrequencyPenalty: 0,
		PresencePenalty:  0,
	}
	if diff := cmp.Diff(want, settings.LoadParams(store)); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(settings.DefaultModel, settings.Model(store)); diff != "" {
		t.Fatalf("model mismatch (-want +got):\n%s", diff)
	}
	if got := settings.APIKey(store); got != "" {
		t.Fatalf("api key: got %q want empty", got)
	}
	if settings.Bool(store, settings.KeyVerified, false) {
		t.Fatalf("verified flag must default to false")
	}
}

func TestApply_AcceptsBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		key  settings.Key
		want float64
	}{
		{name: "temperature", raw: "0", key: settings.KeyTemperature, want: 0},
		{name: "temperature", raw: "1", key: settings.KeyTemperature, want: 1},
		{name: "max_tokens", raw: "1", key: settings.KeyMaxTokens, want: 1},
		{name: "max_tokens", raw: "4096", key: settings.KeyMaxTokens, want: 4096},
		{name: "top_p", raw: "0", key: settings.KeyTopP, want: 0},
		{name: "top_p", raw: "1", key: settings.KeyTopP, want: 1},
		{name: "frequency_penalty", raw: "0", key: settings.KeyFrequencyPenalty, want: 0},
		{name: "frequency_penalty", raw: "2", key: settings.KeyFrequencyPenalty, want: 2},
		{name: "presence_penalty", raw: "0", key: settings.KeyPresencePenalty, want: 0},
		{name: "presence_penalty", raw: "2", key: settings.KeyPresencePenalty, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name+"="+tt.raw, func(t *testing.T) {
			t.Parallel()

			store := settings.NewMemory()
			if err := settings.Apply(store, tt.name, tt.raw); err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if diff := cmp.Diff(tt.want, settings.Float64(store, tt.key, -1)); diff != "" {
				t.Fatalf("stored value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApply_RejectsOutOfRangeAndKeepsPrevious(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		previous string
		raw      string
		key      settings.Key
		want     float64
		wantErr  error
	}{
		{name: "temperature", previous: "0.5", raw: "1.01", key: settings.KeyTemperature, want: 0.5, wantErr: settings.ErrOutOfRange},
		{name: "temperature", previous: "0.5", raw: "-0.01", key: settings.KeyTemperature, want: 0.5, wantErr: settings.ErrOutOfRange},
		{name: "max_tokens", previous: "64", raw: "0", key: settings.KeyMaxTokens, want: 64, wantErr: settings.ErrOutOfRange},
		{name: "max_tokens", previous: "64", raw: "4097", key: settings.KeyMaxTokens, want: 64, wantErr: settings.ErrOutOfRange},
		{name: "max_tokens", previous: "64", raw: "12.5", key: settings.KeyMaxTokens, want: 64, wantErr: settings.ErrNotAnInteger},
		{name: "top_p", previous: "0.9", raw: "1.01", key: settings.KeyTopP, want: 0.9, wantErr: settings.ErrOutOfRange},
		{name: "top_p", previous: "0.9", raw: "-0.01", key: settings.KeyTopP, want: 0.9, wantErr: settings.ErrOutOfRange},
		{name: "frequency_penalty", previous: "1", raw: "2.01", key: settings.KeyFrequencyPenalty, want: 1, wantErr: settings.ErrOutOfRange},
		{name: "frequency_penalty", previous: "1", raw: "-0.01", key: settings.KeyFrequencyPenalty, want: 1, wantErr: settings.ErrOutOfRange},
		{name: "presence_penalty", previous: "1", raw: "2.01", key: settings.KeyPresencePenalty, want: 1, wantErr: settings.ErrOutOfRange},
		{name: "presence_penalty", previous: "1", raw: "abc", key: settings.KeyPresencePenalty, want: 1, wantErr: settings.ErrNotANumber},
		{name: "temperature", previous: "0.5", raw: "NaN", key: settings.KeyTemperature, want: 0.5, wantErr: settings.ErrNotANumber},
		{name: "temperature", previous: "0.5", raw: " ", key: settings.KeyTemperature, want: 0.5, wantErr: settings.ErrEmptyValue},
	}

	for _, tt := range tests {
		t.Run(tt.name+"="+tt.raw, func(t *testing.T) {
			t.Parallel()

			store := settings.NewMemory()
			if err := settings.Apply(store, tt.name, tt.previous); err != nil {
				t.Fatalf("Apply previous: %v", err)
			}

			err := settings.Apply(store, tt.name, tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Apply error: got %v want %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, settings.Float64(store, tt.key, -1)); diff != "" {
				t.Fatalf("stored value changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApply_ModelAndUnknown(t *testing.T) {
	t.Parallel()

	store := settings.NewMemory()

	if err := settings.Apply(store, "model", " /v1/engines/cushman-codex/completions "); err != nil {
		t.Fatalf("Apply model: %v", err)
	}
	if diff := cmp.Diff("/v1/engines/cushman-codex/completions", settings.Model(store)); diff != "" {
		t.Fatalf("model mismatch (-want +got):\n%s", diff)
	}

	if err := settings.Apply(store, "model", ""); !errors.Is(err, settings.ErrEmptyValue) {
		t.Fatalf("Apply empty model: got %v want %v", err, settings.ErrEmptyValue)
	}
	if err := settings.Apply(store, "seed", "1"); !errors.Is(err, settings.ErrUnknownSetting) {
		t.Fatalf("Apply unknown: got %v want %v", err, settings.ErrUnknownSetting)
	}
}

func TestSpec_Title(t *testing.T) {
	t.Parallel()

	spec, err := settings.Lookup("max_tokens")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if diff := cmp.Diff("max_tokens [1, 4096]", spec.Title()); diff != "" {
		t.Fatalf("title mismatch (-want +got):\n%s", diff)
	}
}

func TestReset_WritesDefaultsOnly(t *testing.T) {
	t.Parallel()

	store := settings.NewMemory()
	for name, raw := range map[string]string{
		"temperature":       "0.7",
		"max_tokens":        "512",
		"top_p":             "0.5",
		"frequency_penalty": "1.5",
		"presence_penalty":  "1.5",
		"model":             "/v1/custom",
	} {
		if err := settings.Apply(store, name, raw); err != nil {
			t.Fatalf("Apply %s: %v", name, err)
		}
	}
	if err := store.Set(settings.KeyAPIKey, "sk-test"); err != nil {
		t.Fatalf("Set key: %v", err)
	}

	if err := settings.Reset(store); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if diff := cmp.Diff(settings.DefaultParams(), settings.LoadParams(store)); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("/v1/custom", settings.Model(store)); diff != "" {
		t.Fatalf("model must survive reset (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("sk-test", settings.APIKey(store)); diff != "" {
		t.Fatalf("key must survive reset (-want +got):\n%s", diff)
	}
}

func TestLoadParams_IgnoresInvalidStoredValues(t *testing.T) {
	t.Parallel()

	store := settings.NewMemory()
	mustSet(t, store, settings.KeyTemperature, 3.5)
	mustSet(t, store, settings.KeyMaxTokens, 12.5)
	mustSet(t, store, settings.KeyTopP, "high")
	mustSet(t, store, settings.KeyFrequencyPenalty, 1.25)

	want := settings.DefaultParams()
	want.FrequencyPenalty = 1.25
	if diff := cmp.Diff(want, settings.LoadParams(store)); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()

	first := settings.NewFileStore(workspace)
	if err := settings.Apply(first, "max_tokens", "256"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	mustSet(t, first, settings.KeyVerified, true)

	second := settings.NewFileStore(workspace)
	if diff := cmp.Diff(256, settings.Int(second, settings.KeyMaxTokens, 0)); diff != "" {
		t.Fatalf("max_tokens mismatch (-want +got):\n%s", diff)
	}
	if !settings.Bool(second, settings.KeyVerified, false) {
		t.Fatalf("verified flag not persisted")
	}

	info, err := os.Stat(filepath.Join(workspace, ".codex", "settings.json"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if diff := cmp.Diff(os.FileMode(0o600), info.Mode().Perm()); diff != "" {
		t.Fatalf("file mode mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStore_MissingFileReadsDefaults(t *testing.T) {
	t.Parallel()

	store := settings.NewFileStore(t.TempDir())
	if diff := cmp.Diff(settings.DefaultParams(), settings.LoadParams(store)); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStore_CorruptFileSurfacesError(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()
	store := settings.NewFileStore(workspace)
	if err := os.MkdirAll(filepath.Dir(store.Path()), 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, _, err := store.Lookup(settings.KeyModel); err == nil {
		t.Fatalf("Lookup: expected parse error")
	}
	if err := store.Set(settings.KeyModel, "/v1/x"); err == nil {
		t.Fatalf("Set: expected parse error")
	}
	if diff := cmp.Diff(settings.DefaultModel, settings.Model(store)); diff != "" {
		t.Fatalf("model mismatch (-want +got):\n%s", diff)
	}
}

func mustSet(t *testing.T, store settings.Store, key settings.Key, value any) {
	t.Helper()
	if err := store.Set(key, value); err != nil {
		t.Fatalf("Set %s: %v", key, err)
	}
}
