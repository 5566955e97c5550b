package settings

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultModel            = "/v1/engines/davinci-codex/completions"
	DefaultTemperature      = 0.0
	DefaultMaxTokens        = 128
	DefaultTopP             = 1.0
	DefaultFrequencyPenalty = 0.0
	DefaultPresencePenalty  = 0.0
)

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrNotANumber     = errors.New("the input must be a number")
	ErrNotAnInteger   = errors.New("the input must be an integer")
	ErrOutOfRange     = errors.New("value out of range")
	ErrEmptyValue     = errors.New("value must be non-empty")
)

// Name is a user-editable setting as offered by the settings picker.
type Name string

const (
	NameTemperature      Name = "temperature"
	NameMaxTokens        Name = "max_tokens"
	NameTopP             Name = "top_p"
	NameFrequencyPenalty Name = "frequency_penalty"
	NamePresencePenalty  Name = "presence_penalty"
	NameModel            Name = "model"
)

// Names lists the picker entries in display order.
var Names = []Name{
	NameTemperature,
	NameMaxTokens,
	NameTopP,
	NameFrequencyPenalty,
	NamePresencePenalty,
	NameModel,
}

// Spec describes how a setting is stored and validated.
type Spec struct {
	Name    Name
	Key     Key
	Integer bool
	Numeric bool
	Min     float64
	Max     float64
	Default string
	Prompt  string
}

var specs = map[Name]Spec{
	NameTemperature: {
		Name: NameTemperature, Key: KeyTemperature, Numeric: true,
		Min: 0, Max: 1, Default: "0",
		Prompt: "Temperature is a floating point no. (eg. 0.7)",
	},
	NameMaxTokens: {
		Name: NameMaxTokens, Key: KeyMaxTokens, Numeric: true, Integer: true,
		Min: 1, Max: 4096, Default: "128",
		Prompt: "max_tokens is no. of tokens generated",
	},
	NameTopP: {
		Name: NameTopP, Key: KeyTopP, Numeric: true,
		Min: 0, Max: 1, Default: "1",
		Prompt: "Controls diversity",
	},
	NameFrequencyPenalty: {
		Name: NameFrequencyPenalty, Key: KeyFrequencyPenalty, Numeric: true,
		Min: 0, Max: 2, Default: "0",
		Prompt: "Decrease the model's repeatability",
	},
	NamePresencePenalty: {
		Name: NamePresencePenalty, Key: KeyPresencePenalty, Numeric: true,
		Min: 0, Max: 2, Default: "0",
		Prompt: "Increase likelihood of creativity",
	},
	NameModel: {
		Name: NameModel, Key: KeyModel,
		Default: DefaultModel,
		Prompt:  "Change the model",
	},
}

func Lookup(name string) (Spec, error) {
	spec, ok := specs[Name(strings.TrimSpace(name))]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknownSetting, name)
	}
	return spec, nil
}

// Title is the input box title, e.g. "temperature [0, 1]".
func (s Spec) Title() string {
	if !s.Numeric {
		return string(s.Name)
	}
	return fmt.Sprintf("%s [%s, %s]", s.Name, formatNumber(s.Min), formatNumber(s.Max))
}

// Parse validates raw and returns the value to store.
func (s Spec) Parse(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%s: %w", s.Name, ErrEmptyValue)
	}
	if !s.Numeric {
		return raw, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%s: %w: %q", s.Name, ErrNotANumber, raw)
	}
	if s.Integer && v != math.Trunc(v) {
		return nil, fmt.Errorf("%s: %w: %q", s.Name, ErrNotAnInteger, raw)
	}
	if v < s.Min || v > s.Max {
		return nil, fmt.Errorf(
			"%s: %w: %s not in [%s, %s]",
			s.Name, ErrOutOfRange, formatNumber(v), formatNumber(s.Min), formatNumber(s.Max),
		)
	}
	if s.Integer {
		return int(v), nil
	}
	return v, nil
}

// Validate reports whether raw would be accepted by Parse.
func (s Spec) Validate(raw string) error {
	_, err := s.Parse(raw)
	return err
}

// Apply parses raw for the named setting and stores it. On error the stored
// value is left untouched.
func Apply(store Store, name string, raw string) error {
	spec, err := Lookup(name)
	if err != nil {
		return err
	}
	v, err := spec.Parse(raw)
	if err != nil {
		return err
	}
	return store.Set(spec.Key, v)
}

// Reset writes the default generation parameters. The endpoint and the API key
// are left untouched.
func Reset(store Store) error {
	defaults := DefaultParams()
	writes := []struct {
		key   Key
		value any
	}{
		{KeyTemperature, defaults.Temperature},
		{KeyMaxTokens, defaults.MaxTokens},
		{KeyTopP, defaults.TopP},
		{KeyFrequencyPenalty, defaults.FrequencyPenalty},
		{KeyPresencePenalty, defaults.PresencePenalty},
	}
	for _, w := range writes {
		if err := store.Set(w.key, w.value); err != nil {
			return err
		}
	}
	return nil
}

// Params is a snapshot of the generation parameters taken at dispatch time.
type Params struct {
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

func DefaultParams() Params {
	return Params{
		Temperature:      DefaultTemperature,
		MaxTokens:        DefaultMaxTokens,
		TopP:             DefaultTopP,
		FrequencyPenalty: DefaultFrequencyPenalty,
		PresencePenalty:  DefaultPresencePenalty,
	}
}

// LoadParams reads the generation parameters. Values that are absent,
// malformed or out of range fall back to their defaults.
func LoadParams(store Store) Params {
	def := DefaultParams()
	return Params{
		Temperature:      inRange(NameTemperature, Float64(store, KeyTemperature, def.Temperature), def.Temperature),
		MaxTokens:        int(inRange(NameMaxTokens, float64(Int(store, KeyMaxTokens, def.MaxTokens)), float64(def.MaxTokens))),
		TopP:             inRange(NameTopP, Float64(store, KeyTopP, def.TopP), def.TopP),
		FrequencyPenalty: inRange(NameFrequencyPenalty, Float64(store, KeyFrequencyPenalty, def.FrequencyPenalty), def.FrequencyPenalty),
		PresencePenalty:  inRange(NamePresencePenalty, Float64(store, KeyPresencePenalty, def.PresencePenalty), def.PresencePenalty),
	}
}

// Model returns the configured endpoint path.
func Model(store Store) string {
	model := strings.TrimSpace(String(store, KeyModel, DefaultModel))
	if model == "" {
		return DefaultModel
	}
	return model
}

func APIKey(store Store) string {
	return strings.TrimSpace(String(store, KeyAPIKey, ""))
}

func inRange(name Name, v float64, def float64) float64 {
	spec := specs[name]
	if v < spec.Min || v > spec.Max {
		return def
	}
	return v
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
