package settings

import (
	"encoding/json"
	"math"
)

type Key string

const (
	KeyModel            Key = "codex.model"
	KeyAPIKey           Key = "codex.key"
	KeyVerified         Key = "key.verified"
	KeyTemperature      Key = "codex.temperature"
	KeyMaxTokens        Key = "codex.max_tokens"
	KeyTopP             Key = "codex.top_p"
	KeyFrequencyPenalty Key = "codex.frequency_penalty"
	KeyPresencePenalty  Key = "codex.presence_penalty"
)

// String returns the stored string for key, or def when absent, unreadable or
// not a string.
func String(s Store, key Key, def string) string {
	var v string
	if !lookupInto(s, key, &v) {
		return def
	}
	return v
}

func Float64(s Store, key Key, def float64) float64 {
	var v float64
	if !lookupInto(s, key, &v) || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

// Int returns the stored integer for key. Stored numbers with a fractional
// part are treated as absent.
func Int(s Store, key Key, def int) int {
	var v float64
	if !lookupInto(s, key, &v) {
		return def
	}
	if v != math.Trunc(v) || v > math.MaxInt32 || v < math.MinInt32 {
		return def
	}
	return int(v)
}

func Bool(s Store, key Key, def bool) bool {
	var v bool
	if !lookupInto(s, key, &v) {
		return def
	}
	return v
}

func lookupInto(s Store, key Key, dst any) bool {
	raw, ok, err := s.Lookup(key)
	if err != nil || !ok || len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
