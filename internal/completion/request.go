package completion

import (
	"github.com/bruwbird/codex/internal/settings"
)

// Request is the JSON body posted to the completion endpoint.
type Request struct {
	Prompt           string  `json:"prompt"`
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
	TopP             float64 `json:"top_p"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	PresencePenalty  float64 `json:"presence_penalty"`
}

func NewRequest(prompt string, p settings.Params) Request {
	return Request{
		Prompt:           prompt,
		Temperature:      p.Temperature,
		MaxTokens:        p.MaxTokens,
		TopP:             p.TopP,
		FrequencyPenalty: p.FrequencyPenalty,
		PresencePenalty:  p.PresencePenalty,
	}
}

// ProbeRequest is the zero-output request used to check a credential.
func ProbeRequest() Request {
	return Request{
		Prompt:      "",
		Temperature: 0,
		MaxTokens:   1,
		TopP:        1,
	}
}
