// Package settingsview renders the current settings as a read-only table.
package settingsview

import (
	"fmt"
	"io"
	"strconv"

	"github.com/bruwbird/codex/internal/settings"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Snapshot is the displayable state of the settings. It never carries the
// API key itself.
type Snapshot struct {
	Model            string  `json:"model"`
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
	TopP             float64 `json:"top_p"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	PresencePenalty  float64 `json:"presence_penalty"`
	KeySet           bool    `json:"key_set"`
	KeyVerified      bool    `json:"key_verified"`
}

func Load(store settings.Store) Snapshot {
	p := settings.LoadParams(store)
	return Snapshot{
		Model:            settings.Model(store),
		Temperature:      p.Temperature,
		MaxTokens:        p.MaxTokens,
		TopP:             p.TopP,
		FrequencyPenalty: p.FrequencyPenalty,
		PresencePenalty:  p.PresencePenalty,
		KeySet:           settings.APIKey(store) != "",
		KeyVerified:      settings.Bool(store, settings.KeyVerified, false),
	}
}

// Rows returns the table body in display order.
func (s Snapshot) Rows() [][]string {
	return [][]string{
		{"model", s.Model},
		{"temperature", formatFloat(s.Temperature)},
		{"max_tokens", strconv.Itoa(s.MaxTokens)},
		{"top_p", formatFloat(s.TopP)},
		{"frequency_penalty", formatFloat(s.FrequencyPenalty)},
		{"presence_penalty", formatFloat(s.PresencePenalty)},
		{"api key", keyState(s)},
	}
}

func Render(w io.Writer, s Snapshot) error {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("Setting", "Value").
		Rows(s.Rows()...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func keyState(s Snapshot) string {
	switch {
	case !s.KeySet:
		return "not set"
	case s.KeyVerified:
		return "set (verified)"
	default:
		return "set (not verified)"
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
