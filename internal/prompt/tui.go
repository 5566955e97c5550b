package prompt

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	tuiMinInputWidth     = 20
	tuiInputWidthPadding = 2
)

type tuiStyles struct {
	title    lipgloss.Style
	selected lipgloss.Style
	meta     lipgloss.Style
	err      lipgloss.Style
}

func newTUIStyles() tuiStyles {
	return tuiStyles{
		title:    lipgloss.NewStyle().Bold(true),
		selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
		meta:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		err:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
	}
}

// TUI renders prompts with bubbletea. If the program cannot start it falls
// back to line-based prompts.
type TUI struct {
	in       *os.File
	out      *os.File
	fallback *Lines
}

func (t *TUI) Input(ctx context.Context, in Input) (string, bool, error) {
	m := newInputModel(in)
	final, err := t.run(ctx, m)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", false, err
		}
		return t.fallback.Input(ctx, in)
	}
	res, _ := final.(*inputModel)
	if res == nil || !res.submitted {
		return "", false, nil
	}
	return res.value(), true, nil
}

func (t *TUI) Pick(ctx context.Context, title string, items []string) (string, bool, error) {
	if len(items) == 0 {
		return "", false, errors.New("nothing to pick from")
	}
	m := newPickModel(title, items)
	final, err := t.run(ctx, m)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", false, err
		}
		return t.fallback.Pick(ctx, title, items)
	}
	res, _ := final.(*pickModel)
	if res == nil || !res.chosen {
		return "", false, nil
	}
	return res.items[res.cursor], true, nil
}

func (t *TUI) run(ctx context.Context, m tea.Model) (tea.Model, error) {
	p := tea.NewProgram(m, tea.WithInput(t.in), tea.WithOutput(t.out), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return final, err
}

type inputModel struct {
	opts      Input
	input     textinput.Model
	styles    tuiStyles
	errMsg    string
	submitted bool
}

func newInputModel(opts Input) *inputModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = opts.Placeholder
	ti.SetValue(opts.Value)
	ti.CharLimit = 0
	if opts.Password {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	ti.Focus()
	return &inputModel{opts: opts, input: ti, styles: newTUIStyles()}
}

func (m *inputModel) value() string {
	return strings.TrimSpace(m.input.Value())
}

func (m *inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.input.Width = max(tuiMinInputWidth, msg.Width-tuiInputWidthPadding)
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.opts.Validate != nil {
				if err := m.opts.Validate(m.value()); err != nil {
					m.errMsg = err.Error()
					return m, nil
				}
			}
			m.submitted = true
			return m, tea.Quit
		}
	}

	m.errMsg = ""
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *inputModel) View() string {
	if m.submitted {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.title.Render(m.opts.Title))
	b.WriteByte('\n')
	b.WriteString(m.input.View())
	b.WriteByte('\n')
	if m.errMsg != "" {
		b.WriteString(m.styles.err.Render(m.errMsg))
		b.WriteByte('\n')
	}
	b.WriteString(m.styles.meta.Render("Enter: confirm • Esc: cancel"))
	b.WriteByte('\n')
	return b.String()
}

type pickModel struct {
	title  string
	items  []string
	cursor int
	chosen bool
	styles tuiStyles
}

func newPickModel(title string, items []string) *pickModel {
	return &pickModel{title: title, items: items, styles: newTUIStyles()}
}

func (m *pickModel) Init() tea.Cmd {
	return nil
}

func (m *pickModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "esc", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter":
		m.chosen = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *pickModel) View() string {
	if m.chosen {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.title.Render(m.title))
	b.WriteByte('\n')
	for i, item := range m.items {
		if i == m.cursor {
			b.WriteString(m.styles.selected.Render("> " + item))
		} else {
			b.WriteString("  " + item)
		}
		b.WriteByte('\n')
	}
	b.WriteString(m.styles.meta.Render("↑/↓: move • Enter: select • Esc: cancel"))
	b.WriteByte('\n')
	return b.String()
}

var _ Prompter = (*TUI)(nil)
