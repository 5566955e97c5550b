package notify

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const progressBarWidth = 40

type terminalStyles struct {
	info  lipgloss.Style
	warn  lipgloss.Style
	err   lipgloss.Style
	title lipgloss.Style
	meta  lipgloss.Style
}

// Terminal writes styled notifications to a terminal or plain writer. When
// the writer is not a terminal, progress is printed once per report instead
// of being redrawn in place.
type Terminal struct {
	mu     sync.Mutex
	out    io.Writer
	tty    bool
	styles terminalStyles
}

func NewTerminal(out io.Writer) *Terminal {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &Terminal{
		out: out,
		tty: tty,
		styles: terminalStyles{
			info:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
			warn:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
			err:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
			title: lipgloss.NewStyle().Bold(true),
			meta:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		},
	}
}

func (t *Terminal) Info(msg string)  { t.line(t.styles.info.Render("✓") + " " + msg) }
func (t *Terminal) Warn(msg string)  { t.line(t.styles.warn.Render("!") + " " + msg) }
func (t *Terminal) Error(msg string) { t.line(t.styles.err.Render("✗") + " " + msg) }

func (t *Terminal) line(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintln(t.out, s)
}

func (t *Terminal) Progress(title string) Progress {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressBarWidth))
	t.line(t.styles.title.Render(title))
	return &terminalProgress{t: t, bar: bar}
}

type terminalProgress struct {
	t       *Terminal
	bar     progress.Model
	percent float64
	drawn   bool
}

func (p *terminalProgress) Report(increment float64, message string) {
	p.t.mu.Lock()
	defer p.t.mu.Unlock()

	p.percent = min(100, p.percent+increment)
	view := p.bar.ViewAs(p.percent / 100)
	if message != "" {
		view += " " + p.t.styles.meta.Render(message)
	}
	if p.t.tty {
		_, _ = fmt.Fprint(p.t.out, "\r\x1b[2K"+view)
		p.drawn = true
		return
	}
	_, _ = fmt.Fprintln(p.t.out, view)
}

func (p *terminalProgress) Done() {
	p.t.mu.Lock()
	defer p.t.mu.Unlock()
	if p.drawn {
		_, _ = fmt.Fprint(p.t.out, "\r\x1b[2K")
		p.drawn = false
	}
}

var _ Notifier = (*Terminal)(nil)
