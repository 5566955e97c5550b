// Package notifytest provides a recording Notifier for tests.
package notifytest

import (
	"sync"

	"github.com/bruwbird/codex/internal/notify"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Message struct {
	Level Level
	Text  string
}

type Recorder struct {
	mu       sync.Mutex
	messages []Message
	opened   []string
	done     int
	reports  int
}

func (r *Recorder) Info(msg string)  { r.add(LevelInfo, msg) }
func (r *Recorder) Warn(msg string)  { r.add(LevelWarn, msg) }
func (r *Recorder) Error(msg string) { r.add(LevelError, msg) }

func (r *Recorder) add(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Text: msg})
}

func (r *Recorder) Progress(title string) notify.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, title)
	return &recordedProgress{r: r}
}

// Messages returns a copy of every message in order.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Count returns how many messages of level were recorded.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.Level == level {
			n++
		}
	}
	return n
}

// ProgressOpened returns the titles of every progress indicator opened.
func (r *Recorder) ProgressOpened() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.opened...)
}

// ProgressDone returns how many progress indicators were closed.
func (r *Recorder) ProgressDone() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Reports returns how many progress increments were reported.
func (r *Recorder) Reports() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reports
}

type recordedProgress struct {
	r *Recorder
}

func (p *recordedProgress) Report(float64, string) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	p.r.reports++
}

func (p *recordedProgress) Done() {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	p.r.done++
}

var _ notify.Notifier = (*Recorder)(nil)
