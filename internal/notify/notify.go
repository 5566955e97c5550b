// Package notify reports progress and terminal outcomes to the user.
package notify

import (
	"sync"
	"time"
)

// Notifier is the user-facing message and progress surface.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	// Progress opens an indeterminate progress indicator. Done must be called
	// exactly once.
	Progress(title string) Progress
}

type Progress interface {
	// Report advances the indicator by increment percent.
	Report(increment float64, message string)
	Done()
}

// Schedule is a fixed cosmetic progress cadence.
type Schedule struct {
	Steps     int
	Increment float64
	Interval  time.Duration
	Message   string
}

var (
	// CompletionSchedule is used while waiting for a completion.
	CompletionSchedule = Schedule{Steps: 20, Increment: 5, Interval: 500 * time.Millisecond, Message: "Generating..."}

	// VerifySchedule is used while a key is being verified.
	VerifySchedule = Schedule{Steps: 10, Increment: 10, Interval: 500 * time.Millisecond, Message: "Verifying..."}
)

// Start reports s to p in the background until the steps run out or the
// returned stop function is called. Stop is idempotent and waits for the
// reporting goroutine to exit, so no Report happens after it returns.
func (s Schedule) Start(p Progress) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if s.Steps <= 0 || s.Interval <= 0 {
			return
		}
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for range s.Steps {
			select {
			case <-done:
				return
			case <-ticker.C:
				p.Report(s.Increment, s.Message)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) Info(string)              {}
func (Nop) Warn(string)              {}
func (Nop) Error(string)             {}
func (Nop) Progress(string) Progress { return nopProgress{} }

type nopProgress struct{}

func (nopProgress) Report(float64, string) {}
func (nopProgress) Done()                  {}

var _ Notifier = Nop{}
