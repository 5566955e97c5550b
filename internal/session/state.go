// Package session owns the activation state and implements the user commands.
package session

import (
	"sync"

	"github.com/bruwbird/codex/internal/admission"
)

// State is the process-wide session: whether a session has been started and
// which documents have a generation in flight. It is created once and handed
// to every command.
type State struct {
	mu        sync.Mutex
	activated bool
	admission *admission.Controller
}

func NewState() *State {
	return &State{admission: admission.New()}
}

func (s *State) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activated = true
}

func (s *State) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activated = false
}

func (s *State) Activated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activated
}

func (s *State) Admission() *admission.Controller {
	return s.admission
}
