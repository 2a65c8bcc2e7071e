// Package session tracks the players currently connected through the host
// bridge and the state of their bank overlay.
package session

import (
	"fmt"
	"sync"

	"github.com/rongwang/banking-server/internal/models"
)

// Session is one connected player
type Session struct {
	CallerID  string
	Character models.Character
	// UIOpen is true while the bank overlay is shown
	UIOpen bool
	Cash   int64
	// LoadedUI is set once the overlay has received its locale strings
	LoadedUI bool
}

// Registry holds sessions keyed by caller id. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register starts or replaces the session for callerID. A replaced session
// starts over with the overlay closed.
func (r *Registry) Register(callerID string, character models.Character) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[callerID] = &Session{CallerID: callerID, Character: character}
}

// Drop ends the session and reports whether one existed
func (r *Registry) Drop(callerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.sessions[callerID]
	delete(r.sessions, callerID)
	return ok
}

// Get returns a copy of the session
func (r *Registry) Get(callerID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[callerID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// CharacterID returns the character played by callerID
func (r *Registry) CharacterID(callerID string) (int64, error) {
	s, ok := r.Get(callerID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", models.ErrUnknownCaller, callerID)
	}
	return s.Character.CharID, nil
}

// Open marks the overlay as shown with the player's current cash. firstOpen
// is true only the first time for this session, when the overlay still
// needs its locale strings.
func (r *Registry) Open(callerID string, cash int64) (firstOpen bool, err error) {
	err = r.update(callerID, func(s *Session) {
		s.UIOpen = true
		s.Cash = cash
		firstOpen = !s.LoadedUI
		s.LoadedUI = true
	})
	return firstOpen, err
}

// Close marks the overlay as hidden
func (r *Registry) Close(callerID string) error {
	return r.update(callerID, func(s *Session) {
		s.UIOpen = false
	})
}

// UpdateCash records a new cash count. refresh reports whether an open
// overlay shows a stale value.
func (r *Registry) UpdateCash(callerID string, cash int64) (refresh bool, err error) {
	err = r.update(callerID, func(s *Session) {
		refresh = s.UIOpen && s.Cash != cash
		s.Cash = cash
	})
	return refresh, err
}

// Len returns the number of active sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) update(callerID string, fn func(s *Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[callerID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUnknownCaller, callerID)
	}
	fn(s)
	return nil
}
