package dictation

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Pr4c0w1ty/whispering/internal/apperr"
	"github.com/Pr4c0w1ty/whispering/internal/hub"
	"github.com/Pr4c0w1ty/whispering/internal/log"
	"github.com/Pr4c0w1ty/whispering/internal/message"
)

// StateStore holds the recorder state shown to every UI surface. Both
// external setRecorderState messages and the local session write to it.
type StateStore struct {
	mu     sync.RWMutex
	state  message.RecorderState
	hub    *hub.Hub
	logger zerolog.Logger
}

// NewStateStore starts IDLE. h may be nil.
func NewStateStore(h *hub.Hub) *StateStore {
	return &StateStore{state: message.RecorderIdle, hub: h, logger: log.Component("recorder-state")}
}

// SetRecorderState stores s, publishes it and returns it.
func (s *StateStore) SetRecorderState(_ context.Context, st message.RecorderState) (any, error) {
	if !st.Valid() {
		return nil, apperr.New(apperr.KindRecorder, "Invalid recorder state", fmt.Sprintf("unknown recorder state %q", st))
	}
	s.set(st)
	return st, nil
}

// State returns the current state.
func (s *StateStore) State() message.RecorderState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *StateStore) set(st message.RecorderState) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()

	if prev != st {
		s.logger.Debug().Str("from", string(prev)).Str("to", string(st)).Msg("recorder state changed")
	}
	if s.hub != nil {
		s.hub.Publish(hub.EventRecorderState, st)
	}
}
