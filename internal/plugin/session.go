package plugin

import (
	"context"
	"sync"

	"buildcopy/internal/copier"
	"buildcopy/internal/log"
	"buildcopy/internal/watch"

	"github.com/google/uuid"
)

// session owns the notifiers armed by one build-end pass. Events from all
// of them are handled one at a time.
type session struct {
	id        string
	notifiers []watch.Notifier

	// Held while an event is handled
	mu     sync.Mutex
	closed bool

	wg sync.WaitGroup
}

func newSession() *session {
	return &session{id: uuid.NewString()}
}

func (s *session) size() int {
	return len(s.notifiers)
}

// attach starts delivering n's events to handle.
func (s *session) attach(n watch.Notifier, handle copier.ChangeHandler) {
	s.notifiers = append(s.notifiers, n)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for ev := range n.Events() {
			s.dispatch(ev, handle)
		}
	}()
}

func (s *session) dispatch(ev watch.Event, handle copier.ChangeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	log.LogWithFields(log.F("session", s.id), log.F("kind", ev.Kind.String()), log.F("path", ev.Path)).
		Debug("Source changed")
	handle(context.Background(), ev.Path)
}

// close waits for the event being handled, if any, then closes every
// notifier. No event is handled afterwards.
func (s *session) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	for _, n := range s.notifiers {
		if err := n.Close(); err != nil {
			log.LogWithError(err).Warn("Error closing notifier")
		}
	}
	s.wg.Wait()
	log.LogWithFields(log.F("session", s.id), log.F("notifiers", len(s.notifiers))).Debug("Watch session closed")
}
