package service

import (
	"sync"

	"offline-cart-sync/internal/events"
)

// SessionAction is an update dispatched to the SessionContext.
type SessionAction interface {
	apply(current string) string
}

type SetCartID struct {
	ID string
}

func (a SetCartID) apply(string) string { return a.ID }

type ClearCartID struct{}

func (ClearCartID) apply(string) string { return "" }

// SessionContext holds the cart identity known to the running session.
type SessionContext struct {
	mu     sync.RWMutex
	cartID string
	bus    *events.Bus
}

func NewSessionContext(bus *events.Bus) *SessionContext {
	return &SessionContext{bus: bus}
}

func (s *SessionContext) CartID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cartID
}

// Dispatch applies action and publishes TopicCartIdentityChanged when the
// identity actually changed.
func (s *SessionContext) Dispatch(action SessionAction) {
	s.mu.Lock()
	prev := s.cartID
	s.cartID = action.apply(prev)
	cur := s.cartID
	s.mu.Unlock()

	if prev == cur {
		return
	}

	s.bus.Publish(events.Event{
		Topic:   events.TopicCartIdentityChanged,
		Payload: events.CartIdentityChanged{Previous: prev, Current: cur},
	})
}
