package connectivity

import (
	"sync"

	"offline-cart-sync/internal/domain"
)

// Observer reports whether the remote cart backend is reachable. Subscribers
// are called once per transition edge, never for steady-state polls.
type Observer interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Controller is an Observer whose state can be forced by an operator.
type Controller interface {
	Observer
	Status() domain.ConnectivityStatus
	SetMode(mode domain.ConnectivityMode)
}

// Static is a Controller whose state only changes through Set or SetMode.
// One-shot CLI commands and tests use it.
type Static struct {
	notifier

	modeMu sync.RWMutex
	mode   domain.ConnectivityMode
}

func NewStatic(online bool) *Static {
	s := &Static{mode: domain.ModeAuto}
	s.online = online
	return s
}

func (s *Static) Set(online bool) {
	s.set(online)
}

func (s *Static) SetMode(mode domain.ConnectivityMode) {
	s.modeMu.Lock()
	s.mode = mode
	s.modeMu.Unlock()

	switch mode {
	case domain.ModeForcedOnline:
		s.set(true)
	case domain.ModeForcedOffline:
		s.set(false)
	}
}

func (s *Static) Status() domain.ConnectivityStatus {
	s.modeMu.RLock()
	defer s.modeMu.RUnlock()
	return domain.ConnectivityStatus{Online: s.Online(), Mode: s.mode}
}
