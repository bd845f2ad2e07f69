package connectivity

import "sync"

// notifier holds the current state and the edge subscribers.
type notifier struct {
	mu     sync.RWMutex
	online bool
	nextID uint64
	subs   map[uint64]func(bool)
}

func (n *notifier) Online() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.online
}

func (n *notifier) Subscribe(fn func(online bool)) func() {
	n.mu.Lock()
	if n.subs == nil {
		n.subs = make(map[uint64]func(bool))
	}
	n.nextID++
	id := n.nextID
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// set records the new state and reports whether it was an edge. Subscribers
// are called outside the lock.
func (n *notifier) set(online bool) bool {
	n.mu.Lock()
	if n.online == online {
		n.mu.Unlock()
		return false
	}
	n.online = online
	fns := make([]func(bool), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
	return true
}
