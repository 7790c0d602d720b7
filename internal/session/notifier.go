package session

import (
	"context"
	"sync"
)

// Notifier fans identity changes out to in-process subscribers.
type Notifier struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Change)
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]func(Change))}
}

// Subscribe registers a callback invoked on every change. The returned
// function unregisters it and is safe to call more than once.
func (n *Notifier) Subscribe(callback func(Change)) (unsubscribe func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = callback
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// Notify delivers a change to every current subscriber. Callbacks run outside
// the lock so they may subscribe or unsubscribe.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	callbacks := make([]func(Change), 0, len(n.subs))
	for _, cb := range n.subs {
		callbacks = append(callbacks, cb)
	}
	n.mu.RUnlock()

	for _, cb := range callbacks {
		cb(change)
	}
}

// Len returns the number of registered subscribers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

// Bus carries changes to every notifier that should see them. The local bus
// delivers straight to one notifier; the Redis bus relays between instances.
type Bus interface {
	Publish(ctx context.Context, change Change) error
	Close() error
}

// LocalBus delivers changes to a single in-process notifier.
type LocalBus struct {
	notifier *Notifier
}

func NewLocalBus(notifier *Notifier) *LocalBus {
	return &LocalBus{notifier: notifier}
}

func (b *LocalBus) Publish(_ context.Context, change Change) error {
	b.notifier.Notify(change)
	return nil
}

func (b *LocalBus) Close() error {
	return nil
}
