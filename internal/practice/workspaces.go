package practice

import (
	"sync"
	"time"
)

const workspaceSweepInterval = time.Minute

// Workspaces keeps one navigator per login, keyed by token id. Navigators
// unused for longer than the idle period are closed and forgotten.
type Workspaces struct {
	fetcher TaskFetcher
	idle    time.Duration
	now     func() time.Time

	mu         sync.Mutex
	navigators map[string]*workspace
	lastSweep  time.Time
}

type workspace struct {
	nav      *Navigator
	lastUsed time.Time
}

// NewWorkspaces creates a registry. A zero idle period keeps navigators until
// they are dropped.
func NewWorkspaces(fetcher TaskFetcher, idle time.Duration) *Workspaces {
	return &Workspaces{
		fetcher:    fetcher,
		idle:       idle,
		now:        time.Now,
		navigators: make(map[string]*workspace),
	}
}

// Get returns the navigator of key, creating it on first use.
func (w *Workspaces) Get(key string) *Navigator {
	w.mu.Lock()
	now := w.now()
	stale := w.sweepLocked(now)
	ws, ok := w.navigators[key]
	if !ok {
		ws = &workspace{nav: NewNavigator(w.fetcher)}
		w.navigators[key] = ws
	}
	ws.lastUsed = now
	w.mu.Unlock()

	for _, nav := range stale {
		nav.Close()
	}
	return ws.nav
}

// Drop closes and forgets the navigator of key.
func (w *Workspaces) Drop(key string) {
	w.mu.Lock()
	ws, ok := w.navigators[key]
	delete(w.navigators, key)
	w.mu.Unlock()
	if ok {
		ws.nav.Close()
	}
}

// Len returns the number of live navigators.
func (w *Workspaces) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.navigators)
}

func (w *Workspaces) sweepLocked(now time.Time) []*Navigator {
	if w.idle <= 0 || now.Sub(w.lastSweep) < workspaceSweepInterval {
		return nil
	}
	w.lastSweep = now
	var stale []*Navigator
	for key, ws := range w.navigators {
		if now.Sub(ws.lastUsed) > w.idle {
			stale = append(stale, ws.nav)
			delete(w.navigators, key)
		}
	}
	return stale
}
