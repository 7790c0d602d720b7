package session

import "sync"

// Holder is the live Session of one client. It follows change notifications
// for the same user, including logout of its own token, and tells its listener
// about every update.
type Holder struct {
	mu          sync.Mutex
	current     Session
	onChange    func(Session)
	unsubscribe func()
}

// NewHolder starts tracking s. onChange may be nil.
func NewHolder(s Session, notifier *Notifier, onChange func(Session)) *Holder {
	h := &Holder{current: s, onChange: onChange}
	if notifier != nil {
		h.unsubscribe = notifier.Subscribe(h.apply)
	}
	return h
}

// Current returns the session as of now.
func (h *Holder) Current() Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Close stops listening for change notifications.
func (h *Holder) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}

func (h *Holder) apply(change Change) {
	h.mu.Lock()
	if h.current.UserID() == 0 || h.current.UserID() != change.UserID ||
		(change.TokenID != "" && change.TokenID != h.current.Identity.TokenID) {
		h.mu.Unlock()
		return
	}
	next := change.Session
	if next.Identity != nil && h.current.Identity != nil {
		identity := *next.Identity
		identity.TokenID = h.current.Identity.TokenID
		next.Identity = &identity
	}
	h.current = next
	cb := h.onChange
	h.mu.Unlock()
	if cb != nil {
		cb(next)
	}
}
