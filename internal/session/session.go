// Package session holds the live authenticated-identity state of a client and
// the gate that decides whether protected views may be entered.
package session

// Identity is the opaque handle of an authenticated user.
type Identity struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	PhotoURL string `json:"photo_url,omitempty"`

	// TokenID is the id of the token the identity was resolved from. It is
	// empty for identities pushed through change notifications.
	TokenID string `json:"-"`
}

// Session is the authenticated state of one client. A nil Identity means
// nobody is logged in.
type Session struct {
	Identity      *Identity `json:"identity"`
	EmailVerified bool      `json:"email_verified"`
}

// Anonymous is the session of a client without identity.
var Anonymous = Session{}

// Present reports whether an identity is attached.
func (s Session) Present() bool {
	return s.Identity != nil
}

// UserID returns the identity id, or 0 when absent.
func (s Session) UserID() int {
	if s.Identity == nil {
		return 0
	}
	return s.Identity.ID
}

// Change is an identity change notification for a single user. A change with
// an anonymous Session means the user logged out. A non-empty TokenID limits
// the change to clients holding that token.
type Change struct {
	UserID  int     `json:"user_id"`
	TokenID string  `json:"token_id,omitempty"`
	Session Session `json:"session"`
}
