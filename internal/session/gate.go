package session

// View names a destination the caller should redirect to.
type View string

const (
	LoginView  View = "/login"
	VerifyView View = "/verify-email"
)

// Decision is the outcome of CanAccess. A zero Redirect means access is
// allowed.
type Decision struct {
	Redirect View `json:"redirect,omitempty"`
}

// Allowed is the decision that lets the caller render the protected view.
var Allowed = Decision{}

// RedirectTo builds a redirecting decision.
func RedirectTo(view View) Decision {
	return Decision{Redirect: view}
}

// IsAllowed reports whether the decision grants access.
func (d Decision) IsAllowed() bool {
	return d.Redirect == ""
}

// CanAccess gates protected views on the session state. It has no side
// effects; redirecting is the caller's job.
func CanAccess(s Session) Decision {
	switch {
	case !s.Present():
		return RedirectTo(LoginView)
	case !s.EmailVerified:
		return RedirectTo(VerifyView)
	default:
		return Allowed
	}
}
