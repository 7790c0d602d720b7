package handlers

import (
	"context"
	"net/http"

	"github.com/jjudge-oj/practice/internal/session"
)

// Authenticator resolves a bearer token to a session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (session.Session, error)
}

// LoadSession resolves the request token, when any, and stores the session
// in the request context. Browsers cannot set headers on websocket
// handshakes, so the token may also arrive as the "token" query parameter.
// Invalid tokens leave the request anonymous.
func LoadSession(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				token = r.URL.Query().Get("token")
			}
			s := session.Anonymous
			if token != "" {
				if resolved, err := auth.Authenticate(r.Context(), token); err == nil {
					s = resolved
				} else {
					token = ""
				}
			}
			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), s, token)))
		})
	}
}

// RequireIdentity admits any logged-in client, verified or not.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !SessionFromContext(r.Context()).Present() {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:    "login required",
				Code:     "unauthenticated",
				Redirect: string(session.LoginView),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAccess admits only sessions the gate allows into protected views.
func RequireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := session.CanAccess(SessionFromContext(r.Context()))
		if decision.IsAllowed() {
			next.ServeHTTP(w, r)
			return
		}
		if decision.Redirect == session.LoginView {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:    "login required",
				Code:     "unauthenticated",
				Redirect: string(decision.Redirect),
			})
			return
		}
		writeJSON(w, http.StatusForbidden, ErrorResponse{
			Error:    "email not verified",
			Code:     "unverified",
			Redirect: string(decision.Redirect),
		})
	})
}
