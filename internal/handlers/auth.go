package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/practice/internal/services"
	"github.com/jjudge-oj/practice/internal/session"
)

// Identity is the identity collaborator behind the auth routes.
type Identity interface {
	Authenticator
	SignUp(ctx context.Context, email, password, confirm, username string) (session.Session, string, error)
	Login(ctx context.Context, email, password string) (session.Session, string, error)
	Logout(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, identity *session.Identity) error
	ReloadIdentity(ctx context.Context, identity *session.Identity) (session.Session, error)
	ConfirmEmail(ctx context.Context, token string) (session.Session, error)
}

// AuthHandler provides the login, sign up and verification endpoints.
type AuthHandler struct {
	identity Identity
	onLogout func(tokenID string)
}

// NewAuthHandler constructs an AuthHandler. onLogout, when set, runs after a
// successful logout with the id of the revoked token.
func NewAuthHandler(identity Identity, onLogout func(tokenID string)) *AuthHandler {
	return &AuthHandler{identity: identity, onLogout: onLogout}
}

// AuthRouter registers auth routes on the given router. The router must run
// behind LoadSession.
func AuthRouter(r chi.Router, identity Identity, onLogout func(tokenID string)) {
	handler := NewAuthHandler(identity, onLogout)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/logout", handler.Logout)
	r.Get("/verify", handler.Verify)
	r.Group(func(r chi.Router) {
		r.Use(RequireIdentity)
		r.Get("/me", handler.Me)
		r.Post("/resend", handler.Resend)
		r.Post("/reload", handler.Reload)
	})
}

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Username        string `json:"username"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token   string          `json:"token"`
	Session session.Session `json:"session"`
}

type SessionResponse struct {
	Session session.Session  `json:"session"`
	Access  session.Decision `json:"access"`
}

func newSessionResponse(s session.Session) SessionResponse {
	return SessionResponse{Session: s, Access: session.CanAccess(s)}
}

// Register creates an account and logs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, token, err := h.identity.SignUp(r.Context(), req.Email, req.Password, req.ConfirmPassword, req.Username)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, Session: s})
}

// Login verifies credentials and returns a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	s, token, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Token: token, Session: s})
}

// Logout revokes the request token. Anonymous requests succeed too.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := tokenFromContext(r.Context())
	if token != "" {
		if err := h.identity.Logout(r.Context(), token); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to log out")
			return
		}
		if current := SessionFromContext(r.Context()); current.Present() && h.onLogout != nil {
			h.onLogout(current.Identity.TokenID)
		}
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session.Anonymous))
}

// Verify consumes the token of a verification link.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}
	s, err := h.identity.ConfirmEmail(r.Context(), token)
	if err != nil {
		if isAuthError(err) {
			writeAuthError(w, err)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to verify email")
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(s))
}

// Me returns the session of the request.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSessionResponse(SessionFromContext(r.Context())))
}

// Resend queues another verification email.
func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	s := SessionFromContext(r.Context())
	if err := h.identity.ResendVerification(r.Context(), s.Identity); err != nil {
		if isAuthError(err) {
			writeAuthError(w, err)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to send verification email")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// Reload rereads the identity so a verification done elsewhere is picked up.
func (h *AuthHandler) Reload(w http.ResponseWriter, r *http.Request) {
	s, err := h.identity.ReloadIdentity(r.Context(), SessionFromContext(r.Context()).Identity)
	if err != nil {
		if isAuthError(err) {
			writeAuthError(w, err)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to reload identity")
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(s))
}

func isAuthError(err error) bool {
	var authErr *services.AuthError
	return errors.As(err, &authErr)
}
