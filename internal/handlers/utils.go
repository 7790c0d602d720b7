package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jjudge-oj/practice/internal/services"
	"github.com/jjudge-oj/practice/internal/session"
)

const maxJSONBody = 1 << 20

type contextKey string

const (
	contextSessionKey contextKey = "session"
	contextTokenKey   contextKey = "token"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

func withSession(ctx context.Context, s session.Session, token string) context.Context {
	ctx = context.WithValue(ctx, contextSessionKey, s)
	return context.WithValue(ctx, contextTokenKey, token)
}

// SessionFromContext returns the session resolved for the request, or
// Anonymous when none was.
func SessionFromContext(ctx context.Context) session.Session {
	if s, ok := ctx.Value(contextSessionKey).(session.Session); ok {
		return s
	}
	return session.Anonymous
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(contextTokenKey).(string)
	return token
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return errors.New("invalid request")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeAuthError maps identity failures onto status codes and the message
// shown to the user.
func writeAuthError(w http.ResponseWriter, err error) {
	var validation *services.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: validation.Message, Code: "validation"})
		return
	}

	var authErr *services.AuthError
	if !errors.As(err, &authErr) {
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	status := http.StatusInternalServerError
	switch authErr.Code {
	case services.AuthInvalidCredentials, services.AuthInvalidToken:
		status = http.StatusUnauthorized
	case services.AuthRateLimited:
		status = http.StatusTooManyRequests
	case services.AuthMalformedEmail, services.AuthWeakPassword:
		status = http.StatusBadRequest
	case services.AuthEmailInUse:
		status = http.StatusConflict
	}
	writeJSON(w, status, ErrorResponse{Error: authErr.Message(), Code: string(authErr.Code)})
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
