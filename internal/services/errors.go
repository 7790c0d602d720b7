package services

import (
	"errors"
	"fmt"
)

// AuthCode classifies identity failures.
type AuthCode string

const (
	AuthInvalidCredentials AuthCode = "invalid-credentials"
	AuthRateLimited        AuthCode = "rate-limited"
	AuthMalformedEmail     AuthCode = "malformed-email"
	AuthEmailInUse         AuthCode = "email-in-use"
	AuthWeakPassword       AuthCode = "weak-password"
	AuthInvalidToken       AuthCode = "invalid-token"
	AuthUnknown            AuthCode = "unknown"
)

var authMessages = map[AuthCode]string{
	AuthInvalidCredentials: "Invalid email or password.",
	AuthRateLimited:        "Too many attempts. Please wait a minute and try again.",
	AuthMalformedEmail:     "Please enter a valid email address.",
	AuthEmailInUse:         "An account with this email already exists.",
	AuthWeakPassword:       "Password should be at least 6 characters.",
	AuthInvalidToken:       "This link is invalid or has expired.",
	AuthUnknown:            "Failed to authenticate. Please try again.",
}

// AuthError is a user-facing identity failure.
type AuthError struct {
	Code AuthCode
	Err  error
}

func newAuthError(code AuthCode, err error) *AuthError {
	return &AuthError{Code: code, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %v", e.Code, e.Err)
	}
	return "auth " + string(e.Code)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Message returns the text shown to the user.
func (e *AuthError) Message() string {
	if msg, ok := authMessages[e.Code]; ok {
		return msg
	}
	return authMessages[AuthUnknown]
}

// ValidationError rejects input before any collaborator is called.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// FetchError wraps a failed task or score load.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("could not load %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err is, or wraps, a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
