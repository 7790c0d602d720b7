package types

import "time"

// User represents an account in the system.
// It contains identity, verification state, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the display handle shown on the leaderboard.
	Username string `json:"username" db:"username"`

	// Email is the login name of the user.
	Email string `json:"email" db:"email"`

	// EmailVerified is set once the user followed the verification link.
	EmailVerified bool `json:"email_verified" db:"email_verified"`

	// PhotoURL points to the uploaded avatar, if any.
	PhotoURL string `json:"photo_url,omitempty" db:"photo_url"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ScoreRecord is a read-only leaderboard projection of a user's score.
type ScoreRecord struct {
	UserID   int    `json:"user_id" db:"user_id" yaml:"user_id"`
	Username string `json:"username" db:"username" yaml:"username"`
	PhotoURL string `json:"photo_url,omitempty" db:"photo_url" yaml:"photo_url"`
	Score    int    `json:"score" db:"score" yaml:"score"`
}

// VerificationToken links an emailed verification code to a user.
type VerificationToken struct {
	Token     string    `json:"token" db:"token"`
	UserID    int       `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
