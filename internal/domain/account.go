package domain

import (
	"regexp"
	"time"
)

// TrialPeriod is granted to every account at signup.
const TrialPeriod = 30 * 24 * time.Hour

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@gmail\.com$`)

// ValidEmail reports whether email is an address on the accepted domain.
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

type Account struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	TrialStart   time.Time `json:"trial_start"`
	TrialEnd     time.Time `json:"trial_end"`
}

// HasTrial is false for accounts created before trial windows existed.
func (a Account) HasTrial() bool {
	return !a.TrialEnd.IsZero()
}

// TrialExpired reports whether now is past the end of the trial window.
func (a Account) TrialExpired(now time.Time) bool {
	return a.HasTrial() && now.After(a.TrialEnd)
}

// TrialRemaining is the time left in the trial window, never negative.
func (a Account) TrialRemaining(now time.Time) time.Duration {
	if !a.HasTrial() || now.After(a.TrialEnd) {
		return 0
	}
	return a.TrialEnd.Sub(now)
}

// AuthResult is returned by a successful, non-expired authentication.
type AuthResult struct {
	OK             bool          `json:"ok"`
	Username       string        `json:"username"`
	IsAdmin        bool          `json:"is_admin"`
	HasTrial       bool          `json:"has_trial"`
	TrialRemaining time.Duration `json:"trial_remaining"`
}

// Session is an authenticated login, valid until ExpiresAt.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
