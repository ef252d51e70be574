package domain

import "time"

// Principal is the identity resolved from a token for the span of one request.
type Principal struct {
	SubjectID string
	Role      UserRole
}

// Credentials are the login inputs. They are never stored.
type Credentials struct {
	Email    string
	Password string
}

// Token is an issued access token with its lifetime bounds.
type Token struct {
	ID        string
	Raw       string
	Principal Principal
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Remaining returns how long the token stays valid after now.
func (t Token) Remaining(now time.Time) time.Duration {
	if d := t.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
