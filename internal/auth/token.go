package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/user-access-service/internal/domain"
)

// Verification failures. Callers outside this package collapse all three into
// one externally visible reason.
var (
	ErrMalformed        = errors.New("token malformed")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("token signing secret is empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source. Tests use it to move past expiry.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	cp := *tm
	cp.now = now
	return &cp
}

// TTL returns the default token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Now returns the manager's current time.
func (tm *TokenManager) Now() time.Time {
	return tm.now()
}

// UserClaim is the identity payload embedded in the token.
type UserClaim struct {
	ID   string          `json:"id"`
	Role domain.UserRole `json:"role"`
}

// Claims describes JWT payload.
type Claims struct {
	User UserClaim `json:"user"`
	jwt.RegisteredClaims
}

// Issue signs a token for the principal using the default lifetime.
func (tm *TokenManager) Issue(principal domain.Principal) (domain.Token, error) {
	return tm.IssueWithTTL(principal, tm.ttl)
}

// IssueWithTTL signs a token for the principal that expires after ttl.
func (tm *TokenManager) IssueWithTTL(principal domain.Principal, ttl time.Duration) (domain.Token, error) {
	if ttl <= 0 {
		return domain.Token{}, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	// NumericDate has second precision. Expiry rounds up so the token lives
	// at least ttl; the returned bounds are read back from the signed claims.
	now := tm.now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(ceilSecond(now.Add(ttl)))
	id := uuid.NewString()

	claims := &Claims{
		User: UserClaim{ID: principal.SubjectID, Role: principal.Role},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   principal.SubjectID,
			ExpiresAt: expiresAt,
			IssuedAt:  issuedAt,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return domain.Token{}, fmt.Errorf("sign token: %w", err)
	}
	return domain.Token{
		ID:        id,
		Raw:       tokenString,
		Principal: principal,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}, nil
}

func ceilSecond(t time.Time) time.Time {
	if r := t.Truncate(time.Second); r.Before(t) {
		return r.Add(time.Second)
	}
	return t
}

// Verify checks signature and expiry and returns the decoded token.
// It performs no I/O.
func (tm *TokenManager) Verify(tokenStr string) (domain.Token, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return domain.Token{}, classify(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Token{}, ErrMalformed
	}
	if claims.User.ID == "" || claims.User.Role == "" {
		return domain.Token{}, ErrMalformed
	}

	tok := domain.Token{
		ID:        claims.ID,
		Raw:       tokenStr,
		Principal: domain.Principal{SubjectID: claims.User.ID, Role: claims.User.Role},
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		tok.IssuedAt = claims.IssuedAt.Time
	}
	return tok, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	default:
		return ErrMalformed
	}
}
