package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/user-access-service/internal/auth"
	"github.com/spec-kit/user-access-service/internal/domain"
	"github.com/spec-kit/user-access-service/internal/events"
	apperrors "github.com/spec-kit/user-access-service/pkg/util/errorutil"
)

// Login rejection causes. They are logged, never returned to clients.
var (
	errUnknownIdentity = errors.New("identity not found")
	errAccountInactive = errors.New("account not active")
	errSecretMismatch  = errors.New("secret mismatch")
)

// IdentityStore looks accounts up by login identifier.
type IdentityStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// SecretVerifier checks a plaintext secret against its stored hash.
type SecretVerifier interface {
	Matches(plain, stored string) bool
}

// AuthService issues tokens on login and revokes them on logout or when the
// caller changes its own account state.
type AuthService struct {
	identities    IdentityStore
	verifier      SecretVerifier
	tokens        *auth.TokenManager
	revocations   auth.RevocationStore
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	revokeTimeout time.Duration
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Identities    IdentityStore
	Verifier      SecretVerifier
	Tokens        *auth.TokenManager
	Revocations   auth.RevocationStore
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	RevokeTimeout time.Duration
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	verifier := deps.Verifier
	if verifier == nil {
		verifier = auth.BcryptVerifier{}
	}
	timeout := deps.RevokeTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	return &AuthService{
		identities:    deps.Identities,
		verifier:      verifier,
		tokens:        deps.Tokens,
		revocations:   deps.Revocations,
		dispatcher:    deps.Dispatcher,
		logger:        logger,
		revokeTimeout: timeout,
	}
}

// Login verifies credentials and issues a token. Unknown identity, inactive
// account and wrong secret all produce the same AuthenticationFailed error.
func (s *AuthService) Login(ctx context.Context, creds domain.Credentials) (domain.Token, error) {
	user, err := s.identities.GetByEmail(ctx, creds.Email)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Burn a comparison so unknown identities cost the same as wrong secrets.
		s.verifier.Matches(creds.Password, dummyHash)
		return domain.Token{}, s.rejectLogin(creds.Email, errUnknownIdentity)
	case err != nil:
		return domain.Token{}, apperrors.NewInternalError(err)
	}

	// Secret first: account status is only checked once the caller has proven
	// the password, and every path pays one comparison.
	if !s.verifier.Matches(creds.Password, user.PasswordHash) {
		return domain.Token{}, s.rejectLogin(creds.Email, errSecretMismatch)
	}
	if !user.IsActive() {
		return domain.Token{}, s.rejectLogin(creds.Email, errAccountInactive)
	}

	if err := ctx.Err(); err != nil {
		return domain.Token{}, err
	}
	tok, err := s.tokens.Issue(domain.Principal{SubjectID: user.ID, Role: user.Role})
	if err != nil {
		s.logger.Error("token signing failed", zap.Error(err))
		return domain.Token{}, apperrors.NewUnavailable(err)
	}

	s.publish(ctx, events.Event{
		Type:      events.EventUserLoggedIn,
		SubjectID: user.ID,
		Actor:     events.Actor{UserID: user.ID, Role: user.Role},
	})
	return tok, nil
}

// Logout revokes the caller's current token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, principal domain.Principal, current domain.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ttl := current.Remaining(s.tokens.Now())
	return s.revoke(ctx, principal, current, ttl, "logout")
}

// SelfRevokeOnStateChange revokes current when a state-changing operation hit
// the caller's own account. It reports whether a revocation was written.
//
// The marker lives for the configured token lifetime, or the token's remaining
// lifetime if that is longer, so it never expires before the token does. The
// state change has already been committed when this runs, so client
// cancellation is ignored; the store timeout still applies.
func (s *AuthService) SelfRevokeOnStateChange(ctx context.Context, principal domain.Principal, affectedSubjectID string, current domain.Token) (bool, error) {
	if principal.SubjectID == "" || principal.SubjectID != affectedSubjectID {
		return false, nil
	}

	ttl := s.tokens.TTL()
	if remaining := current.Remaining(s.tokens.Now()); remaining > ttl {
		ttl = remaining
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.revokeTimeout)
	defer cancel()
	if err := s.revoke(ctx, principal, current, ttl, "self_state_change"); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AuthService) revoke(ctx context.Context, principal domain.Principal, current domain.Token, ttl time.Duration, reason string) error {
	if err := s.revocations.Revoke(ctx, current.Raw, ttl); err != nil {
		// The token stays usable until expires_at; the entry is what follow-up needs.
		s.logger.Error("token revocation failed",
			zap.String("subject_id", principal.SubjectID),
			zap.String("token_id", current.ID),
			zap.Time("expires_at", current.ExpiresAt),
			zap.String("reason", reason),
			zap.Error(err))
		return apperrors.NewUnavailable(err)
	}

	s.publish(ctx, events.Event{
		Type:      events.EventTokenRevoked,
		SubjectID: principal.SubjectID,
		Actor:     events.Actor{UserID: principal.SubjectID, Role: principal.Role},
		Payload:   events.TokenRevokedPayload{TokenID: current.ID, TTL: ttl, Reason: reason},
	})
	return nil
}

func (s *AuthService) rejectLogin(email string, cause error) error {
	s.logger.Info("login rejected", zap.String("email", email), zap.String("cause", cause.Error()))
	return apperrors.NewAuthenticationFailed(cause)
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

// dummyHash is a bcrypt hash of a random string, used for timing parity.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3ZwGHu6GzqPqZ1XxM4iHk2a"
